package crypt_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/hookline/hookline/crypt"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	key, err := crypt.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cipher, err := crypt.NewSecretBox(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	plaintext := []byte(`{"type":"charge.succeeded"}`)
	sealed, err := cipher.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	opened, err := cipher.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("opened = %q, want %q", opened, plaintext)
	}
}

func TestSecretBoxRejectsTamperedCiphertext(t *testing.T) {
	key, _ := crypt.GenerateKey()
	cipher, _ := crypt.NewSecretBox(key)

	sealed, err := cipher.Seal([]byte("whsec_abc"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := cipher.Open(sealed); err != crypt.ErrDecrypt {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestSecretBoxRejectsShortCiphertext(t *testing.T) {
	key, _ := crypt.GenerateKey()
	cipher, _ := crypt.NewSecretBox(key)

	if _, err := cipher.Open([]byte("short")); err != crypt.ErrDecrypt {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestNewSecretBoxRejectsBadKeyLength(t *testing.T) {
	if _, err := crypt.NewSecretBox([]byte("too short")); err == nil {
		t.Fatal("want error for short key")
	}
}

func TestParseKey(t *testing.T) {
	key, _ := crypt.GenerateKey()

	if parsed, err := crypt.ParseKey(hex.EncodeToString(key)); err != nil || !bytes.Equal(parsed, key) {
		t.Errorf("hex parse failed: %v", err)
	}
	if _, err := crypt.ParseKey("not a key"); err == nil {
		t.Error("want error for garbage key")
	}
}

func TestNoopPassesThrough(t *testing.T) {
	var cipher crypt.Noop
	sealed, _ := cipher.Seal([]byte("plain"))
	opened, _ := cipher.Open(sealed)
	if string(opened) != "plain" {
		t.Errorf("opened = %q", opened)
	}
}
