package verify

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// GenerateIngestToken creates a cryptographically random, URL-safe ingest
// token for a source. Tokens are globally unique for practical purposes and
// immutable once issued.
func GenerateIngestToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic("verify: failed to generate random token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateSecret creates a cryptographically random verification secret.
// Format: "whsec_" + 32 bytes hex = 70 characters total.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("verify: failed to generate random secret: " + err.Error())
	}
	return "whsec_" + hex.EncodeToString(b)
}
