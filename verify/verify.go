// Package verify implements inbound webhook signature verification.
//
// Each source configures one verification scheme and a shared secret.
// Verification is opt-in: a blank secret always verifies. All signature
// comparisons are constant-time, and every scheme fails closed: a header
// that is missing, malformed, or unparsable yields false, never an error.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

// Scheme identifies a provider signature verification scheme.
type Scheme string

// Supported verification schemes.
const (
	SchemeNone    Scheme = "none"
	SchemeStripe  Scheme = "stripe"
	SchemeShopify Scheme = "shopify"
	SchemeGitHub  Scheme = "github"
	SchemeHMAC    Scheme = "hmac"
)

// Valid reports whether s is a known scheme.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeNone, SchemeStripe, SchemeShopify, SchemeGitHub, SchemeHMAC:
		return true
	}
	return false
}

// genericSignatureHeaders are probed in order by the generic HMAC scheme.
// The first header present wins.
var genericSignatureHeaders = []string{
	"X-Signature",
	"X-Webhook-Signature",
	"X-Hmac-Signature",
	"X-Hub-Signature-256",
	"X-Signature-256",
}

// Verify checks the request signature for the given scheme and secret.
// A blank secret verifies unconditionally. Unknown schemes verify true so
// that a stale scheme reference never blocks ingestion.
func Verify(scheme Scheme, secret string, body []byte, headers http.Header) bool {
	if secret == "" {
		return true
	}

	switch scheme {
	case SchemeNone:
		return true
	case SchemeStripe:
		return verifyStripe(secret, body, headers.Get("Stripe-Signature"))
	case SchemeShopify:
		return verifyShopify(secret, body, headers.Get("X-Shopify-Hmac-SHA256"))
	case SchemeGitHub:
		return verifyGitHub(secret, body, headers.Get("X-Hub-Signature-256"))
	case SchemeHMAC:
		return verifyGeneric(secret, body, headers)
	default:
		return true
	}
}

// verifyStripe validates a timestamped signature header of the form
// "t=<unix-ts>,v1=<hex>[,v1=<hex>...]". The signed content is
// "<timestamp>.<body>"; any matching v1 entry passes.
func verifyStripe(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch {
		case k == "t":
			timestamp = v
		case strings.HasPrefix(k, "v1"):
			candidates = append(candidates, v)
		}
	}

	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range candidates {
		if secureCompare(sig, expected) {
			return true
		}
	}
	return false
}

// verifyShopify validates a base64-encoded HMAC-SHA256 of the raw body.
func verifyShopify(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}

	expected := base64.StdEncoding.EncodeToString(digest(secret, body))
	return secureCompare(header, expected)
}

// verifyGitHub validates a "sha256=<hex>" HMAC-SHA256 of the raw body.
func verifyGitHub(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}

	expected := "sha256=" + hex.EncodeToString(digest(secret, body))
	return secureCompare(header, expected)
}

// verifyGeneric probes common signature header names and accepts hex,
// "sha256="-prefixed hex, or base64 signature forms.
func verifyGeneric(secret string, body []byte, headers http.Header) bool {
	var signature string
	for _, name := range genericSignatureHeaders {
		if v := headers.Get(name); v != "" {
			signature = v
			break
		}
	}
	if signature == "" {
		return false
	}

	sum := digest(secret, body)
	expectedHex := hex.EncodeToString(sum)
	expectedB64 := base64.StdEncoding.EncodeToString(sum)

	return secureCompare(signature, expectedHex) ||
		secureCompare(signature, "sha256="+expectedHex) ||
		secureCompare(signature, expectedB64)
}

func digest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func secureCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
