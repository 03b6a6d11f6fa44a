package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"
)

// Encoding is how a signature digest is written into a header.
type Encoding int

const (
	Hex Encoding = iota
	Base64
)

// HMAC is a header signature scheme: prefix + encode(HMAC(secret, body)).
type HMAC struct {
	Hash     func() hash.Hash
	Encoding Encoding
	Prefix   string
}

// Digest computes the raw HMAC of payload.
func (h HMAC) Digest(secret string, payload []byte) []byte {
	newHash := h.Hash
	if newHash == nil {
		newHash = sha256.New
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// Sign returns the header value a sender would attach.
func (h HMAC) Sign(secret string, payload []byte) string {
	digest := h.Digest(secret, payload)
	if h.Encoding == Base64 {
		return h.Prefix + base64.StdEncoding.EncodeToString(digest)
	}
	return h.Prefix + hex.EncodeToString(digest)
}

// Verify checks a header value against payload. Missing prefix, bad encoding
// and length mismatch are all plain failures.
func (h HMAC) Verify(secret string, payload []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if h.Prefix != "" {
		if !strings.HasPrefix(header, h.Prefix) {
			return false
		}
		header = strings.TrimPrefix(header, h.Prefix)
	}
	supplied, ok := h.decode(header)
	if !ok {
		return false
	}
	return Equal(h.Digest(secret, payload), supplied)
}

func (h HMAC) decode(value string) ([]byte, bool) {
	var (
		out []byte
		err error
	)
	if h.Encoding == Base64 {
		out, err = base64.StdEncoding.DecodeString(value)
	} else {
		out, err = hex.DecodeString(strings.ToLower(value))
	}
	return out, err == nil
}

// Equal compares two digests in constant time. Different lengths fail
// before any byte is compared.
func Equal(expected, supplied []byte) bool {
	if len(expected) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, supplied) == 1
}
