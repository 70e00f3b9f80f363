package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// canonicalSeparator joins the signed request fields.
const canonicalSeparator = "|"

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
// It signs operator and granter requests as well as outbound webhook bodies.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func mac(secretKey, payload string) []byte {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(payload))
	return h.Sum(nil)
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return hex.EncodeToString(mac(secretKey, payload))
}

// Verify reports whether signature is the hex MAC of payload. Upper-case
// hex is accepted; anything that does not decode is rejected.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secretKey, payload), got)
}

// BuildCanonicalString returns METHOD|PATH|TIMESTAMP|NONCE|BODY.
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		strconv.FormatInt(timestamp, 10),
		nonce,
		body,
	}, canonicalSeparator)
}
