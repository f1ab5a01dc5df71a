// Package signature verifies gateway payment confirmations.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSecret = errors.New("signing secret is required")
	ErrMismatch      = errors.New("signature mismatch")
)

// Signer computes and checks HMAC-SHA256 signatures over "gatewayOrderID|paymentID".
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Payload is the signed message for a payment confirmation.
func Payload(gatewayOrderID, paymentID string) string {
	return gatewayOrderID + "|" + paymentID
}

// Sign returns the lowercase hex digest for the confirmation.
func (s *Signer) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(Payload(gatewayOrderID, paymentID)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the supplied signature against the expected digest in constant time.
func (s *Signer) Verify(gatewayOrderID, paymentID, signature string) error {
	expected := s.Sign(gatewayOrderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrMismatch
	}
	return nil
}
