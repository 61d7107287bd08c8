// Package payment authenticates payment confirmations received from the
// gateway. The gateway signs the pair (gateway order id, payment id) with a
// shared secret; anything the client submits is untrusted until the
// signature checks out.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks gateway payment signatures. The secret is held
// server-side and never transmitted to clients or written to logs.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the gateway signing secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify reports whether claimed matches the lowercase hex HMAC-SHA256 of
// "<gatewayOrderID>|<paymentID>" under the shared secret. The comparison is
// constant-time to avoid leaking secret-dependent timing. Missing or
// malformed inputs simply fail verification; this function never errors and
// never blocks.
func (v *Verifier) Verify(gatewayOrderID, paymentID, claimed string) bool {
	if gatewayOrderID == "" || paymentID == "" || claimed == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(claimed))
}

// Sign returns the signature the gateway would produce for the given pair.
// Used by tooling and tests; the API never exposes it.
func (v *Verifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
