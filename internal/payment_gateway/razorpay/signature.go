package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks an HMAC-SHA256 hex signature over message using secret.
// Malformed hex or a length mismatch is a verification failure, never an error:
// callers always get a boolean. The comparison is constant-time.
//
// Two message constructions are in use:
//   - client confirmation: orderID + "|" + paymentID
//   - webhook: the exact raw request body bytes, captured before parsing
func VerifySignature(message, signature, secret string) bool {
	received, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hmac.Equal(mac.Sum(nil), received)
}

// ClientConfirmationMessage builds the string the gateway signs when returning
// control to the payer's browser.
func ClientConfirmationMessage(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}
