package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureAlgorithm is the only prefix accepted in the signature header
const SignatureAlgorithm = "sha256"

// Verify checks the HMAC-SHA256 signature of a webhook body.
//
// The header must look like "sha256=<hex digest>". A missing header, an
// empty secret, another algorithm, a digest that is not 64 hex characters
// or a digest mismatch all return false. The digest comparison is constant
// time.
func Verify(body []byte, signatureHeader string, secret []byte) bool {
	if signatureHeader == "" || len(secret) == 0 {
		return false
	}

	algorithm, received, ok := strings.Cut(signatureHeader, "=")
	if !ok || algorithm != SignatureAlgorithm {
		return false
	}

	// Reject malformed digests before comparing so that only well-formed
	// values reach hmac.Equal.
	if len(received) != hex.EncodedLen(sha256.Size) {
		return false
	}
	if _, err := hex.DecodeString(received); err != nil {
		return false
	}

	expected := hex.EncodeToString(computeMAC(body, secret))
	return hmac.Equal([]byte(received), []byte(expected))
}

// Sign returns the signature header value GitHub would send for body
func Sign(body []byte, secret []byte) string {
	return SignatureAlgorithm + "=" + hex.EncodeToString(computeMAC(body, secret))
}

func computeMAC(body []byte, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
