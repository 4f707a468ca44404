package auth

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/goliatone/go-errors"
)

// OpaqueTokenLength is the number of random bytes behind every verification
// and reset token.
const OpaqueTokenLength = 32

// NewOpaqueToken returns a url-safe single-use token built from
// OpaqueTokenLength bytes of CSPRNG output. Generation is independent of any
// account data; uniqueness is enforced by the store's unique indexes at write
// time, and at this entropy a collision is negligible.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
