package aaa

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// hashTagPBKDF2 identifies PBKDF2-HMAC-SHA1 derived records. It is the
	// only supported algorithm; the tag byte exists for future agility.
	hashTagPBKDF2 = 'p'

	saltSize = 32
	keySize  = 32
)

// DefaultIterations is the PBKDF2 work factor used unless overridden.
// Deployments must keep their configured count stable: verification derives
// with the verifier's count, so changing it invalidates stored hashes.
const DefaultIterations = 600_000

// PasswordHasher derives salted keys from an (identity, secret) pair and
// verifies them in constant time. Records are encoded as
// base64(tag + salt[32] + key[32]).
type PasswordHasher struct {
	iterations int
}

// NewPasswordHasher returns a hasher with the default work factor.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{iterations: DefaultIterations}
}

// WithIterations overrides the PBKDF2 iteration count. Values below 1 are
// ignored.
func (h *PasswordHasher) WithIterations(n int) *PasswordHasher {
	if n > 0 {
		h.iterations = n
	}
	return h
}

// Hash derives a keyed record for the identity/secret pair under a fresh
// random salt.
func (h *PasswordHasher) Hash(identity, secret string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate salt")
	}
	return h.HashWithSalt(identity, secret, salt)
}

// HashWithSalt derives a keyed record under the caller-provided 32-byte salt.
func (h *PasswordHasher) HashWithSalt(identity, secret string, salt []byte) (string, error) {
	if len(salt) != saltSize {
		return "", goerrors.New(
			fmt.Sprintf("salt must be %d bytes, got %d", saltSize, len(salt)),
			goerrors.CategoryBadInput,
		)
	}

	cleartext := identity + "\x00" + secret
	key := pbkdf2.Key([]byte(cleartext), salt, h.iterations, keySize, sha1.New)

	record := make([]byte, 0, 1+saltSize+keySize)
	record = append(record, hashTagPBKDF2)
	record = append(record, salt...)
	record = append(record, key...)
	return base64.StdEncoding.EncodeToString(record), nil
}

// Verify reports whether encoded is a valid record for the identity/secret
// pair. Unknown tags and malformed records verify false. The comparison
// covers the full re-derived record and runs in constant time.
func (h *PasswordHasher) Verify(identity, secret, encoded string) bool {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	if len(decoded) != 1+saltSize+keySize {
		return false
	}
	if decoded[0] != hashTagPBKDF2 {
		return false
	}

	salt := decoded[1 : 1+saltSize]
	derived, err := h.HashWithSalt(identity, secret, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(encoded)) == 1
}
