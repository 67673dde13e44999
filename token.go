package aaa

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultResetTimeout is the validity window for password-reset tokens.
const DefaultResetTimeout = 24 * time.Hour

// NewRegistrationCode mints a 128-bit random registration code rendered as
// 32 lowercase hex characters.
func NewRegistrationCode() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// ResetTokens encodes and verifies stateless password-reset tokens. A token
// is base64("username:email:unix_ts:signature") where the signature is a
// PasswordHasher record over (username, email).
//
// Because tokens carry no server-side state they cannot be revoked before
// their natural expiry; a captured token stays redeemable for the full
// window. That is the documented contract, not an oversight.
type ResetTokens struct {
	hasher  *PasswordHasher
	timeout time.Duration
	now     func() time.Time
}

// NewResetTokens returns a codec signing with the given hasher and the
// default validity window.
func NewResetTokens(hasher *PasswordHasher) *ResetTokens {
	return &ResetTokens{
		hasher:  hasher,
		timeout: DefaultResetTimeout,
		now:     time.Now,
	}
}

// WithTimeout overrides the validity window. Non-positive values are ignored.
func (t *ResetTokens) WithTimeout(d time.Duration) *ResetTokens {
	if d > 0 {
		t.timeout = d
	}
	return t
}

// WithClock overrides the time source.
func (t *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	if now != nil {
		t.now = now
	}
	return t
}

// Issue mints a token for the username/email pair, stamped with the current
// time.
func (t *ResetTokens) Issue(username, email string) (string, error) {
	sig, err := t.hasher.Hash(username, email)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(t.now().Unix(), 10)
	payload := strings.Join([]string{username, email, ts, sig}, ":")
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

// Redeem decodes and verifies a token, returning the embedded username and
// email. It fails with ErrInvalidCode on malformed or tampered tokens and
// ErrExpiredCode when the embedded timestamp is outside the window. A token
// stamped exactly one window ago is still valid.
func (t *ResetTokens) Redeem(token string) (username, email string, err error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrInvalidCode
	}

	parts := strings.SplitN(string(decoded), ":", 4)
	if len(parts) != 4 {
		return "", "", ErrInvalidCode
	}
	username, email = parts[0], parts[1]

	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", ErrInvalidCode
	}
	if t.now().Unix()-issued > int64(t.timeout/time.Second) {
		return "", "", ErrExpiredCode
	}

	if !t.hasher.Verify(username, email, parts[3]) {
		return "", "", ErrInvalidCode
	}
	return username, email, nil
}
