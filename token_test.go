package aaa_test

import (
	"encoding/base64"
	"regexp"
	"strings"
	"testing"
	"time"

	aaa "github.com/goliatone/go-aaa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistrationCode(t *testing.T) {
	hexCode := regexp.MustCompile(`^[0-9a-f]{32}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := aaa.NewRegistrationCode()
		assert.Regexp(t, hexCode, code)
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}

func TestResetTokenRoundTrip(t *testing.T) {
	codec := aaa.NewResetTokens(newTestHasher())

	token, err := codec.Issue("alice", "alice@example.com")
	require.NoError(t, err)

	username, email, err := codec.Redeem(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Equal(t, "alice@example.com", email)
}

func TestResetTokenWireFormat(t *testing.T) {
	codec := aaa.NewResetTokens(newTestHasher())

	token, err := codec.Issue("alice", "alice@example.com")
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)

	parts := strings.SplitN(string(decoded), ":", 4)
	require.Len(t, parts, 4)
	assert.Equal(t, "alice", parts[0])
	assert.Equal(t, "alice@example.com", parts[1])
	assert.Regexp(t, `^\d+$`, parts[2])
}

func TestResetTokenExpiryBoundary(t *testing.T) {
	const timeout = 24 * time.Hour

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issueClock := now
	codec := aaa.NewResetTokens(newTestHasher()).
		WithTimeout(timeout).
		WithClock(func() time.Time { return issueClock })

	t.Run("issued exactly one window ago is valid", func(t *testing.T) {
		issueClock = now.Add(-timeout)
		token, err := codec.Issue("alice", "alice@example.com")
		require.NoError(t, err)

		issueClock = now
		_, _, err = codec.Redeem(token)
		assert.NoError(t, err)
	})

	t.Run("one second past the window is expired", func(t *testing.T) {
		issueClock = now.Add(-timeout - time.Second)
		token, err := codec.Issue("alice", "alice@example.com")
		require.NoError(t, err)

		issueClock = now
		_, _, err = codec.Redeem(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, aaa.ErrExpiredCode)
		assert.True(t, aaa.IsAuthError(err))
	})
}

func TestResetTokenRejectsTampering(t *testing.T) {
	codec := aaa.NewResetTokens(newTestHasher())

	token, err := codec.Issue("alice", "alice@example.com")
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)

	t.Run("username swap", func(t *testing.T) {
		swapped := strings.Replace(string(decoded), "alice:", "mallory:", 1)
		_, _, err := codec.Redeem(base64.StdEncoding.EncodeToString([]byte(swapped)))
		assert.ErrorIs(t, err, aaa.ErrInvalidCode)
	})

	t.Run("signature truncated", func(t *testing.T) {
		truncated := string(decoded[:len(decoded)-2])
		_, _, err := codec.Redeem(base64.StdEncoding.EncodeToString([]byte(truncated)))
		assert.ErrorIs(t, err, aaa.ErrInvalidCode)
	})
}

func TestResetTokenRejectsMalformedInput(t *testing.T) {
	codec := aaa.NewResetTokens(newTestHasher())

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too few fields", base64.StdEncoding.EncodeToString([]byte("alice:alice@example.com"))},
		{"non-numeric timestamp", base64.StdEncoding.EncodeToString([]byte("alice:a@b.com:soon:sig"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := codec.Redeem(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, aaa.ErrInvalidCode)
		})
	}
}
