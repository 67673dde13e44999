package aaa_test

import (
	"context"
	"sync"
	"testing"
	"time"

	aaa "github.com/goliatone/go-aaa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	sessions := aaa.NewMemorySessions()

	_, err := sessions.Current(ctx)
	assert.ErrorIs(t, err, aaa.ErrUnauthenticated)

	require.NoError(t, sessions.Bind(ctx, "alice"))
	username, err := sessions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	require.NoError(t, sessions.Unbind(ctx))
	_, err = sessions.Current(ctx)
	assert.ErrorIs(t, err, aaa.ErrUnauthenticated)
}

// tokenCarrier is a stand-in for the host's cookie plumbing.
type tokenCarrier struct {
	mu    sync.Mutex
	token string
}

func (c *tokenCarrier) read(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

func (c *tokenCarrier) write(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

func TestJWTSessions(t *testing.T) {
	ctx := context.Background()
	key := []byte("test-signing-key")

	t.Run("bind then current round-trips the principal", func(t *testing.T) {
		carrier := &tokenCarrier{}
		sessions := aaa.NewJWTSessions(key, time.Hour, carrier.read, carrier.write).
			WithIssuer("go-aaa-test")

		require.NoError(t, sessions.Bind(ctx, "alice"))
		assert.NotEmpty(t, carrier.token)

		username, err := sessions.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
	})

	t.Run("unbind clears the token", func(t *testing.T) {
		carrier := &tokenCarrier{}
		sessions := aaa.NewJWTSessions(key, time.Hour, carrier.read, carrier.write)

		require.NoError(t, sessions.Bind(ctx, "alice"))
		require.NoError(t, sessions.Unbind(ctx))

		_, err := sessions.Current(ctx)
		assert.ErrorIs(t, err, aaa.ErrUnauthenticated)
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		carrier := &tokenCarrier{}
		minter := aaa.NewJWTSessions([]byte("other-key"), time.Hour, carrier.read, carrier.write)
		require.NoError(t, minter.Bind(ctx, "alice"))

		sessions := aaa.NewJWTSessions(key, time.Hour, carrier.read, carrier.write)
		_, err := sessions.Current(ctx)
		assert.ErrorIs(t, err, aaa.ErrUnauthenticated)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		carrier := &tokenCarrier{}
		sessions := aaa.NewJWTSessions(key, -time.Minute, carrier.read, carrier.write)

		require.NoError(t, sessions.Bind(ctx, "alice"))
		_, err := sessions.Current(ctx)
		assert.ErrorIs(t, err, aaa.ErrUnauthenticated)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		carrier := &tokenCarrier{token: "not-a-jwt"}
		sessions := aaa.NewJWTSessions(key, time.Hour, carrier.read, carrier.write)

		_, err := sessions.Current(ctx)
		assert.ErrorIs(t, err, aaa.ErrUnauthenticated)
	})
}
