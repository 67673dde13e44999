package aaa_test

import (
	"context"
	"testing"

	aaa "github.com/goliatone/go-aaa"
	"github.com/goliatone/go-aaa/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHierarchy(t *testing.T) *aaa.RoleHierarchy {
	t.Helper()

	ctx := context.Background()
	roles := memory.NewTable[aaa.Role]()
	require.NoError(t, roles.Set(ctx, "user", aaa.Role{Level: 10}))
	require.NoError(t, roles.Set(ctx, "editor", aaa.Role{Level: 50}))
	require.NoError(t, roles.Set(ctx, "admin", aaa.Role{Level: 100}))
	return aaa.NewRoleHierarchy(roles)
}

func TestLevelOf(t *testing.T) {
	ctx := context.Background()
	hierarchy := newTestHierarchy(t)

	level, err := hierarchy.LevelOf(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, 50, level)

	_, err = hierarchy.LevelOf(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, aaa.IsDataError(err))
}

func TestAuthorizeLevelThreshold(t *testing.T) {
	ctx := context.Background()
	hierarchy := newTestHierarchy(t)

	tests := []struct {
		name      string
		actor     string
		threshold string
		expected  bool
	}{
		{"higher level passes lower threshold", "editor", "user", true},
		{"equal level passes", "editor", "editor", true},
		{"lower level fails higher threshold", "editor", "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hierarchy.Authorize(ctx, tt.actor, tt.threshold, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestAuthorizeExact(t *testing.T) {
	ctx := context.Background()
	hierarchy := newTestHierarchy(t)

	// An editor outranks "user" by level but fails an exact check.
	ok, err := hierarchy.Authorize(ctx, "editor", "user", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = hierarchy.Authorize(ctx, "editor", "editor", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeMissingRole(t *testing.T) {
	ctx := context.Background()
	hierarchy := newTestHierarchy(t)

	_, err := hierarchy.Authorize(ctx, "editor", "ghost", false)
	require.Error(t, err)
	assert.True(t, aaa.IsDataError(err))
}
