package aaa

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// AdminLevel gates administrative mutations: create/delete role,
	// create/delete user.
	AdminLevel = 100

	// CompanyBypassLevel marks the super-admin band; principals at or above
	// it skip company checks entirely.
	CompanyBypassLevel = 200
)

// RoleHierarchy answers level lookups and the core RBAC question: does an
// actor's role satisfy a threshold role. Higher levels subsume lower ones
// unless an exact match is requested.
type RoleHierarchy struct {
	roles Table[Role]
}

// NewRoleHierarchy returns a hierarchy over the given role table.
func NewRoleHierarchy(roles Table[Role]) *RoleHierarchy {
	return &RoleHierarchy{roles: roles}
}

// LevelOf returns the privilege level of the named role, or
// ErrNonexistentRole when the role is absent.
func (h *RoleHierarchy) LevelOf(ctx context.Context, role string) (int, error) {
	r, err := h.roles.Get(ctx, role)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return 0, ErrNonexistentRole
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read role")
	}
	return r.Level, nil
}

// Authorize reports whether actorRole satisfies thresholdRole. With exact
// set, only a literal role match passes, regardless of levels. Otherwise the
// actor passes iff its level is at least the threshold role's level.
func (h *RoleHierarchy) Authorize(ctx context.Context, actorRole, thresholdRole string, exact bool) (bool, error) {
	if exact {
		return actorRole == thresholdRole, nil
	}

	actorLevel, err := h.LevelOf(ctx, actorRole)
	if err != nil {
		return false, err
	}
	thresholdLevel, err := h.LevelOf(ctx, thresholdRole)
	if err != nil {
		return false, err
	}
	return actorLevel >= thresholdLevel, nil
}
