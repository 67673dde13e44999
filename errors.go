package aaa

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrNonexistentUser is returned when an operation references a user that is
// not present in the store.
var ErrNonexistentUser = goerrors.New("nonexistent user", goerrors.CategoryNotFound)

// ErrNonexistentRole is returned when an operation references a role that is
// not present in the store.
var ErrNonexistentRole = goerrors.New("nonexistent role", goerrors.CategoryNotFound)

// ErrDuplicateUser is returned when creating a user that already exists.
var ErrDuplicateUser = goerrors.New("user already exists", goerrors.CategoryConflict)

// ErrDuplicateRole is returned when creating a role that already exists.
var ErrDuplicateRole = goerrors.New("role already exists", goerrors.CategoryConflict)

// ErrMissingRole is returned by Require when a fixed-role check was requested
// without naming a role.
var ErrMissingRole = goerrors.New("a role must be specified when fixed role is set", goerrors.CategoryBadInput)

// ErrUnauthenticated is returned when no principal is bound to the session.
var ErrUnauthenticated = goerrors.New("unauthenticated user", goerrors.CategoryAuth)

// ErrUnauthorized is returned when the authenticated principal does not
// satisfy the requested check.
var ErrUnauthorized = goerrors.New("unauthorized access", goerrors.CategoryAuth)

// ErrInvalidCredentials is returned for failed logins. It deliberately does
// not distinguish a missing user from a password mismatch.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth)

// ErrInvalidCode is returned for malformed, tampered or already-consumed
// registration and reset codes.
var ErrInvalidCode = goerrors.New("invalid code", goerrors.CategoryAuth)

// ErrExpiredCode is returned for reset tokens past their validity window.
var ErrExpiredCode = goerrors.New("expired code", goerrors.CategoryAuth)

// ErrRoleAboveCeiling is returned by Register when the requested role sits
// above the self-service ceiling.
var ErrRoleAboveCeiling = goerrors.New("unauthorized role", goerrors.CategoryValidation)

// ErrNotifierNotConfigured is returned when a flow needs to deliver a
// notification but no sender or endpoint has been configured.
var ErrNotifierNotConfigured = goerrors.New("notification sender or endpoint not set", goerrors.CategoryValidation)

// ErrNoSuchKey is the storage-level not-found error Table implementations
// must return. The engine always translates it before it reaches a caller.
var ErrNoSuchKey = goerrors.New("no such key", goerrors.CategoryNotFound)

// IsAuthError reports whether err is an identity or permission problem: bad
// credentials, unauthenticated session, insufficient role or level, identity
// or company mismatch, invalid or expired token.
func IsAuthError(err error) bool {
	cat, ok := categoryOf(err)
	return ok && cat == goerrors.CategoryAuth
}

// IsDataError reports whether err is a structural or data problem:
// nonexistent or duplicate user/role, malformed parameters, missing
// configuration.
func IsDataError(err error) bool {
	cat, ok := categoryOf(err)
	if !ok {
		return false
	}
	switch cat {
	case goerrors.CategoryValidation,
		goerrors.CategoryBadInput,
		goerrors.CategoryConflict,
		goerrors.CategoryNotFound:
		return true
	}
	return false
}

func categoryOf(err error) (goerrors.Category, bool) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		var zero goerrors.Category
		return zero, false
	}
	return rich.Category, true
}
