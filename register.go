package aaa

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultRegistrationMaxAge is the purge threshold for pending
// registrations.
const DefaultRegistrationMaxAge = 96 * time.Hour

// defaultMaxLevel bounds self-service signup to non-privileged roles unless
// the caller raises the ceiling.
const defaultMaxLevel = 50

// Registration is the Register payload. Role defaults to "user" and
// MaxLevel to 50. Body, when set, renders the notification text from the
// minted registration code; without it no notification is dispatched.
type Registration struct {
	Username     string
	Password     string
	EmailAddress string
	Company      string
	Role         string
	MaxLevel     int
	Subject      string
	Body         func(code string) string
	Permissions  map[string]any
}

// Validate implements the boundary validation for Register.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.EmailAddress, validation.Required, is.Email),
		validation.Field(&r.Company, validation.Required),
	)
}

// Register stores a pending registration and, when a body renderer and a
// notifier are configured, dispatches the signup-confirmation message.
// Dispatch failures are logged and never abort storage. This operation is
// deliberately available to unauthenticated callers; the MaxLevel ceiling is
// what keeps it from minting privileged accounts.
func (e *Engine) Register(ctx context.Context, reg Registration) (string, error) {
	if err := reg.Validate(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration")
	}
	if reg.Role == "" {
		reg.Role = "user"
	}
	if reg.MaxLevel == 0 {
		reg.MaxLevel = defaultMaxLevel
	}

	exists, err := e.store.Users.Contains(ctx, reg.Username)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}
	if exists {
		return "", ErrDuplicateUser
	}

	level, err := e.roles.LevelOf(ctx, reg.Role)
	if err != nil {
		return "", err
	}
	if level > reg.MaxLevel {
		return "", ErrRoleAboveCeiling
	}

	code := NewRegistrationCode()
	createdAt := e.now().Unix()

	if reg.Body != nil {
		e.notify(ctx, reg.EmailAddress, orDefault(reg.Subject, "Signup confirmation"), reg.Body(code))
	}

	hash, err := e.hasher.Hash(reg.Username, reg.Password)
	if err != nil {
		return "", err
	}

	pending := PendingRegistration{
		Username:     reg.Username,
		Role:         reg.Role,
		PasswordHash: hash,
		EmailAddress: reg.EmailAddress,
		Company:      reg.Company,
		Permissions:  reg.Permissions,
		CreatedAt:    createdAt,
	}
	if err := e.store.Pending.Set(ctx, code, pending); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending registration")
	}

	e.emit(ctx, ActivityEventRegistrationRequested, reg.Username, map[string]any{"role": reg.Role})
	return code, nil
}

// ValidateRegistration consumes a registration code exactly once and creates
// the account it describes, with Validated left false. A second call with
// the same code fails with ErrInvalidCode; the pop is atomic, so two
// concurrent calls cannot both succeed.
func (e *Engine) ValidateRegistration(ctx context.Context, code string) (string, error) {
	pending, err := e.store.Pending.Pop(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return "", ErrInvalidCode
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to pop pending registration")
	}

	exists, err := e.store.Users.Contains(ctx, pending.Username)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}
	if exists {
		// Two registrations raced for the same username; the code is spent
		// either way.
		return "", ErrDuplicateUser
	}

	user := User{
		Username:     pending.Username,
		Role:         pending.Role,
		PasswordHash: pending.PasswordHash,
		EmailAddress: pending.EmailAddress,
		Company:      pending.Company,
		Permissions:  pending.Permissions,
		Validated:    false,
		CreatedAt:    pending.CreatedAt,
	}
	if err := e.store.Users.Set(ctx, pending.Username, user); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write user")
	}

	e.emit(ctx, ActivityEventRegistrationConfirmed, pending.Username, nil)
	return pending.Username, nil
}

// PurgeExpiredRegistrations deletes pending registrations older than maxAge
// (DefaultRegistrationMaxAge when zero). Idempotent and safe to run
// concurrently with registration and validation.
func (e *Engine) PurgeExpiredRegistrations(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultRegistrationMaxAge
	}

	all, err := e.store.Pending.All(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list pending registrations")
	}

	now := e.now()
	for code, pending := range all {
		if pending.Age(now) <= maxAge {
			continue
		}
		if err := e.store.Pending.Delete(ctx, code); err != nil && !errors.Is(err, ErrNoSuchKey) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete pending registration")
		}
	}
	return nil
}

// notify dispatches fire-and-forget: configuration problems and enqueue
// failures are logged, never propagated.
func (e *Engine) notify(ctx context.Context, recipient, subject, body string) {
	if e.notifier == nil {
		e.logger.Debug("no notifier configured, skipping dispatch", "recipient", recipient)
		return
	}
	if err := e.notifier.Dispatch(ctx, recipient, subject, body); err != nil {
		e.logger.Error("failed to dispatch notification", "recipient", recipient, "error", err)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
