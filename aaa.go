package aaa

import (
	"context"
	"errors"
	"iter"
	"maps"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Engine is the authorization core. It coordinates the store, the role
// hierarchy, the password hasher, the session binder and the notification
// port. Build one with New and the chainable With* methods; once built it is
// safe for concurrent use.
type Engine struct {
	store    *Store
	roles    *RoleHierarchy
	hasher   *PasswordHasher
	sessions Sessions
	notifier Notifier
	activity ActivitySink
	logger   Logger
	resets   *ResetTokens
	now      func() time.Time
}

// New returns an engine over the given store and session binder.
func New(store *Store, sessions Sessions) *Engine {
	hasher := NewPasswordHasher()
	return &Engine{
		store:    store,
		roles:    NewRoleHierarchy(store.Roles),
		hasher:   hasher,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
		resets:   NewResetTokens(hasher),
		now:      time.Now,
	}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(logger Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithNotifier sets the outbound notification port. Without one,
// registration proceeds silently and password-reset delivery fails with
// ErrNotifierNotConfigured.
func (e *Engine) WithNotifier(notifier Notifier) *Engine {
	e.notifier = notifier
	return e
}

// WithHasher replaces the password hasher. The reset-token codec signs with
// the same hasher and is swapped along with it.
func (e *Engine) WithHasher(hasher *PasswordHasher) *Engine {
	if hasher != nil {
		e.hasher = hasher
		e.resets = NewResetTokens(hasher).WithTimeout(e.resets.timeout).WithClock(e.now)
	}
	return e
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (e *Engine) WithActivitySink(sink ActivitySink) *Engine {
	e.activity = normalizeActivitySink(sink)
	return e
}

// WithResetTimeout overrides the password-reset token validity window.
func (e *Engine) WithResetTimeout(d time.Duration) *Engine {
	e.resets.WithTimeout(d)
	return e
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
		e.resets.WithClock(now)
	}
	return e
}

// Credentials is the Login input. The redirect targets are optional; when
// set, the corresponding outcome is reported as a redirect instead of a
// boolean or error.
type Credentials struct {
	Username        string
	Password        string
	SuccessRedirect string
	FailRedirect    string
}

// Login checks the credentials and, on success, binds the session. It fails
// closed: a missing user and a hash mismatch are indistinguishable to the
// caller.
func (e *Engine) Login(ctx context.Context, creds Credentials) Decision {
	user, err := e.store.Users.Get(ctx, creds.Username)
	if err != nil {
		if !errors.Is(err, ErrNoSuchKey) {
			return fail(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user"))
		}
		e.emit(ctx, ActivityEventLoginFailure, creds.Username, nil)
		return refuse(ErrInvalidCredentials, creds.FailRedirect)
	}

	if !e.hasher.Verify(creds.Username, creds.Password, user.PasswordHash) {
		e.emit(ctx, ActivityEventLoginFailure, creds.Username, nil)
		return refuse(ErrInvalidCredentials, creds.FailRedirect)
	}

	if err := e.sessions.Bind(ctx, creds.Username); err != nil {
		return fail(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to bind session"))
	}

	e.emit(ctx, ActivityEventLoginSuccess, creds.Username, nil)
	if creds.SuccessRedirect != "" {
		return allowRedirect(creds.SuccessRedirect)
	}
	return allow()
}

// Logout unbinds the session.
func (e *Engine) Logout(ctx context.Context) error {
	username, err := e.sessions.Current(ctx)
	if err != nil {
		return ErrUnauthenticated
	}
	if err := e.sessions.Unbind(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to unbind session")
	}
	e.emit(ctx, ActivityEventLogout, username, nil)
	return nil
}

// Check is the Require input. Zero-value fields are unconstrained: an empty
// Check passes for any authenticated principal.
type Check struct {
	Username     string
	Company      string
	Role         string
	FixedRole    bool
	FailRedirect string
}

// Require ensures the current principal is authenticated and satisfies the
// check. Data problems (unknown username or role, missing role parameter,
// dangling role reference) always produce an error; authorization failures
// take the redirect branch when Check.FailRedirect is set.
func (e *Engine) Require(ctx context.Context, check Check) Decision {
	if check.Username != "" {
		ok, err := e.store.Users.Contains(ctx, check.Username)
		if err != nil {
			return fail(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user"))
		}
		if !ok {
			return fail(ErrNonexistentUser)
		}
	}

	if check.FixedRole && check.Role == "" {
		return fail(ErrMissingRole)
	}

	if check.Role != "" {
		ok, err := e.store.Roles.Contains(ctx, check.Role)
		if err != nil {
			return fail(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read role"))
		}
		if !ok {
			return fail(ErrNonexistentRole)
		}
	}

	cu, err := e.CurrentUser(ctx)
	if err != nil {
		return refuse(err, check.FailRedirect)
	}

	level, err := e.roles.LevelOf(ctx, cu.Role)
	if err != nil {
		if errors.Is(err, ErrNonexistentRole) {
			// Data-integrity failure: the principal references a role that
			// no longer exists.
			return fail(goerrors.New("role not found for the current user", goerrors.CategoryNotFound).
				WithMetadata(map[string]any{"username": cu.Username, "role": cu.Role}))
		}
		return fail(err)
	}

	if check.Username != "" && check.Username != cu.Username {
		return refuse(unauthorized("incorrect username"), check.FailRedirect)
	}

	if check.Company != "" && level < CompanyBypassLevel && cu.Company != check.Company {
		return refuse(unauthorized("user is not associated with company"), check.FailRedirect)
	}

	if check.FixedRole {
		if cu.Role == check.Role {
			return allow()
		}
		return refuse(unauthorized("incorrect role"), check.FailRedirect)
	}

	if check.Role != "" {
		ok, err := e.roles.Authorize(ctx, cu.Role, check.Role, false)
		if err != nil {
			return fail(err)
		}
		if !ok {
			return refuse(unauthorized("insufficient level"), check.FailRedirect)
		}
	}

	return allow()
}

// CurrentUser resolves the authenticated principal from the session binder.
func (e *Engine) CurrentUser(ctx context.Context) (User, error) {
	username, err := e.sessions.Current(ctx)
	if err != nil || username == "" {
		return User{}, ErrUnauthenticated
	}

	user, err := e.store.Users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return User{}, goerrors.New("unknown session user", goerrors.CategoryAuth).
				WithMetadata(map[string]any{"username": username})
		}
		return User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}
	return user, nil
}

// User returns the named user record, or ErrNonexistentUser.
func (e *Engine) User(ctx context.Context, username string) (User, error) {
	user, err := e.store.Users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return User{}, ErrNonexistentUser
		}
		return User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}
	return user, nil
}

// VerifyPassword checks a cleartext password against the stored hash for the
// named user without touching the session.
func (e *Engine) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	user, err := e.User(ctx, username)
	if err != nil {
		return false, err
	}
	return e.hasher.Verify(username, password, user.PasswordHash), nil
}

// CreateRole creates a new role. The current principal must be at
// AdminLevel or above.
func (e *Engine) CreateRole(ctx context.Context, role string, level int) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}

	exists, err := e.store.Roles.Contains(ctx, role)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read role")
	}
	if exists {
		return ErrDuplicateRole
	}

	if err := e.store.Roles.Set(ctx, role, Role{Level: level}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write role")
	}
	e.emit(ctx, ActivityEventRoleCreated, "", map[string]any{"role": role, "level": level})
	return nil
}

// DeleteRole removes a role. The current principal must be at AdminLevel or
// above.
func (e *Engine) DeleteRole(ctx context.Context, role string) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}

	if err := e.store.Roles.Delete(ctx, role); err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return ErrNonexistentRole
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete role")
	}
	e.emit(ctx, ActivityEventRoleDeleted, "", map[string]any{"role": role})
	return nil
}

// ListRoles returns a restartable sequence of (role, level) pairs sorted by
// role name.
func (e *Engine) ListRoles(ctx context.Context) (iter.Seq2[string, int], error) {
	all, err := e.store.Roles.All(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list roles")
	}

	names := slices.Sorted(maps.Keys(all))
	return func(yield func(string, int) bool) {
		for _, name := range names {
			if !yield(name, all[name].Level) {
				return
			}
		}
	}, nil
}

// CreateUserInput is the CreateUser payload.
type CreateUserInput struct {
	Username     string
	Role         string
	Password     string
	Company      string
	EmailAddress string
	Permissions  map[string]any
}

// Validate implements the boundary validation for CreateUser.
func (i CreateUserInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Username, validation.Required),
		validation.Field(&i.Role, validation.Required),
		validation.Field(&i.Password, validation.Required),
		validation.Field(&i.Company, validation.Required),
		validation.Field(&i.EmailAddress, is.Email),
	)
}

// CreateUser creates a validated user account. The current principal must be
// at AdminLevel or above.
func (e *Engine) CreateUser(ctx context.Context, input CreateUserInput) error {
	if err := input.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user input")
	}
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}

	exists, err := e.store.Users.Contains(ctx, input.Username)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}
	if exists {
		return ErrDuplicateUser
	}

	hasRole, err := e.store.Roles.Contains(ctx, input.Role)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read role")
	}
	if !hasRole {
		return ErrNonexistentRole
	}

	hash, err := e.hasher.Hash(input.Username, input.Password)
	if err != nil {
		return err
	}

	user := User{
		Username:     input.Username,
		Role:         input.Role,
		PasswordHash: hash,
		EmailAddress: input.EmailAddress,
		Company:      input.Company,
		Permissions:  input.Permissions,
		Validated:    true,
		CreatedAt:    e.now().Unix(),
	}
	if err := e.store.Users.Set(ctx, input.Username, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write user")
	}
	e.emit(ctx, ActivityEventUserCreated, input.Username, map[string]any{"role": input.Role})
	return nil
}

// DeleteUser removes a user account. The current principal must be at
// AdminLevel or above.
func (e *Engine) DeleteUser(ctx context.Context, username string) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}

	if err := e.store.Users.Delete(ctx, username); err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return ErrNonexistentUser
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}
	e.emit(ctx, ActivityEventUserDeleted, username, nil)
	return nil
}

// ListUsers returns a restartable sequence of (username, record) pairs
// sorted by username.
func (e *Engine) ListUsers(ctx context.Context) (iter.Seq2[string, User], error) {
	all, err := e.store.Users.All(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}

	names := slices.Sorted(maps.Keys(all))
	return func(yield func(string, User) bool) {
		for _, name := range names {
			if !yield(name, all[name]) {
				return
			}
		}
	}, nil
}

// UserUpdate describes a partial update. Nil fields are left untouched;
// Permissions entries are merged into the existing map.
type UserUpdate struct {
	Role         *string
	Password     *string
	EmailAddress *string
	Company      *string
	Validated    *bool
	Permissions  map[string]any
}

// UpdateUser applies a partial update to the named user. Concurrent updates
// race at the granularity of a full record write; callers needing strict
// consistency must serialize per username.
func (e *Engine) UpdateUser(ctx context.Context, username string, update UserUpdate) error {
	user, err := e.User(ctx, username)
	if err != nil {
		return err
	}

	if update.Role != nil {
		hasRole, err := e.store.Roles.Contains(ctx, *update.Role)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read role")
		}
		if !hasRole {
			return ErrNonexistentRole
		}
		user.Role = *update.Role
	}
	if update.Password != nil {
		hash, err := e.hasher.Hash(username, *update.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	if update.EmailAddress != nil {
		user.EmailAddress = *update.EmailAddress
	}
	if update.Company != nil {
		user.Company = *update.Company
	}
	if update.Validated != nil {
		user.Validated = *update.Validated
	}
	for name, value := range update.Permissions {
		user.AddPermission(name, value)
	}

	if err := e.store.Users.Set(ctx, username, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write user")
	}
	return nil
}

// RemovePermissions drops the named grants from the user's permission map.
// Unknown names are ignored.
func (e *Engine) RemovePermissions(ctx context.Context, username string, permissions ...string) error {
	user, err := e.User(ctx, username)
	if err != nil {
		return err
	}

	for _, name := range permissions {
		delete(user.Permissions, name)
	}

	if err := e.store.Users.Set(ctx, username, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write user")
	}
	return nil
}

// Roles exposes the role hierarchy for callers that need level lookups.
func (e *Engine) Roles() *RoleHierarchy {
	return e.roles
}

// ResetTokens exposes the reset-token codec, mainly for interop and tests.
func (e *Engine) ResetTokens() *ResetTokens {
	return e.resets
}

func (e *Engine) requireAdmin(ctx context.Context) error {
	cu, err := e.CurrentUser(ctx)
	if err != nil {
		return err
	}
	level, err := e.roles.LevelOf(ctx, cu.Role)
	if err != nil {
		return err
	}
	if level < AdminLevel {
		return unauthorized("the current user is not authorized")
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, eventType ActivityEventType, username string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Username:   username,
		Metadata:   metadata,
		OccurredAt: e.now(),
	}
	if err := e.activity.Record(ctx, event); err != nil {
		e.logger.Error("failed to record activity event", "event", string(eventType), "error", err)
	}
}

func unauthorized(reason string) error {
	return goerrors.New("unauthorized access: "+reason, goerrors.CategoryAuth)
}
