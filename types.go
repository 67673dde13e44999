package aaa

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface the package needs. Plug in your own;
// the default writes to stdout.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Table is an abstract keyed collection of records. Implementations own
// durability and concurrency; Pop must be atomic with respect to concurrent
// pops of the same key. Missing keys are reported as ErrNoSuchKey.
type Table[R any] interface {
	Contains(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (R, error)
	Set(ctx context.Context, key string, record R) error
	Delete(ctx context.Context, key string) error
	Pop(ctx context.Context, key string) (R, error)
	All(ctx context.Context) (map[string]R, error)
}

// Store bundles the three tables the engine operates on.
type Store struct {
	Users   Table[User]
	Roles   Table[Role]
	Pending Table[PendingRegistration]
}

// Sessions binds the authenticated principal to the hosting layer's session
// mechanism. The engine never persists session data itself; it is handed a
// Sessions value explicitly instead of reading ambient request state.
type Sessions interface {
	// Current returns the username bound to the session, or
	// ErrUnauthenticated when none is bound.
	Current(ctx context.Context) (string, error)
	Bind(ctx context.Context, username string) error
	Unbind(ctx context.Context) error
}

// Notifier is the outbound message port used by the registration and
// password-reset flows. Dispatch fails synchronously only for configuration
// problems; delivery itself happens asynchronously and is best-effort.
// Drain waits for in-flight deliveries up to the given timeout.
type Notifier interface {
	Dispatch(ctx context.Context, recipient, subject, body string) error
	Drain(timeout time.Duration) error
}

type defLogger struct{}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AAA "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AAA "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AAA "+newline(format), args...)
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AAA "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
