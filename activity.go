package aaa

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityEventLogout                ActivityEventType = "auth.logout"
	ActivityEventRegistrationRequested ActivityEventType = "auth.registration.requested"
	ActivityEventRegistrationConfirmed ActivityEventType = "auth.registration.confirmed"
	ActivityEventPasswordResetSent     ActivityEventType = "auth.password.reset.sent"
	ActivityEventPasswordReset         ActivityEventType = "auth.password.reset"
	ActivityEventUserCreated           ActivityEventType = "admin.user.created"
	ActivityEventUserDeleted           ActivityEventType = "admin.user.deleted"
	ActivityEventRoleCreated           ActivityEventType = "admin.role.created"
	ActivityEventRoleDeleted           ActivityEventType = "admin.role.deleted"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Username   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never surfaced to the caller.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
