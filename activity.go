package account

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup               ActivityEventType = "account.signup"
	ActivityEventLogin                ActivityEventType = "account.login"
	ActivityEventUpdated              ActivityEventType = "account.updated"
	ActivityEventDeleted              ActivityEventType = "account.deleted"
	ActivityEventPasswordChanged      ActivityEventType = "account.password.changed"
	ActivityEventPasswordResetRequest ActivityEventType = "account.password.reset_requested"
	ActivityEventPasswordReset        ActivityEventType = "account.password.reset"
	ActivityEventAvatarAttached       ActivityEventType = "account.avatar.attached"
	ActivityEventAvatarDetached       ActivityEventType = "account.avatar.detached"
	ActivityEventIdentityLinked       ActivityEventType = "account.identity.linked"
	ActivityEventIdentityUnlinked     ActivityEventType = "account.identity.unlinked"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
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

// userActivity builds an event where the user acts on their own account
func userActivity(eventType ActivityEventType, user *User, at time.Time, meta map[string]any) ActivityEvent {
	id := ""
	if user != nil {
		id = user.ID.String()
	}
	return ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: id, Type: "user"},
		UserID:     id,
		Metadata:   meta,
		OccurredAt: at,
	}
}
