// Package activitymap turns account lifecycle events into audit records
// keyed by what was acted on: the account, its password, its avatar or
// its linked identity.
package activitymap

import (
	"context"
	"strings"
	"time"

	account "github.com/goliatone/go-account"
)

// Objects an event can act on
const (
	ObjectAccount  = "account"
	ObjectPassword = "password"
	ObjectAvatar   = "avatar"
	ObjectIdentity = "identity"
)

// ChannelLocal marks events that did not come through an identity provider
const ChannelLocal = "local"

// Record is the audit shape of one account event
type Record struct {
	Verb       string         `json:"verb"`
	Object     string         `json:"object"`
	ObjectID   string         `json:"object_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	ActorType  string         `json:"actor_type,omitempty"`
	Channel    string         `json:"channel"`
	Outcome    string         `json:"outcome,omitempty"`
	Event      string         `json:"event"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields returns the record as logger key values
func (r Record) Fields() []any {
	fields := []any{
		"object", r.Object,
		"user_id", r.UserID,
		"actor_id", r.ActorID,
		"channel", r.Channel,
	}
	if r.ObjectID != "" && r.ObjectID != r.UserID {
		fields = append(fields, "object_id", r.ObjectID)
	}
	if r.Outcome != "" {
		fields = append(fields, "outcome", r.Outcome)
	}
	if len(r.Metadata) > 0 {
		fields = append(fields, "metadata", r.Metadata)
	}
	return fields
}

type mapping struct {
	verb   string
	object string
	// idKey names the metadata entry holding the object id, the user id
	// is used when empty
	idKey string
}

var mappings = map[account.ActivityEventType]mapping{
	account.ActivityEventSignup:               {verb: "signup", object: ObjectAccount},
	account.ActivityEventLogin:                {verb: "login", object: ObjectAccount},
	account.ActivityEventUpdated:              {verb: "update", object: ObjectAccount},
	account.ActivityEventDeleted:              {verb: "delete", object: ObjectAccount},
	account.ActivityEventPasswordChanged:      {verb: "change", object: ObjectPassword},
	account.ActivityEventPasswordResetRequest: {verb: "request_reset", object: ObjectPassword},
	account.ActivityEventPasswordReset:        {verb: "reset", object: ObjectPassword},
	account.ActivityEventAvatarAttached:       {verb: "attach", object: ObjectAvatar, idKey: "avatar_id"},
	account.ActivityEventAvatarDetached:       {verb: "detach", object: ObjectAvatar, idKey: "avatar_id"},
	account.ActivityEventIdentityLinked:       {verb: "link", object: ObjectIdentity, idKey: "provider_id"},
	account.ActivityEventIdentityUnlinked:     {verb: "unlink", object: ObjectIdentity, idKey: "provider_id"},
}

// metadata keys lifted into Record fields
const (
	keyProvider = "provider"
	keyOutcome  = "outcome"
)

// Option customizes mapping
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for events without a timestamp
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Map converts event into a Record. Unknown event types keep their name
// without the "account." prefix as the verb and act on the account.
func Map(event account.ActivityEvent, opts ...Option) Record {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	m, ok := mappings[event.EventType]
	if !ok {
		m = mapping{
			verb:   strings.TrimPrefix(string(event.EventType), "account."),
			object: ObjectAccount,
		}
	}

	meta := make(map[string]any, len(event.Metadata))
	for key, value := range event.Metadata {
		meta[key] = value
	}

	rec := Record{
		Verb:       m.verb,
		Object:     m.object,
		UserID:     strings.TrimSpace(event.UserID),
		ActorID:    strings.TrimSpace(event.Actor.ID),
		ActorType:  strings.TrimSpace(event.Actor.Type),
		Channel:    ChannelLocal,
		Event:      string(event.EventType),
		OccurredAt: event.OccurredAt,
	}

	rec.ObjectID = rec.UserID
	if m.idKey != "" {
		if id := take(meta, m.idKey); id != "" {
			rec.ObjectID = id
		}
	}
	if provider := take(meta, keyProvider); provider != "" {
		rec.Channel = provider
	}
	rec.Outcome = take(meta, keyOutcome)

	if rec.ActorID == "" {
		rec.ActorID = rec.UserID
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = o.now().UTC()
	}
	if len(meta) > 0 {
		rec.Metadata = meta
	}
	return rec
}

// Sink returns an account.ActivitySink that maps every event before
// handing it to emit.
func Sink(emit func(ctx context.Context, record Record) error, opts ...Option) account.ActivitySink {
	return account.ActivitySinkFunc(func(ctx context.Context, event account.ActivityEvent) error {
		return emit(ctx, Map(event, opts...))
	})
}

func take(meta map[string]any, key string) string {
	raw, ok := meta[key]
	if !ok {
		return ""
	}
	delete(meta, key)
	value, _ := raw.(string)
	return strings.TrimSpace(value)
}
