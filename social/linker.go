package social

import (
	"context"
	"strings"
	"time"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultProviderName is the identity provider accounts are linked to
const DefaultProviderName = "sfdc"

// Outcome tells which branch a callback took
type Outcome string

const (
	// OutcomeCreated a new federated account was created from the profile
	OutcomeCreated Outcome = "created"
	// OutcomeReconnected a previously unlinked account got fresh tokens
	OutcomeReconnected Outcome = "reconnected"
	// OutcomeLinked the identity was attached to the signed in account
	OutcomeLinked Outcome = "linked"
	// OutcomeSignedIn a connected account signed in, tokens are refreshed
	OutcomeSignedIn Outcome = "signed_in"
)

// Callback is what the provider hands back after the user authorized us.
type Callback struct {
	AccessToken  string
	RefreshToken string
	Profile      Profile
	// SessionUser is set when the caller is already authenticated
	SessionUser *account.User
}

// LinkResult is the account the callback resolved to
type LinkResult struct {
	User    *account.User
	Outcome Outcome
}

// AvatarAssigner sets the default avatar on new accounts, *account.Manager
// implements it.
type AvatarAssigner interface {
	AssignDefaultAvatar(ctx context.Context, user *account.User)
}

// Linker links provider identities to accounts.
type Linker struct {
	repo     account.RepositoryManager
	avatars  AvatarAssigner
	activity account.ActivitySink
	logger   account.Logger
	provider string
	now      func() time.Time
}

// NewLinker creates a linker over the account repositories
func NewLinker(repo account.RepositoryManager) *Linker {
	return &Linker{
		repo:     repo,
		activity: account.ActivitySinkFunc(nil),
		logger:   nopLogger{},
		provider: DefaultProviderName,
		now:      time.Now,
	}
}

// WithAvatarAssigner sets who picks the avatar of created accounts
func (l *Linker) WithAvatarAssigner(a AvatarAssigner) *Linker {
	l.avatars = a
	return l
}

// WithActivitySink sets the sink used to emit link events.
func (l *Linker) WithActivitySink(sink account.ActivitySink) *Linker {
	if sink != nil {
		l.activity = sink
	}
	return l
}

// WithLogger overrides the logger
func (l *Linker) WithLogger(logger account.Logger) *Linker {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock replaces the wall clock
func (l *Linker) WithClock(now func() time.Time) *Linker {
	if now != nil {
		l.now = now
	}
	return l
}

// Link resolves a provider callback:
//   - an authenticated caller gets the identity attached to its account
//   - a known identity without tokens is reconnected
//   - a known connected identity signs in
//   - an unknown identity creates a federated account
//
// A unique violation on the identity is reported as
// ErrIdentityLinkedElsewhere, other persistence failures are returned as
// they come from the store.
func (l *Linker) Link(ctx context.Context, cb Callback) (*LinkResult, error) {
	if strings.TrimSpace(cb.Profile.ID) == "" {
		return nil, ErrProfileIncomplete
	}
	if strings.TrimSpace(cb.AccessToken) == "" {
		return nil, account.ErrParameterRequired("accessToken")
	}

	if cb.SessionUser != nil {
		return l.link(ctx, cb)
	}

	existing, err := l.repo.Users().GetByExternalID(ctx, cb.Profile.ID)
	switch {
	case err == nil && !existing.External.Connected():
		return l.save(ctx, existing, cb, OutcomeReconnected, account.ActivityEventIdentityLinked)
	case err == nil:
		return l.save(ctx, existing, cb, OutcomeSignedIn, account.ActivityEventLogin)
	case account.IsNotFound(err):
		return l.create(ctx, cb)
	default:
		return nil, err
	}
}

func (l *Linker) link(ctx context.Context, cb Callback) (*LinkResult, error) {
	holder, err := l.repo.Users().GetByExternalID(ctx, cb.Profile.ID)
	switch {
	case err == nil && holder.ID != cb.SessionUser.ID:
		l.logger.Warn("identity %s already linked to user %s", cb.Profile.ID, holder.ID)
		return nil, ErrIdentityLinkedElsewhere
	case err != nil && !account.IsNotFound(err):
		return nil, err
	}

	user, err := l.repo.Users().GetByID(ctx, cb.SessionUser.ID.String())
	if err != nil {
		return nil, err
	}
	return l.save(ctx, user, cb, OutcomeLinked, account.ActivityEventIdentityLinked)
}

func (l *Linker) save(ctx context.Context, user *account.User, cb Callback, outcome Outcome, event account.ActivityEventType) (*LinkResult, error) {
	user.External = identityFromCallback(cb)

	updated, err := l.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, identityWriteError(err)
	}

	l.record(ctx, event, updated, outcome)
	return &LinkResult{User: updated, Outcome: outcome}, nil
}

func (l *Linker) create(ctx context.Context, cb Callback) (*LinkResult, error) {
	email := cb.Profile.PrimaryEmail()
	if email == "" {
		return nil, ErrProfileIncomplete
	}

	name := account.ParseDisplayName(cb.Profile.DisplayName)
	if name.First == "" {
		local := strings.Split(email, "@")[0]
		name = account.Name{First: local, Last: local}
	}

	id, err := hashid.NewUUID(l.provider + ":" + cb.Profile.ID)
	if err != nil {
		l.logger.Debug("falling back to random id for %s identity: %v", l.provider, err)
		id = uuid.New()
	}

	user := &account.User{
		ID:       id,
		Name:     name,
		Email:    email,
		Roles:    account.DefaultRoles(),
		External: identityFromCallback(cb),
	}
	if l.avatars != nil {
		l.avatars.AssignDefaultAvatar(ctx, user)
	}

	var created *account.User
	err = l.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = l.repo.Users().CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, identityWriteError(err)
	}

	l.record(ctx, account.ActivityEventSignup, created, OutcomeCreated)
	return &LinkResult{User: created, Outcome: OutcomeCreated}, nil
}

// identityWriteError covers a concurrent callback that stored the same
// identity between the lookup and the write
func identityWriteError(err error) error {
	if goerrors.Is(err, account.ErrAccountConflict) {
		return ErrIdentityLinkedElsewhere
	}
	return err
}

func (l *Linker) record(ctx context.Context, eventType account.ActivityEventType, user *account.User, outcome Outcome) {
	err := l.activity.Record(ctx, account.ActivityEvent{
		EventType: eventType,
		Actor:     account.ActorRef{ID: l.provider, Type: "identity_provider"},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"provider":    l.provider,
			"provider_id": user.External.ID,
			"outcome":     string(outcome),
		},
		OccurredAt: l.now(),
	})
	if err != nil {
		l.logger.Warn("activity sink error during %s: %v", eventType, err)
	}
}

func identityFromCallback(cb Callback) account.ExternalIdentity {
	return account.ExternalIdentity{
		ID:           cb.Profile.ID,
		AccessToken:  cb.AccessToken,
		RefreshToken: cb.RefreshToken,
		Profile:      cb.Profile.Raw,
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
