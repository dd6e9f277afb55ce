package account

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Manager orchestrates the account lifecycle: signup, update, delete,
// password changes and resets, avatars and external identity unlinking.
type Manager struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	tokens   TokenService
	config   Config
	blobs    AvatarBlobStore
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	now      Clock
}

// NewManager creates a lifecycle manager with sane defaults.
func NewManager(repo RepositoryManager, hasher PasswordHasher, tokens TokenService, cfg Config) *Manager {
	return &Manager{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		config:   cfg,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger overrides the logger used by the manager.
func (m *Manager) WithLogger(logger Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink sets the sink used to emit account events.
func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// WithBlobStore keeps avatar payloads in store instead of the database.
func (m *Manager) WithBlobStore(store AvatarBlobStore) *Manager {
	m.blobs = store
	return m
}

// WithMailer sets the transport used for password reset mail.
func (m *Manager) WithMailer(mailer Mailer) *Manager {
	m.mailer = mailer
	return m
}

// WithClock replaces the wall clock.
func (m *Manager) WithClock(clock Clock) *Manager {
	if clock != nil {
		m.now = clock
	}
	return m
}

// SignupInput is the data a new local account is created from
type SignupInput struct {
	Name     Name   `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone_number"`
}

// Signup creates a local account. A reused email fails with
// ErrDuplicateEmail.
func (m *Manager) Signup(ctx context.Context, in SignupInput) (*User, error) {
	if err := requireParams(
		"name.first", in.Name.First,
		"name.last", in.Name.Last,
		"email", in.Email,
		"password", in.Password,
	); err != nil {
		return nil, err
	}

	if err := (validation.Errors{
		"email":    validateEmail(strings.TrimSpace(in.Email)),
		"password": validatePassword(in.Password),
	}).Filter(); err != nil {
		return nil, validationFailed(err, "invalid signup data")
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name: Name{
			First: strings.TrimSpace(in.Name.First),
			Last:  strings.TrimSpace(in.Name.Last),
		},
		Email: in.Email,
		Phone: phone,
		Roles: DefaultRoles(),
	}
	user.SetPassword(in.Password)
	m.AssignDefaultAvatar(ctx, user)

	var created *User
	err = m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = m.repo.Users().CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventSignup, created, m.now(), nil))
	return created, nil
}

// Login verifies email and password and issues a token. Unknown emails and
// federated accounts fail with ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *User, error) {
	if err := requireParams("email", email, "password", password); err != nil {
		return "", nil, err
	}

	user, err := m.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := user.VerifyPassword(m.hasher, password); err != nil {
		return "", nil, err
	}

	token, err := m.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventLogin, user, m.now(), nil))
	return token, user, nil
}

// IssueToken signs a token for user
func (m *Manager) IssueToken(user *User) (string, error) {
	return m.tokens.Issue(user)
}

// GetUser loads a user by id
func (m *Manager) GetUser(ctx context.Context, id string) (*User, error) {
	if err := requireParams("id", id); err != nil {
		return nil, err
	}
	return m.repo.Users().GetByID(ctx, id)
}

// ListUsers returns a page of users and the total count
func (m *Manager) ListUsers(ctx context.Context, opts ListOptions) ([]*User, int, error) {
	return m.repo.Users().List(ctx, opts)
}

// CountUsers returns the number of accounts
func (m *Manager) CountUsers(ctx context.Context) (int, error) {
	return m.repo.Users().Count(ctx)
}

// UserPatch holds the fields Update may change. Nil fields are left as is.
type UserPatch struct {
	Name     *Name     `json:"name,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Password *string   `json:"password,omitempty"`
	Phone    *string   `json:"phone_number,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
}

// Update loads the user, merges the non nil patch fields and saves it.
// Uniqueness is enforced by the store.
func (m *Manager) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	if err := requireParams("id", id); err != nil {
		return nil, err
	}

	user, err := m.repo.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	errs := validation.Errors{}
	if patch.Name != nil {
		if patch.Name.First = strings.TrimSpace(patch.Name.First); patch.Name.First != "" {
			user.Name.First = patch.Name.First
		}
		if patch.Name.Last = strings.TrimSpace(patch.Name.Last); patch.Name.Last != "" {
			user.Name.Last = patch.Name.Last
		}
	}
	if patch.Email != nil {
		errs["email"] = validateEmail(strings.TrimSpace(*patch.Email))
		user.Email = *patch.Email
	}
	if patch.Password != nil {
		errs["password"] = validatePassword(*patch.Password)
		user.SetPassword(*patch.Password)
	}
	if patch.Roles != nil {
		errs["roles"] = validateRoles(*patch.Roles)
		user.Roles = parseRoles(*patch.Roles)
	}
	if err := errs.Filter(); err != nil {
		return nil, validationFailed(err, "invalid account data")
	}

	if patch.Phone != nil {
		phone, err := NormalizePhone(*patch.Phone)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
	}

	updated, err := m.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventUpdated, updated, m.now(), nil))
	return updated, nil
}

// Delete removes the user and then its custom avatar. Shared default
// avatars are never deleted. When the avatar cleanup fails the user is
// already gone, the returned error says so with AVATAR_CASCADE_FAILED.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := requireParams("id", id); err != nil {
		return err
	}

	user, err := m.repo.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}

	var owned *Avatar
	if user.HasAvatar() {
		avatar, err := m.repo.Avatars().GetByID(ctx, user.AvatarID.String())
		switch {
		case err == nil && avatar.OwnedBy(user.ID):
			owned = avatar
		case err != nil && !IsNotFound(err):
			return err
		}
	}

	if err := m.repo.Users().Delete(ctx, user); err != nil {
		return err
	}

	if owned != nil {
		if err := m.deleteAvatar(ctx, owned); err != nil {
			m.logger.Error("user %s deleted but avatar %s cleanup failed: %v", user.ID, owned.ID, err)
			return operationError(err, TextCodeAvatarCascadeFailed, "user deleted but avatar cleanup failed", map[string]any{
				"user_id":      user.ID.String(),
				"avatar_id":    owned.ID.String(),
				"user_deleted": true,
			})
		}
	}

	m.recordActivity(ctx, userActivity(ActivityEventDeleted, user, m.now(), nil))
	return nil
}

// ChangePasswordInput is the payload of ChangePassword
type ChangePasswordInput struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password after checking the current one.
// A wrong current password fails with ErrInvalidCredentials and nothing
// is written.
func (m *Manager) ChangePassword(ctx context.Context, in ChangePasswordInput) (*User, error) {
	if err := requireParams(
		"email", in.Email,
		"currentPassword", in.CurrentPassword,
		"newPassword", in.NewPassword,
	); err != nil {
		return nil, err
	}

	if err := (validation.Errors{
		"newPassword": validatePassword(in.NewPassword),
	}).Filter(); err != nil {
		return nil, validationFailed(err, "invalid password")
	}

	user, err := m.repo.Users().GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	if err := user.VerifyPassword(m.hasher, in.CurrentPassword); err != nil {
		return nil, err
	}

	user.SetPassword(in.NewPassword)
	updated, err := m.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventPasswordChanged, updated, m.now(), nil))
	return updated, nil
}

// UnlinkExternalIdentity clears the provider tokens and profile. The
// provider id is kept so the account can reconnect later.
func (m *Manager) UnlinkExternalIdentity(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, ErrParameterRequired("user")
	}
	if !user.External.Linked() {
		return nil, ErrNoExternalIdentity
	}

	user.External.AccessToken = ""
	user.External.RefreshToken = ""
	user.External.Profile = nil

	updated, err := m.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventIdentityUnlinked, updated, m.now(), map[string]any{
		"provider_id": updated.External.ID,
	}))
	return updated, nil
}

// UnlinkExternalIdentityByID loads the user and unlinks it
func (m *Manager) UnlinkExternalIdentityByID(ctx context.Context, id string) (*User, error) {
	user, err := m.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.UnlinkExternalIdentity(ctx, user)
}

// AvatarURL returns the display URL for an avatar id
func (m *Manager) AvatarURL(id *uuid.UUID) string {
	if id == nil || *id == uuid.Nil {
		return m.config.GetDefaultAvatarURL()
	}
	base := strings.TrimRight(m.config.GetAvatarBaseURL(), "/")
	if base == "" {
		return m.config.GetDefaultAvatarURL()
	}
	return base + "/" + id.String()
}

// AssignDefaultAvatar points user at the shared default avatar when one
// has been seeded, or at the configured default URL otherwise. Nothing is
// written.
func (m *Manager) AssignDefaultAvatar(ctx context.Context, user *User) {
	def, err := m.repo.Avatars().GetDefault(ctx)
	if err != nil {
		if !IsNotFound(err) {
			m.logger.Warn("default avatar lookup failed: %v", err)
		}
		user.AvatarID = nil
		user.AvatarURL = m.AvatarURL(nil)
		return
	}
	id := def.ID
	user.AvatarID = &id
	user.AvatarURL = m.AvatarURL(&id)
}

func (m *Manager) recordActivity(ctx context.Context, event ActivityEvent) {
	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.getLogger().Warn("activity sink error during %s: %v", event.EventType, err)
	}
}

func (m *Manager) getLogger() Logger {
	if m.logger != nil {
		return m.logger
	}
	return defLogger{}
}

func operationError(cause error, textCode, message string, meta map[string]any) *goerrors.Error {
	richErr := goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(textCode).
		WithCode(goerrors.CodeInternal).
		WithMetadata(meta)
	richErr.Source = cause
	return richErr
}
