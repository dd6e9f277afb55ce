package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	List(ctx context.Context, opts ListOptions) ([]*User, int, error)
	Count(ctx context.Context) (int, error)
	// ListDanglingAvatarRefs returns users whose avatar id points at a
	// missing avatar record.
	ListDanglingAvatarRefs(ctx context.Context) ([]*User, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Save(ctx context.Context, record *User) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Delete(ctx context.Context, record *User) error
	DeleteTx(ctx context.Context, tx bun.IDB, record *User) error
}

// ListOptions pages list queries
type ListOptions struct {
	Limit  int
	Offset int
}

const (
	defaultListLimit = 25
	maxListLimit     = 200
)

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type users struct {
	base   repository.Repository[*User]
	db     *bun.DB
	hasher PasswordHasher
	now    Clock
}

var _ Users = (*users)(nil)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock replaces the clock used for timestamps
func WithUsersClock(clock Clock) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUsersRepository creates the users repository. Passwords set with
// User.SetPassword are hashed with hasher on the next write.
func NewUsersRepository(db *bun.DB, hasher PasswordHasher, opts ...UsersOption) Users {
	base := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		base:   base,
		db:     db,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, ErrUserNotFound
	}
	record, err := a.base.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, userLookupError(err)
	}
	return record, nil
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrUserNotFound
	}
	return a.findOne(ctx, tx, "id", uid)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findOne(ctx, tx, "email", normalizeEmail(email))
}

func (a *users) GetByResetToken(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUserNotFound
	}
	return a.findOne(ctx, a.db, "password_reset_token", token)
}

func (a *users) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, ErrUserNotFound
	}
	return a.findOne(ctx, a.db, "sfdc_id", externalID)
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, userLookupError(err)
	}
	return record, nil
}

func (a *users) List(ctx context.Context, opts ListOptions) ([]*User, int, error) {
	opts = opts.normalize()
	records := []*User{}
	total, err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, wrapInternal(err, "failed to list users")
	}
	return records, total, nil
}

func (a *users) Count(ctx context.Context) (int, error) {
	total, err := a.db.NewSelect().Model((*User)(nil)).Count(ctx)
	if err != nil {
		return 0, wrapInternal(err, "failed to count users")
	}
	return total, nil
}

func (a *users) ListDanglingAvatarRefs(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.avatar_id IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM avatars AS a WHERE a.id = ?TableAlias.avatar_id)").
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list dangling avatar references")
	}
	return records, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil {
		return nil, ErrParameterRequired("user")
	}
	if err := ValidateCredentials(record); err != nil {
		return nil, err
	}

	now := a.now()
	if err := hashPendingPassword(a.hasher, record, now); err != nil {
		return nil, err
	}
	prepareUserDefaults(record, now)

	created, err := a.base.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, userWriteError(err)
	}
	return created, nil
}

func (a *users) Save(ctx context.Context, record *User) (*User, error) {
	return a.SaveTx(ctx, a.db, record)
}

// SaveTx writes every column of record. A dirty password is hashed first,
// when hashing fails nothing is written.
func (a *users) SaveTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, ErrParameterRequired("id")
	}
	if err := ValidateCredentials(record); err != nil {
		return nil, err
	}

	now := a.now()
	if err := hashPendingPassword(a.hasher, record, now); err != nil {
		return nil, err
	}
	record.Email = normalizeEmail(record.Email)
	record.Roles = record.Roles.Normalize()
	record.UpdatedAt = now

	res, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx)
	if err != nil {
		return nil, userWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrUserNotFound
	}
	return record, nil
}

func (a *users) Delete(ctx context.Context, record *User) error {
	return a.DeleteTx(ctx, a.db, record)
}

func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, record *User) error {
	if record == nil || record.ID == uuid.Nil {
		return ErrParameterRequired("id")
	}
	res, err := tx.NewDelete().Model(record).WherePK().Exec(ctx)
	if err != nil {
		return wrapInternal(err, "failed to delete user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func prepareUserDefaults(record *User, now time.Time) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = normalizeEmail(record.Email)
	record.Roles = record.Roles.Normalize()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func userLookupError(err error) error {
	if isRecordNotFound(err) {
		return ErrUserNotFound
	}
	return wrapInternal(err, "failed to load user")
}

func userWriteError(err error) error {
	switch {
	case IsDuplicateKeyError(err) && isDuplicateEmail(err):
		return ErrDuplicateEmail
	case IsDuplicateKeyError(err):
		return ErrAccountConflict
	}
	return wrapInternal(err, "failed to save user")
}
