package account

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Avatars stores avatar records
type Avatars interface {
	GetByID(ctx context.Context, id string) (*Avatar, error)
	GetDefault(ctx context.Context) (*Avatar, error)
	Create(ctx context.Context, record *Avatar) (*Avatar, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Avatar) (*Avatar, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	// ListOrphans returns custom avatars created before cutoff that no
	// user references.
	ListOrphans(ctx context.Context, cutoff time.Time) ([]*Avatar, error)
}

type avatars struct {
	base repository.Repository[*Avatar]
	db   *bun.DB
	now  Clock
}

var _ Avatars = (*avatars)(nil)

// AvatarsOption configures the avatars repository
type AvatarsOption func(*avatars)

// WithAvatarsClock replaces the clock used for timestamps
func WithAvatarsClock(clock Clock) AvatarsOption {
	return func(a *avatars) {
		if clock != nil {
			a.now = clock
		}
	}
}

func NewAvatarsRepository(db *bun.DB, opts ...AvatarsOption) Avatars {
	base := repository.NewRepository[*Avatar](db, repository.ModelHandlers[*Avatar]{
		NewRecord: func() *Avatar { return &Avatar{} },
		GetID: func(a *Avatar) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Avatar, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	repo := &avatars{base: base, db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (r *avatars) GetByID(ctx context.Context, id string) (*Avatar, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAvatarNotFound
	}
	record, err := r.base.GetByID(ctx, id)
	if err != nil {
		return nil, avatarLookupError(err)
	}
	return record, nil
}

func (r *avatars) GetDefault(ctx context.Context) (*Avatar, error) {
	record := &Avatar{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.default_img = ?", true).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, avatarLookupError(err)
	}
	return record, nil
}

func (r *avatars) Create(ctx context.Context, record *Avatar) (*Avatar, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *avatars) CreateTx(ctx context.Context, tx bun.IDB, record *Avatar) (*Avatar, error) {
	if record == nil {
		return nil, ErrParameterRequired("avatar")
	}
	now := r.now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.FileSize == 0 {
		record.FileSize = int64(len(record.Data))
	}

	created, err := r.base.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, wrapInternal(err, "failed to save avatar")
	}
	return created, nil
}

func (r *avatars) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DeleteTx(ctx, r.db, id)
}

func (r *avatars) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().Model(&Avatar{ID: id}).WherePK().Exec(ctx)
	if err != nil {
		return wrapInternal(err, "failed to delete avatar")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAvatarNotFound
	}
	return nil
}

func (r *avatars) ListOrphans(ctx context.Context, cutoff time.Time) ([]*Avatar, error) {
	records := []*Avatar{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.default_img = ?", false).
		Where("?TableAlias.created_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM users AS u WHERE u.avatar_id = ?TableAlias.id)").
		Scan(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list orphaned avatars")
	}
	return records, nil
}

func avatarLookupError(err error) error {
	if isRecordNotFound(err) {
		return ErrAvatarNotFound
	}
	return wrapInternal(err, "failed to load avatar")
}
