package account

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Avatars() Avatars
}

type mngr struct {
	db      *bun.DB
	users   Users
	avatars Avatars
}

// NewRepositoryManager wires the users and avatars repositories
func NewRepositoryManager(db *bun.DB, hasher PasswordHasher, clock Clock) RepositoryManager {
	if clock == nil {
		clock = defaultClock
	}
	return &mngr{
		db:      db,
		users:   NewUsersRepository(db, hasher, WithUsersClock(clock)),
		avatars: NewAvatarsRepository(db, WithAvatarsClock(clock)),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.avatars == nil {
		return errors.New("repository avatars should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Avatars() Avatars {
	return m.avatars
}
