package account_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngFile = account.AvatarFile{
	Data:        []byte("\x89PNG\r\n\x1a\nfake-image"),
	ContentType: "image/png",
}

func TestAttachAvatar(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the avatar and points the user at it", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "oliver@qc.com")

		result, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)

		require.NotNil(t, result.Avatar)
		require.NotNil(t, result.User)
		assert.Equal(t, []account.AvatarSagaStep{account.StepSaveAvatar, account.StepSaveUser}, result.Completed)
		assert.Equal(t, result.Avatar.ID, *result.User.AvatarID)
		assert.Equal(t, env.config.avatarBaseURL+"/"+result.Avatar.ID.String(), result.User.AvatarURL)
		assert.True(t, result.Avatar.OwnedBy(user.ID))

		stored, err := env.manager.GetAvatar(ctx, result.Avatar.ID.String())
		require.NoError(t, err)
		assert.Equal(t, pngFile.Data, stored.Data)
		assert.Equal(t, "image/png", stored.ContentType)

		assert.Contains(t, env.sink.types(), account.ActivityEventAvatarAttached)
	})

	t.Run("replaces and removes the previous custom avatar", func(t *testing.T) {
		env := newTestEnv(t)
		blobs := newMemoryBlobs()
		env.manager.WithBlobStore(blobs)
		user := env.signup(t, "oliver@qc.com")

		first, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)
		assert.True(t, blobs.has("avatars/"+first.Avatar.ID.String()))

		second, err := env.manager.AttachAvatar(ctx, user.ID.String(), account.AvatarFile{
			Data:        []byte("second"),
			ContentType: "image/jpeg",
		})
		require.NoError(t, err)
		assert.Contains(t, second.Completed, account.StepDeleteStaleAvatar)
		assert.NoError(t, second.StaleCleanupErr)

		_, err = env.repo.Avatars().GetByID(ctx, first.Avatar.ID.String())
		assert.ErrorIs(t, err, account.ErrAvatarNotFound)
		assert.False(t, blobs.has("avatars/"+first.Avatar.ID.String()))

		got, err := env.manager.GetAvatar(ctx, second.Avatar.ID.String())
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got.Data)
	})

	t.Run("rejects bad uploads before touching the store", func(t *testing.T) {
		repo := newMockRepoManager()
		manager := account.NewManager(repo, account.NewBcryptHasher(4), nil, newTestConfig()).WithLogger(&nopLogger{})
		id := uuid.NewString()

		_, err := manager.AttachAvatar(ctx, id, account.AvatarFile{ContentType: "image/png"})
		assert.True(t, account.IsParameterRequired(err, "avatar"))

		_, err = manager.AttachAvatar(ctx, id, account.AvatarFile{Data: []byte("x"), ContentType: "text/plain"})
		assert.True(t, account.HasTextCode(err, account.TextCodeValidationFailed))

		_, err = manager.AttachAvatar(ctx, id, account.AvatarFile{
			Data:        bytes.Repeat([]byte("a"), account.MaxAvatarSize+1),
			ContentType: "image/png",
		})
		assert.True(t, account.HasTextCode(err, account.TextCodeValidationFailed))

		repo.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestAttachAvatar_Compensation(t *testing.T) {
	ctx := context.Background()
	saveErr := errors.New("users table locked")

	setup := func() (*mockRepoManager, *account.Manager, *account.User, *account.Avatar) {
		repo := newMockRepoManager()
		manager := account.NewManager(repo, account.NewBcryptHasher(4), nil, newTestConfig()).WithLogger(&nopLogger{})
		user := &account.User{ID: uuid.New(), Email: "oliver@qc.com", PasswordHash: "hash"}
		fresh := &account.Avatar{ID: uuid.New(), ContentType: "image/png", UserID: &user.ID}

		repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
		repo.avatars.On("Create", mock.Anything, mock.Anything).Return(fresh, nil)
		repo.users.On("Save", mock.Anything, mock.Anything).Return(nil, saveErr)
		return repo, manager, user, fresh
	}

	t.Run("user save failure deletes the new avatar", func(t *testing.T) {
		repo, manager, user, fresh := setup()
		repo.avatars.On("Delete", mock.Anything, fresh.ID).Return(nil).Once()

		result, err := manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		assert.ErrorIs(t, err, saveErr)
		require.NotNil(t, result)
		assert.Equal(t, []account.AvatarSagaStep{account.StepSaveAvatar, account.StepCompensate}, result.Completed)
		repo.avatars.AssertExpectations(t)
	})

	t.Run("failed compensation reports the orphaned avatar", func(t *testing.T) {
		repo, manager, user, fresh := setup()
		repo.avatars.On("Delete", mock.Anything, fresh.ID).Return(errors.New("disk gone")).Once()

		_, err := manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.Error(t, err)
		assert.True(t, account.HasTextCode(err, account.TextCodeAvatarOrphaned))
		assert.ErrorIs(t, err, saveErr)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, fresh.ID.String(), richErr.Metadata["avatar_id"])
	})

	t.Run("user save failure keeps the stale avatar", func(t *testing.T) {
		repo := newMockRepoManager()
		manager := account.NewManager(repo, account.NewBcryptHasher(4), nil, newTestConfig()).WithLogger(&nopLogger{})
		user := &account.User{ID: uuid.New(), Email: "oliver@qc.com", PasswordHash: "hash"}
		staleID := uuid.New()
		user.AvatarID = &staleID
		stale := &account.Avatar{ID: staleID, ContentType: "image/png", UserID: &user.ID}
		fresh := &account.Avatar{ID: uuid.New(), ContentType: "image/png", UserID: &user.ID}

		repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
		repo.avatars.On("GetByID", mock.Anything, staleID.String()).Return(stale, nil)
		repo.avatars.On("Create", mock.Anything, mock.Anything).Return(fresh, nil)
		repo.avatars.On("Delete", mock.Anything, fresh.ID).Return(nil).Once()
		repo.users.On("Save", mock.Anything, mock.Anything).Return(nil, saveErr)

		result, err := manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		assert.ErrorIs(t, err, saveErr)
		require.NotNil(t, result)
		assert.NotContains(t, result.Completed, account.StepDeleteStaleAvatar)
		repo.avatars.AssertNotCalled(t, "Delete", mock.Anything, staleID)
		repo.avatars.AssertExpectations(t)
	})

	t.Run("stale avatar is deleted after the user save", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "oliver@qc.com")

		first, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)

		second, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)
		assert.Equal(t, []account.AvatarSagaStep{account.StepSaveAvatar, account.StepSaveUser, account.StepDeleteStaleAvatar}, second.Completed)

		_, err = env.manager.GetAvatar(ctx, first.Avatar.ID.String())
		assert.True(t, account.IsNotFound(err))
	})

	t.Run("stale cleanup failure does not fail the saga", func(t *testing.T) {
		repo := newMockRepoManager()
		manager := account.NewManager(repo, account.NewBcryptHasher(4), nil, newTestConfig()).WithLogger(&nopLogger{})
		user := &account.User{ID: uuid.New(), Email: "oliver@qc.com", PasswordHash: "hash"}
		staleID := uuid.New()
		user.AvatarID = &staleID
		stale := &account.Avatar{ID: staleID, ContentType: "image/png", UserID: &user.ID}
		fresh := &account.Avatar{ID: uuid.New(), ContentType: "image/png", UserID: &user.ID}
		cleanupErr := errors.New("delete timed out")

		repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
		repo.avatars.On("GetByID", mock.Anything, staleID.String()).Return(stale, nil)
		repo.avatars.On("Delete", mock.Anything, staleID).Return(cleanupErr)
		repo.avatars.On("Create", mock.Anything, mock.Anything).Return(fresh, nil)
		repo.users.On("Save", mock.Anything, mock.Anything).Return(user, nil)

		result, err := manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)
		assert.ErrorIs(t, result.StaleCleanupErr, cleanupErr)
		assert.NotContains(t, result.Completed, account.StepDeleteStaleAvatar)
		assert.Equal(t, fresh.ID, *result.User.AvatarID)
	})
}

func TestManager_DeleteCascade(t *testing.T) {
	ctx := context.Background()

	t.Run("custom avatar is removed with the user", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "oliver@qc.com")
		result, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)

		require.NoError(t, env.manager.Delete(ctx, user.ID.String()))

		_, err = env.repo.Users().GetByID(ctx, user.ID.String())
		assert.ErrorIs(t, err, account.ErrUserNotFound)
		_, err = env.repo.Avatars().GetByID(ctx, result.Avatar.ID.String())
		assert.ErrorIs(t, err, account.ErrAvatarNotFound)
		assert.Contains(t, env.sink.types(), account.ActivityEventDeleted)
	})

	t.Run("shared default avatar is kept", func(t *testing.T) {
		env := newTestEnv(t)
		def, err := env.manager.SeedDefaultAvatar(ctx, pngFile)
		require.NoError(t, err)

		user := env.signup(t, "oliver@qc.com")
		require.NotNil(t, user.AvatarID)
		assert.Equal(t, def.ID, *user.AvatarID)

		require.NoError(t, env.manager.Delete(ctx, user.ID.String()))

		kept, err := env.repo.Avatars().GetByID(ctx, def.ID.String())
		require.NoError(t, err)
		assert.True(t, kept.DefaultImg)
	})

	t.Run("failed avatar cleanup is surfaced", func(t *testing.T) {
		repo := newMockRepoManager()
		manager := account.NewManager(repo, account.NewBcryptHasher(4), nil, newTestConfig()).WithLogger(&nopLogger{})
		user := &account.User{ID: uuid.New(), Email: "oliver@qc.com", PasswordHash: "hash"}
		avatarID := uuid.New()
		user.AvatarID = &avatarID

		repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
		repo.avatars.On("GetByID", mock.Anything, avatarID.String()).
			Return(&account.Avatar{ID: avatarID, UserID: &user.ID}, nil)
		repo.users.On("Delete", mock.Anything, user).Return(nil)
		repo.avatars.On("Delete", mock.Anything, avatarID).Return(errors.New("boom"))

		err := manager.Delete(ctx, user.ID.String())
		require.Error(t, err)
		assert.True(t, account.HasTextCode(err, account.TextCodeAvatarCascadeFailed))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, true, richErr.Metadata["user_deleted"])
		assert.Equal(t, avatarID.String(), richErr.Metadata["avatar_id"])
		repo.users.AssertCalled(t, "Delete", mock.Anything, user)
	})

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.manager.Delete(ctx, uuid.NewString())
		assert.ErrorIs(t, err, account.ErrUserNotFound)
	})
}

func TestDetachAvatar(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	def, err := env.manager.SeedDefaultAvatar(ctx, pngFile)
	require.NoError(t, err)
	user := env.signup(t, "oliver@qc.com")

	t.Run("default avatar is a no op", func(t *testing.T) {
		got, err := env.manager.DetachAvatar(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, def.ID, *got.AvatarID)
	})

	t.Run("custom avatar goes back to default", func(t *testing.T) {
		result, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
		require.NoError(t, err)

		got, err := env.manager.DetachAvatar(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, def.ID, *got.AvatarID)
		assert.Equal(t, env.config.avatarBaseURL+"/"+def.ID.String(), got.AvatarURL)

		_, err = env.repo.Avatars().GetByID(ctx, result.Avatar.ID.String())
		assert.ErrorIs(t, err, account.ErrAvatarNotFound)
		assert.Contains(t, env.sink.types(), account.ActivityEventAvatarDetached)
	})
}

func TestSeedDefaultAvatar(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.manager.SeedDefaultAvatar(ctx, account.AvatarFile{})
	assert.True(t, account.IsParameterRequired(err, "avatar"))

	first, err := env.manager.SeedDefaultAvatar(ctx, pngFile)
	require.NoError(t, err)
	assert.True(t, first.DefaultImg)
	assert.Nil(t, first.UserID)

	again, err := env.manager.SeedDefaultAvatar(ctx, account.AvatarFile{Data: []byte("other"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestGetAvatar_BlobStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	blobs := newMemoryBlobs()
	env.manager.WithBlobStore(blobs)
	user := env.signup(t, "oliver@qc.com")

	result, err := env.manager.AttachAvatar(ctx, user.ID.String(), pngFile)
	require.NoError(t, err)

	raw, err := env.repo.Avatars().GetByID(ctx, result.Avatar.ID.String())
	require.NoError(t, err)
	assert.Empty(t, raw.Data)
	assert.Equal(t, "avatars/"+raw.ID.String(), raw.StorageKey)

	got, err := env.manager.GetAvatar(ctx, result.Avatar.ID.String())
	require.NoError(t, err)
	assert.Equal(t, pngFile.Data, got.Data)

	_, err = env.manager.GetAvatar(ctx, uuid.NewString())
	assert.ErrorIs(t, err, account.ErrAvatarNotFound)
}

func TestReconcileOrphanAvatars(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.signup(t, "oliver@qc.com")
	other := env.signup(t, "felicity@qc.com")

	orphan, err := env.repo.Avatars().Create(ctx, &account.Avatar{
		Data:        []byte("orphan"),
		ContentType: "image/png",
		UserID:      &user.ID,
	})
	require.NoError(t, err)

	attached, err := env.manager.AttachAvatar(ctx, other.ID.String(), pngFile)
	require.NoError(t, err)

	missing := uuid.New()
	user.AvatarID = &missing
	_, err = env.repo.Users().Save(ctx, user)
	require.NoError(t, err)

	t.Run("recent orphans are left alone", func(t *testing.T) {
		report, err := env.manager.ReconcileOrphanAvatars(ctx, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, report.DeletedAvatars)
		assert.Equal(t, []uuid.UUID{user.ID}, report.RepairedUsers)
	})

	t.Run("old orphans are deleted", func(t *testing.T) {
		env.manager.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
		report, err := env.manager.ReconcileOrphanAvatars(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{orphan.ID}, report.DeletedAvatars)
		assert.Empty(t, report.RepairedUsers)

		_, err = env.repo.Avatars().GetByID(ctx, attached.Avatar.ID.String())
		assert.NoError(t, err)

		repaired, err := env.repo.Users().GetByID(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Nil(t, repaired.AvatarID)
		assert.Equal(t, env.config.defaultAvatarURL, repaired.AvatarURL)
	})
}
