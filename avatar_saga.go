package account

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MaxAvatarSize is the largest accepted avatar payload in bytes
const MaxAvatarSize = 5 << 20

// DefaultOrphanGracePeriod keeps in flight attach sagas out of the sweep
const DefaultOrphanGracePeriod = time.Hour

// AvatarSagaStep names one step of the attach saga
type AvatarSagaStep string

const (
	// StepDeleteStaleAvatar removes the avatar the user owned before once
	// StepSaveUser committed. It is best effort, failures are logged and the
	// saga continues.
	StepDeleteStaleAvatar AvatarSagaStep = "delete_stale_avatar"
	// StepSaveAvatar stores the new avatar record and payload.
	StepSaveAvatar AvatarSagaStep = "save_avatar"
	// StepSaveUser points the user at the new avatar. When it fails after
	// StepSaveAvatar succeeded the new avatar is deleted again, if that
	// also fails the avatar is orphaned until ReconcileOrphanAvatars runs.
	StepSaveUser AvatarSagaStep = "save_user"
	// StepCompensate deletes the new avatar after a failed StepSaveUser.
	StepCompensate AvatarSagaStep = "compensate_save_avatar"
)

// AvatarSagaResult reports which steps completed
type AvatarSagaResult struct {
	User      *User
	Avatar    *Avatar
	Completed []AvatarSagaStep
	// StaleCleanupErr is set when the best effort stale delete failed
	StaleCleanupErr error
}

type sagaLog struct {
	mu    sync.Mutex
	steps []AvatarSagaStep
}

func (l *sagaLog) done(step AvatarSagaStep) {
	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()
}

// AttachAvatar stores file as the new custom avatar of the user. The stale
// avatar delete and the save avatar then save user chain start together
// and are joined before returning. The stale delete waits until the user
// row points at the new avatar, so a failed user save leaves the old
// avatar in place. Only the second chain can fail the call.
func (m *Manager) AttachAvatar(ctx context.Context, userID string, file AvatarFile) (*AvatarSagaResult, error) {
	if err := requireParams("id", userID); err != nil {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, ErrParameterRequired("avatar")
	}
	if err := (validation.Errors{
		"avatar": validation.Validate(len(file.Data), validation.Max(MaxAvatarSize)),
		"content_type": validation.Validate(file.ContentType, validation.Required, validation.By(func(value interface{}) error {
			ct, _ := value.(string)
			if !strings.HasPrefix(ct, "image/") {
				return validation.NewError("validation_avatar_type", "must be an image")
			}
			return nil
		})),
	}).Filter(); err != nil {
		return nil, validationFailed(err, "invalid avatar")
	}

	user, err := m.repo.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var stale *Avatar
	if user.HasAvatar() {
		avatar, err := m.repo.Avatars().GetByID(ctx, user.AvatarID.String())
		switch {
		case err == nil && avatar.OwnedBy(user.ID):
			stale = avatar
		case err != nil && !IsNotFound(err):
			m.logger.Warn("stale avatar lookup for user %s failed: %v", user.ID, err)
		}
	}

	ownerID := user.ID
	fresh := &Avatar{
		ID:          uuid.New(),
		ContentType: file.ContentType,
		FileSize:    int64(len(file.Data)),
		UserID:      &ownerID,
	}

	result := &AvatarSagaResult{}
	steps := &sagaLog{}

	var g errgroup.Group
	committed := make(chan bool, 1)

	if stale != nil {
		g.Go(func() error {
			if !<-committed {
				return nil
			}
			if err := m.deleteAvatar(ctx, stale); err != nil {
				m.logger.Warn("could not delete stale avatar %s of user %s: %v", stale.ID, ownerID, err)
				result.StaleCleanupErr = err
				return nil
			}
			steps.done(StepDeleteStaleAvatar)
			return nil
		})
	}

	g.Go(func() error {
		ok := false
		defer func() { committed <- ok }()

		saved, err := m.saveAvatar(ctx, fresh, file.Data)
		if err != nil {
			return err
		}
		steps.done(StepSaveAvatar)
		result.Avatar = saved

		id := saved.ID
		user.AvatarID = &id
		user.AvatarURL = m.AvatarURL(&id)

		updated, err := m.repo.Users().Save(ctx, user)
		if err != nil {
			return m.compensateAvatar(ctx, saved, steps, err)
		}
		steps.done(StepSaveUser)
		result.User = updated
		ok = true
		return nil
	})

	err = g.Wait()
	result.Completed = steps.steps
	if err != nil {
		return result, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventAvatarAttached, result.User, m.now(), map[string]any{
		"avatar_id": result.Avatar.ID.String(),
	}))
	return result, nil
}

func (m *Manager) compensateAvatar(ctx context.Context, avatar *Avatar, steps *sagaLog, cause error) error {
	if err := m.deleteAvatar(ctx, avatar); err != nil {
		m.logger.Error("avatar %s orphaned after user save failed: %v", avatar.ID, err)
		return operationError(cause, TextCodeAvatarOrphaned, "user update failed and the new avatar could not be removed", map[string]any{
			"avatar_id": avatar.ID.String(),
		})
	}
	steps.done(StepCompensate)
	return cause
}

// DetachAvatar points the user back at the default avatar and removes the
// custom one. The user is saved first so it never references a deleted
// avatar.
func (m *Manager) DetachAvatar(ctx context.Context, userID string) (*User, error) {
	if err := requireParams("id", userID); err != nil {
		return nil, err
	}

	user, err := m.repo.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var owned *Avatar
	if user.HasAvatar() {
		avatar, err := m.repo.Avatars().GetByID(ctx, user.AvatarID.String())
		switch {
		case err == nil && avatar.OwnedBy(user.ID):
			owned = avatar
		case err == nil:
			// shared default avatar, nothing to detach
			return user, nil
		case !IsNotFound(err):
			return nil, err
		}
	}

	m.AssignDefaultAvatar(ctx, user)
	updated, err := m.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	if owned != nil {
		if err := m.deleteAvatar(ctx, owned); err != nil {
			return nil, operationError(err, TextCodeAvatarOrphaned, "avatar detached but could not be removed", map[string]any{
				"avatar_id":    owned.ID.String(),
				"user_updated": true,
			})
		}
		m.recordActivity(ctx, userActivity(ActivityEventAvatarDetached, updated, m.now(), map[string]any{
			"avatar_id": owned.ID.String(),
		}))
	}
	return updated, nil
}

// GetAvatar loads the avatar with its payload
func (m *Manager) GetAvatar(ctx context.Context, id string) (*Avatar, error) {
	if err := requireParams("id", id); err != nil {
		return nil, err
	}

	avatar, err := m.repo.Avatars().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if avatar.StorageKey != "" && len(avatar.Data) == 0 {
		if m.blobs == nil {
			return nil, ErrAvatarNotFound
		}
		data, err := m.blobs.Get(ctx, avatar.StorageKey)
		if err != nil {
			return nil, err
		}
		avatar.Data = data
	}
	return avatar, nil
}

// SeedDefaultAvatar creates the shared default avatar unless one exists
func (m *Manager) SeedDefaultAvatar(ctx context.Context, file AvatarFile) (*Avatar, error) {
	existing, err := m.repo.Avatars().GetDefault(ctx)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, ErrParameterRequired("avatar")
	}

	return m.saveAvatar(ctx, &Avatar{
		ID:          uuid.New(),
		ContentType: file.ContentType,
		FileSize:    int64(len(file.Data)),
		DefaultImg:  true,
	}, file.Data)
}

// ReconcileReport summarizes a reconciliation sweep
type ReconcileReport struct {
	DeletedAvatars []uuid.UUID
	RepairedUsers  []uuid.UUID
}

// ReconcileOrphanAvatars removes custom avatars no user references that
// are older than grace, and points users with a dangling avatar id back at
// the default avatar.
func (m *Manager) ReconcileOrphanAvatars(ctx context.Context, grace time.Duration) (*ReconcileReport, error) {
	if grace <= 0 {
		grace = DefaultOrphanGracePeriod
	}
	report := &ReconcileReport{}

	orphans, err := m.repo.Avatars().ListOrphans(ctx, m.now().Add(-grace))
	if err != nil {
		return nil, err
	}
	for _, avatar := range orphans {
		if err := m.deleteAvatar(ctx, avatar); err != nil && !IsNotFound(err) {
			return report, err
		}
		report.DeletedAvatars = append(report.DeletedAvatars, avatar.ID)
	}

	dangling, err := m.repo.Users().ListDanglingAvatarRefs(ctx)
	if err != nil {
		return report, err
	}
	for _, user := range dangling {
		m.AssignDefaultAvatar(ctx, user)
		if _, err := m.repo.Users().Save(ctx, user); err != nil {
			return report, err
		}
		report.RepairedUsers = append(report.RepairedUsers, user.ID)
	}

	if len(report.DeletedAvatars) > 0 || len(report.RepairedUsers) > 0 {
		m.logger.Info("avatar reconciliation deleted %d avatars, repaired %d users", len(report.DeletedAvatars), len(report.RepairedUsers))
	}
	return report, nil
}

func avatarStorageKey(id uuid.UUID) string {
	return "avatars/" + id.String()
}

// saveAvatar writes the payload to the blob store when one is configured
// and the record to the database.
func (m *Manager) saveAvatar(ctx context.Context, avatar *Avatar, data []byte) (*Avatar, error) {
	if m.blobs == nil {
		avatar.Data = data
		return m.repo.Avatars().Create(ctx, avatar)
	}

	avatar.StorageKey = avatarStorageKey(avatar.ID)
	if err := m.blobs.Put(ctx, avatar.StorageKey, avatar.ContentType, data); err != nil {
		return nil, wrapInternal(err, "failed to store avatar payload")
	}

	saved, err := m.repo.Avatars().Create(ctx, avatar)
	if err != nil {
		if delErr := m.blobs.Delete(ctx, avatar.StorageKey); delErr != nil {
			m.logger.Warn("could not remove avatar payload %s: %v", avatar.StorageKey, delErr)
		}
		return nil, err
	}
	return saved, nil
}

func (m *Manager) deleteAvatar(ctx context.Context, avatar *Avatar) error {
	if avatar.DefaultImg {
		return nil
	}
	if err := m.repo.Avatars().Delete(ctx, avatar.ID); err != nil {
		return err
	}
	if avatar.StorageKey != "" && m.blobs != nil {
		if err := m.blobs.Delete(ctx, avatar.StorageKey); err != nil {
			return wrapInternal(err, "failed to delete avatar payload")
		}
	}
	return nil
}
