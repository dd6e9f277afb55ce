package httpapi

import (
	"io"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ListPayload is the page returned by the list route
type ListPayload struct {
	Users []account.ClientView `json:"users"`
	Total int                  `json:"total"`
}

func (ctrl *Controller) ListUsers(ctx router.Context) error {
	users, total, err := ctrl.accounts.ListUsers(ctx.Context(), account.ListOptions{
		Limit:  ctx.QueryInt("limit", 0),
		Offset: ctx.QueryInt("offset", 0),
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	return ctrl.ok(ctx, router.StatusOK, "users", ListPayload{Users: account.ClientViews(users), Total: total})
}

func (ctrl *Controller) GetUser(ctx router.Context) error {
	user, err := ctrl.accounts.GetUser(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "user", user.ToClientView())
}

func (ctrl *Controller) UpdateUser(ctx router.Context) error {
	patch := new(account.UserPatch)
	if err := ctrl.bind(ctx, patch); err != nil {
		return ctrl.fail(ctx, err)
	}

	if patch.Roles != nil {
		admin, err := ctrl.gate.IsAdminRequest(ctx.Context(), ctx)
		if err != nil {
			return ctrl.fail(ctx, err)
		}
		if !admin {
			return ctrl.fail(ctx, account.ErrForbidden)
		}
	}

	user, err := ctrl.accounts.Update(ctx.Context(), ctx.Param("id"), *patch)
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "user updated", user.ToClientView())
}

func (ctrl *Controller) DeleteUser(ctx router.Context) error {
	if err := ctrl.accounts.Delete(ctx.Context(), ctx.Param("id")); err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "user deleted", nil)
}

type changePasswordPayload struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

func (ctrl *Controller) ChangePassword(ctx router.Context) error {
	payload := new(changePasswordPayload)
	if err := ctrl.bind(ctx, payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	owner, err := ctrl.accounts.GetUser(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	user, err := ctrl.accounts.ChangePassword(ctx.Context(), account.ChangePasswordInput{
		Email:           owner.Email,
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "password changed", user.ToClientView())
}

// AttachAvatar reads the multipart "avatar" file
func (ctrl *Controller) AttachAvatar(ctx router.Context) error {
	header, err := ctx.FormFile("avatar")
	if err != nil {
		return ctrl.fail(ctx, account.ErrParameterRequired("avatar"))
	}
	if header.Size > int64(ctrl.maxAvatarSize) {
		return ctrl.fail(ctx, errAvatarTooLarge(ctrl.maxAvatarSize))
	}

	file, err := header.Open()
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(ctrl.maxAvatarSize)+1))
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	if len(data) > ctrl.maxAvatarSize {
		return ctrl.fail(ctx, errAvatarTooLarge(ctrl.maxAvatarSize))
	}

	res, err := ctrl.accounts.AttachAvatar(ctx.Context(), ctx.Param("id"), account.AvatarFile{
		Data:        data,
		ContentType: header.Header.Get(router.HeaderContentType),
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	if res.StaleCleanupErr != nil {
		ctrl.Logger.Warn("stale avatar cleanup for user %s: %s", res.User.ID, res.StaleCleanupErr)
	}
	return ctrl.ok(ctx, router.StatusOK, "avatar updated", res.User.ToClientView())
}

func (ctrl *Controller) DetachAvatar(ctx router.Context) error {
	user, err := ctrl.accounts.DetachAvatar(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "avatar removed", user.ToClientView())
}

func (ctrl *Controller) UnlinkIdentity(ctx router.Context) error {
	user, err := ctrl.accounts.UnlinkExternalIdentityByID(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "identity unlinked", user.ToClientView())
}

// GetAvatar streams the raw image
func (ctrl *Controller) GetAvatar(ctx router.Context) error {
	avatar, err := ctrl.accounts.GetAvatar(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	ctx.SetHeader(router.HeaderContentType, avatar.ContentType)
	ctx.SetHeader("Cache-Control", "public, max-age=86400")
	return ctx.Send(avatar.Data)
}

func errAvatarTooLarge(limit int) error {
	return goerrors.New("avatar exceeds the upload limit", goerrors.CategoryValidation).
		WithTextCode(account.TextCodeValidationFailed).
		WithCode(router.StatusRequestEntityTooLarge).
		WithMetadata(map[string]any{"max_bytes": limit})
}
