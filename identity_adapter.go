package account

import (
	"time"

	"github.com/google/uuid"
)

// ClientView is the projection of a user that is safe to send to clients.
// It never carries the password hash, reset token or provider tokens.
type ClientView struct {
	ID                    uuid.UUID     `json:"id"`
	Name                  Name          `json:"name"`
	Email                 string        `json:"email"`
	Phone                 string        `json:"phone_number,omitempty"`
	Roles                 []string      `json:"roles"`
	Kind                  string        `json:"kind,omitempty"`
	AvatarID              *uuid.UUID    `json:"avatar,omitempty"`
	AvatarURL             string        `json:"avatar_url,omitempty"`
	External              *ExternalView `json:"sfdc,omitempty"`
	PasswordLastUpdatedAt *time.Time    `json:"password_last_updated_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// ExternalView is the client safe projection of a linked identity
type ExternalView struct {
	ID        string         `json:"id"`
	Connected bool           `json:"connected"`
	Profile   map[string]any `json:"profile,omitempty"`
}

// ToClientView projects the user for API responses
func (u *User) ToClientView() ClientView {
	if u == nil {
		return ClientView{}
	}

	view := ClientView{
		ID:                    u.ID,
		Name:                  u.Name,
		Email:                 u.Email,
		Phone:                 u.Phone,
		Roles:                 u.Roles.Strings(),
		Kind:                  KindName(u.Kind()),
		AvatarID:              u.AvatarID,
		AvatarURL:             u.AvatarURL,
		PasswordLastUpdatedAt: u.PasswordLastUpdatedAt,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}

	if u.External.Linked() {
		view.External = &ExternalView{
			ID:        u.External.ID,
			Connected: u.External.Connected(),
			Profile:   u.External.Profile,
		}
	}

	return view
}

// ClientViews projects a list of users
func ClientViews(users []*User) []ClientView {
	out := make([]ClientView, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToClientView())
	}
	return out
}
