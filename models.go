package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Name is the structured display name of a user
type Name struct {
	First string `bun:"first,notnull" json:"first"`
	Last  string `bun:"last,notnull" json:"last"`
}

// Full returns "First Last"
func (n Name) Full() string {
	return strings.TrimSpace(n.First + " " + n.Last)
}

// ParseDisplayName splits a provider display name into first and last name.
func ParseDisplayName(display string) Name {
	parts := strings.Fields(display)
	switch len(parts) {
	case 0:
		return Name{}
	case 1:
		return Name{First: parts[0], Last: parts[0]}
	default:
		return Name{First: parts[0], Last: strings.Join(parts[1:], " ")}
	}
}

// ExternalIdentity is the third party account linked to a user.
// A non empty ID means the link exists, tokens are cleared on unlink.
type ExternalIdentity struct {
	ID           string         `bun:"id,nullzero" json:"id,omitempty"`
	AccessToken  string         `bun:"access_token" json:"-"`
	RefreshToken string         `bun:"refresh_token" json:"-"`
	Profile      map[string]any `bun:"profile,type:json" json:"profile,omitempty"`
}

// Linked reports whether an identity is attached
func (e ExternalIdentity) Linked() bool {
	return e.ID != ""
}

// Connected reports whether the identity carries live provider tokens
func (e ExternalIdentity) Connected() bool {
	return e.ID != "" && e.AccessToken != ""
}

// User is the persisted account record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                          uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	Name                        Name             `bun:"embed:name_" json:"name"`
	Email                       string           `bun:"email,notnull,unique" json:"email"`
	Phone                       string           `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash                string           `bun:"password_hash" json:"-"`
	PasswordLastUpdatedAt       *time.Time       `bun:"password_last_updated_at,nullzero" json:"password_last_updated_at,omitempty"`
	PasswordResetToken          string           `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetTokenExpiresAt *time.Time       `bun:"password_reset_token_expires_at,nullzero" json:"-"`
	Roles                       Roles            `bun:"roles,type:json" json:"roles"`
	AvatarID                    *uuid.UUID       `bun:"avatar_id,type:uuid,nullzero" json:"avatar,omitempty"`
	AvatarURL                   string           `bun:"avatar_url" json:"avatar_url"`
	External                    ExternalIdentity `bun:"embed:sfdc_" json:"sfdc"`
	CreatedAt                   time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt                   time.Time        `bun:"updated_at,notnull" json:"updated_at"`

	// pendingPassword holds a plaintext password until the next write hashes it.
	pendingPassword string
}

var _ Principal = (*User)(nil)

// SetPassword marks the password as dirty. The plaintext never reaches
// the database, the repository hashes it on the next write.
func (u *User) SetPassword(password string) {
	u.pendingPassword = password
}

// PasswordDirty reports whether a new password waits to be hashed
func (u *User) PasswordDirty() bool {
	return u.pendingPassword != ""
}

// HasAvatar reports whether the user references an avatar record
func (u *User) HasAvatar() bool {
	return u.AvatarID != nil && *u.AvatarID != uuid.Nil
}

// IsAdmin reports whether the admin role is part of the role set
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.Roles.Has(RoleAdmin)
}

// VerifyPassword checks password against the stored hash
func (u *User) VerifyPassword(hasher PasswordHasher, password string) error {
	if u == nil || u.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	return hasher.Compare(password, u.PasswordHash)
}

// Avatar is a stored avatar image. Default avatars are shared and have
// no owner, custom avatars belong to exactly one user.
type Avatar struct {
	bun.BaseModel `bun:"table:avatars,alias:av"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Data        []byte     `bun:"data" json:"-"`
	StorageKey  string     `bun:"storage_key" json:"-"`
	ContentType string     `bun:"content_type,notnull" json:"content_type"`
	FileSize    int64      `bun:"file_size,notnull" json:"file_size"`
	DefaultImg  bool       `bun:"default_img,notnull" json:"default_img"`
	UserID      *uuid.UUID `bun:"user_id,type:uuid,nullzero" json:"user,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// IsCustom reports whether the avatar is owned by a user
func (a *Avatar) IsCustom() bool {
	return a != nil && !a.DefaultImg && a.UserID != nil
}

// OwnedBy reports whether the avatar is a custom avatar of userID
func (a *Avatar) OwnedBy(userID uuid.UUID) bool {
	return a.IsCustom() && *a.UserID == userID
}

// AvatarFile is an uploaded image
type AvatarFile struct {
	Data        []byte
	ContentType string
}
