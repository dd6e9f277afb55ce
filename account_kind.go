package account

// AccountKind tells how an account proves who it is. It is either a
// LocalAccount or a FederatedAccount.
type AccountKind interface {
	accountKind() string
}

// LocalAccount signs in with a password
type LocalAccount struct {
	PasswordHash string
}

func (LocalAccount) accountKind() string { return "local" }

// FederatedAccount signs in through the external identity provider only
type FederatedAccount struct {
	ProviderID string
}

func (FederatedAccount) accountKind() string { return "federated" }

// Kind resolves the account kind of u. A record with a password is local
// even when an external identity is linked to it. The result is nil when
// the record has neither a password nor a provider id.
func (u *User) Kind() AccountKind {
	if u == nil {
		return nil
	}
	switch {
	case u.PasswordHash != "" || u.pendingPassword != "":
		return LocalAccount{PasswordHash: u.PasswordHash}
	case u.External.Linked():
		return FederatedAccount{ProviderID: u.External.ID}
	default:
		return nil
	}
}

// KindName returns "local", "federated" or an empty string
func KindName(kind AccountKind) string {
	if kind == nil {
		return ""
	}
	return kind.accountKind()
}

// ValidateCredentials enforces that every account can authenticate somehow
func ValidateCredentials(u *User) error {
	if u.Kind() == nil {
		return ErrParameterRequired("password")
	}
	return nil
}
