// Package account manages user accounts: local signup and login with
// bcrypt hashed passwords, HS256 bearer tokens, password reset tokens,
// avatars and the link to an external identity provider.
//
// Accounts:
//   - Manager owns the lifecycle. Signup, Update, ChangePassword and
//     ResetPassword hash pending passwords through the repository, the
//     plaintext never reaches the database.
//   - A user is either a LocalAccount (password hash) or a
//     FederatedAccount (provider id). ValidateCredentials rejects records
//     that are neither.
//
// Authorization:
//   - RequestVerifier resolves the request token (body, query, header,
//     then bearer) and stores the claims in the request locals.
//   - Gate answers ownership and admin questions. Asking before the token
//     was verified is a programming error and returns ErrClaimsNotDecoded.
//
// Avatars:
//   - AttachAvatar runs the stale delete and the save avatar, save user
//     chain concurrently. A failed user save deletes the new avatar again;
//     whatever a crash leaves behind is collected by
//     ReconcileOrphanAvatars.
//
// Activity sinks:
//   - ActivitySink receives best effort audit events. Sink errors are
//     logged and never fail the operation.
package account
