// Package auth implements the StudyPair account service: registration with
// email verification, credential login with JWT issuance, password reset, and
// an HTTP guard for protected routes.
//
// Account lifecycle:
//   - Registration stores a bcrypt hash and a single-use verification token,
//     then emails a verification link. Username and email are unique across
//     all accounts, enforced by the database so concurrent registrations
//     cannot race past the check.
//   - Login refuses unverified accounts, but only after the credentials have
//     been checked, so the response never leaks whether an account exists.
//   - Password resets hold a token plus an expiry window; both columns are
//     set and cleared together and the token is consumed on use.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe registration, verification, login, and
//     password reset events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking authentication.
//
// Mail delivery:
//   - Mailer sends the verification and reset links. Delivery runs after the
//     owning transaction commits and failures are recorded, not surfaced, so
//     an SMTP outage never rolls back an account.
package auth
