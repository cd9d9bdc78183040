// Package auth signs guests in with Google and carries the resulting identity
// as an immutable Session snapshot.
//
// Sessions are stateless PASETO v4.public tokens held in an HttpOnly cookie
// (or an Authorization bearer header). Nothing is written to the users table
// at sign-in; user rows are created lazily by the first write.
//
// Sign-in and sign-out are published on a Broker so other components can
// observe session changes without polling.
package auth
