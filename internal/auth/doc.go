// Package auth issues and verifies the bearer tokens that gate the
// routines API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. Two roles exist:
//   - owner: full access, including source tokens and routine edits
//   - viewer: read-only access to routines, activity and settings
//
// There is no user database here; tokens are minted by the operator with
// `routined token` and carry the subject and role in their claims.
package auth
