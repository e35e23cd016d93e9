// Package auth is the authentication core for the shop.
//
// Clients sign in with a one-time code sent to their phone. Staff sign in with
// login and password plus a TOTP code once enrolled. Both receive signed
// session tokens that the access gate checks on every protected route.
//
// Subpackages:
//   - app: auth server wiring and lifecycle
//   - api/httpapi: JSON HTTP endpoints
//   - api/grpc/auth: session gRPC service
//   - signin: staff and client sign-in flows
//   - verification: phone one-time codes
//   - totp, twofactor: TOTP validation and staff enrollment
//   - session: token issuing and verification
//   - gate: route policies for HTTP and gRPC
//   - notify, audit: code delivery and security event collaborators
//   - staff, client, password: domain models and password hashing
//   - storage: persistence interfaces and SQLite implementation
package auth
