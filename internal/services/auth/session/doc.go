// Package session mints and verifies stateless session tokens.
//
// Tokens are HS256 JWTs carrying subject, optional role, issue and expiry
// times. Nothing is stored server side: a token is valid while its signature
// verifies against a known key and its expiry has not passed. Revocation is
// handled by short lifetimes and by retiring signing keys.
package session
