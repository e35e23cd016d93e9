// Package sqlite provides SQLite-backed auth persistence.
//
// It is the single source of truth for staff accounts, client identities and
// pending verification codes. Code issuance and consumption are single
// statements so concurrent requests cannot double-spend a code.
package sqlite
