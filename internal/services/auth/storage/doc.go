// Package storage defines persistence contracts for auth credentials.
//
// Services depend on these interfaces so the atomic issue and consume rules for
// verification codes live in one implementation instead of in every caller.
package storage
