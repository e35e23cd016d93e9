// Package server composes and runs the auth process boundary.
//
// It hosts the JSON HTTP API and the session gRPC API over one SQLite store,
// with the access gate in front of every protected route on both transports.
package server
