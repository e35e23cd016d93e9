// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Notification caps a single outbound notification delivery call.
const Notification = 10 * time.Second

// Audit caps a single audit sink write so it never holds up a security operation.
const Audit = 2 * time.Second
