// Package notify delivers one-time codes to phone numbers.
//
// The auth core depends only on Gateway; any failure returned from Send is
// treated as a hard failure of the issuing operation.
package notify
