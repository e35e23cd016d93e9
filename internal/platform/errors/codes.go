// Package errors provides structured error handling for the auth core.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidPhone    Code = "INVALID_PHONE"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"

	// One-time code errors
	CodeInvalidCode    Code = "INVALID_CODE"
	CodeExpiredCode    Code = "EXPIRED_CODE"
	CodeDeliveryFailed Code = "DELIVERY_FAILED"

	// Two-factor enrollment errors
	CodeAlreadyEnabled      Code = "ALREADY_ENABLED"
	CodeNotEnabled          Code = "NOT_ENABLED"
	CodeNoPendingEnrollment Code = "NO_PENDING_ENROLLMENT"
	CodeTwoFactorRequired   Code = "TWO_FACTOR_REQUIRED"

	// Credential and session errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeMalformed          Code = "MALFORMED"
	CodeSignatureInvalid   Code = "SIGNATURE_INVALID"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"

	// CodeCodeRejected is the public code every one-time code failure collapses to.
	CodeCodeRejected Code = "CODE_REJECTED"
)

// Public maps an internal code to the code a caller is allowed to observe.
//
// Token failures collapse to UNAUTHENTICATED and code mismatches collapse to
// CODE_REJECTED so the boundary never reveals which check failed. A missing
// one-time code is reported as NOT_FOUND by the store; the sign-in flow
// re-codes it before it reaches the boundary.
func (c Code) Public() Code {
	switch c {
	case CodeMalformed, CodeSignatureInvalid, CodeTokenExpired, CodeUnauthenticated:
		return CodeUnauthenticated
	case CodeInvalidCode, CodeExpiredCode:
		return CodeCodeRejected
	case CodeStoreUnavailable, CodeUnknown:
		return CodeUnknown
	default:
		return c
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidArgument,
		CodeInvalidPhone,
		CodeInvalidCode,
		CodeExpiredCode,
		CodeCodeRejected:
		return codes.InvalidArgument

	case CodeAlreadyEnabled,
		CodeNotEnabled,
		CodeNoPendingEnrollment,
		CodeTwoFactorRequired:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeConflict:
		return codes.Aborted

	case CodeInvalidCredentials,
		CodeMalformed,
		CodeSignatureInvalid,
		CodeTokenExpired,
		CodeUnauthenticated:
		return codes.Unauthenticated

	case CodeForbidden:
		return codes.PermissionDenied

	case CodeDeliveryFailed, CodeStoreUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
