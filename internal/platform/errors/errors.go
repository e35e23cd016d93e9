package errors

import (
	stderrors "errors"

	"github.com/louisbranch/shopkeeper/internal/platform/errors/i18n"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the error domain for shopkeeper errors.
const Domain = "github.com/louisbranch/shopkeeper"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for logs
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// PublicMessage returns the user-facing message for a public code in the base locale.
func PublicMessage(code Code) string {
	return LocalizedMessage(code, "")
}

// LocalizedMessage returns the user-facing message for a public code in the
// locale best matching an Accept-Language value.
func LocalizedMessage(code Code, acceptLanguage string) string {
	return i18n.Resolve(acceptLanguage).Message(string(code.Public()))
}

// ToGRPCStatus converts the error to a gRPC status carrying only the public code.
// The internal message and metadata stay in logs.
func (e *Error) ToGRPCStatus() error {
	return e.ToLocalizedGRPCStatus("")
}

// ToLocalizedGRPCStatus is ToGRPCStatus with a LocalizedMessage detail for the
// locale best matching acceptLanguage.
func (e *Error) ToLocalizedGRPCStatus(acceptLanguage string) error {
	public := e.Code.Public()
	st := status.New(public.GRPCCode(), PublicMessage(public))

	catalog := i18n.Resolve(acceptLanguage)
	withDetails, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason: string(public),
			Domain: Domain,
		},
		&errdetails.LocalizedMessage{
			Locale:  catalog.Locale(),
			Message: catalog.Message(string(public)),
		},
	)
	if err != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// GRPCStatus converts any error to a gRPC status carrying its public code.
func GRPCStatus(err error) error {
	return LocalizedGRPCStatus(err, "")
}

// LocalizedGRPCStatus is GRPCStatus with a LocalizedMessage detail.
func LocalizedGRPCStatus(err error, acceptLanguage string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.ToLocalizedGRPCStatus(acceptLanguage)
	}
	return New(CodeUnknown, err.Error()).ToLocalizedGRPCStatus(acceptLanguage)
}
