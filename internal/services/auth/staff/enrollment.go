package staff

import (
	"strings"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
)

// EnrollmentState is the position of an account in the two-factor lifecycle.
type EnrollmentState int

const (
	// NotEnrolled covers both never-enrolled and disabled accounts.
	NotEnrolled EnrollmentState = iota
	// PendingEnrollment means a secret was generated but not yet proven.
	PendingEnrollment
	// Enrolled means the secret is active and required at sign-in.
	Enrolled
)

func (s EnrollmentState) String() string {
	switch s {
	case NotEnrolled:
		return "not_enrolled"
	case PendingEnrollment:
		return "pending"
	case Enrolled:
		return "enrolled"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyEnabled indicates two-factor is already active.
	ErrAlreadyEnabled = apperrors.New(apperrors.CodeAlreadyEnabled, "two-factor already enabled")
	// ErrNotEnabled indicates two-factor is not active.
	ErrNotEnabled = apperrors.New(apperrors.CodeNotEnabled, "two-factor not enabled")
	// ErrNoPendingEnrollment indicates confirm was called without a pending secret.
	ErrNoPendingEnrollment = apperrors.New(apperrors.CodeNoPendingEnrollment, "no pending two-factor enrollment")
	// ErrCodeReplayed indicates a TOTP code for a time step that already signed in.
	ErrCodeReplayed = apperrors.New(apperrors.CodeInvalidCode, "totp code already used")
	// ErrInvalidEnrollment indicates a stored enrollment breaks its invariants.
	ErrInvalidEnrollment = apperrors.New(apperrors.CodeInvalidArgument, "invalid two-factor enrollment")
)

// Enrollment is the TOTP enrollment attached to a staff account.
//
// Secret is set only while Enabled. PendingSecret never authorizes anything on
// its own; Confirm is the only path that promotes it. LastStep is the latest
// TOTP time step accepted at sign-in for the active secret.
type Enrollment struct {
	Secret        string
	PendingSecret string
	Enabled       bool
	LastStep      int64
}

// State derives the lifecycle state.
func (e Enrollment) State() EnrollmentState {
	switch {
	case e.Enabled:
		return Enrolled
	case e.PendingSecret != "":
		return PendingEnrollment
	default:
		return NotEnrolled
	}
}

// Validate checks the enrollment invariants.
func (e Enrollment) Validate() error {
	if (strings.TrimSpace(e.Secret) != "") != e.Enabled {
		return ErrInvalidEnrollment
	}
	if e.Enabled && e.PendingSecret != "" {
		return ErrInvalidEnrollment
	}
	if e.LastStep < 0 {
		return ErrInvalidEnrollment
	}
	return nil
}

// Begin stages secret as pending. Restarting an unfinished enrollment replaces
// the previous pending secret.
func (e Enrollment) Begin(secret string) (Enrollment, error) {
	if e.Enabled {
		return e, ErrAlreadyEnabled
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return e, apperrors.New(apperrors.CodeInvalidArgument, "enrollment secret is required")
	}
	return Enrollment{PendingSecret: secret}, nil
}

// Confirm promotes the pending secret. Callers must have verified a code
// against PendingSecret first.
func (e Enrollment) Confirm() (Enrollment, error) {
	if e.Enabled {
		return e, ErrAlreadyEnabled
	}
	if e.PendingSecret == "" {
		return e, ErrNoPendingEnrollment
	}
	return Enrollment{Secret: e.PendingSecret, Enabled: true}, nil
}

// Accept records step as used. Steps at or before LastStep are replays.
func (e Enrollment) Accept(step int64) (Enrollment, error) {
	if !e.Enabled {
		return e, ErrNotEnabled
	}
	if step <= e.LastStep {
		return e, ErrCodeReplayed
	}
	next := e
	next.LastStep = step
	return next, nil
}

// Disable clears the active secret.
func (e Enrollment) Disable() (Enrollment, error) {
	if !e.Enabled {
		return e, ErrNotEnabled
	}
	return Enrollment{}, nil
}
