// Package twofactor drives staff TOTP enrollment and sign-in checks.
//
// An enrollment only becomes active after a code computed from the pending
// secret is confirmed; nothing in this package can enable two-factor directly.
package twofactor

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"github.com/louisbranch/shopkeeper/internal/services/auth/audit"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
	"github.com/louisbranch/shopkeeper/internal/services/auth/totp"
	"go.uber.org/zap"
)

var errInvalidCode = apperrors.New(apperrors.CodeInvalidCode, "totp code mismatch")

// maxTransitionAttempts bounds retries when another request changes the same
// enrollment between our read and our write.
const maxTransitionAttempts = 3

// SecretGenerator creates enrollment secrets.
type SecretGenerator interface {
	Generate(accountName string) (totp.Key, error)
}

// CodeVerifier checks a TOTP code against a secret and reports the time step
// it matched.
type CodeVerifier interface {
	Match(secret, code string, now time.Time) (int64, bool)
}

// Enrollment is what a staff member needs to configure an authenticator app.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
}

// Service manages two-factor enrollment.
type Service struct {
	store     storage.StaffStore
	generator SecretGenerator
	verifier  CodeVerifier
	recorder  *audit.Recorder
	logger    *zap.Logger
	clock     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRecorder sets the audit recorder.
func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a two-factor service.
func NewService(store storage.StaffStore, generator SecretGenerator, verifier CodeVerifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "staff store is required")
	}
	if generator == nil || verifier == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "totp generator and verifier are required")
	}
	s := &Service{
		store:     store,
		generator: generator,
		verifier:  verifier,
		logger:    zap.NewNop(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartEnrollment stages a new pending secret for staffID.
func (s *Service) StartEnrollment(ctx context.Context, staffID string) (Enrollment, error) {
	var key totp.Key
	account, err := s.transition(ctx, staffID, func(account staff.Account) (staff.Enrollment, error) {
		if account.TwoFactor.Enabled {
			return staff.Enrollment{}, staff.ErrAlreadyEnabled
		}
		generated, err := s.generator.Generate(account.Login)
		if err != nil {
			return staff.Enrollment{}, apperrors.Wrap(apperrors.CodeUnknown, "generate totp secret", err)
		}
		key = generated
		return account.TwoFactor.Begin(generated.Secret)
	})
	if err != nil {
		return Enrollment{}, err
	}

	s.recorder.Record(ctx, audit.KindTwoFactorEnrollStarted, account.ID, nil)
	return Enrollment{Secret: key.Secret, ProvisioningURI: key.URI}, nil
}

// ConfirmEnrollment promotes the pending secret once code proves possession.
// A wrong code leaves the pending secret in place for another try.
func (s *Service) ConfirmEnrollment(ctx context.Context, staffID, code string) error {
	account, err := s.transition(ctx, staffID, func(account staff.Account) (staff.Enrollment, error) {
		if account.TwoFactor.Enabled {
			return staff.Enrollment{}, staff.ErrAlreadyEnabled
		}
		if account.TwoFactor.State() != staff.PendingEnrollment {
			return staff.Enrollment{}, staff.ErrNoPendingEnrollment
		}
		if _, ok := s.verifier.Match(account.TwoFactor.PendingSecret, code, s.clock()); !ok {
			s.logger.Info("totp enrollment code rejected", zap.String("staff_id", account.ID))
			s.recorder.Record(ctx, audit.KindTwoFactorValidationFailed, account.ID, map[string]string{
				"stage": "enrollment",
			})
			return staff.Enrollment{}, errInvalidCode
		}
		return account.TwoFactor.Confirm()
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.KindTwoFactorEnabled, account.ID, nil)
	return nil
}

// Disable turns two-factor off. The caller in ctx must be staffID.
func (s *Service) Disable(ctx context.Context, staffID string) error {
	principal, ok := requestctx.PrincipalFromContext(ctx)
	if !ok {
		return apperrors.New(apperrors.CodeUnauthenticated, "disable two-factor without caller")
	}
	if principal.SubjectID != staffID {
		return apperrors.WithMetadata(apperrors.CodeForbidden, "disable two-factor for another account", map[string]string{
			"caller": principal.SubjectID,
			"target": staffID,
		})
	}

	account, err := s.transition(ctx, staffID, func(account staff.Account) (staff.Enrollment, error) {
		return account.TwoFactor.Disable()
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.KindTwoFactorDisabled, account.ID, nil)
	return nil
}

// ValidateLogin checks code against the active secret. The only state it
// writes is the last accepted time step, so a code signs in at most once.
func (s *Service) ValidateLogin(ctx context.Context, staffID, code string) error {
	return s.validateAccount(ctx, staffID, code)
}

// ValidateAccount is ValidateLogin for an account the caller already loaded.
// The enrollment is re-read so the replay check sees the latest step.
func (s *Service) ValidateAccount(ctx context.Context, account staff.Account, code string) error {
	return s.validateAccount(ctx, account.ID, code)
}

func (s *Service) validateAccount(ctx context.Context, staffID, code string) error {
	_, err := s.transition(ctx, staffID, func(account staff.Account) (staff.Enrollment, error) {
		if !account.TwoFactor.Enabled {
			return staff.Enrollment{}, staff.ErrNotEnabled
		}
		step, ok := s.verifier.Match(account.TwoFactor.Secret, code, s.clock())
		if !ok {
			s.loginRejected(ctx, account.ID, "")
			return staff.Enrollment{}, errInvalidCode
		}
		next, err := account.TwoFactor.Accept(step)
		if errors.Is(err, staff.ErrCodeReplayed) {
			s.loginRejected(ctx, account.ID, "replay")
		}
		return next, err
	})
	return err
}

func (s *Service) loginRejected(ctx context.Context, staffID, reason string) {
	s.logger.Info("totp login code rejected", zap.String("staff_id", staffID), zap.String("reason", reason))
	metadata := map[string]string{"stage": "login"}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.recorder.Record(ctx, audit.KindTwoFactorValidationFailed, staffID, metadata)
}

// transition loads staffID, derives the next enrollment with step and writes
// it only if the stored enrollment is still the one step saw. A concurrent
// change reruns step against the fresh row.
func (s *Service) transition(ctx context.Context, staffID string, step func(staff.Account) (staff.Enrollment, error)) (staff.Account, error) {
	var err error
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		var account staff.Account
		account, err = s.store.GetStaff(ctx, staffID)
		if err != nil {
			return staff.Account{}, err
		}
		next, stepErr := step(account)
		if stepErr != nil {
			return staff.Account{}, stepErr
		}
		err = s.store.UpdateTwoFactor(ctx, account.ID, account.TwoFactor, next, s.clock().UTC())
		if err == nil {
			account.TwoFactor = next
			return account, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return staff.Account{}, err
		}
		s.logger.Debug("two-factor enrollment changed concurrently", zap.String("staff_id", staffID), zap.Int("attempt", attempt))
	}
	return staff.Account{}, err
}
