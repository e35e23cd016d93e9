// Package verification issues and validates single-use phone codes.
package verification

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/random"
	"github.com/louisbranch/shopkeeper/internal/services/auth/audit"
	"github.com/louisbranch/shopkeeper/internal/services/auth/client"
	"github.com/louisbranch/shopkeeper/internal/services/auth/notify"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
	"go.uber.org/zap"
)

// Issued describes a delivered code. Code never leaves the process except
// through the gateway.
type Issued struct {
	Phone     string
	Code      string
	ExpiresAt time.Time
}

// Service issues and consumes verification codes.
type Service struct {
	store    storage.VerificationCodeStore
	gateway  notify.Gateway
	recorder *audit.Recorder
	logger   *zap.Logger
	cfg      Config
	clock    func() time.Time
	generate func(n int) (string, error)
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

// WithCodeGenerator overrides the digit source.
func WithCodeGenerator(generate func(n int) (string, error)) Option {
	return func(s *Service) {
		if generate != nil {
			s.generate = generate
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

// NewService creates a verification service.
func NewService(store storage.VerificationCodeStore, gateway notify.Gateway, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "verification store is required")
	}
	if gateway == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "notification gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:    store,
		gateway:  gateway,
		logger:   zap.NewNop(),
		cfg:      cfg,
		clock:    time.Now,
		generate: random.Digits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue replaces any active code for phone with a fresh one and delivers it.
// A code that fails delivery is withdrawn before DELIVERY_FAILED is returned.
func (s *Service) Issue(ctx context.Context, phone string) (Issued, error) {
	normalized, err := client.NormalizePhone(phone)
	if err != nil {
		return Issued{}, err
	}
	code, err := s.generate(s.cfg.Length)
	if err != nil {
		return Issued{}, apperrors.Wrap(apperrors.CodeUnknown, "generate verification code", err)
	}

	now := s.clock().UTC()
	record := storage.VerificationCode{
		Phone:     normalized,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.store.ReplaceVerificationCode(ctx, record); err != nil {
		return Issued{}, err
	}

	if err := s.gateway.Send(ctx, normalized, code); err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		if delErr := s.store.DeleteVerificationCode(cleanupCtx, record); delErr != nil {
			s.logger.Error("withdraw undelivered code",
				zap.String("phone", notify.MaskPhone(normalized)),
				zap.Error(delErr),
			)
		}
		s.logger.Warn("verification code delivery failed",
			zap.String("phone", notify.MaskPhone(normalized)),
			zap.Error(err),
		)
		if apperrors.IsCode(err, apperrors.CodeDeliveryFailed) {
			return Issued{}, err
		}
		return Issued{}, apperrors.Wrap(apperrors.CodeDeliveryFailed, "deliver verification code", err)
	}

	s.recorder.Record(ctx, audit.KindVerificationCodeIssued, "", map[string]string{
		"phone": notify.MaskPhone(normalized),
	})
	return Issued{Phone: normalized, Code: code, ExpiresAt: record.ExpiresAt}, nil
}

// Validate consumes the active code for phone if it equals code.
//
// Failures keep their internal kind (NOT_FOUND, EXPIRED_CODE, INVALID_CODE);
// the sign-in flow collapses them to CODE_REJECTED.
func (s *Service) Validate(ctx context.Context, phone, code string) error {
	normalized, err := client.NormalizePhone(phone)
	if err != nil {
		return err
	}

	err = s.store.ConsumeVerificationCode(ctx, normalized, code, s.clock().UTC(), s.cfg.MaxAttempts)
	if err == nil {
		return nil
	}

	switch reason := apperrors.GetCode(err); reason {
	case apperrors.CodeNotFound, apperrors.CodeExpiredCode, apperrors.CodeInvalidCode:
		s.logger.Info("verification code rejected",
			zap.String("phone", notify.MaskPhone(normalized)),
			zap.String("reason", string(reason)),
		)
		s.recorder.Record(ctx, audit.KindVerificationCodeRejected, "", map[string]string{
			"phone":  notify.MaskPhone(normalized),
			"reason": string(reason),
		})
	default:
		s.logger.Error("consume verification code", zap.Error(err))
	}
	return err
}

// PurgeExpired removes expired codes. Expiry is enforced at validation time,
// so this is housekeeping only.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredVerificationCodes(ctx, s.clock().UTC())
}
