// Package signin runs the staff and client sign-in flows end to end.
//
// Staff sign in with login, password and, once enrolled, a TOTP code. Clients
// sign in with a one-time code sent to their phone; the first successful sign-in
// creates the client identity.
package signin

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/id"
	"github.com/louisbranch/shopkeeper/internal/services/auth/audit"
	"github.com/louisbranch/shopkeeper/internal/services/auth/client"
	"github.com/louisbranch/shopkeeper/internal/services/auth/password"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
	"github.com/louisbranch/shopkeeper/internal/services/auth/verification"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "shopkeeper/auth/signin"

var errInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "invalid login or password")

// TwoFactorValidator checks a TOTP code for a loaded account.
type TwoFactorValidator interface {
	ValidateAccount(ctx context.Context, account staff.Account, code string) error
}

// CodeService issues and validates client one-time codes.
type CodeService interface {
	Issue(ctx context.Context, phone string) (verification.Issued, error)
	Validate(ctx context.Context, phone, code string) error
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(subjectID string, role staff.Role, ttl time.Duration) (session.Token, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Staff     storage.StaffStore
	Clients   storage.ClientStore
	Passwords password.Hasher
	TwoFactor TwoFactorValidator
	Codes     CodeService
	Tokens    TokenIssuer
	StaffTTL  time.Duration
	ClientTTL time.Duration
}

// Service runs sign-in flows.
type Service struct {
	deps        Deps
	recorder    *audit.Recorder
	logger      *zap.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer

	// decoyHash is verified against when the login is unknown so both
	// failure paths pay for one hash comparison.
	decoyHash func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for new identities.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the client ID source.
func WithIDGenerator(idGenerator func() (string, error)) Option {
	return func(s *Service) {
		if idGenerator != nil {
			s.idGenerator = idGenerator
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Service) {
		if provider != nil {
			s.tracer = provider.Tracer(tracerName)
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

// NewService creates a sign-in service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Staff == nil, deps.Clients == nil:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "staff and client stores are required")
	case deps.Passwords == nil, deps.TwoFactor == nil:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "password hasher and two-factor validator are required")
	case deps.Codes == nil, deps.Tokens == nil:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "code service and token issuer are required")
	case deps.StaffTTL <= 0, deps.ClientTTL <= 0:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "session ttls must be positive")
	}
	s := &Service{
		deps:        deps,
		logger:      zap.NewNop(),
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.decoyHash = sync.OnceValue(func() string {
		hash, err := deps.Passwords.Hash("decoy-password")
		if err != nil {
			s.logger.Warn("hash decoy password", zap.Error(err))
		}
		return hash
	})
	return s, nil
}

// StaffLogin authenticates a staff member and mints a staff session token.
//
// Unknown logins and wrong passwords fail the same way. When two-factor is
// enabled an empty totpCode fails with TWO_FACTOR_REQUIRED.
func (s *Service) StaffLogin(ctx context.Context, login, pass, totpCode string) (token session.Token, err error) {
	ctx, span := s.tracer.Start(ctx, "signin.StaffLogin")
	defer func() { endSpan(span, err) }()

	login = staff.NormalizeLogin(login)
	if login == "" || pass == "" {
		s.staffFailed(ctx, "", "missing_credentials")
		return session.Token{}, errInvalidCredentials
	}

	account, err := s.deps.Staff.GetStaffByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return session.Token{}, err
		}
		_ = s.deps.Passwords.Verify(s.decoyHash(), pass)
		s.staffFailed(ctx, "", "unknown_login")
		return session.Token{}, errInvalidCredentials
	}
	span.SetAttributes(attribute.String("staff.id", account.ID))

	if err := s.deps.Passwords.Verify(account.PasswordHash, pass); err != nil {
		s.staffFailed(ctx, account.ID, "bad_password")
		return session.Token{}, errInvalidCredentials
	}

	if account.TwoFactor.Enabled {
		if totpCode == "" {
			s.staffFailed(ctx, account.ID, "two_factor_required")
			return session.Token{}, apperrors.New(apperrors.CodeTwoFactorRequired, "two-factor code missing")
		}
		if err := s.deps.TwoFactor.ValidateAccount(ctx, account, totpCode); err != nil {
			s.staffFailed(ctx, account.ID, "two_factor_rejected")
			return session.Token{}, err
		}
	}

	token, err = s.deps.Tokens.Issue(account.ID, account.Role, s.deps.StaffTTL)
	if err != nil {
		return session.Token{}, err
	}
	s.logger.Info("staff signed in", zap.String("staff_id", account.ID), zap.Stringer("role", account.Role))
	s.recorder.Record(ctx, audit.KindStaffLoginSucceeded, account.ID, map[string]string{
		"role": account.Role.String(),
	})
	return token, nil
}

// RequestClientCode sends a fresh one-time code to phone.
func (s *Service) RequestClientCode(ctx context.Context, phone string) (issued verification.Issued, err error) {
	ctx, span := s.tracer.Start(ctx, "signin.RequestClientCode")
	defer func() { endSpan(span, err) }()

	return s.deps.Codes.Issue(ctx, phone)
}

// ClientLogin consumes the one-time code for phone and mints a client session
// token. The client identity is created on first sign-in.
//
// A missing, expired or mismatched code fails with CODE_REJECTED; the cause
// stays in the chain for logs.
func (s *Service) ClientLogin(ctx context.Context, phone, code string) (token session.Token, err error) {
	ctx, span := s.tracer.Start(ctx, "signin.ClientLogin")
	defer func() { endSpan(span, err) }()

	if err := s.deps.Codes.Validate(ctx, phone, code); err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.CodeNotFound, apperrors.CodeExpiredCode, apperrors.CodeInvalidCode:
			return session.Token{}, apperrors.Wrap(apperrors.CodeCodeRejected, "client code rejected", err)
		}
		return session.Token{}, err
	}
	normalized, err := client.NormalizePhone(phone)
	if err != nil {
		return session.Token{}, err
	}

	identity, created, err := s.clientFor(ctx, normalized)
	if err != nil {
		return session.Token{}, err
	}
	span.SetAttributes(attribute.String("client.id", identity.ID), attribute.Bool("client.created", created))

	token, err = s.deps.Tokens.Issue(identity.ID, staff.RoleNone, s.deps.ClientTTL)
	if err != nil {
		return session.Token{}, err
	}
	s.logger.Info("client signed in", zap.String("client_id", identity.ID), zap.Bool("created", created))
	s.recorder.Record(ctx, audit.KindClientLoginSucceeded, identity.ID, nil)
	return token, nil
}

func (s *Service) clientFor(ctx context.Context, phone string) (client.Identity, bool, error) {
	identity, err := s.deps.Clients.GetClientByPhone(ctx, phone)
	if err == nil {
		return identity, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return client.Identity{}, false, err
	}

	fresh, err := client.NewIdentity(phone, s.clock, s.idGenerator)
	if err != nil {
		return client.Identity{}, false, err
	}
	stored, err := s.deps.Clients.CreateClient(ctx, fresh)
	if err != nil {
		return client.Identity{}, false, err
	}
	return stored, stored.ID == fresh.ID, nil
}

func (s *Service) staffFailed(ctx context.Context, staffID, reason string) {
	s.logger.Info("staff sign-in rejected", zap.String("staff_id", staffID), zap.String("reason", reason))
	s.recorder.Record(ctx, audit.KindStaffLoginFailed, staffID, map[string]string{"reason": reason})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(apperrors.GetCode(err)))
	}
	span.End()
}
