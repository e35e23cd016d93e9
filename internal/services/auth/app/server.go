package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/shopkeeper/internal/platform/grpc"
	"github.com/louisbranch/shopkeeper/internal/platform/logging"
	"github.com/louisbranch/shopkeeper/internal/platform/timeouts"
	authgrpc "github.com/louisbranch/shopkeeper/internal/services/auth/api/grpc/auth"
	"github.com/louisbranch/shopkeeper/internal/services/auth/api/httpapi"
	"github.com/louisbranch/shopkeeper/internal/services/auth/audit"
	"github.com/louisbranch/shopkeeper/internal/services/auth/gate"
	"github.com/louisbranch/shopkeeper/internal/services/auth/notify"
	"github.com/louisbranch/shopkeeper/internal/services/auth/password"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/signin"
	authsqlite "github.com/louisbranch/shopkeeper/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/shopkeeper/internal/services/auth/totp"
	"github.com/louisbranch/shopkeeper/internal/services/auth/twofactor"
	"github.com/louisbranch/shopkeeper/internal/services/auth/verification"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Server hosts the auth service.
type Server struct {
	listener      net.Listener
	grpcServer    *grpc.Server
	health        *health.Server
	store         *authsqlite.Store
	httpListener  net.Listener
	httpServer    *http.Server
	codes         *verification.Service
	purgeInterval time.Duration
	logger        *zap.Logger
}

// Option configures a Server.
type Option func(*options)

type options struct {
	hasher password.Hasher
	clock  func() time.Time
}

// WithPasswordHasher overrides the bcrypt hasher.
func WithPasswordHasher(hasher password.Hasher) Option {
	return func(o *options) {
		if hasher != nil {
			o.hasher = hasher
		}
	}
}

// WithClock overrides the time source of every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New opens the store, seeds bootstrap staff, and wires both transports.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	logger = logging.OrNop(logger)
	o := options{hasher: password.NewBcryptHasher(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	bootstrap, err := loadBootstrapStaff(cfg.BootstrapStaffJSON, cfg.BootstrapStaffFile)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}
	store, err := openAuthStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	fail := func(err error) (*Server, error) {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	if err := bootstrapStaff(ctx, store, o.hasher, bootstrap, o.clock, logging.Component(logger, "bootstrap")); err != nil {
		return fail(err)
	}

	recorder := audit.NewRecorder(audit.NewLogSink(logging.Component(logger, "audit")), logger, audit.WithClock(o.clock))

	gateway, err := notify.New(cfg.SMS, nil, logging.Component(logger, "notify"))
	if err != nil {
		return fail(fmt.Errorf("build notification gateway: %w", err))
	}
	codes, err := verification.NewService(store, gateway, cfg.Codes,
		verification.WithClock(o.clock),
		verification.WithRecorder(recorder),
		verification.WithLogger(logging.Component(logger, "verification")),
	)
	if err != nil {
		return fail(fmt.Errorf("build verification service: %w", err))
	}

	generator, err := totp.NewGenerator(cfg.TOTP)
	if err != nil {
		return fail(fmt.Errorf("build totp generator: %w", err))
	}
	validator, err := totp.NewValidator(cfg.TOTP)
	if err != nil {
		return fail(fmt.Errorf("build totp validator: %w", err))
	}
	twoFactor, err := twofactor.NewService(store, generator, validator,
		twofactor.WithClock(o.clock),
		twofactor.WithRecorder(recorder),
		twofactor.WithLogger(logging.Component(logger, "twofactor")),
	)
	if err != nil {
		return fail(fmt.Errorf("build two-factor service: %w", err))
	}

	keys, err := cfg.Session.KeySource()
	if err != nil {
		return fail(err)
	}
	issuer, err := session.NewIssuer(keys, cfg.Session.Issuer, session.WithClock(o.clock))
	if err != nil {
		return fail(fmt.Errorf("build session issuer: %w", err))
	}

	signIn, err := signin.NewService(signin.Deps{
		Staff:     store,
		Clients:   store,
		Passwords: o.hasher,
		TwoFactor: twoFactor,
		Codes:     codes,
		Tokens:    issuer,
		StaffTTL:  cfg.Session.StaffTTL,
		ClientTTL: cfg.Session.ClientTTL,
	},
		signin.WithClock(o.clock),
		signin.WithRecorder(recorder),
		signin.WithLogger(logging.Component(logger, "signin")),
	)
	if err != nil {
		return fail(fmt.Errorf("build sign-in service: %w", err))
	}

	accessGate, err := gate.New(issuer, logging.Component(logger, "gate"))
	if err != nil {
		return fail(err)
	}

	var httpListener net.Listener
	var httpServer *http.Server
	if strings.TrimSpace(cfg.HTTPAddr) != "" {
		handler, err := httpapi.New(signIn, twoFactor, accessGate, store, logging.Component(logger, "http"))
		if err != nil {
			return fail(err)
		}
		httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fail(fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err))
		}
		if cfg.HTTPMaxConns > 0 {
			httpListener = netutil.LimitListener(httpListener, cfg.HTTPMaxConns)
		}
		httpServer = &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
	}

	grpcServer, healthServer := platformgrpc.NewServer(accessGate.UnaryServerInterceptor(authgrpc.Policies()))
	authgrpc.RegisterSessionServer(grpcServer, authgrpc.NewSessionService())
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(authgrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:      listener,
		grpcServer:    grpcServer,
		health:        healthServer,
		store:         store,
		httpListener:  httpListener,
		httpServer:    httpServer,
		codes:         codes,
		purgeInterval: cfg.PurgeInterval,
		logger:        logger,
	}, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address, or "" when HTTP is disabled.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	srv, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts both transports and blocks until one stops or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	go s.purgeExpiredCodes(serverCtx)

	s.logger.Info("auth gRPC server listening", zap.Stringer("addr", s.listener.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	httpErr := make(chan error, 1)
	if s.httpServer != nil && s.httpListener != nil {
		s.logger.Info("auth HTTP server listening", zap.Stringer("addr", s.httpListener.Addr()))
		go func() {
			httpErr <- s.httpServer.Serve(s.httpListener)
		}()
	}

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		if s.httpServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown HTTP server", zap.Error(err))
		}
	}

	select {
	case <-ctx.Done():
		s.logger.Info("auth server shutting down")
		shutdownGRPC()
		shutdownHTTP()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		if handled := handleErr(<-serveErr); handled != nil {
			return handled
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// purgeExpiredCodes drops expired verification codes on an interval.
func (s *Server) purgeExpiredCodes(ctx context.Context) {
	if s.codes == nil || s.purgeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.codes.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("purge expired verification codes", zap.Error(err))
				}
				continue
			}
			if removed > 0 {
				s.logger.Debug("purged expired verification codes", zap.Int64("removed", removed))
			}
		}
	}
}

func openAuthStore(path string) (*authsqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close auth store", zap.Error(err))
	}
}
