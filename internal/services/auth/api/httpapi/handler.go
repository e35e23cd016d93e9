// Package httpapi exposes the auth flows as JSON over HTTP.
//
// Errors are rendered with their public code only. One-time codes are never
// echoed back to the caller.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"github.com/louisbranch/shopkeeper/internal/services/auth/gate"
	"github.com/louisbranch/shopkeeper/internal/services/auth/notify"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/twofactor"
	"github.com/louisbranch/shopkeeper/internal/services/auth/verification"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// SignIn runs the sign-in flows.
type SignIn interface {
	StaffLogin(ctx context.Context, login, password, totpCode string) (session.Token, error)
	RequestClientCode(ctx context.Context, phone string) (verification.Issued, error)
	ClientLogin(ctx context.Context, phone, code string) (session.Token, error)
}

// TwoFactor manages staff two-factor enrollment.
type TwoFactor interface {
	StartEnrollment(ctx context.Context, staffID string) (twofactor.Enrollment, error)
	ConfirmEnrollment(ctx context.Context, staffID, code string) error
	Disable(ctx context.Context, staffID string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the auth HTTP API.
type Handler struct {
	signIn    SignIn
	twoFactor TwoFactor
	gate      *gate.Gate
	store     Pinger
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New builds the handler and its routes.
func New(signIn SignIn, twoFactor TwoFactor, g *gate.Gate, store Pinger, logger *zap.Logger) (*Handler, error) {
	if signIn == nil || twoFactor == nil || g == nil || store == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "sign-in, two-factor, gate and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		signIn:    signIn,
		twoFactor: twoFactor,
		gate:      g,
		store:     store,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	h.routes()
	return h, nil
}

func (h *Handler) routes() {
	authenticated := gate.Authenticated()

	h.mux.HandleFunc("GET /up", h.handleUp)
	h.mux.HandleFunc("POST /v1/staff/login", h.handleStaffLogin)
	h.mux.Handle("POST /v1/staff/2fa/enroll", h.gate.Protect(authenticated, h.handleEnroll))
	h.mux.Handle("POST /v1/staff/2fa/confirm", h.gate.Protect(authenticated, h.handleConfirm))
	h.mux.Handle("POST /v1/staff/2fa/disable", h.gate.Protect(authenticated, h.handleDisable))
	h.mux.HandleFunc("POST /v1/clients/code", h.handleClientCode)
	h.mux.HandleFunc("POST /v1/clients/login", h.handleClientLogin)
	h.mux.Handle("GET /v1/session", h.gate.Protect(authenticated, h.handleSession))
	h.mux.Handle("GET /v1/admin/ping", h.gate.Protect(gate.RequireRole(staff.RoleAdmin), h.handleAdminPing))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type staffLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

type clientCodeRequest struct {
	Phone string `json:"phone"`
}

type clientLoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type confirmRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	SubjectID string    `json:"subject_id"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type codeSentResponse struct {
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
}

type enrollmentResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type sessionResponse struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role,omitempty"`
}

func (h *Handler) handleUp(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.signIn.StaffLogin(r.Context(), req.Login, req.Password, strings.TrimSpace(req.TOTPCode))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(token))
}

func (h *Handler) handleClientCode(w http.ResponseWriter, r *http.Request) {
	var req clientCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	issued, err := h.signIn.RequestClientCode(r.Context(), req.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, codeSentResponse{
		Phone:     notify.MaskPhone(issued.Phone),
		ExpiresAt: issued.ExpiresAt,
	})
}

func (h *Handler) handleClientLogin(w http.ResponseWriter, r *http.Request) {
	var req clientLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.signIn.ClientLogin(r.Context(), req.Phone, strings.TrimSpace(req.Code))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(token))
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	principal, err := staffPrincipal(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	enrollment, err := h.twoFactor.StartEnrollment(r.Context(), principal.SubjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollmentResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
	})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	principal, err := staffPrincipal(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.twoFactor.ConfirmEnrollment(r.Context(), principal.SubjectID, strings.TrimSpace(req.Code)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	principal, err := staffPrincipal(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.twoFactor.Disable(r.Context(), principal.SubjectID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	principal, _ := requestctx.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{SubjectID: principal.SubjectID, Role: principal.Role})
}

func (h *Handler) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// staffPrincipal returns the caller if it holds a staff role.
func staffPrincipal(ctx context.Context) (requestctx.Principal, error) {
	principal, ok := requestctx.PrincipalFromContext(ctx)
	if !ok {
		return requestctx.Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "missing caller")
	}
	if principal.Role == "" {
		return requestctx.Principal{}, apperrors.New(apperrors.CodeForbidden, "staff role required")
	}
	return principal, nil
}

func newTokenResponse(token session.Token) tokenResponse {
	resp := tokenResponse{
		Token:     token.Value,
		TokenType: "Bearer",
		SubjectID: token.Claims.SubjectID,
		ExpiresAt: token.Claims.ExpiresAt,
	}
	if token.Claims.Role != staff.RoleNone {
		resp.Role = token.Claims.Role.String()
	}
	return resp
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidArgument, "request body is empty")
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "decode request body", err)
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	internal := apperrors.GetCode(err)
	public := internal.Public()

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", string(internal)),
		zap.Error(err),
	}
	if public.HTTPStatus() >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}
	gate.WriteError(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
