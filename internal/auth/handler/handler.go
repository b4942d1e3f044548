package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shopcore/internal/auth/models"
	tenantmw "shopcore/internal/tenant/middleware"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/httputil"
	"shopcore/pkg/requestcontext"
)

// Service defines the interface for authentication operations.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest, hint string) (*models.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email, hint string) error
	ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirm, hint string) error
	Me(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID) (*models.MeResponse, error)
}

// CookieConfig controls the token cookies. Max ages follow the token TTLs.
type CookieConfig struct {
	AccessName    string
	RefreshName   string
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
	Secure        bool
}

// DefaultCookieConfig matches the default token lifetimes.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		AccessName:    "access_token",
		RefreshName:   "refresh_token",
		AccessMaxAge:  15 * time.Minute,
		RefreshMaxAge: 7 * 24 * time.Hour,
		Secure:        true,
	}
}

// Handler handles the authentication endpoints. Tokens travel in HttpOnly
// cookies; response bodies only carry non-secret session metadata.
type Handler struct {
	auth    Service
	logger  *slog.Logger
	cookies CookieConfig
}

// New creates a new auth Handler with the given service and logger.
func New(auth Service, logger *slog.Logger, cookies CookieConfig) *Handler {
	defaults := DefaultCookieConfig()
	if cookies.AccessName == "" {
		cookies.AccessName = defaults.AccessName
	}
	if cookies.RefreshName == "" {
		cookies.RefreshName = defaults.RefreshName
	}
	if cookies.AccessMaxAge <= 0 {
		cookies.AccessMaxAge = defaults.AccessMaxAge
	}
	if cookies.RefreshMaxAge <= 0 {
		cookies.RefreshMaxAge = defaults.RefreshMaxAge
	}
	return &Handler{
		auth:    auth,
		logger:  logger,
		cookies: cookies,
	}
}

// Register registers the unauthenticated auth routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/password-reset/request", h.HandlePasswordResetRequest)
	r.Post("/auth/password-reset/confirm", h.HandlePasswordResetConfirm)
}

// RegisterProtected registers routes that need an authenticated principal
// and a resolved tenant. The parent router applies that middleware.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
}

// HandleLogin implements POST /auth/login. The tenant comes from the
// X-Tenant-Id header and is mandatory.
//
// Input: { "email": "admin@shop-a.test", "password": "..." }
// Output: { "principal_id": "U1", "tenant_id": "shop-a", "role": "admin", "expires_at": "..." }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.auth.Login(ctx, req, r.Header.Get(tenantmw.HeaderTenantID))
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "login successful",
		"principal_id", res.PrincipalID.String(),
		"request_id", requestID,
	)
	h.writeSession(w, res)
}

// HandleRefresh rotates the refresh token from the refresh cookie or, for
// clients without cookies, from the JSON body.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	token := h.cookieValue(r, h.cookies.RefreshName)
	if token == "" {
		req, ok := httputil.DecodeAndPrepare[models.RefreshRequest](w, r, h.logger)
		if !ok {
			return
		}
		token = req.RefreshToken
	}

	res, err := h.auth.Refresh(ctx, token)
	if err != nil {
		h.logger.WarnContext(ctx, "refresh failed",
			"error", err,
			"request_id", requestID,
		)
		h.clearCookies(w)
		httputil.WriteError(w, err)
		return
	}

	h.writeSession(w, res)
}

// HandleLogout retires the refresh token and clears both cookies. It
// succeeds whether or not a valid token was presented.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.auth.Logout(ctx, h.cookieValue(r, h.cookies.RefreshName)); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	h.clearCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandlePasswordResetRequest always answers 202 with the same body for a
// well-formed request, so the response does not reveal whether the email
// belongs to a principal.
func (h *Handler) HandlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.PasswordResetRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.auth.RequestPasswordReset(ctx, req.Email, r.Header.Get(tenantmw.HeaderTenantID)); err != nil {
		h.logger.WarnContext(ctx, "password reset request rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, &models.AcceptedResponse{Status: "accepted"})
}

func (h *Handler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.PasswordResetConfirm](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.auth.ConfirmPasswordReset(ctx, req, r.Header.Get(tenantmw.HeaderTenantID)); err != nil {
		h.logger.WarnContext(ctx, "password reset confirm failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the caller as seen inside the resolved tenant.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tenantID, err := httputil.RequireTenant(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "me requested without tenant context",
			"principal_id", principal.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	res, err := h.auth.Me(ctx, principal.ID, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "me failed",
			"error", err,
			"principal_id", principal.ID.String(),
			"tenant_id", tenantID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) writeSession(w http.ResponseWriter, res *models.LoginResult) {
	h.setCookie(w, h.cookies.AccessName, res.AccessToken, int(h.cookies.AccessMaxAge.Seconds()))
	h.setCookie(w, h.cookies.RefreshName, res.RefreshToken, int(h.cookies.RefreshMaxAge.Seconds()))
	httputil.WriteJSON(w, http.StatusOK, &models.SessionResponse{
		PrincipalID: res.PrincipalID.String(),
		TenantID:    res.TenantID.String(),
		Role:        string(res.Role),
		ExpiresAt:   res.AccessExpiresAt,
	})
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	h.setCookie(w, h.cookies.AccessName, "", -1)
	h.setCookie(w, h.cookies.RefreshName, "", -1)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
