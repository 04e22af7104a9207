package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthHandler serves the token-based API authentication endpoints.
type AuthHandler struct {
	users    *service.UserService
	sessions *service.SessionService
	tokens   *service.TokenService
	logger   *slog.Logger
}

func NewAuthHandler(
	users *service.UserService,
	sessions *service.SessionService,
	tokens *service.TokenService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, tokens: tokens, logger: logger}
}

// Register creates a user account. POST /api/auth/register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Detail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Detail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		h.logger.ErrorContext(r.Context(), "register user", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	observability.Audit(r, "auth.register", "user_id", user.ID)
	response.JSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"email": user.Email,
	})
}

// Login verifies credentials and issues a token pair; the response body
// carries the refresh token, which the client exchanges for an access
// token separately. POST /api/auth/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _, err := h.sessions.Login(r.Context(), req.Email, req.Password, false)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "auth.login.failed")
			response.Detail(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.ErrorContext(r.Context(), "login", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue token pair", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Login failed")
		return
	}

	observability.Audit(r, "auth.login", "user_id", user.ID)
	response.JSON(w, http.StatusOK, map[string]string{
		"refresh_token": token.RefreshToken,
	})
}

// AccessToken exchanges a refresh token for its current access token.
// GET /api/auth/access/token/?refresh_token=...
func (h *AuthHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh_token")
	if refresh == "" {
		response.Detail(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	token, err := h.tokens.Exchange(r.Context(), refresh)
	if err != nil {
		h.writeTokenError(w, r, err, http.StatusNotFound)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"access_token": token.AccessToken,
	})
}

// Refresh rotates the access half of a token pair. POST /api/auth/refresh/
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.Detail(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	token, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeTokenError(w, r, err, http.StatusUnauthorized)
		return
	}

	observability.Audit(r, "auth.refresh", "user_id", token.UserID)
	response.JSON(w, http.StatusOK, map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
	})
}

// Me returns the authenticated caller. GET /api/auth/me/
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		response.Denial(w, authz.Deny(authz.ReasonAuthenticationRequired))
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"user": user})
}

// Logout deactivates and blacklists the caller's token pair ahead of its
// natural expiry. POST /api/auth/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.CurrentToken(r.Context())
	if token == nil {
		response.Denial(w, authz.Deny(authz.ReasonAuthenticationRequired))
		return
	}
	if err := h.tokens.Revoke(r.Context(), token.AccessToken); err != nil {
		h.logger.ErrorContext(r.Context(), "revoke token", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	observability.Audit(r, "auth.logout", "user_id", token.UserID)
	response.JSON(w, http.StatusOK, map[string]string{"detail": "Logged out"})
}

// writeTokenError renders token-service failures: typed denials keep
// their own status (not-found may be overridden for the exchange
// endpoint), anything else is a 500.
func (h *AuthHandler) writeTokenError(w http.ResponseWriter, r *http.Request, err error, notFoundStatus int) {
	var denial *authz.Denial
	if errors.As(err, &denial) {
		status := denial.Status
		if denial.Reason == authz.ReasonTokenNotFound {
			status = notFoundStatus
		}
		response.Detail(w, status, denial.Detail)
		return
	}
	h.logger.ErrorContext(r.Context(), "token operation", "error", err)
	response.Detail(w, http.StatusInternalServerError, "Token operation failed")
}
