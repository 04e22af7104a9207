package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/security"
	"directory-admin-service/internal/service"
)

type contextKey int

const (
	userContextKey contextKey = iota
	tokenContextKey
)

// CurrentUser returns the authenticated user attached by UnifiedAuth,
// or nil on exempt routes.
func CurrentUser(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userContextKey).(*domain.User)
	return u
}

// CurrentToken returns the bearer token pair behind an API request, or
// nil for session-authenticated and exempt requests.
func CurrentToken(ctx context.Context) *domain.Token {
	t, _ := ctx.Value(tokenContextKey).(*domain.Token)
	return t
}

// AuthDeps wires the unified auth middleware.
type AuthDeps struct {
	Exempt          *ExemptPaths
	Codec           *security.SessionCodec
	Sessions        *service.SessionService
	Tokens          *service.TokenService
	Scheme          string
	AdminPathPrefix string
	AdminLoginPath  string
	Logger          *slog.Logger
}

// UnifiedAuth is the single authentication gate for every route. It
// resolves identity in a fixed order: exempt paths pass untouched; a
// valid session cookie authenticates any path; admin paths fall back to
// a login redirect; everything else requires a bearer token header.
func UnifiedAuth(deps AuthDeps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if deps.Exempt.IsExempt(path) {
				observability.RecordAuthDecision("exempt", "allowed")
				next.ServeHTTP(w, r)
				return
			}

			claims := deps.decodeCookie(r)

			// A live browser session authenticates the request wherever
			// it points; the policy layer still applies afterwards.
			if claims != nil && claims.UserID != "" {
				if user, err := deps.Sessions.Resolve(r.Context(), claims); err == nil {
					observability.RecordAuthDecision("session", "allowed")
					next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
					return
				}
			}

			if strings.HasPrefix(path, deps.AdminPathPrefix) {
				deps.serveAdmin(w, r, claims, next)
				return
			}

			deps.serveAPI(w, r, next)
		})
	}
}

func (d AuthDeps) decodeCookie(r *http.Request) *security.SessionClaims {
	raw := security.GetCookie(r, security.SessionCookieName)
	if raw == "" {
		return nil
	}
	claims, err := d.Codec.Decode(raw)
	if err != nil {
		d.Logger.Debug("session cookie rejected", "error", err)
		return nil
	}
	return claims
}

// serveAdmin guards the admin console: the cookie must carry the admin
// claim pair and resolve to an active superuser, otherwise the browser
// is sent back to the login page with the cookie cleared.
func (d AuthDeps) serveAdmin(w http.ResponseWriter, r *http.Request, claims *security.SessionClaims, next http.Handler) {
	if claims == nil || claims.AdminToken == "" || claims.AdminUserID == "" {
		d.redirectToLogin(w, r)
		return
	}
	user, err := d.Sessions.Resolve(r.Context(), claims)
	if err != nil {
		d.redirectToLogin(w, r)
		return
	}
	if !user.IsSuperuser {
		d.redirectToLogin(w, r)
		return
	}
	observability.RecordAuthDecision("admin", "allowed")
	next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
}

func (d AuthDeps) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	observability.RecordAuthDecision("admin", "redirected")
	security.ClearSessionCookie(w)
	http.Redirect(w, r, d.AdminLoginPath, http.StatusFound)
}

// serveAPI authenticates bearer requests: "<scheme> <token>" in the
// Authorization header, validated against the token store.
func (d AuthDeps) serveAPI(w http.ResponseWriter, r *http.Request, next http.Handler) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		observability.RecordAuthDecision("api", "denied")
		response.Detail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || scheme != d.Scheme || token == "" {
		observability.RecordAuthDecision("api", "denied")
		response.Detail(w, http.StatusUnauthorized, "Invalid authentication format")
		return
	}

	user, pair, err := d.Tokens.ValidateAccess(r.Context(), token)
	if err != nil {
		var denial *authz.Denial
		if errors.As(err, &denial) {
			observability.RecordAuthDecision("api", "denied")
			observability.Audit(r, "auth.denied", "reason", string(denial.Reason))
			response.Detail(w, denial.Status, denial.Detail)
			return
		}
		observability.RecordAuthDecision("api", "error")
		slog.ErrorContext(r.Context(), "validate access token", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	observability.RecordAuthDecision("api", "allowed")
	ctx := withUser(r.Context(), user)
	ctx = context.WithValue(ctx, tokenContextKey, pair)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
