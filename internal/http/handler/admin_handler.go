package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"
	"directory-admin-service/internal/service"

	"github.com/go-chi/chi/v5"
)

var adminLoginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Admin Login</title></head>
<body>
  <h1>Admin Login</h1>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="post" action="{{.Action}}">
    <label>Email <input type="email" name="email" required></label>
    <label>Password <input type="password" name="password" required></label>
    <button type="submit">Sign in</button>
  </form>
</body>
</html>`))

var adminDashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Admin Dashboard</title></head>
<body>
  <h1>Dashboard</h1>
  <p>Signed in as {{.Email}}</p>
  <ul>
    <li><a href="/admin/users">Users</a></li>
    <li><a href="/admin/logout">Log out</a></li>
  </ul>
</body>
</html>`))

// AdminHandler serves the admin console: login form, dashboard, user
// listing, and the permission management endpoints.
type AdminHandler struct {
	sessions    *service.SessionService
	users       *service.UserService
	permissions *service.PermissionService
	sessionTTL  time.Duration
	loginPath   string
	logger      *slog.Logger
}

func NewAdminHandler(
	sessions *service.SessionService,
	users *service.UserService,
	permissions *service.PermissionService,
	sessionTTL time.Duration,
	loginPath string,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		sessions:    sessions,
		users:       users,
		permissions: permissions,
		sessionTTL:  sessionTTL,
		loginPath:   loginPath,
		logger:      logger,
	}
}

// LoginPage renders the login form. GET /admin/login
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, "")
}

// Login handles the form post: admin logins demand an active superuser.
// POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, "Invalid form submission")
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	user, cookie, err := h.sessions.Login(r.Context(), email, password, true)
	if err != nil {
		var denial *authz.Denial
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			observability.Audit(r, "admin.login.failed")
			h.renderLogin(w, "Invalid email or password")
		case errors.As(err, &denial):
			observability.Audit(r, "admin.login.denied", "reason", string(denial.Reason))
			h.renderLogin(w, "Superuser privileges required")
		default:
			h.logger.ErrorContext(r.Context(), "admin login", "error", err)
			h.renderLogin(w, "Login failed, try again")
		}
		return
	}

	observability.Audit(r, "admin.login", "user_id", user.ID)
	security.SetSessionCookie(w, cookie, h.sessionTTL)
	http.Redirect(w, r, "/admin/dashboard", http.StatusFound)
}

// Logout closes the session and sends the browser back to the login
// page. GET /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := security.GetCookie(r, security.SessionCookieName); raw != "" {
		if err := h.sessions.Logout(r.Context(), raw); err != nil {
			h.logger.WarnContext(r.Context(), "admin logout", "error", err)
		}
	}
	security.ClearSessionCookie(w)
	http.Redirect(w, r, h.loginPath, http.StatusFound)
}

// Dashboard renders the console landing page. GET /admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		http.Redirect(w, r, h.loginPath, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminDashboardTemplate.Execute(w, map[string]string{"Email": user.Email}); err != nil {
		h.logger.ErrorContext(r.Context(), "render dashboard", "error", err)
	}
}

// Users lists accounts with pagination and optional email filtering.
// GET /admin/users?page=1&page_size=20&email=...
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.users.ListUsers(r.Context(), repository.UserListQuery{
		PageRequest: repository.PageRequest{Page: page, PageSize: pageSize},
		Email:       q.Get("email"),
		Status:      q.Get("status"),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list users", "error", err)
		response.Detail(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// GrantPermission assigns a named permission to a user.
// POST /admin/users/{userID}/permissions/{name}
func (h *AdminHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	name := chi.URLParam(r, "name")

	changed, err := h.permissions.Assign(r.Context(), userID, name)
	if err != nil {
		h.writePermissionError(w, r, err)
		return
	}
	observability.Audit(r, "admin.permission.grant", "user_id", userID, "permission", name, "changed", changed)
	response.JSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"permission": name,
		"changed":    changed,
	})
}

// RevokePermission removes a named permission from a user.
// DELETE /admin/users/{userID}/permissions/{name}
func (h *AdminHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	name := chi.URLParam(r, "name")

	changed, err := h.permissions.Revoke(r.Context(), userID, name)
	if err != nil {
		h.writePermissionError(w, r, err)
		return
	}
	observability.Audit(r, "admin.permission.revoke", "user_id", userID, "permission", name, "changed", changed)
	response.JSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"permission": name,
		"changed":    changed,
	})
}

// ListPermissions returns a user's permission names sorted alphabetically.
// GET /admin/users/{userID}/permissions
func (h *AdminHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	names, err := h.permissions.List(r.Context(), userID)
	if err != nil {
		h.writePermissionError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": names,
	})
}

func (h *AdminHandler) writePermissionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrUserNotFound) {
		response.Detail(w, http.StatusNotFound, "User not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "permission operation", "error", err)
	response.Detail(w, http.StatusInternalServerError, "Permission operation failed")
}

func (h *AdminHandler) renderLogin(w http.ResponseWriter, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if errMsg != "" {
		w.WriteHeader(http.StatusUnauthorized)
	}
	err := adminLoginTemplate.Execute(w, map[string]string{
		"Action": h.loginPath,
		"Error":  errMsg,
	})
	if err != nil {
		h.logger.Error("render login page", "error", err)
		fmt.Fprint(w, "login page unavailable")
	}
}
