package router

import (
	"log/slog"
	"net/http"
	"time"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/config"
	"directory-admin-service/internal/http/handler"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies is everything the router needs wired in.
type Dependencies struct {
	Config    *config.Config
	Logger    *slog.Logger
	Auth      middleware.AuthDeps
	Resolver  *service.CachedPermissionResolver
	AuthH     *handler.AuthHandler
	AdminH    *handler.AdminHandler
	DirH      *handler.DirectoryHandler
	Telemetry bool
}

// Route is one row of the route table: where it lives, who may call it,
// and whether its prefix skips authentication entirely.
type Route struct {
	Method       string
	Pattern      string
	Handler      http.HandlerFunc
	Policy       middleware.RoutePolicy
	ExemptPrefix string
}

func routeTable(d Dependencies) []Route {
	return []Route{
		// Token API. Register/login/exchange/refresh are exempt; the rest
		// require a bearer token.
		{Method: http.MethodPost, Pattern: "/api/auth/register/", Handler: d.AuthH.Register, ExemptPrefix: "/api/auth/register/"},
		{Method: http.MethodPost, Pattern: "/api/auth/login/", Handler: d.AuthH.Login, ExemptPrefix: "/api/auth/login/"},
		{Method: http.MethodGet, Pattern: "/api/auth/access/token/", Handler: d.AuthH.AccessToken, ExemptPrefix: "/api/auth/access/token/"},
		{Method: http.MethodPost, Pattern: "/api/auth/refresh/", Handler: d.AuthH.Refresh, ExemptPrefix: "/api/auth/refresh/"},
		{Method: http.MethodGet, Pattern: "/api/auth/me/", Handler: d.AuthH.Me, Policy: middleware.RoutePolicy{Level: authz.Authenticated}},
		{Method: http.MethodPost, Pattern: "/api/auth/logout/", Handler: d.AuthH.Logout, Policy: middleware.RoutePolicy{Level: authz.Authenticated}},
		{Method: http.MethodGet, Pattern: "/api/users/me/", Handler: d.AuthH.Me, Policy: middleware.RoutePolicy{Level: authz.Authenticated}},

		// Directory API. Reads need authentication only; mutations add the
		// ownership rule inside the handler after loading the record.
		{Method: http.MethodGet, Pattern: "/api/departments/", Handler: d.DirH.ListDepartments, Policy: middleware.RoutePolicy{Level: authz.Authenticated}},
		{Method: http.MethodPost, Pattern: "/api/departments/", Handler: d.DirH.CreateDepartment, Policy: middleware.RoutePolicy{Level: authz.Authenticated, Permissions: []string{"departments.write"}}},
		{Method: http.MethodGet, Pattern: "/api/departments/{departmentID}", Handler: d.DirH.GetDepartment, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "departmentID"}},
		{Method: http.MethodPut, Pattern: "/api/departments/{departmentID}", Handler: d.DirH.UpdateDepartment, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "departmentID"}},
		{Method: http.MethodDelete, Pattern: "/api/departments/{departmentID}", Handler: d.DirH.DeleteDepartment, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "departmentID"}},
		{Method: http.MethodGet, Pattern: "/api/locations/", Handler: d.DirH.ListLocations, Policy: middleware.RoutePolicy{Level: authz.Authenticated}},
		{Method: http.MethodPost, Pattern: "/api/locations/", Handler: d.DirH.CreateLocation, Policy: middleware.RoutePolicy{Level: authz.Authenticated, Permissions: []string{"locations.write"}}},
		{Method: http.MethodGet, Pattern: "/api/locations/{locationID}", Handler: d.DirH.GetLocation, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "locationID"}},
		{Method: http.MethodPut, Pattern: "/api/locations/{locationID}", Handler: d.DirH.UpdateLocation, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "locationID"}},
		{Method: http.MethodDelete, Pattern: "/api/locations/{locationID}", Handler: d.DirH.DeleteLocation, Policy: middleware.RoutePolicy{Level: authz.Authenticated, ResourceParam: "locationID"}},

		// Admin console. The login page is exempt; everything else rides on
		// the admin branch of the auth middleware plus a superuser policy.
		{Method: http.MethodGet, Pattern: "/admin/login", Handler: d.AdminH.LoginPage, ExemptPrefix: "/admin/login"},
		{Method: http.MethodPost, Pattern: "/admin/login", Handler: d.AdminH.Login, ExemptPrefix: "/admin/login"},
		{Method: http.MethodGet, Pattern: "/admin/logout", Handler: d.AdminH.Logout},
		{Method: http.MethodGet, Pattern: "/admin/dashboard", Handler: d.AdminH.Dashboard, Policy: middleware.RoutePolicy{Level: authz.Superuser}},
		{Method: http.MethodGet, Pattern: "/admin/users", Handler: d.AdminH.Users, Policy: middleware.RoutePolicy{Level: authz.Superuser}},
		{Method: http.MethodGet, Pattern: "/admin/users/{userID}/permissions", Handler: d.AdminH.ListPermissions, Policy: middleware.RoutePolicy{Level: authz.Superuser}},
		{Method: http.MethodPost, Pattern: "/admin/users/{userID}/permissions/{name}", Handler: d.AdminH.GrantPermission, Policy: middleware.RoutePolicy{Level: authz.Superuser}},
		{Method: http.MethodDelete, Pattern: "/admin/users/{userID}/permissions/{name}", Handler: d.AdminH.RevokePermission, Policy: middleware.RoutePolicy{Level: authz.Superuser}},
	}
}

// New builds the full HTTP handler: middleware chain, route table, and
// health endpoints. Exempt prefixes declared by routes are registered
// with the auth middleware before it sees its first request.
func New(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger(d.Logger))
	r.Use(middleware.SecurityHeaders)
	if len(d.Config.CORSOrigins) > 0 {
		r.Use(middleware.CORS(d.Config.CORSOrigins))
	}
	r.Use(middleware.BodyLimit(d.Config.BodyLimitBytes))
	r.Use(middleware.UnifiedAuth(d.Auth))

	table := routeTable(d)
	for _, route := range table {
		if route.ExemptPrefix != "" {
			d.Auth.Exempt.Register(route.ExemptPrefix)
		}
	}

	policyDeps := middleware.PolicyDeps{
		Resolver:        d.Resolver,
		AdminPathPrefix: d.Config.AdminPathPrefix,
		AdminLoginPath:  d.Config.AdminLoginPath,
	}
	authLimiter := middleware.NewRateLimiter(d.Config.AuthRateLimitRPM, time.Minute)
	apiLimiter := middleware.NewRateLimiter(d.Config.APIRateLimitRPM, time.Minute)

	for _, route := range table {
		h := http.Handler(route.Handler)
		h = middleware.RequireAccess(policyDeps, route.Policy)(h)
		if isAuthEntryPoint(route.Pattern) {
			h = authLimiter.Middleware()(h)
		} else {
			h = apiLimiter.Middleware()(h)
		}
		r.Method(route.Method, route.Pattern, h)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if d.Telemetry {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}

func isAuthEntryPoint(pattern string) bool {
	switch pattern {
	case "/api/auth/register/", "/api/auth/login/", "/admin/login":
		return true
	}
	return false
}
