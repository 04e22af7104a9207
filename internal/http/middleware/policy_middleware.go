package middleware

import (
	"context"
	"net/http"
	"strings"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/http/response"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/service"

	"github.com/go-chi/chi/v5"
)

const resourceContextKey contextKey = 100

// ResourceID returns the resource identifier the route policy extracted
// from the URL, or "" when the route declares none.
func ResourceID(ctx context.Context) string {
	id, _ := ctx.Value(resourceContextKey).(string)
	return id
}

// RoutePolicy declares what a route demands beyond authentication.
// Level and Permissions cover the common cases; Tree carries composed
// checks that do not fit either.
type RoutePolicy struct {
	Level         authz.AccessLevel
	Permissions   []string
	ResourceParam string
	Tree          *authz.Policy
}

// PolicyDeps wires the access-policy middleware.
type PolicyDeps struct {
	Resolver        *service.CachedPermissionResolver
	AdminPathPrefix string
	AdminLoginPath  string
}

// RequireAccess enforces a route's declared policy against the identity
// UnifiedAuth attached. Runs after authentication; a missing identity on
// a non-public route means the route was misregistered as exempt, and is
// denied rather than trusted.
func RequireAccess(deps PolicyDeps, rp RoutePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rp.Level == authz.Public && len(rp.Permissions) == 0 && rp.Tree == nil {
				next.ServeHTTP(w, withResourceParam(r, rp.ResourceParam))
				return
			}

			user := CurrentUser(r.Context())
			if user == nil {
				if strings.HasPrefix(r.URL.Path, deps.AdminPathPrefix) {
					http.Redirect(w, r, deps.AdminLoginPath, http.StatusFound)
					return
				}
				response.Denial(w, authz.Deny(authz.ReasonAuthenticationRequired))
				return
			}

			if denial := authz.CheckLevel(user, rp.Level); denial != nil {
				observability.Audit(r, "authz.denied", "user_id", user.ID, "reason", string(denial.Reason))
				response.Denial(w, denial)
				return
			}

			var held []string
			if len(rp.Permissions) > 0 || rp.Tree != nil {
				if !user.IsSuperuser {
					var err error
					held, err = deps.Resolver.ResolvePermissions(r.Context(), user.ID)
					if err != nil {
						response.Detail(w, http.StatusInternalServerError, "Authorization error")
						return
					}
				}
			}

			if denial := authz.CheckPermissions(user, held, rp.Permissions); denial != nil {
				observability.Audit(r, "authz.denied", "user_id", user.ID, "reason", string(denial.Reason))
				response.Denial(w, denial)
				return
			}

			if rp.Tree != nil {
				in := authz.Input{
					User:        user,
					Permissions: held,
					Method:      r.Method,
				}
				if denial := rp.Tree.Evaluate(in); denial != nil {
					observability.Audit(r, "authz.denied", "user_id", user.ID, "reason", string(denial.Reason))
					response.Denial(w, denial)
					return
				}
			}

			next.ServeHTTP(w, withResourceParam(r, rp.ResourceParam))
		})
	}
}

func withResourceParam(r *http.Request, param string) *http.Request {
	if param == "" {
		return r
	}
	id := chi.URLParam(r, param)
	if id == "" {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), resourceContextKey, id))
}
