package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"directory-admin-service/internal/config"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/http/handler"
	"directory-admin-service/internal/http/middleware"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"
	"directory-admin-service/internal/service"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	handler     http.Handler
	users       *service.UserService
	permissions *service.PermissionService
	userRepo    repository.UserRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Profile:                 "dev",
		TokenSecret:             "test-token-secret",
		SessionSecret:           "test-session-secret",
		AccessTokenTTL:          26 * time.Hour,
		RefreshTokenTTL:         7 * 24 * time.Hour,
		RefreshRenewalThreshold: 24 * time.Hour,
		AuthHeaderScheme:        "JWT",
		SessionTTL:              12 * time.Hour,
		PermissionCacheTTL:      time.Minute,
		AdminPathPrefix:         "/admin",
		AdminLoginPath:          "/admin/login",
		ExemptPaths:             []string{"/health"},
		AuthRateLimitRPM:        1000,
		APIRateLimitRPM:         10000,
		BodyLimitBytes:          1 << 20,
		BcryptCost:              4,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Permission{}, &domain.Token{}, &domain.BlacklistToken{},
		&domain.Session{}, &domain.Department{}, &domain.Location{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	opaque := security.NewOpaqueTokens(cfg.TokenSecret)
	codec := security.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL)
	cache := service.NewInMemoryPermissionCacheStore()

	users := service.NewUserService(userRepo, hasher, log)
	sessions := service.NewSessionService(userRepo, sessionRepo, hasher, codec, cfg.SessionTTL, log)
	tokens := service.NewTokenService(opaque, userRepo, tokenRepo,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RefreshRenewalThreshold, log)
	permissions := service.NewPermissionService(userRepo, permRepo, cache, log)
	directory := service.NewDirectoryService(departmentRepo, locationRepo, log)
	resolver := service.NewCachedPermissionResolver(cache, permRepo, cfg.PermissionCacheTTL)

	h := New(Dependencies{
		Config: cfg,
		Logger: log,
		Auth: middleware.AuthDeps{
			Exempt:          middleware.NewExemptPaths(cfg.ExemptPaths...),
			Codec:           codec,
			Sessions:        sessions,
			Tokens:          tokens,
			Scheme:          cfg.AuthHeaderScheme,
			AdminPathPrefix: cfg.AdminPathPrefix,
			AdminLoginPath:  cfg.AdminLoginPath,
			Logger:          log,
		},
		Resolver: resolver,
		AuthH:    handler.NewAuthHandler(users, sessions, tokens, log),
		AdminH:   handler.NewAdminHandler(sessions, users, permissions, cfg.SessionTTL, cfg.AdminLoginPath, log),
		DirH:     handler.NewDirectoryHandler(directory, log),
	})

	return &fixture{handler: h, users: users, permissions: permissions, userRepo: userRepo}
}

func (f *fixture) do(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) registerAndLogin(t *testing.T, email string) (accessToken string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/auth/register/",
		map[string]string{"email": email, "password": "pass-1234"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login/",
		map[string]string{"email": email, "password": "pass-1234"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	refresh, _ := decodeJSON(t, rec)["refresh_token"].(string)
	if refresh == "" {
		t.Fatal("login returned no refresh_token")
	}

	rec = f.do(t, http.MethodGet, "/api/auth/access/token/?refresh_token="+url.QueryEscape(refresh), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("exchange: %d %s", rec.Code, rec.Body.String())
	}
	access, _ := decodeJSON(t, rec)["access_token"].(string)
	if access == "" {
		t.Fatal("exchange returned no access_token")
	}
	return access
}

func jwtHeader(token string) map[string]string {
	return map[string]string{"Authorization": "JWT " + token}
}

func TestHealthIsOpen(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenLifecycleFlow(t *testing.T) {
	f := newFixture(t)
	access := f.registerAndLogin(t, "flow@example.com")

	rec := f.do(t, http.MethodGet, "/api/auth/me/", nil, jwtHeader(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}

	// Unknown and malformed credentials are rejected with the API shapes.
	rec = f.do(t, http.MethodGet, "/api/auth/me/", nil, jwtHeader("bogus"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token: %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/auth/me/", nil, map[string]string{"Authorization": "Bearer " + access})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: %d", rec.Code)
	}

	// Logout deactivates the pair; the token stops working.
	rec = f.do(t, http.MethodPost, "/api/auth/logout/", nil, jwtHeader(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/auth/me/", nil, jwtHeader(access))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout me: %d", rec.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register/",
		map[string]string{"email": "rotate@example.com", "password": "pass-1234"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/auth/login/",
		map[string]string{"email": "rotate@example.com", "password": "pass-1234"}, nil)
	refresh, _ := decodeJSON(t, rec)["refresh_token"].(string)

	rec = f.do(t, http.MethodGet, "/api/auth/access/token/?refresh_token="+url.QueryEscape(refresh), nil, nil)
	first, _ := decodeJSON(t, rec)["access_token"].(string)

	rec = f.do(t, http.MethodPost, "/api/auth/refresh/", map[string]string{"refresh_token": refresh}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	second, _ := decodeJSON(t, rec)["access_token"].(string)
	if second == "" || second == first {
		t.Fatalf("access token not rotated: %q -> %q", first, second)
	}

	// Only the rotated access token works now.
	if rec := f.do(t, http.MethodGet, "/api/auth/me/", nil, jwtHeader(first)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale access token: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/auth/me/", nil, jwtHeader(second)); rec.Code != http.StatusOK {
		t.Fatalf("rotated access token: %d", rec.Code)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "dup@example.com")

	rec := f.do(t, http.MethodPost, "/api/auth/register/",
		map[string]string{"email": "dup@example.com", "password": "other"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeJSON(t, rec)["detail"]; got != "Email already registered" {
		t.Fatalf("detail = %v", got)
	}
}

func TestDirectoryOwnership(t *testing.T) {
	f := newFixture(t)
	ownerAccess := f.registerAndLogin(t, "owner@example.com")
	otherAccess := f.registerAndLogin(t, "other@example.com")

	owner, err := f.userRepo.FindByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("find owner: %v", err)
	}
	other, err := f.userRepo.FindByEmail(context.Background(), "other@example.com")
	if err != nil {
		t.Fatalf("find other: %v", err)
	}
	for _, id := range []string{owner.ID, other.ID} {
		if _, err := f.permissions.Assign(context.Background(), id, "departments.write"); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	rec := f.do(t, http.MethodPost, "/api/departments/",
		map[string]string{"name": "Engineering"}, jwtHeader(ownerAccess))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create department: %d %s", rec.Code, rec.Body.String())
	}
	deptID, _ := decodeJSON(t, rec)["id"].(string)

	// Reads are open to any authenticated user.
	rec = f.do(t, http.MethodGet, "/api/departments/"+deptID, nil, jwtHeader(otherAccess))
	if rec.Code != http.StatusOK {
		t.Fatalf("read by non-owner: %d", rec.Code)
	}

	// Mutations require ownership.
	rec = f.do(t, http.MethodPut, "/api/departments/"+deptID,
		map[string]string{"name": "Hijacked"}, jwtHeader(otherAccess))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("update by non-owner: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPut, "/api/departments/"+deptID,
		map[string]string{"name": "Engineering Platform"}, jwtHeader(ownerAccess))
	if rec.Code != http.StatusOK {
		t.Fatalf("update by owner: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, "/api/departments/"+deptID, nil, jwtHeader(otherAccess))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete by non-owner: %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/api/departments/"+deptID, nil, jwtHeader(ownerAccess))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete by owner: %d", rec.Code)
	}
}

func TestPermissionGatedCreate(t *testing.T) {
	f := newFixture(t)
	access := f.registerAndLogin(t, "noperm@example.com")

	rec := f.do(t, http.MethodPost, "/api/departments/",
		map[string]string{"name": "Blocked"}, jwtHeader(access))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["error"] != "permission_missing" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestAdminConsoleFlow(t *testing.T) {
	f := newFixture(t)

	if _, err := f.users.CreateSuperuser(context.Background(), "root@example.com", "root-pass"); err != nil {
		t.Fatalf("create superuser: %v", err)
	}

	// Unauthenticated admin traffic bounces to the login page.
	rec := f.do(t, http.MethodGet, "/admin/dashboard", nil, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Fatalf("dashboard without session: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	// The login page itself is exempt.
	rec = f.do(t, http.MethodGet, "/admin/login", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login page: %d", rec.Code)
	}

	// Superuser form login sets the session cookie and redirects.
	form := url.Values{"email": {"root@example.com"}, "password": {"root-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()
	f.handler.ServeHTTP(loginRec, req)
	if loginRec.Code != http.StatusFound {
		t.Fatalf("admin login: %d %s", loginRec.Code, loginRec.Body.String())
	}
	var sessionCookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == security.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("no session cookie set on admin login")
	}

	// The cookie opens the dashboard and the user listing.
	for _, path := range []string{"/admin/dashboard", "/admin/users"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(sessionCookie)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestAdminLoginRejectsNonSuperuser(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "plain@example.com")

	form := url.Values{"email": {"plain@example.com"}, "password": {"pass-1234"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Superuser privileges required") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAdminPermissionEndpoints(t *testing.T) {
	f := newFixture(t)

	if _, err := f.users.CreateSuperuser(context.Background(), "root@example.com", "root-pass"); err != nil {
		t.Fatalf("create superuser: %v", err)
	}
	f.registerAndLogin(t, "subject@example.com")
	subject, err := f.userRepo.FindByEmail(context.Background(), "subject@example.com")
	if err != nil {
		t.Fatalf("find subject: %v", err)
	}

	form := url.Values{"email": {"root@example.com"}, "password": {"root-pass"}}
	loginReq := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	loginReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()
	f.handler.ServeHTTP(loginRec, loginReq)
	var cookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == security.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no admin session cookie")
	}

	adminDo := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	base := "/admin/users/" + subject.ID + "/permissions"
	rec := adminDo(http.MethodPost, base+"/reports.read")
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: %d %s", rec.Code, rec.Body.String())
	}

	rec = adminDo(http.MethodGet, base)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reports.read") {
		t.Fatalf("list body = %s", rec.Body.String())
	}

	rec = adminDo(http.MethodDelete, base+"/reports.read")
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: %d %s", rec.Code, rec.Body.String())
	}
	rec = adminDo(http.MethodGet, base)
	if strings.Contains(rec.Body.String(), "reports.read") {
		t.Fatalf("permission survived revoke: %s", rec.Body.String())
	}
}
