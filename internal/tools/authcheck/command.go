package authcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"directory-admin-service/internal/tools/common"
	"directory-admin-service/internal/tools/ui"
)

type options struct {
	baseURL string
	scheme  string
	ci      bool
}

// NewRootCommand builds the authcheck tool: a smoke test that walks the
// whole token lifecycle against a running instance.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "authcheck", Short: "Smoke-test the token authentication flow"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().StringVar(&opts.scheme, "scheme", "JWT", "Authorization header scheme")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Register, log in, exchange, call /me, refresh, and log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "authcheck run", func(ctx context.Context) ([]string, error) {
				return walkAuthFlow(ctx, *opts)
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "authcheck run", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func walkAuthFlow(ctx context.Context, opts options) ([]string, error) {
	var details []string
	email := fmt.Sprintf("authcheck-%s@example.com", uuid.NewString()[:8])
	password := uuid.NewString()

	if _, err := postJSON(ctx, opts, "/api/auth/register/", map[string]string{
		"email": email, "password": password,
	}, http.StatusCreated, ""); err != nil {
		return details, fmt.Errorf("register: %w", err)
	}
	details = append(details, "register: ok")

	loginBody, err := postJSON(ctx, opts, "/api/auth/login/", map[string]string{
		"email": email, "password": password,
	}, http.StatusOK, "")
	if err != nil {
		return details, fmt.Errorf("login: %w", err)
	}
	refreshToken := loginBody["refresh_token"]
	if refreshToken == "" {
		return details, fmt.Errorf("login: no refresh_token in response")
	}
	details = append(details, "login: ok")

	exchangeBody, err := getJSON(ctx, opts,
		"/api/auth/access/token/?refresh_token="+url.QueryEscape(refreshToken), http.StatusOK, "")
	if err != nil {
		return details, fmt.Errorf("access token exchange: %w", err)
	}
	accessToken := exchangeBody["access_token"]
	if accessToken == "" {
		return details, fmt.Errorf("access token exchange: no access_token in response")
	}
	details = append(details, "access token exchange: ok")

	if _, err := getJSON(ctx, opts, "/api/auth/me/", http.StatusOK, accessToken); err != nil {
		return details, fmt.Errorf("me: %w", err)
	}
	details = append(details, "me: ok")

	refreshBody, err := postJSON(ctx, opts, "/api/auth/refresh/", map[string]string{
		"refresh_token": refreshToken,
	}, http.StatusOK, "")
	if err != nil {
		return details, fmt.Errorf("refresh: %w", err)
	}
	rotated := refreshBody["access_token"]
	if rotated == "" || rotated == accessToken {
		return details, fmt.Errorf("refresh: access token was not rotated")
	}
	details = append(details, "refresh: ok, access token rotated")

	if _, err := postJSON(ctx, opts, "/api/auth/logout/", nil, http.StatusOK, rotated); err != nil {
		return details, fmt.Errorf("logout: %w", err)
	}
	details = append(details, "logout: ok")

	if _, err := getJSON(ctx, opts, "/api/auth/me/", http.StatusUnauthorized, rotated); err != nil {
		return details, fmt.Errorf("post-logout check: %w", err)
	}
	details = append(details, "post-logout token rejected: ok")

	return details, nil
}

func postJSON(ctx context.Context, opts options, path string, payload any, wantStatus int, token string) (map[string]string, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	return doJSON(ctx, opts, http.MethodPost, path, body, wantStatus, token)
}

func getJSON(ctx context.Context, opts options, path string, wantStatus int, token string) (map[string]string, error) {
	return doJSON(ctx, opts, http.MethodGet, path, nil, wantStatus, token)
}

func doJSON(ctx context.Context, opts options, method, path string, body io.Reader, wantStatus int, token string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, method, opts.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", opts.scheme+" "+token)
	}

	resp, err := (&http.Client{Timeout: 20 * time.Second}).Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("%s %s: got %s, want %d (body: %s)", method, path, resp.Status, wantStatus, raw)
	}

	out := map[string]string{}
	var generic map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &generic) == nil {
		for k, v := range generic {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out, nil
}
