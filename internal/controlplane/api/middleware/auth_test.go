package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func newJWT(t *testing.T, accessTTL time.Duration) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret, Issuer: "test", AccessTokenDuration: accessTTL})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}
	return svc
}

func issue(t *testing.T, svc *auth.JWTService, role models.UserRole) *auth.TokenPair {
	t.Helper()
	pair, err := svc.GenerateTokenPair(&models.User{ID: "u-1", Username: "op", Role: string(role)})
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	return pair
}

// serve runs one request through mw and reports the status and whether the
// inner handler ran.
func serve(mw func(http.Handler) http.Handler, req *http.Request) (int, *auth.Claims, bool) {
	var (
		reached bool
		claims  *auth.Claims
	)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		claims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code, claims, reached
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nexuses", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestGetClaimsFromContext(t *testing.T) {
	if GetClaimsFromContext(context.Background()) != nil {
		t.Error("empty context must carry no claims")
	}
	if GetClaimsFromContext(context.WithValue(context.Background(), claimsContextKey, "bogus")) != nil {
		t.Error("a foreign value must not be returned as claims")
	}

	want := &auth.Claims{UserID: "u-1", Username: "op"}
	if got := GetClaimsFromContext(WithClaims(context.Background(), want)); got != want {
		t.Errorf("GetClaimsFromContext = %+v, want %+v", got, want)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"empty header":      {"", "", false},
		"bearer":            {"Bearer abc123", "abc123", true},
		"lowercase scheme":  {"bearer abc123", "abc123", true},
		"uppercase scheme":  {"BEARER abc123", "abc123", true},
		"scheme only":       {"Bearer", "", false},
		"basic auth":        {"Basic abc123", "", false},
		"no separator":      {"Bearerabc123", "", false},
		"token with spaces": {"Bearer token with spaces", "token with spaces", true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, ok := extractBearerToken(req)
			if ok != tt.ok || token != tt.token {
				t.Errorf("extractBearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, token, ok, tt.token, tt.ok)
			}
		})
	}
}

func TestJWTAuth(t *testing.T) {
	svc := newJWT(t, time.Minute)
	pair := issue(t, svc, models.RoleViewer)
	expired := issue(t, newJWT(t, -time.Minute), models.RoleViewer)
	foreign, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret, Issuer: "elsewhere"})
	if err != nil {
		t.Fatalf("NewJWTService: %v", err)
	}

	tests := map[string]struct {
		token string
		want  int
	}{
		"no header":      {"", http.StatusUnauthorized},
		"garbage":        {"invalid-token", http.StatusUnauthorized},
		"refresh token":  {pair.RefreshToken, http.StatusUnauthorized},
		"expired":        {expired.AccessToken, http.StatusUnauthorized},
		"foreign issuer": {issue(t, foreign, models.RoleAdmin).AccessToken, http.StatusUnauthorized},
		"access token":   {pair.AccessToken, http.StatusOK},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, claims, reached := serve(JWTAuth(svc), bearer(tt.token))
			if code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
			if reached != (tt.want == http.StatusOK) {
				t.Fatalf("handler reached = %v", reached)
			}
			if reached && (claims == nil || claims.Username != "op") {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	svc := newJWT(t, time.Minute)
	chain := func(next http.Handler) http.Handler { return JWTAuth(svc)(RequireAdmin()(next)) }

	if code, _, reached := serve(RequireAdmin(), bearer("")); code != http.StatusUnauthorized || reached {
		t.Errorf("without claims: status %d, reached %v", code, reached)
	}
	if code, _, reached := serve(chain, bearer(issue(t, svc, models.RoleViewer).AccessToken)); code != http.StatusForbidden || reached {
		t.Errorf("viewer: status %d, reached %v", code, reached)
	}
	code, claims, reached := serve(chain, bearer(issue(t, svc, models.RoleAdmin).AccessToken))
	if code != http.StatusOK || !reached || !claims.IsAdmin() {
		t.Errorf("admin: status %d, reached %v, claims %+v", code, reached, claims)
	}
}

func TestTracingPassesThroughWhenDisabled(t *testing.T) {
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pools", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}
