package apiapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	redrepo "github.com/thecompanyunltd/nightvibe/internal/repo/redis"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

func TestRequireRoleAllowsCaseInsensitiveMatch(t *testing.T) {
	mw := RequireRole("ADMIN", "Moderator")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		UserID: "u1",
		SID:    "sid-1",
		Role:   "moderator",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequireRoleRejectsForbiddenRole(t *testing.T) {
	mw := RequireRole("admin")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		UserID: "u2",
		SID:    "sid-2",
		Role:   "user",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called for forbidden role")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without identity")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func newAuthFixture(t *testing.T, role string) (*authsvc.Service, string) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redrepo.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	sessions := redrepo.NewSessionRepo(client)
	jwt := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	if err := sessions.Create(context.Background(), authsvc.SessionRecord{
		SID:       "sid-1",
		UserID:    "u1",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}, "refresh-1"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	token, _, err := jwt.GenerateAccessToken("u1", "sid-1", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:      jwt,
		Sessions: sessions,
	}, authsvc.Config{RefreshTTL: 24 * time.Hour})
	return svc, token
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	svc, token := newAuthFixture(t, "admin")

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	var got authsvc.Identity
	AuthMiddleware(svc, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = authsvc.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
	if got.UserID != "u1" || got.SID != "sid-1" || got.Role != "admin" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestAuthMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	svc, _ := newAuthFixture(t, "admin")
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called")
	})

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"invalid": "Bearer not-a-jwt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		AuthMiddleware(svc, zap.NewNop())(next).ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: unexpected status: got %d want %d", name, rr.Code, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddlewareAcceptsQueryTokenOnlyForWebsocket(t *testing.T) {
	svc, token := newAuthFixture(t, "admin")
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	plain := httptest.NewRequest(http.MethodGet, "/v1/me?access_token="+token, nil)
	rr := httptest.NewRecorder()
	AuthMiddleware(svc, zap.NewNop())(ok).ServeHTTP(rr, plain)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("plain request: got %d want %d", rr.Code, http.StatusUnauthorized)
	}

	ws := httptest.NewRequest(http.MethodGet, "/v1/messages/stream?access_token="+token, nil)
	ws.Header.Set("Connection", "Upgrade")
	ws.Header.Set("Upgrade", "websocket")
	rr = httptest.NewRecorder()
	AuthMiddleware(svc, zap.NewNop())(ok).ServeHTTP(rr, ws)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("websocket request: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

type stubSettings struct {
	settings model.Settings
	err      error
	calls    int
}

func (s *stubSettings) Get(context.Context) (model.Settings, error) {
	s.calls++
	return s.settings, s.err
}

func TestMaintenanceMiddlewareBlocksWithMessage(t *testing.T) {
	settings := &stubSettings{settings: model.Settings{
		MaintenanceMode:    true,
		MaintenanceMessage: "Back soon",
	}}
	mw := MaintenanceMiddleware(settings, zap.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called during maintenance")
	})

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		mw(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(rr.Body.String(), "Back soon") {
			t.Fatalf("maintenance message missing from body: %s", rr.Body.String())
		}
	}
	if settings.calls != 1 {
		t.Fatalf("settings should be cached, got %d reads", settings.calls)
	}
}

func TestMaintenanceMiddlewarePassesThroughOnReadError(t *testing.T) {
	mw := MaintenanceMiddleware(&stubSettings{err: errors.New("mongo down")}, zap.NewNop())
	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestIPRateLimiterThrottlesPerAddress(t *testing.T) {
	limiter := NewIPRateLimiter(60, zap.NewNop())
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < ipLimiterBurst; i++ {
		if rr := send("10.0.0.1:5000"); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: got %d want %d", i, rr.Code, http.StatusNoContent)
		}
	}
	rr := send("10.0.0.1:5001")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: got %d want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After header missing")
	}
	if rr := send("10.0.0.2:5000"); rr.Code != http.StatusNoContent {
		t.Fatalf("other address: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestIPRateLimiterPrunesIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(60, zap.NewNop())
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.limiter("10.0.0.1")

	now = now.Add(visitorIdle + time.Second)
	limiter.prune()

	if len(limiter.visitors) != 0 {
		t.Fatalf("expected idle visitor to be pruned, got %d", len(limiter.visitors))
	}
}
