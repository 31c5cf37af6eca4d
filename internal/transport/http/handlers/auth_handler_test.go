package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	redrepo "github.com/thecompanyunltd/nightvibe/internal/repo/redis"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
)

type memoryAccounts struct {
	mu       sync.Mutex
	byUserID map[string]authsvc.Account
}

func (m *memoryAccounts) CreateAccount(_ context.Context, a authsvc.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byUserID {
		if strings.EqualFold(existing.Email, a.Email) {
			return authsvc.ErrUsernameTaken
		}
	}
	m.byUserID[a.UserID] = a
	return nil
}

func (m *memoryAccounts) AccountByEmail(_ context.Context, email string) (authsvc.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byUserID {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return authsvc.Account{}, authsvc.ErrUserNotFound
}

func (m *memoryAccounts) AccountByUserID(_ context.Context, userID string) (authsvc.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byUserID[userID]
	if !ok {
		return authsvc.Account{}, authsvc.ErrUserNotFound
	}
	return a, nil
}

func (m *memoryAccounts) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byUserID[userID]
	a.PasswordHash = hash
	m.byUserID[userID] = a
	return nil
}

func (m *memoryAccounts) DeleteAccount(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUserID, userID)
	return nil
}

type memoryProfiles struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memoryProfiles) Get(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memoryProfiles) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryProfiles) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memoryProfiles) Update(context.Context, string, model.UserPatch) error { return nil }

type fixedSettings struct {
	settings model.Settings
}

func (s fixedSettings) Get(context.Context) (model.Settings, error) { return s.settings, nil }

func newAuthHandlerFixture(t *testing.T, settings model.Settings) *AuthHandler {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:      authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Sessions: redrepo.NewSessionRepo(redisClient),
		Accounts: &memoryAccounts{byUserID: map[string]authsvc.Account{}},
		Users:    &memoryProfiles{users: map[string]model.User{}},
		Settings: fixedSettings{settings: settings},
		Attempts: redrepo.NewRateRepo(redisClient),
	}, authsvc.Config{
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	return NewAuthHandler(svc, nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw)))
	return rr
}

func validRegistration() dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:           "alex",
		Password:           "secret1",
		RealName:           "Alex Doe",
		Phone:              "+15551234567",
		Age:                29,
		Position:           "vers",
		RelationshipStatus: "single",
	}
}

func TestAuthHandlerRegisterThenLogin(t *testing.T) {
	h := newAuthHandlerFixture(t, model.DefaultSettings())

	rr := postJSON(t, h.Register, "/v1/auth/register", validRegistration())
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected register status: got %d want %d body=%s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var registered dto.AuthTokensResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.AccessToken == "" || registered.RefreshToken == "" {
		t.Fatalf("expected tokens in register response")
	}
	if registered.Me.Username != "alex" || registered.Me.Role != "user" {
		t.Fatalf("unexpected me: %+v", registered.Me)
	}

	rr = postJSON(t, h.Register, "/v1/auth/register", validRegistration())
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: got %d want %d", rr.Code, http.StatusConflict)
	}

	rr = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Username: "alex", Password: "wrong-pass"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Username: "alex", Password: "secret1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: got %d want %d body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestAuthHandlerRegisterValidatesFields(t *testing.T) {
	h := newAuthHandlerFixture(t, model.DefaultSettings())

	rr := postJSON(t, h.Register, "/v1/auth/register", map[string]any{"username": "alex"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	var payload struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "VALIDATION_ERROR" || payload.Fields["password"] == "" {
		t.Fatalf("expected password field error, got %+v", payload)
	}

	under := validRegistration()
	under.Age = 17
	if rr := postJSON(t, h.Register, "/v1/auth/register", under); rr.Code != http.StatusBadRequest {
		t.Fatalf("underage: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAuthHandlerRegisterClosed(t *testing.T) {
	settings := model.DefaultSettings()
	settings.AllowRegistrations = false
	h := newAuthHandlerFixture(t, settings)

	rr := postJSON(t, h.Register, "/v1/auth/register", validRegistration())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestAuthHandlerLoginLocksAfterFailures(t *testing.T) {
	settings := model.DefaultSettings()
	settings.MaxLoginAttempts = 2
	h := newAuthHandlerFixture(t, settings)

	if rr := postJSON(t, h.Register, "/v1/auth/register", validRegistration()); rr.Code != http.StatusCreated {
		t.Fatalf("register: got %d want %d", rr.Code, http.StatusCreated)
	}
	for i := 0; i < 2; i++ {
		_ = postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Username: "alex", Password: "nope-nope"})
	}

	rr := postJSON(t, h.Login, "/v1/auth/login", dto.LoginRequest{Username: "alex", Password: "secret1"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After header missing")
	}
}
