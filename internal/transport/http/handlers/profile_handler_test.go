package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	profilesvc "github.com/thecompanyunltd/nightvibe/internal/services/profiles"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
)

type directoryUsers struct {
	users map[string]model.User
	views map[string]int64
}

func (d *directoryUsers) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *directoryUsers) Get(_ context.Context, id string) (model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (d *directoryUsers) Update(context.Context, string, model.UserPatch) error { return nil }

func (d *directoryUsers) Increment(_ context.Context, id string, _ model.Counter, by int64) error {
	d.views[id] += by
	return nil
}

func newProfileFixture(t *testing.T) (*ProfileHandler, *directoryUsers) {
	t.Helper()
	aged := func(id string, age int) model.User {
		return model.User{
			ID:          id,
			Username:    "user-" + id,
			Stats:       model.Stats{Age: age, Position: "top"},
			Preferences: model.DefaultPreferences(),
		}
	}
	users := &directoryUsers{
		users: map[string]model.User{
			"me": aged("me", 30),
			"a":  aged("a", 22),
			"b":  aged("b", 25),
			"c":  aged("c", 34),
			"d":  aged("d", 35),
		},
		views: map[string]int64{},
	}
	svc := profilesvc.NewService(profilesvc.Dependencies{Users: users})
	return NewProfileHandler(svc, nil), users
}

func TestProfileHandlerListFiltersByAgeRange(t *testing.T) {
	h, _ := newProfileFixture(t)

	rr := httptest.NewRecorder()
	h.List(rr, withUser(httptest.NewRequest(http.MethodGet, "/v1/profiles?age=25-34", nil), "me"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp dto.ProfilesListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode profiles: %v", err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, p := range resp.Items {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	if strings.Join(ids, ",") != "b,c" {
		t.Fatalf("unexpected profiles for 25-34: %v", ids)
	}
}

func TestProfileHandlerListRejectsBadAgeRange(t *testing.T) {
	h, _ := newProfileFixture(t)

	rr := httptest.NewRecorder()
	h.List(rr, withUser(httptest.NewRequest(http.MethodGet, "/v1/profiles?age=old", nil), "me"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestProfileHandlerGetCountsViews(t *testing.T) {
	h, users := newProfileFixture(t)

	get := func(id string) *httptest.ResponseRecorder {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req := withUser(httptest.NewRequest(http.MethodGet, "/v1/profiles/"+id, nil), "me")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rr := httptest.NewRecorder()
		h.Get(rr, req)
		return rr
	}

	if rr := get("b"); rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if users.views["b"] != 1 {
		t.Fatalf("expected one counted view, got %d", users.views["b"])
	}
	if rr := get("me"); rr.Code != http.StatusOK || users.views["me"] != 0 {
		t.Fatalf("own profile view must not count: status=%d views=%d", rr.Code, users.views["me"])
	}
	if rr := get("ghost"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown profile: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestProfileHandlerExportIsAttachment(t *testing.T) {
	h, _ := newProfileFixture(t)

	rr := httptest.NewRecorder()
	h.Export(rr, withUser(httptest.NewRequest(http.MethodGet, "/v1/me/export", nil), "me"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
	if !json.Valid(rr.Body.Bytes()) {
		t.Fatalf("export body is not JSON")
	}
}

func TestHealthHandlerReportsDegradedStore(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "degraded" || body.Checks["mongo"] != "ok" || body.Checks["redis"] == "ok" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}
