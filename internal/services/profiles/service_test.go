package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type memoryUserStore struct {
	users map[string]model.User
	order []string
}

func newMemoryUserStore(users ...model.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[string]model.User)}
	for _, u := range users {
		s.users[u.ID] = u
		s.order = append(s.order, u.ID)
	}
	return s
}

func (s *memoryUserStore) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *memoryUserStore) Get(_ context.Context, id string) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (s *memoryUserStore) Update(_ context.Context, id string, p model.UserPatch) error {
	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if p.Age != nil {
		u.Stats.Age = *p.Age
	}
	if p.Position != nil {
		u.Stats.Position = *p.Position
	}
	if p.About != nil {
		u.About = *p.About
	}
	if p.LastActive != nil {
		u.LastActive = p.LastActive
	}
	for name, v := range p.Preferences {
		switch name {
		case model.PrefShowAge:
			u.Preferences.ShowAge = v
		case model.PrefReceiveMessages:
			u.Preferences.ReceiveMessages = v
		}
	}
	s.users[id] = u
	return nil
}

func (s *memoryUserStore) Increment(_ context.Context, id string, counter model.Counter, by int64) error {
	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if counter == model.CounterProfileViews {
		u.ProfileViews += by
	}
	s.users[id] = u
	return nil
}

type memoryTargets map[string]string

func (m memoryTargets) Set(_ context.Context, sid, target string) error {
	m[sid] = target
	return nil
}

func (m memoryTargets) Get(_ context.Context, sid string) (string, error) {
	return m[sid], nil
}

func member(id string, age int, position, status string) model.User {
	return model.User{
		ID:          id,
		Username:    "user-" + id,
		Stats:       model.Stats{Age: age, Position: position, RelationshipStatus: status},
		Preferences: model.DefaultPreferences(),
	}
}

func ids(users []model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestApplyAgeRangeScenario(t *testing.T) {
	master := []model.User{member("thirty", 30, "", ""), member("forty", 40, "", "")}

	got, err := Apply(master, Filter{Age: "25-34"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 1 || got[0].ID != "thirty" {
		t.Fatalf("unexpected result: %v", ids(got))
	}
}

func TestApplyComposesFiltersOverMasterList(t *testing.T) {
	master := []model.User{
		member("a", 25, "top", "single"),
		member("b", 25, "bottom", "single"),
		member("c", 34, "top", "open: ask me"),
		member("d", 0, "top", "single"),
		member("e", 35, "top", "single"),
	}

	got, _ := Apply(master, Filter{Age: "25-34", Position: "top"})
	if want := "[a c]"; fmtIDs(got) != want {
		t.Fatalf("age+position: got %s want %s", fmtIDs(got), want)
	}

	got, _ = Apply(master, Filter{Status: "open"})
	if want := "[c]"; fmtIDs(got) != want {
		t.Fatalf("status segment: got %s want %s", fmtIDs(got), want)
	}

	got, _ = Apply(master, Filter{Position: "top"})
	if want := "[a c d e]"; fmtIDs(got) != want {
		t.Fatalf("re-filter from master: got %s want %s", fmtIDs(got), want)
	}

	got, _ = Apply(master, Filter{})
	if len(got) != len(master) {
		t.Fatalf("empty filter must keep everything")
	}

	if _, err := Apply(master, Filter{Age: "old"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed range, got %v", err)
	}
}

func fmtIDs(users []model.User) string {
	return fmt.Sprint(ids(users))
}

func TestDirectoryExcludesViewerAdminsAndBlocked(t *testing.T) {
	admin := member("admin", 40, "", "")
	admin.IsAdmin = true
	blocked := member("blocked", 30, "", "")
	blocked.IsBlocked = true
	expired := member("expired", 30, "", "")
	expired.IsBlocked = true
	past := time.Now().Add(-time.Hour)
	expired.Moderation.BanUntil = &past

	svc := NewService(Dependencies{Users: newMemoryUserStore(
		member("me", 30, "", ""), member("other", 31, "", ""), admin, blocked, expired,
	)})

	got, err := svc.Directory(context.Background(), "me")
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if fmtIDs(got) != "[other expired]" {
		t.Fatalf("unexpected directory: %s", fmtIDs(got))
	}
}

func TestViewHidesByPreferenceAndCountsViews(t *testing.T) {
	target := member("t", 30, "vers", "single")
	target.Preferences.ShowAge = false
	target.Preferences.ShowOnline = false
	store := newMemoryUserStore(target)
	svc := NewService(Dependencies{Users: store})
	ctx := context.Background()

	view, err := svc.View(ctx, "viewer", "t")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Age != nil || view.Status != "" || view.LastActive != nil {
		t.Fatalf("hidden fields leaked: %+v", view)
	}
	if view.RelationshipStatus != "single" || view.ProfileViews != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, err := svc.View(ctx, "t", "t"); err != nil {
		t.Fatalf("self view: %v", err)
	}
	if store.users["t"].ProfileViews != 1 {
		t.Fatalf("self views must not count")
	}

	if _, err := svc.View(ctx, "viewer", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSelfServiceWrites(t *testing.T) {
	store := newMemoryUserStore(member("me", 30, "", ""))
	svc := NewService(Dependencies{Users: store, ViewTargets: memoryTargets{}})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	tooYoung := 17
	if _, err := svc.UpdateStats(ctx, "me", StatsUpdate{Age: &tooYoung}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	age := 33
	pos := "  top "
	u, err := svc.UpdateStats(ctx, "me", StatsUpdate{Age: &age, Position: &pos})
	if err != nil {
		t.Fatalf("update stats: %v", err)
	}
	if u.Stats.Age != 33 || u.Stats.Position != "top" {
		t.Fatalf("unexpected stats: %+v", u.Stats)
	}
	if u.LastActive == nil || !u.LastActive.Equal(now) {
		t.Fatalf("lastActive not refreshed")
	}

	if _, err := svc.SetPreference(ctx, "me", "showEverything", true); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown preference must fail, got %v", err)
	}
	u, err = svc.SetPreference(ctx, "me", model.PrefReceiveMessages, false)
	if err != nil || u.Preferences.ReceiveMessages {
		t.Fatalf("set preference failed: %v %+v", err, u.Preferences)
	}

	if _, err := svc.UpdateAbout(ctx, "me", "night owl"); err != nil {
		t.Fatalf("update about: %v", err)
	}

	body, name, err := svc.ExportOwnData(ctx, "me")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "nightvibe-data-me.json" {
		t.Fatalf("unexpected file name: %s", name)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil || decoded["about"] != "night owl" {
		t.Fatalf("unexpected export body: %s", body)
	}
}

func TestViewTargetRoundTrip(t *testing.T) {
	svc := NewService(Dependencies{ViewTargets: memoryTargets{}})
	ctx := context.Background()

	if err := svc.SetViewTarget(ctx, "sid-1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.SetViewTarget(ctx, "sid-1", "u9"); err != nil {
		t.Fatalf("set view target: %v", err)
	}
	if got, _ := svc.ViewTarget(ctx, "sid-1"); got != "u9" {
		t.Fatalf("unexpected view target: %q", got)
	}
}
