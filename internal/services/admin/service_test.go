package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

type memoryUsers struct {
	order []string
	users map[string]model.User
}

func newMemoryUsers(users ...model.User) *memoryUsers {
	m := &memoryUsers{users: map[string]model.User{}}
	for _, u := range users {
		m.order = append(m.order, u.ID)
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.users[id])
	}
	return out, nil
}

func (m *memoryUsers) Get(_ context.Context, id string) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) Update(_ context.Context, id string, p model.UserPatch) error {
	u, ok := m.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Age != nil {
		u.Stats.Age = *p.Age
	}
	if p.IsBlocked != nil {
		u.IsBlocked = *p.IsBlocked
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.BlockedBy != nil {
		u.Moderation.BlockedBy = *p.BlockedBy
	}
	if p.AdminGrantedBy != nil {
		u.Moderation.AdminGrantedBy = *p.AdminGrantedBy
	}
	if p.BanUntil != nil {
		u.Moderation.BanUntil = p.BanUntil
	}
	if p.ClearBanUntil {
		u.Moderation.BanUntil = nil
	}
	if p.AddWarning != nil {
		u.Moderation.Warnings = append(u.Moderation.Warnings, *p.AddWarning)
	}
	m.users[id] = u
	return nil
}

func (m *memoryUsers) UsernameExists(_ context.Context, name string) (bool, error) {
	for _, u := range m.users {
		if u.Username == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUsers) SearchByUsernamePrefix(context.Context, string, int) ([]model.User, error) {
	return nil, nil
}

func (m *memoryUsers) Count(_ context.Context, q model.UserCountQuery) (int64, error) {
	var n int64
	for _, u := range m.users {
		if q.ActiveSince != nil && (u.LastActive == nil || u.LastActive.Before(*q.ActiveSince)) {
			continue
		}
		if q.CreatedSince != nil && (u.CreatedAt == nil || u.CreatedAt.Before(*q.CreatedSince)) {
			continue
		}
		n++
	}
	return n, nil
}

type memoryMessages struct {
	raws      []model.RawMessage
	lastQuery model.MessageListQuery
	batches   [][]string
	failAt    int
}

func (m *memoryMessages) Get(_ context.Context, id string) (model.RawMessage, error) {
	for _, r := range m.raws {
		if r.ID == id {
			return r, nil
		}
	}
	return model.RawMessage{}, model.ErrNotFound
}

func (m *memoryMessages) Query(_ context.Context, q model.MessageListQuery) ([]model.RawMessage, error) {
	m.lastQuery = q
	return m.raws, nil
}

func (m *memoryMessages) Count(_ context.Context, q model.MessageCountQuery) (int64, error) {
	var n int64
	for _, r := range m.raws {
		if q.SenderID != "" && r.SenderID != q.SenderID {
			continue
		}
		if q.ReceiverID != "" && r.ReceiverID != q.ReceiverID {
			continue
		}
		if q.Since != nil && (r.Timestamp == nil || r.Timestamp.Before(*q.Since)) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memoryMessages) AllIDs(context.Context) ([]string, error) {
	out := make([]string, 0, len(m.raws))
	for _, r := range m.raws {
		out = append(out, r.ID)
	}
	return out, nil
}

func (m *memoryMessages) DeleteBatch(_ context.Context, ids []string) error {
	if m.failAt > 0 && len(m.batches)+1 == m.failAt {
		return errors.New("bulk write failed")
	}
	m.batches = append(m.batches, ids)
	return nil
}

func (m *memoryMessages) Delete(_ context.Context, id string) error {
	for i, r := range m.raws {
		if r.ID == id {
			m.raws = append(m.raws[:i], m.raws[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

type memoryReports struct {
	reports map[string]model.Report
}

func (m *memoryReports) Get(_ context.Context, id string) (model.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return model.Report{}, model.ErrNotFound
	}
	return r, nil
}

func (m *memoryReports) List(_ context.Context, status enums.ReportStatus) ([]model.Report, error) {
	out := []model.Report{}
	for _, r := range m.reports {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReports) Resolve(_ context.Context, id, resolution, actor string, at time.Time) error {
	r, ok := m.reports[id]
	if !ok {
		return model.ErrNotFound
	}
	r.Status, r.Resolution, r.ResolvedBy, r.ResolvedAt = enums.ReportStatusResolved, resolution, actor, &at
	m.reports[id] = r
	return nil
}

func (m *memoryReports) Dismiss(_ context.Context, id, actor string, at time.Time) error {
	r, ok := m.reports[id]
	if !ok {
		return model.ErrNotFound
	}
	r.Status, r.DismissedBy, r.DismissedAt = enums.ReportStatusDismissed, actor, &at
	m.reports[id] = r
	return nil
}

func (m *memoryReports) Count(ctx context.Context, status enums.ReportStatus) (int64, error) {
	reps, _ := m.List(ctx, status)
	return int64(len(reps)), nil
}

type memorySettings struct {
	saved *model.Settings
}

func (m *memorySettings) Get(context.Context) (model.Settings, error) {
	if m.saved != nil {
		return *m.saved, nil
	}
	return model.DefaultSettings(), nil
}

func (m *memorySettings) Save(_ context.Context, s model.Settings) error {
	m.saved = &s
	return nil
}

type memoryAudit struct {
	entries []AuditEntry
}

func (m *memoryAudit) Append(_ context.Context, entries ...AuditEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memoryAudit) List(_ context.Context, limit int) ([]AuditEntry, error) {
	return m.entries[:min(limit, len(m.entries))], nil
}

func (m *memoryAudit) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type revokedSessions []string

func (r *revokedSessions) DeleteAllForUser(_ context.Context, userID string) error {
	*r = append(*r, userID)
	return nil
}

type stubAccounts struct {
	got authsvc.NewAccountInput
}

func (s *stubAccounts) CreateAccount(_ context.Context, in authsvc.NewAccountInput) (model.User, error) {
	s.got = in
	return model.User{ID: "new", Username: in.Username}, nil
}

type stubEraser struct {
	erased []string
	err    error
}

func (e *stubEraser) EraseUser(_ context.Context, _, userID string) error {
	e.erased = append(e.erased, userID)
	return e.err
}

type fixture struct {
	svc      *Service
	users    *memoryUsers
	messages *memoryMessages
	reports  *memoryReports
	settings *memorySettings
	audit    *memoryAudit
	revoked  *revokedSessions
	accounts *stubAccounts
	eraser   *stubEraser
}

func newFixture(users ...model.User) *fixture {
	f := &fixture{
		users:    newMemoryUsers(users...),
		messages: &memoryMessages{},
		reports:  &memoryReports{reports: map[string]model.Report{}},
		settings: &memorySettings{},
		audit:    &memoryAudit{},
		revoked:  &revokedSessions{},
		accounts: &stubAccounts{},
		eraser:   &stubEraser{},
	}
	f.svc = NewService(Dependencies{
		Users:    f.users,
		Messages: f.messages,
		Reports:  f.reports,
		Settings: f.settings,
		Audit:    f.audit,
		Sessions: f.revoked,
		Accounts: f.accounts,
		Eraser:   f.eraser,
	}, Config{})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func member(id string) model.User {
	return model.User{ID: id, Username: "user-" + id, Status: enums.PresenceOnline}
}

func TestListUsersFiltersAndPaginates(t *testing.T) {
	var users []model.User
	for i := 0; i < 45; i++ {
		u := member(fmt.Sprintf("u%02d", i))
		if i%9 == 0 {
			u.ReportedCount = 1
		}
		users = append(users, u)
	}
	f := newFixture(users...)
	ctx := context.Background()

	page, err := f.svc.ListUsers(ctx, UserQuery{Page: 3})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.Total != 45 || page.TotalPages != 3 || len(page.Users) != 5 || page.Users[0].ID != "u40" {
		t.Fatalf("unexpected page: total=%d pages=%d len=%d", page.Total, page.TotalPages, len(page.Users))
	}
	if fmt.Sprint(page.Pages) != "[1 2 3]" {
		t.Fatalf("unexpected page buttons: %v", page.Pages)
	}

	page, _ = f.svc.ListUsers(ctx, UserQuery{Filter: "reported"})
	if page.Total != 5 {
		t.Fatalf("expected 5 reported users, got %d", page.Total)
	}

	page, _ = f.svc.ListUsers(ctx, UserQuery{Search: "USER-U1"})
	if page.Total != 10 {
		t.Fatalf("expected 10 matches for search, got %d", page.Total)
	}

	if _, err := f.svc.ListUsers(ctx, UserQuery{Filter: "vip"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown filter, got %v", err)
	}
}

func TestListUsersActivityFilters(t *testing.T) {
	today := testNow.Add(-time.Hour)
	yesterday := testNow.Add(-20 * time.Hour)
	longAgo := testNow.Add(-31 * 24 * time.Hour)

	active := member("active")
	active.LastActive = &today
	recent := member("recent")
	recent.LastActive = &yesterday
	stale := member("stale")
	stale.LastActive = &longAgo
	never := member("never")

	f := newFixture(active, recent, stale, never)
	ctx := context.Background()

	page, _ := f.svc.ListUsers(ctx, UserQuery{Filter: "active"})
	if len(page.Users) != 1 || page.Users[0].ID != "active" {
		t.Fatalf("unexpected active users: %+v", page.Users)
	}
	page, _ = f.svc.ListUsers(ctx, UserQuery{Filter: "inactive"})
	if len(page.Users) != 2 || page.Users[0].ID != "stale" || page.Users[1].ID != "never" {
		t.Fatalf("unexpected inactive users: %+v", page.Users)
	}
}

func TestBlockRevokesSessionsAndAudits(t *testing.T) {
	f := newFixture(member("admin"), member("u2"))
	ctx := context.Background()

	if err := f.svc.Block(ctx, "admin", "u2"); err != nil {
		t.Fatalf("block: %v", err)
	}
	u := f.users.users["u2"]
	if !u.IsBlocked || u.Status != enums.PresenceOffline || u.Moderation.BlockedBy != "admin" {
		t.Fatalf("user not blocked: %+v", u)
	}
	if len(*f.revoked) != 1 || (*f.revoked)[0] != "u2" {
		t.Fatalf("sessions not revoked: %v", *f.revoked)
	}

	if err := f.svc.Block(ctx, "admin", "admin"); !errors.Is(err, ErrSelfAction) {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}
	if err := f.svc.Block(ctx, "admin", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := f.svc.Unblock(ctx, "admin", "u2"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if f.users.users["u2"].IsBlocked {
		t.Fatalf("user still blocked")
	}
	if fmt.Sprint(f.audit.actions()) != "[user.block user.unblock]" {
		t.Fatalf("unexpected audit trail: %v", f.audit.actions())
	}
}

func TestBanDurations(t *testing.T) {
	f := newFixture(member("u2"), member("u3"))
	ctx := context.Background()

	if err := f.svc.Ban(ctx, "admin", "u2", "7d"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	until := f.users.users["u2"].Moderation.BanUntil
	if until == nil || !until.Equal(testNow.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected ban end: %v", until)
	}
	if !f.users.users["u2"].Banned(testNow.Add(6 * 24 * time.Hour)) {
		t.Fatalf("user should still be banned after six days")
	}

	if err := f.svc.Ban(ctx, "admin", "u3", "permanent"); err != nil {
		t.Fatalf("permanent ban: %v", err)
	}
	if u := f.users.users["u3"]; !u.IsBlocked || u.Moderation.BanUntil != nil {
		t.Fatalf("permanent ban must block without an end: %+v", u.Moderation)
	}

	if err := f.svc.Ban(ctx, "admin", "u2", "2w"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown duration, got %v", err)
	}
}

func TestWarnAndMakeAdmin(t *testing.T) {
	f := newFixture(member("u2"))
	ctx := context.Background()

	if err := f.svc.Warn(ctx, "admin", "u2", "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := f.svc.Warn(ctx, "admin", "u2", "be nice"); err != nil {
		t.Fatalf("warn: %v", err)
	}
	if w := f.users.users["u2"].Moderation.Warnings; len(w) != 1 || w[0].Reason != "be nice" || w[0].IssuedBy != "admin" {
		t.Fatalf("unexpected warnings: %+v", w)
	}

	if err := f.svc.MakeAdmin(ctx, "admin", "u2"); err != nil {
		t.Fatalf("make admin: %v", err)
	}
	if u := f.users.users["u2"]; !u.IsAdmin || u.Moderation.AdminGrantedBy != "admin" {
		t.Fatalf("admin not granted: %+v", u)
	}
}

func TestEditUserValidatesAndMerges(t *testing.T) {
	f := newFixture(member("u2"), member("u3"))
	ctx := context.Background()

	taken := "user-u3"
	if _, err := f.svc.EditUser(ctx, "admin", "u2", UserEdit{Username: &taken}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for taken username, got %v", err)
	}
	tooOld := 90
	if _, err := f.svc.EditUser(ctx, "admin", "u2", UserEdit{Age: &tooOld}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for age, got %v", err)
	}

	name, age := "nightowl", 29
	u, err := f.svc.EditUser(ctx, "admin", "u2", UserEdit{Username: &name, Age: &age})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if u.Username != "nightowl" || u.Stats.Age != 29 {
		t.Fatalf("edit not applied: %+v", u)
	}
}

func TestCreateUserPassesRole(t *testing.T) {
	f := newFixture()

	u, err := f.svc.CreateUser(context.Background(), "admin", NewUserInput{Username: "mod1", Password: "secret1", UserType: "Moderator"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != "new" || f.accounts.got.Role != enums.RoleModerator || f.accounts.got.ActorID != "admin" {
		t.Fatalf("unexpected account input: %+v", f.accounts.got)
	}
	if _, err := f.svc.CreateUser(context.Background(), "admin", NewUserInput{Username: "x", UserType: "root"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestDeleteUserNeedsConfirmationAndAuditsFailures(t *testing.T) {
	f := newFixture(member("u3"))
	ctx := context.Background()

	if err := f.svc.DeleteUser(ctx, "admin", "u3", "delete"); !errors.Is(err, ErrConfirmation) {
		t.Fatalf("expected ErrConfirmation, got %v", err)
	}
	if len(f.eraser.erased) != 0 {
		t.Fatalf("nothing may be erased without confirmation")
	}

	f.eraser.err = errors.New("delete sent messages batch at 0: boom")
	if err := f.svc.DeleteUser(ctx, "admin", "u3", " DELETE "); err == nil {
		t.Fatalf("expected the erasure error to surface")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Payload["failedSteps"] != 1 {
		t.Fatalf("partial failure not audited: %+v", f.audit.entries)
	}
}

func TestDeleteAllMessagesInBatches(t *testing.T) {
	f := newFixture()
	for i := 0; i < 1203; i++ {
		f.messages.raws = append(f.messages.raws, model.RawMessage{ID: fmt.Sprintf("m%d", i)})
	}
	ctx := context.Background()

	if _, err := f.svc.DeleteAllMessages(ctx, "admin", "DELETE"); !errors.Is(err, ErrConfirmation) {
		t.Fatalf("expected ErrConfirmation, got %v", err)
	}

	n, err := f.svc.DeleteAllMessages(ctx, "admin", rules.DeleteAllConfirmation)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 1203 || len(f.messages.batches) != 3 {
		t.Fatalf("unexpected result: deleted=%d batches=%d", n, len(f.messages.batches))
	}
	for _, b := range f.messages.batches {
		if len(b) > MaxDeleteBatch {
			t.Fatalf("batch of %d exceeds the limit", len(b))
		}
	}

	f.messages.batches = nil
	f.messages.failAt = 2
	n, err = f.svc.DeleteAllMessages(ctx, "admin", rules.DeleteAllConfirmation)
	if err == nil || n != MaxDeleteBatch {
		t.Fatalf("expected failure after one batch, got n=%d err=%v", n, err)
	}
}

func TestListMessagesTranslatesFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.ListMessages(ctx, MessageQuery{Filter: "today", Search: " hi "}); err != nil {
		t.Fatalf("list: %v", err)
	}
	q := f.messages.lastQuery
	if q.Limit != MessageListLimit || q.Search != "hi" || q.Since == nil || !q.Since.Equal(rules.StartOfDay(testNow, time.UTC)) {
		t.Fatalf("unexpected query: %+v", q)
	}

	_, _ = f.svc.ListMessages(ctx, MessageQuery{Filter: "reported"})
	if !f.messages.lastQuery.ReportedOnly {
		t.Fatalf("reported filter not applied")
	}

	if _, err := f.svc.ListMessages(ctx, MessageQuery{Filter: "yesterday"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMessageDetailsResolvesUsernames(t *testing.T) {
	f := newFixture(member("u1"))
	content := "hello"
	f.messages.raws = []model.RawMessage{{ID: "m1", SenderrID: "u1", ReceiverID: "gone", Content: &content}}

	d, err := f.svc.MessageDetails(context.Background(), "m1")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.SenderUsername != "user-u1" || d.ReceiverUsername != unknownUsername || d.Message.Content != "hello" {
		t.Fatalf("unexpected details: %+v", d)
	}
	if _, err := f.svc.MessageDetails(context.Background(), "m2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReportTransitions(t *testing.T) {
	f := newFixture()
	f.reports.reports["r1"] = model.Report{ID: "r1", Status: enums.ReportStatusPending}
	f.reports.reports["r2"] = model.Report{ID: "r2", Status: enums.ReportStatusPending}
	ctx := context.Background()

	if err := f.svc.ResolveReport(ctx, "admin", "r1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := f.svc.ResolveReport(ctx, "admin", "r1", "user warned"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := f.svc.DismissReport(ctx, "admin", "r2"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := f.svc.DismissReport(ctx, "admin", "r9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	r1 := f.reports.reports["r1"]
	if r1.Status != enums.ReportStatusResolved || r1.Resolution != "user warned" || r1.ResolvedBy != "admin" {
		t.Fatalf("unexpected r1: %+v", r1)
	}
	pending, _ := f.svc.ListReports(ctx, "pending")
	if len(pending) != 0 {
		t.Fatalf("expected no pending reports, got %d", len(pending))
	}
	if _, err := f.svc.ListReports(ctx, "open"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStatsCountsToday(t *testing.T) {
	earlier := testNow.Add(-2 * time.Hour)
	lastWeek := testNow.Add(-7 * 24 * time.Hour)

	fresh := member("fresh")
	fresh.CreatedAt, fresh.LastActive = &earlier, &earlier
	old := member("old")
	old.CreatedAt, old.LastActive = &lastWeek, &lastWeek

	f := newFixture(fresh, old)
	f.messages.raws = []model.RawMessage{{ID: "m1", Timestamp: &earlier}, {ID: "m2", Timestamp: &lastWeek}}
	f.reports.reports["r1"] = model.Report{ID: "r1", Status: enums.ReportStatusPending}
	f.reports.reports["r2"] = model.Report{ID: "r2", Status: enums.ReportStatusDismissed}

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{TotalUsers: 2, ActiveToday: 1, NewUsersToday: 1, TotalMessages: 2, MessagesToday: 1, TotalReports: 2, PendingReports: 1}
	if st != want {
		t.Fatalf("unexpected stats: got %+v want %+v", st, want)
	}
}

func TestExportDocument(t *testing.T) {
	u := member("u1")
	u.Phone = "5550001111"
	f := newFixture(u)
	content := "hey"
	f.messages.raws = []model.RawMessage{{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: &content}}

	body, name, err := f.svc.Export(context.Background(), "admin")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if name != "nightvibe-export-2026-03-14.json" {
		t.Fatalf("unexpected file name %q", name)
	}
	var doc struct {
		Users      []map[string]any `json:"users"`
		Messages   []map[string]any `json:"messages"`
		Reports    []any            `json:"reports"`
		ExportedBy string           `json:"exportedBy"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0]["phone"] != "5550001111" || doc.ExportedBy != "admin" {
		t.Fatalf("unexpected export: %s", body)
	}
	if len(doc.Messages) != 1 || doc.Messages[0]["content"] != "hey" || doc.Reports == nil {
		t.Fatalf("unexpected export messages: %s", body)
	}
	if f.messages.lastQuery.Limit != ExportMessageLimit {
		t.Fatalf("export must cap messages at %d", ExportMessageLimit)
	}
}

func TestSaveSettingsStampsAuthor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := model.DefaultSettings()
	in.MaxLoginAttempts = 0
	if _, err := f.svc.SaveSettings(ctx, "admin", in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	in = model.DefaultSettings()
	in.MaintenanceMode = true
	saved, err := f.svc.SaveSettings(ctx, "admin", in)
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if saved.UpdatedBy != "admin" || saved.LastUpdated == nil || !saved.LastUpdated.Equal(testNow) {
		t.Fatalf("settings not stamped: %+v", saved)
	}
	got, _ := f.svc.Settings(ctx)
	if !got.MaintenanceMode {
		t.Fatalf("maintenance mode not stored")
	}
	log, _ := f.svc.AuditLog(ctx, 10)
	if len(log) != 1 || log[0].Action != ActionSaveSettings {
		t.Fatalf("unexpected audit log: %+v", log)
	}
}
