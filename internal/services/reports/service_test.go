package reports

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type memoryReports struct {
	stored []model.Report
}

func (m *memoryReports) Insert(_ context.Context, rep model.Report) error {
	m.stored = append(m.stored, rep)
	return nil
}

type memoryUsers struct {
	users    map[string]model.User
	reported map[string]int64
}

func (m *memoryUsers) Get(_ context.Context, id string) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) Increment(_ context.Context, id string, counter model.Counter, by int64) error {
	if counter == model.CounterReportedCount {
		m.reported[id] += by
	}
	return nil
}

type memoryFlags []string

func (m *memoryFlags) SetReported(_ context.Context, id string) error {
	*m = append(*m, id)
	return nil
}

type recordingNotifier struct {
	filed []string
}

func (n *recordingNotifier) ReportFiled(_ context.Context, rep model.Report) {
	n.filed = append(n.filed, rep.ID)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (int64, bool, error) { return 60, false, nil }

func newFixture() (*Service, *memoryReports, *memoryUsers, *memoryFlags, *recordingNotifier) {
	reps := &memoryReports{}
	users := &memoryUsers{
		users:    map[string]model.User{"u1": {ID: "u1"}, "u2": {ID: "u2"}},
		reported: map[string]int64{},
	}
	flags := &memoryFlags{}
	notifier := &recordingNotifier{}
	svc := NewService(Dependencies{Reports: reps, Users: users, Messages: flags, Notifier: notifier})
	svc.newID = func() string { return "r1" }
	return svc, reps, users, flags, notifier
}

func TestFileStoresPendingReport(t *testing.T) {
	svc, reps, users, flags, notifier := newFixture()

	rep, err := svc.File(context.Background(), "u1", FileInput{
		ReportedUserID: "u2",
		MessageID:      "m9",
		Reasons:        []enums.ReportReason{"Spam", "spam", "harassment"},
		Details:        "  keeps sending links ",
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if rep.Status != enums.ReportStatusPending || rep.CreatedAt == nil {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Reasons) != 2 || rep.Details != "keeps sending links" {
		t.Fatalf("reasons or details not normalized: %+v", rep)
	}
	if len(reps.stored) != 1 || users.reported["u2"] != 1 {
		t.Fatalf("report not stored or counted")
	}
	if len(*flags) != 1 || (*flags)[0] != "m9" {
		t.Fatalf("message not flagged: %v", *flags)
	}
	if len(notifier.filed) != 1 {
		t.Fatalf("moderators not notified")
	}
}

func TestFileValidation(t *testing.T) {
	svc, reps, _, _, _ := newFixture()
	ctx := context.Background()

	cases := []struct {
		name     string
		reporter string
		in       FileInput
		want     error
	}{
		{name: "self", reporter: "u1", in: FileInput{ReportedUserID: "u1", Reasons: []enums.ReportReason{"spam"}}, want: ErrValidation},
		{name: "no reason", reporter: "u1", in: FileInput{ReportedUserID: "u2"}, want: ErrValidation},
		{name: "unknown reason", reporter: "u1", in: FileInput{ReportedUserID: "u2", Reasons: []enums.ReportReason{"rude"}}, want: ErrValidation},
		{name: "long details", reporter: "u1", in: FileInput{ReportedUserID: "u2", Reasons: []enums.ReportReason{"other"}, Details: strings.Repeat("x", 1001)}, want: ErrValidation},
		{name: "missing user", reporter: "u1", in: FileInput{ReportedUserID: "ghost", Reasons: []enums.ReportReason{"fake"}}, want: ErrUserNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.File(ctx, tc.reporter, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if len(reps.stored) != 0 {
		t.Fatalf("invalid reports must not be stored")
	}
}

func TestFileRateLimited(t *testing.T) {
	svc, reps, _, _, _ := newFixture()
	svc.limiter = denyAll{}

	_, err := svc.File(context.Background(), "u1", FileInput{ReportedUserID: "u2", Reasons: []enums.ReportReason{"spam"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(reps.stored) != 0 {
		t.Fatalf("rate limited report must not be stored")
	}
}
