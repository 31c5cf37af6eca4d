package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestSessionRepoDeleteAllForUser(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSessionRepo(client)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for _, sid := range []string{"s1", "s2"} {
		if err := repo.Create(ctx, authsvc.SessionRecord{SID: sid, UserID: "user-a", Role: "user", ExpiresAt: expires}, "refresh-"+sid); err != nil {
			t.Fatalf("create session %s: %v", sid, err)
		}
	}

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != "user-a" || got.Role != "user" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := repo.DeleteAllForUser(ctx, "user-a"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if _, err := repo.GetSession(ctx, "s2"); !errors.Is(err, authsvc.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
	if _, err := repo.GetByRefreshToken(ctx, "refresh-s1"); !errors.Is(err, authsvc.ErrRefreshNotFound) {
		t.Fatalf("expected refresh token gone, got %v", err)
	}
}

func TestSessionRepoRotateRefreshRetiresOldToken(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewSessionRepo(client)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if err := repo.Create(ctx, authsvc.SessionRecord{SID: "s1", UserID: "u1", Role: "user", ExpiresAt: expires}, "old"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if mr.Exists("nv:refresh:old") {
		t.Fatalf("refresh token must not be stored in clear")
	}

	if err := repo.RotateRefresh(ctx, "s1", "old", "new", expires.Add(time.Hour)); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := repo.GetByRefreshToken(ctx, "old"); !errors.Is(err, authsvc.ErrRefreshNotFound) {
		t.Fatalf("old token should be retired, got %v", err)
	}
	if err := repo.RotateRefresh(ctx, "s1", "old", "newer", expires); !errors.Is(err, authsvc.ErrRefreshNotFound) {
		t.Fatalf("replaying the old token should fail, got %v", err)
	}

	got, err := repo.GetByRefreshToken(ctx, "new")
	if err != nil {
		t.Fatalf("resolve new token: %v", err)
	}
	if got.SID != "s1" || got.UserID != "u1" || !got.ExpiresAt.After(expires) {
		t.Fatalf("unexpected rotated session: %+v", got)
	}
}

func TestViewTargetFollowsSession(t *testing.T) {
	mr, client := newTestClient(t)
	sessions := NewSessionRepo(client)
	targets := NewViewTargetRepo(client)
	ctx := context.Background()

	if err := targets.Set(ctx, "missing", "u2"); err == nil {
		t.Fatalf("expected error without a session")
	}

	if err := sessions.Create(ctx, authsvc.SessionRecord{SID: "s1", UserID: "u1", Role: "user", ExpiresAt: time.Now().Add(time.Hour)}, "r1"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := targets.Set(ctx, "s1", "u2"); err != nil {
		t.Fatalf("set view target: %v", err)
	}
	got, err := targets.Get(ctx, "s1")
	if err != nil || got != "u2" {
		t.Fatalf("unexpected view target %q err=%v", got, err)
	}

	mr.FastForward(2 * time.Hour)
	got, err = targets.Get(ctx, "s1")
	if err != nil || got != "" {
		t.Fatalf("view target should expire with the session, got %q err=%v", got, err)
	}
}

func TestViewTargetClearedOnLogout(t *testing.T) {
	_, client := newTestClient(t)
	sessions := NewSessionRepo(client)
	targets := NewViewTargetRepo(client)
	ctx := context.Background()

	if err := sessions.Create(ctx, authsvc.SessionRecord{SID: "s1", UserID: "u1", Role: "user", ExpiresAt: time.Now().Add(time.Hour)}, "r1"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := targets.Set(ctx, "s1", "u2"); err != nil {
		t.Fatalf("set view target: %v", err)
	}
	if err := sessions.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if got, _ := targets.Get(ctx, "s1"); got != "" {
		t.Fatalf("view target should be cleared, got %q", got)
	}
}

func TestRateRepoWindowAndReset(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewRateRepo(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, ttl, err := repo.IncrementWindow(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != int64(i) || ttl <= 0 {
			t.Fatalf("unexpected window state count=%d ttl=%s", count, ttl)
		}
	}

	if err := repo.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	count, _, err := repo.WindowState(ctx, "k")
	if err != nil || count != 0 {
		t.Fatalf("expected empty window, count=%d err=%v", count, err)
	}
}

func TestMessageBusDeliversAndUnsubscribes(t *testing.T) {
	_, client := newTestClient(t)
	bus := NewMessageBus(client, nil)
	ctx := context.Background()

	events, unsubscribe, err := bus.Subscribe(ctx, "u2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "u2", model.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Content: "hi"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-events:
		if msg.ID != "m1" || msg.Content != "hi" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}

	if err := unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed channel after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after unsubscribe")
	}
}
