package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

const viewTargetPrefix = "nv:view_target:"

// ViewTargetRepo keeps the profile a session is about to open. The key
// lives as long as the session it belongs to.
type ViewTargetRepo struct {
	client *goredis.Client
}

func NewViewTargetRepo(client *goredis.Client) *ViewTargetRepo {
	return &ViewTargetRepo{client: client}
}

func (r *ViewTargetRepo) Set(ctx context.Context, sid, targetID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" || strings.TrimSpace(targetID) == "" {
		return fmt.Errorf("session id and target id are required")
	}

	ttl, err := r.client.TTL(ctx, sessionKey(sid)).Result()
	if err != nil {
		return fmt.Errorf("read session ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("session %s has no ttl", sid)
	}

	if err := r.client.Set(ctx, viewTargetKey(sid), targetID, ttl).Err(); err != nil {
		return fmt.Errorf("set view target: %w", err)
	}
	return nil
}

// Get returns the stored target, or "" when none is set.
func (r *ViewTargetRepo) Get(ctx context.Context, sid string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}

	v, err := r.client.Get(ctx, viewTargetKey(sid)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get view target: %w", err)
	}
	return v, nil
}

func viewTargetKey(sid string) string {
	return viewTargetPrefix + sid
}
