package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

// Key layout:
//
//	nv:session:{sid}           hash  user_id, role, expires_at, refresh
//	nv:refresh:{sha256(token)} string sid
//	nv:user_sessions:{uid}     set   sids
//
// Refresh tokens are only stored as digests. The session hash keeps the
// digest of the live token so a rotated-away token cannot resolve.
const (
	sessionPrefix      = "nv:session:"
	refreshPrefix      = "nv:refresh:"
	userSessionsPrefix = "nv:user_sessions:"
)

type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || strings.TrimSpace(session.UserID) == "" {
		return authsvc.ErrInvalidInput
	}

	digest := refreshDigest(refreshToken)
	ttl := ttlFor(session.ExpiresAt)

	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.SID),
			"user_id", session.UserID,
			"role", session.Role,
			"expires_at", session.ExpiresAt.Unix(),
			"refresh", digest,
		)
		pipe.Expire(ctx, sessionKey(session.SID), ttl)
		pipe.Set(ctx, refreshPrefix+digest, session.SID, ttl)
		pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
		pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	session, _, err := r.load(ctx, r.client, sid)
	return session, err
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	digest := refreshDigest(refreshToken)
	sid, err := r.client.Get(ctx, refreshPrefix+digest).Result()
	if errors.Is(err, goredis.Nil) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("resolve refresh token: %w", err)
	}

	session, current, err := r.load(ctx, r.client, sid)
	if errors.Is(err, authsvc.ErrSessionNotFound) || (err == nil && current != digest) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, err
	}
	return session, nil
}

// RotateRefresh swaps the live refresh token of a session. It runs as an
// optimistic transaction on the session hash, so of two concurrent
// rotations with the same old token only one wins.
func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.GetByRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return err
	}
	if sid != "" && sid != session.SID {
		return authsvc.ErrRefreshNotFound
	}

	oldDigest := refreshDigest(oldRefreshToken)
	newDigest := refreshDigest(newRefreshToken)
	ttl := ttlFor(expiresAt)

	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		_, current, err := r.load(ctx, tx, session.SID)
		if err != nil {
			return err
		}
		if current != oldDigest {
			return authsvc.ErrRefreshNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, refreshPrefix+oldDigest)
			pipe.Set(ctx, refreshPrefix+newDigest, session.SID, ttl)
			pipe.HSet(ctx, sessionKey(session.SID), "refresh", newDigest, "expires_at", expiresAt.Unix())
			pipe.Expire(ctx, sessionKey(session.SID), ttl)
			pipe.SAdd(ctx, userSessionsKey(session.UserID), session.SID)
			pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
			return nil
		})
		return err
	}, sessionKey(session.SID))

	switch {
	case errors.Is(err, goredis.TxFailedErr), errors.Is(err, authsvc.ErrSessionNotFound):
		return authsvc.ErrRefreshNotFound
	case err != nil && !errors.Is(err, authsvc.ErrRefreshNotFound):
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return err
}

// DeleteSession removes the session, its refresh index and its view target.
// Deleting an unknown sid is not an error.
func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	vals, err := r.client.HMGet(ctx, sessionKey(sid), "user_id", "refresh").Result()
	if err != nil {
		return fmt.Errorf("load session for delete: %w", err)
	}
	userID, _ := vals[0].(string)
	digest, _ := vals[1].(string)

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sid), viewTargetKey(sid))
		if digest != "" {
			pipe.Del(ctx, refreshPrefix+digest)
		}
		if userID != "" {
			pipe.SRem(ctx, userSessionsKey(userID), sid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(userID) == "" {
		return authsvc.ErrInvalidInput
	}

	sids, err := r.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	for _, sid := range sids {
		if err := r.DeleteSession(ctx, sid); err != nil {
			return err
		}
	}

	if err := r.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete user sessions key: %w", err)
	}
	return nil
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

// load reads a session hash and returns it with the stored refresh digest.
func (r *SessionRepo) load(ctx context.Context, c hashReader, sid string) (authsvc.SessionRecord, string, error) {
	values, err := c.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return authsvc.SessionRecord{}, "", fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, "", authsvc.ErrSessionNotFound
	}

	userID := strings.TrimSpace(values["user_id"])
	expiresUnix, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if userID == "" || err != nil {
		return authsvc.SessionRecord{}, "", authsvc.ErrUnauthorized
	}

	return authsvc.SessionRecord{
		SID:       sid,
		UserID:    userID,
		Role:      values["role"],
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
	}, values["refresh"], nil
}

func refreshDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func ttlFor(expiresAt time.Time) time.Duration {
	if ttl := time.Until(expiresAt); ttl > 0 {
		return ttl
	}
	return time.Second
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

func userSessionsKey(userID string) string {
	return userSessionsPrefix + userID
}
