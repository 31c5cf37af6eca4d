package erasure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

// MaxBatch bounds every delete batch sent to the document store.
const MaxBatch = 500

var ErrDependenciesNil = errors.New("erasure dependencies are not configured")

type UserStore interface {
	Delete(ctx context.Context, id string) error
}

type MessageStore interface {
	IDsBySender(ctx context.Context, userID string) ([]string, error)
	IDsByReceiver(ctx context.Context, userID string) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

type AccountStore interface {
	DeleteAccount(ctx context.Context, userID string) error
}

type SessionStore interface {
	DeleteAllForUser(ctx context.Context, userID string) error
}

type Dependencies struct {
	Users    UserStore
	Messages MessageStore
	Accounts AccountStore
	Sessions SessionStore
	Logger   *zap.Logger
}

// Result counts what an erase removed.
type Result struct {
	SentDeleted     int
	ReceivedDeleted int
	Batches         int
}

// Service removes a user together with their messages, credentials and
// sessions. Steps run in order and keep going after a failure; nothing is
// rolled back.
type Service struct {
	users    UserStore
	messages MessageStore
	accounts AccountStore
	sessions SessionStore
	log      *zap.Logger
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:    deps.Users,
		messages: deps.Messages,
		accounts: deps.Accounts,
		sessions: deps.Sessions,
		log:      log,
	}
}

func (s *Service) EraseUser(ctx context.Context, actorID, userID string) error {
	_, err := s.Erase(ctx, actorID, userID)
	return err
}

// Erase deletes the user document, then messages sent by the user, then
// messages received by the user, then the account and sessions. The
// returned error combines every failed step.
func (s *Service) Erase(ctx context.Context, actorID, userID string) (Result, error) {
	if s.users == nil || s.messages == nil {
		return Result{}, ErrDependenciesNil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, fmt.Errorf("user id is required")
	}

	var (
		res  Result
		errs error
	)

	if err := s.users.Delete(ctx, userID); err != nil && !errors.Is(err, model.ErrNotFound) {
		errs = multierr.Append(errs, fmt.Errorf("delete user document: %w", err))
	}

	n, batches, err := s.deleteMessages(ctx, "sent", userID, s.messages.IDsBySender)
	res.SentDeleted, res.Batches = n, res.Batches+batches
	errs = multierr.Append(errs, err)

	n, batches, err = s.deleteMessages(ctx, "received", userID, s.messages.IDsByReceiver)
	res.ReceivedDeleted, res.Batches = n, res.Batches+batches
	errs = multierr.Append(errs, err)

	if s.accounts != nil {
		if err := s.accounts.DeleteAccount(ctx, userID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete account: %w", err))
		}
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("revoke sessions: %w", err))
		}
	}

	fields := []zap.Field{
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.Int("sent_deleted", res.SentDeleted),
		zap.Int("received_deleted", res.ReceivedDeleted),
		zap.Int("batches", res.Batches),
	}
	if errs != nil {
		s.log.Error("user erase incomplete", append(fields, zap.Error(errs))...)
		return res, errs
	}
	s.log.Info("user erased", fields...)
	return res, nil
}

func (s *Service) deleteMessages(
	ctx context.Context,
	side, userID string,
	query func(context.Context, string) ([]string, error),
) (int, int, error) {
	ids, err := query(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("query %s messages: %w", side, err)
	}

	deleted, batches := 0, 0
	for start := 0; start < len(ids); start += MaxBatch {
		chunk := ids[start:min(start+MaxBatch, len(ids))]
		if err := s.messages.DeleteBatch(ctx, chunk); err != nil {
			return deleted, batches, fmt.Errorf("delete %s messages batch at %d: %w", side, start, err)
		}
		deleted += len(chunk)
		batches++
	}
	return deleted, batches, nil
}
