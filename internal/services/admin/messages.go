package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	"github.com/thecompanyunltd/nightvibe/internal/domain/rules"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
)

const (
	MessageFilterAll       = "all"
	MessageFilterToday     = "today"
	MessageFilterWeek      = "week"
	MessageFilterMonth     = "month"
	MessageFilterAnonymous = "anonymous"
	MessageFilterReported  = "reported"

	unknownUsername = "Unknown User"
)

type MessageQuery struct {
	Search string
	Filter string
}

type MessageDetail struct {
	Message          model.Message `json:"message"`
	SenderUsername   string        `json:"senderUsername"`
	ReceiverUsername string        `json:"receiverUsername"`
}

// ListMessages returns the newest MessageListLimit matches.
func (s *Service) ListMessages(ctx context.Context, q MessageQuery) ([]model.Message, error) {
	if s.messages == nil {
		return nil, ErrDependenciesNil
	}

	query := model.MessageListQuery{
		Search: strings.TrimSpace(q.Search),
		Limit:  MessageListLimit,
	}
	now := s.now()
	switch strings.ToLower(strings.TrimSpace(q.Filter)) {
	case "", MessageFilterAll:
	case MessageFilterToday:
		query.Since = model.Ptr(rules.StartOfDay(now, s.loc))
	case MessageFilterWeek:
		query.Since = model.Ptr(now.Add(-7 * 24 * time.Hour))
	case MessageFilterMonth:
		query.Since = model.Ptr(now.Add(-30 * 24 * time.Hour))
	case MessageFilterAnonymous:
		query.AnonymousOnly = true
	case MessageFilterReported:
		query.ReportedOnly = true
	default:
		return nil, fmt.Errorf("%w: unknown message filter %q", ErrValidation, q.Filter)
	}

	raws, err := s.messages.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return messaging.NormalizeAll(raws), nil
}

func (s *Service) MessageDetails(ctx context.Context, id string) (MessageDetail, error) {
	if s.messages == nil {
		return MessageDetail{}, ErrDependenciesNil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return MessageDetail{}, ErrValidation
	}
	raw, err := s.messages.Get(ctx, id)
	if err != nil {
		if notFound(err) {
			return MessageDetail{}, ErrNotFound
		}
		return MessageDetail{}, fmt.Errorf("get message: %w", err)
	}
	msg := messaging.Normalize(raw)
	return MessageDetail{
		Message:          msg,
		SenderUsername:   s.usernameOf(ctx, msg.SenderID),
		ReceiverUsername: s.usernameOf(ctx, msg.ReceiverID),
	}, nil
}

func (s *Service) usernameOf(ctx context.Context, id string) string {
	if id == "" || s.users == nil {
		return unknownUsername
	}
	u, err := s.users.Get(ctx, id)
	if err != nil || u.Username == "" {
		return unknownUsername
	}
	return u.Username
}

func (s *Service) DeleteMessage(ctx context.Context, actor, id string) error {
	if s.messages == nil {
		return ErrDependenciesNil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrValidation
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}
	s.record(ctx, actor, ActionDeleteMessage, id, nil)
	return nil
}

// DeleteAllMessages wipes the messages collection in batches of at most
// MaxDeleteBatch. It returns how many ids were deleted before any failure.
func (s *Service) DeleteAllMessages(ctx context.Context, actor, confirmation string) (int, error) {
	if s.messages == nil {
		return 0, ErrDependenciesNil
	}
	if !rules.Confirmed(confirmation, rules.DeleteAllConfirmation) {
		return 0, ErrConfirmation
	}

	ids, err := s.messages.AllIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list message ids: %w", err)
	}

	deleted := 0
	for i, batch := range messaging.Chunk(ids, MaxDeleteBatch) {
		if err := s.messages.DeleteBatch(ctx, batch); err != nil {
			s.record(ctx, actor, ActionDeleteAllMessage, "", map[string]any{"deleted": deleted, "failedBatch": i})
			return deleted, fmt.Errorf("delete messages batch %d: %w", i, err)
		}
		deleted += len(batch)
	}
	s.record(ctx, actor, ActionDeleteAllMessage, "", map[string]any{"deleted": deleted})
	return deleted, nil
}
