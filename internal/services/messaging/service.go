package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

const (
	// MaxReadBatch is the largest number of messages marked read in one
	// store batch.
	MaxReadBatch     = 500
	defaultMaxLength = 1000
)

var (
	ErrValidation        = errors.New("validation error")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrMessagesDisabled  = errors.New("receiver does not accept messages")
	ErrRateLimited       = errors.New("sending too fast")
	ErrDependenciesNil   = errors.New("messaging dependencies are not configured")
	ErrConversationEmpty = errors.New("conversation not found")
)

type RateLimitedError struct {
	RetryAfterSec int64
}

func (e RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e RateLimitedError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl RateLimitedError
	if errors.As(err, &rl) {
		return &rl, true
	}
	return nil, false
}

type MessageStore interface {
	ListForUser(ctx context.Context, userID string) ([]model.RawMessage, error)
	ListForUserLegacy(ctx context.Context, userID string) ([]model.RawMessage, error)
	Insert(ctx context.Context, msg model.Message) error
	MarkRead(ctx context.Context, userID string, ids []string) error
}

type UserReader interface {
	Get(ctx context.Context, id string) (model.User, error)
}

type Bus interface {
	Publish(ctx context.Context, userID string, msg model.Message) error
	Subscribe(ctx context.Context, userID string) (<-chan model.Message, func() error, error)
}

type SendLimiter interface {
	Allow(ctx context.Context, subject string) (int64, bool, error)
}

type Metrics interface {
	MessageSent(anonymous bool)
	ReadBatchCommitted()
}

type Dependencies struct {
	Messages MessageStore
	Users    UserReader
	Bus      Bus
	Limiter  SendLimiter
	Metrics  Metrics
	Logger   *zap.Logger
}

type Config struct {
	MaxLength int
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	Anonymous  bool
}

type Service struct {
	messages MessageStore
	users    UserReader
	bus      Bus
	limiter  SendLimiter
	metrics  Metrics
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		messages: deps.Messages,
		users:    deps.Users,
		bus:      deps.Bus,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Load fetches every message involving userID through both the canonical
// and the legacy field names. Either query failing fails the load.
func (s *Service) Load(ctx context.Context, userID string) ([]model.Message, error) {
	if s.messages == nil {
		return nil, ErrDependenciesNil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	var canonical, legacy []model.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.messages.ListForUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		canonical = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.messages.ListForUserLegacy(gctx, userID)
		if err != nil {
			return fmt.Errorf("list legacy messages: %w", err)
		}
		legacy = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Message, 0, len(canonical)+len(legacy))
	out = append(out, NormalizeAll(canonical)...)
	out = append(out, NormalizeAll(legacy)...)
	return out, nil
}

func (s *Service) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	userID = strings.TrimSpace(userID)
	messages, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Assemble(messages, userID), nil
}

// Conversation returns one assembled conversation with its messages in
// thread order. key is a counterpart id or a ConversationKey.
func (s *Service) Conversation(ctx context.Context, userID, key string) (model.Conversation, error) {
	convs, err := s.Conversations(ctx, userID)
	if err != nil {
		return model.Conversation{}, err
	}
	if conv, ok := findConversation(convs, userID, key); ok {
		conv.Messages = Thread(conv)
		return conv, nil
	}
	return model.Conversation{}, ErrConversationEmpty
}

func findConversation(convs []model.Conversation, userID, key string) (model.Conversation, bool) {
	for _, conv := range convs {
		if conv.CounterpartID == key || ConversationKey(conv, userID) == key {
			return conv, true
		}
	}
	return model.Conversation{}, false
}

// MarkConversationRead marks every unread message from the counterpart
// addressed by key to userID as read, in sequential batches of at most MaxReadBatch. It returns
// the number of messages written. Batches already committed stay committed
// when a later one fails.
func (s *Service) MarkConversationRead(ctx context.Context, userID, key string) (int, error) {
	if s.messages == nil {
		return 0, ErrDependenciesNil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, fmt.Errorf("%w: counterpart id is required", ErrValidation)
	}

	convs, err := s.Conversations(ctx, userID)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0)
	if conv, ok := findConversation(convs, userID, key); ok {
		for _, msg := range conv.Messages {
			if Unread(msg, userID) && msg.ID != "" {
				ids = append(ids, msg.ID)
			}
		}
	}

	written := 0
	for _, chunk := range Chunk(ids, MaxReadBatch) {
		if err := s.messages.MarkRead(ctx, userID, chunk); err != nil {
			return written, fmt.Errorf("mark read batch at %d: %w", written, err)
		}
		written += len(chunk)
		if s.metrics != nil {
			s.metrics.ReadBatchCommitted()
		}
	}
	return written, nil
}

func (s *Service) Send(ctx context.Context, in SendInput) (model.Message, error) {
	if s.messages == nil || s.users == nil {
		return model.Message{}, ErrDependenciesNil
	}

	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	text := strings.TrimSpace(in.Content)
	switch {
	case in.SenderID == "" || in.ReceiverID == "":
		return model.Message{}, fmt.Errorf("%w: sender and receiver are required", ErrValidation)
	case in.SenderID == in.ReceiverID:
		return model.Message{}, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	case text == "":
		return model.Message{}, fmt.Errorf("%w: message is empty", ErrValidation)
	case utf8.RuneCountInString(text) > s.cfg.MaxLength:
		return model.Message{}, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, s.cfg.MaxLength)
	}

	receiver, err := s.users.Get(ctx, in.ReceiverID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Message{}, ErrReceiverNotFound
		}
		return model.Message{}, fmt.Errorf("load receiver: %w", err)
	}
	if !receiver.Preferences.ReceiveMessages {
		return model.Message{}, ErrMessagesDisabled
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, in.SenderID)
		if err != nil {
			return model.Message{}, fmt.Errorf("check send rate: %w", err)
		}
		if !allowed {
			return model.Message{}, RateLimitedError{RetryAfterSec: retryAfter}
		}
	}

	senderName := model.AnonymousName
	if !in.Anonymous {
		sender, err := s.users.Get(ctx, in.SenderID)
		switch {
		case err == nil:
			senderName = sender.SenderName()
		case errors.Is(err, model.ErrNotFound):
			senderName = model.User{}.SenderName()
		default:
			return model.Message{}, fmt.Errorf("load sender: %w", err)
		}
	}

	now := s.now().UTC()
	msg := model.Message{
		ID:           s.newID(),
		SenderID:     in.SenderID,
		ReceiverID:   in.ReceiverID,
		Participants: []string{in.SenderID, in.ReceiverID},
		SenderName:   senderName,
		Content:      text,
		IsAnonymous:  in.Anonymous,
		Timestamp:    &now,
		Read:         false,
		ReadBy:       []string{in.SenderID},
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if s.metrics != nil {
		s.metrics.MessageSent(in.Anonymous)
	}

	s.publish(ctx, msg)
	return msg, nil
}

// publish is best effort. Clients that miss an event pick the message up
// on their next load.
func (s *Service) publish(ctx context.Context, msg model.Message) {
	if s.bus == nil {
		return
	}
	for _, uid := range []string{msg.ReceiverID, msg.SenderID} {
		if err := s.bus.Publish(ctx, uid, msg); err != nil {
			s.log.Warn("publish message event failed",
				zap.String("message_id", msg.ID),
				zap.String("user_id", uid),
				zap.Error(err),
			)
		}
	}
}

// Subscribe streams messages addressed to or sent by userID. The caller
// must invoke the returned function once it stops reading.
func (s *Service) Subscribe(ctx context.Context, userID string) (<-chan model.Message, func() error, error) {
	if s.bus == nil {
		return nil, nil, ErrDependenciesNil
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.bus.Subscribe(ctx, userID)
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxReadBatch
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
