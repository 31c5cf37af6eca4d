package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

const messageChannelPrefix = "messages:"

// MessageBus fans new messages out to subscribers of the receiver's
// channel.
type MessageBus struct {
	client *goredis.Client
	log    *zap.Logger
}

func NewMessageBus(client *goredis.Client, log *zap.Logger) *MessageBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageBus{client: client, log: log}
}

func (b *MessageBus) Publish(ctx context.Context, userID string, msg model.Message) error {
	if b.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	if err := b.client.Publish(ctx, channel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}
	return nil
}

// Subscribe listens on the user's channel until ctx ends or the returned
// function is called. The channel is closed when the subscription ends.
func (b *MessageBus) Subscribe(ctx context.Context, userID string) (<-chan model.Message, func() error, error) {
	if b.client == nil {
		return nil, nil, fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil, fmt.Errorf("user id is required")
	}

	sub := b.client.Subscribe(ctx, channel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe message channel: %w", err)
	}

	out := make(chan model.Message, 16)
	ctx, cancel := context.WithCancel(ctx)

	var once sync.Once
	var closeErr error
	done := make(chan struct{})
	unsubscribe := func() error {
		once.Do(func() {
			cancel()
			closeErr = sub.Close()
			<-done
		})
		return closeErr
	}

	go func() {
		defer close(done)
		defer close(out)

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg model.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("drop malformed message event", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = unsubscribe()
	}()

	return out, unsubscribe, nil
}

func channel(userID string) string {
	return messageChannelPrefix + userID
}
