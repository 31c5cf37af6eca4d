package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the moderator chat bot. It sends alerts to one moderation chat
// and answers slash commands coming from that chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
}

type CommandHandler func(context.Context, CommandUpdate) (string, error)

func NewBot(token string, chatID int64) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api, chatID: chatID}, nil
}

func (b *Bot) ChatID() int64 {
	if b == nil {
		return 0
	}
	return b.chatID
}

// Notify posts text to the moderation chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	return b.SendText(ctx, b.ChatID(), text)
}

func (b *Bot) SendText(_ context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// ListenCommands long-polls updates until ctx is done. Commands from chats
// other than the moderation chat are ignored. Handler errors are answered
// in the chat and do not stop the loop.
func (b *Bot) ListenCommands(ctx context.Context, handler CommandHandler) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("command handler is nil")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil || !update.Message.IsCommand() {
				continue
			}
			if b.chatID != 0 && update.Message.Chat.ID != b.chatID {
				continue
			}

			reply, err := handler(ctx, CommandUpdate{
				ChatID:   update.Message.Chat.ID,
				UserID:   update.Message.From.ID,
				Username: update.Message.From.UserName,
				Command:  update.Message.Command(),
				Args:     strings.TrimSpace(update.Message.CommandArguments()),
			})
			if err != nil {
				reply = "Error: " + err.Error()
			}
			if strings.TrimSpace(reply) == "" {
				continue
			}
			if err := b.SendText(ctx, update.Message.Chat.ID, reply); err != nil {
				return err
			}
		}
	}
}
