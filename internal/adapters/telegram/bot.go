package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const turnTimeout = 2 * time.Minute

// Negotiator handles one negotiation turn per incoming message
type Negotiator interface {
	Negotiate(ctx context.Context, userQuery, userID string) (string, error)
}

// Bot is a long-polling Telegram surface over the negotiation pipeline. Each
// chat message becomes one negotiation turn; the Telegram sender id doubles as
// the store lookup key.
type Bot struct {
	api        *tgbotapi.BotAPI
	negotiator Negotiator
	log        *logger.Logger
}

// NewBot creates a Telegram bot
func NewBot(token string, negotiator Negotiator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Bot{
		api:        api,
		negotiator: negotiator,
		log:        logger.Get().With("component", "telegram_bot"),
	}, nil
}

// Run starts the update loop and blocks until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infof("Bot authorized as @%s", b.api.Self.UserName)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	userID := fmt.Sprintf("user_%d", msg.From.ID)

	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	reply, err := b.negotiator.Negotiate(turnCtx, msg.Text, userID)
	if err != nil {
		b.log.Errorf("Negotiation turn failed for %s: %v", userID, err)
		reply = "Sorry, something went wrong on our side. Please try again in a moment."
	}

	b.send(msg.Chat.ID, reply)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.send(msg.Chat.ID, "Hi! I'm the pricing assistant. Ask me about discounts or your order.")
	default:
		b.send(msg.Chat.ID, "Unknown command. Just type your question.")
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorf("Failed to send reply to chat %d: %v", chatID, err)
	}
}
