// Package telegram is an optional channel that feeds chat messages into the
// orchestrator.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"retail-assist/internal/orchestrator"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func New(token string, orch *orchestrator.Orchestrator, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, orch: orch, logger: logger}, nil
}

// Start long-polls for updates until ctx is cancelled. Each message is handled
// as an independent concurrent task.
func (b *Bot) Start(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("telegram channel started", "bot", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	result, err := b.orch.Handle(ctx, orchestrator.Request{
		Question: msg.Text,
		UserID:   fmt.Sprintf("tg-%d", msg.From.ID),
	})
	if err != nil {
		b.logger.Error("telegram message failed", "user", msg.From.ID, "error", err)
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Something went wrong, please try again.")
		_, _ = b.api.Send(reply)
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, result.Answer)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("failed to send telegram reply", "error", err)
	}
}
