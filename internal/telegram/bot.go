// Package telegram is the chat surface: it turns bot updates into intake
// controller calls and renders the results back as messages.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"billbot/internal/bill"
	"billbot/internal/intake"
	"billbot/internal/mail"
)

// Bot wires the Telegram API to the intake controller and the bill
// service. All dependencies are constructed once at startup and injected.
type Bot struct {
	api        *tgbotapi.BotAPI
	controller *intake.Controller
	bills      *bill.Service
	storage    bill.Storage
	mailer     mail.Mailer
	httpClient *http.Client
}

// New creates a Bot connected to the Telegram API.
func New(token string, controller *intake.Controller, bills *bill.Service, storage bill.Storage, mailer mail.Mailer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:        api,
		controller: controller,
		bills:      bills,
		storage:    storage,
		mailer:     mailer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Run consumes updates until ctx is cancelled. Every update is handled on
// its own goroutine; per-intake state lives in the controller's store, so
// handlers share nothing else.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Ping verifies the Telegram API is reachable
func (b *Bot) Ping(ctx context.Context) error {
	_, err := b.api.GetMe()
	return err
}

// downloadFile fetches a Telegram-hosted file by id
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("Failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyDocument(chatID int64, filename string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("sending document: %w", err)
	}
	return nil
}
