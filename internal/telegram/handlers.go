package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"billbot/internal/bill"
	"billbot/internal/export"
	"billbot/internal/intake"
	"billbot/internal/mail"
)

const listLimit = 10

// handleUpdate dispatches one inbound update. It runs on its own
// goroutine; errors are rendered to the user, never returned.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic handling update", "panic", r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	owner := strconv.FormatInt(msg.From.ID, 10)

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, owner, msg)
	case len(msg.Photo) > 0:
		// Largest size is last
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleBillUpload(ctx, owner, msg.Chat.ID, photo.FileID, "image/jpeg")
	case msg.Document != nil:
		b.handleDocument(ctx, owner, msg)
	case strings.TrimSpace(msg.Text) != "":
		b.handleText(ctx, owner, msg.Chat.ID, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, owner string, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(chatID, welcomeMessage)
	case "list":
		b.handleList(owner, chatID)
	case "export":
		if len(args) != 2 {
			b.reply(chatID, "Usage: /export <start-date> <end-date>, dates as YYYY-MM-DD")
			return
		}
		b.handleExport(owner, chatID, args[0], args[1])
	case "email":
		if len(args) != 3 {
			b.reply(chatID, "Usage: /email <address> <start-date> <end-date>, dates as YYYY-MM-DD")
			return
		}
		b.handleEmail(ctx, owner, chatID, args[0], args[1], args[2])
	default:
		b.reply(chatID, "I don't know that command. Send /start to see what I can do.")
	}
}

// handleDocument accepts image and PDF documents as bill uploads
func (b *Bot) handleDocument(ctx context.Context, owner string, msg *tgbotapi.Message) {
	mime := strings.ToLower(msg.Document.MimeType)
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		b.reply(msg.Chat.ID, "I can only read bills sent as photos, image files or PDFs.")
		return
	}
	b.handleBillUpload(ctx, owner, msg.Chat.ID, msg.Document.FileID, mime)
}

// handleBillUpload runs the intake flow for one uploaded bill up to the
// description prompt.
func (b *Bot) handleBillUpload(ctx context.Context, owner string, chatID int64, fileID, contentType string) {
	b.reply(chatID, "📸 Received! Processing your bill...")

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		slog.Error("Failed to download bill image", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't download that file. Please send it again.")
		return
	}

	receipt, err := b.controller.HandleImage(ctx, owner, data, contentType)
	if err != nil {
		b.reply(chatID, scanFailureMessage(err))
		return
	}

	prompt := tgbotapi.NewMessage(chatID, draftSummary(receipt.Draft))
	prompt.ReplyMarkup = descriptionKeyboard()
	if _, err := b.api.Send(prompt); err != nil {
		slog.Error("Failed to send description prompt", "owner", owner, "error", err)
	}
}

// handleCallback applies a manual/auto/skip button press
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Acknowledge the press so the client stops its spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("Failed to answer callback query", "error", err)
	}
	if cq.Message == nil || cq.From == nil {
		return
	}

	owner := strconv.FormatInt(cq.From.ID, 10)
	chatID := cq.Message.Chat.ID
	choice, ok := choiceFromCallback(cq.Data)
	if !ok {
		return
	}

	outcome, err := b.controller.HandleChoice(ctx, owner, choice)
	switch {
	case errors.Is(err, intake.ErrNoActiveIntake):
		b.editOrReply(chatID, cq.Message.MessageID, "That bill is no longer waiting. Please upload it again.")
	case err != nil:
		b.editOrReply(chatID, cq.Message.MessageID, "I couldn't save your bill just now. Please try again.")
	case outcome.AwaitText:
		b.editOrReply(chatID, cq.Message.MessageID, "✍️ Please type a short description for this bill:")
	default:
		b.editOrReply(chatID, cq.Message.MessageID, savedMessage(outcome.Record))
	}
}

// handleText routes a free-text message: a waiting intake claims it as a
// description, otherwise it is an unrelated message.
func (b *Bot) handleText(ctx context.Context, owner string, chatID int64, text string) {
	record, err := b.controller.HandleText(ctx, owner, text)
	switch {
	case errors.Is(err, intake.ErrNoActiveIntake):
		b.reply(chatID, "No bill is waiting for a description. Send me a bill photo to get started!")
	case err != nil:
		b.reply(chatID, "I couldn't save your bill just now. Please send the description again.")
	default:
		b.reply(chatID, savedMessage(record))
	}
}

func (b *Bot) handleList(owner string, chatID int64) {
	records, err := b.bills.List(owner, nil, nil)
	if err != nil {
		slog.Error("Failed to list bills", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't fetch your bills. Please try again.")
		return
	}
	if len(records) > listLimit {
		records = records[:listLimit]
	}
	b.reply(chatID, listMessage(records))
}

func (b *Bot) handleExport(owner string, chatID int64, startStr, endStr string) {
	start, end, err := bill.ParseDateRange(startStr, endStr)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	records, err := b.bills.List(owner, start, end)
	if err != nil {
		slog.Error("Failed to list bills for export", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't fetch your bills. Please try again.")
		return
	}

	data, _, err := export.BuildWorkbook(records)
	if err != nil {
		slog.Error("Failed to build export", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't generate the export. Please try again.")
		return
	}

	filename := fmt.Sprintf("bills_%s_to_%s.xlsx", startStr, endStr)
	caption := fmt.Sprintf("Your bills from %s to %s", startStr, endStr)
	if err := b.replyDocument(chatID, filename, data, caption); err != nil {
		slog.Error("Failed to send export", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't send the export file. Please try again.")
	}
}

func (b *Bot) handleEmail(ctx context.Context, owner string, chatID int64, address, startStr, endStr string) {
	if err := bill.ValidateEmail(address); err != nil {
		b.reply(chatID, err.Error())
		return
	}
	start, end, err := bill.ParseDateRange(startStr, endStr)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	records, err := b.bills.List(owner, start, end)
	if err != nil {
		slog.Error("Failed to list bills for email", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't fetch your bills. Please try again.")
		return
	}

	data, _, err := export.BuildWorkbook(records)
	if err != nil {
		slog.Error("Failed to build email report", "owner", owner, "error", err)
		b.reply(chatID, "I couldn't generate the report. Please try again.")
		return
	}

	attachments := []mail.Attachment{{Filename: "bills_report.xlsx", Content: data}}
	for i, rec := range records {
		if rec.ImagePath == "" {
			continue
		}
		img, err := b.storage.Get(rec.ImagePath)
		if err != nil {
			slog.Warn("Skipping missing bill image", "path", rec.ImagePath, "error", err)
			continue
		}
		attachments = append(attachments, mail.Attachment{
			Filename: fmt.Sprintf("bill_%d%s", i+1, pathExt(rec.ImagePath)),
			Content:  img,
		})
	}

	subject := fmt.Sprintf("Your Bill Report - %s to %s", startStr, endStr)
	body := emailBody(startStr, endStr)
	if err := b.mailer.SendReport(ctx, address, subject, body, attachments); err != nil {
		slog.Error("Failed to send report email", "owner", owner, "error", err)
		b.reply(chatID, deliveryFailureMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ Bills sent to %s!", address))
}

func (b *Bot) editOrReply(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.reply(chatID, text)
	}
}

func descriptionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Write my own", "desc:manual"),
			tgbotapi.NewInlineKeyboardButtonData("🤖 Auto generate", "desc:auto"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Skip description", "desc:skip"),
		),
	)
}

func choiceFromCallback(data string) (intake.Choice, bool) {
	switch data {
	case "desc:manual":
		return intake.ChoiceManual, true
	case "desc:auto":
		return intake.ChoiceAuto, true
	case "desc:skip":
		return intake.ChoiceSkip, true
	}
	return "", false
}

func pathExt(path string) string {
	if idx := strings.LastIndex(path, "."); idx != -1 {
		return path[idx:]
	}
	return ""
}
