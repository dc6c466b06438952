package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/domain"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedChat(chatID) {
		_ = b.SendMessage(chatID, "⛔ Доступ запрещён")
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	_ = b.SendMessage(chatID, "/help — список команд")
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedChat(chatID) {
		b.answer(callback.ID, "⛔ Доступ запрещён")
		return
	}

	// Event ids contain ':' themselves, so split only once
	action, arg, _ := strings.Cut(callback.Data, ":")

	switch action {
	case actionTake:
		b.answer(callback.ID, b.takeDose(ctx, arg))
		// Обновляем список на месте, если это был план дня
		if callback.Message.ReplyMarkup != nil && len(callback.Message.ReplyMarkup.InlineKeyboard) > 1 {
			b.refreshDay(chatID, msgID, b.refreshFor(arg))
		} else {
			b.removeKeyboard(chatID, msgID)
		}
	case actionRefresh:
		b.answer(callback.ID, "")
		b.refreshDay(chatID, msgID, arg)
	default:
		b.answer(callback.ID, "")
	}
}

// takeDose toggles the dose and returns the text for the callback answer
func (b *Bot) takeDose(ctx context.Context, eventID string) string {
	completed, err := b.medicineService.ToggleEvent(ctx, eventID)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidEventID):
		return "Прием не найден"
	case err != nil:
		zap.S().Errorw("failed to toggle dose", "event", eventID, "error", err)
		return "❌ Ошибка"
	case completed:
		return "✅ Принято"
	default:
		return "↩️ Отметка снята"
	}
}

// refreshFor picks the day view that contains the toggled dose
func (b *Bot) refreshFor(eventID string) string {
	id, err := domain.ParseEventID(eventID)
	if err != nil {
		return "today"
	}
	if id.Date == b.reminderService.Today(b.now()).AddDays(1) {
		return "tomorrow"
	}
	return "today"
}

func (b *Bot) refreshDay(chatID int64, msgID int, which string) {
	offset := 0
	if which == "tomorrow" {
		offset = 1
	}
	text, kb := b.dayReply(offset)

	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	edit.ReplyMarkup = kb
	if _, err := b.api.Send(edit); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		zap.S().Warnw("failed to refresh day", "error", err)
	}
}

func (b *Bot) removeKeyboard(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		zap.S().Warnw("failed to remove keyboard", "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		zap.S().Warnw("failed to answer callback", "error", err)
	}
}
