package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/config"
	"github.com/tazhate/medreminder/internal/service"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	cfg             *config.Config
	medicineService *service.MedicineService
	reminderService *service.ReminderService
	now             func() time.Time
}

func New(cfg *config.Config, medicineSvc *service.MedicineService, reminderSvc *service.ReminderService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	zap.S().Infow("telegram authorized", "username", api.Self.UserName)

	bot := &Bot{
		api:             api,
		cfg:             cfg,
		medicineService: medicineSvc,
		reminderService: reminderSvc,
		now:             time.Now,
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "today", Description: "💊 Приемы на сегодня"},
		{Command: "tomorrow", Description: "📅 Приемы на завтра"},
		{Command: "meds", Description: "📋 Список лекарств"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		zap.S().Warnw("failed to set commands", "error", err)
	}
}

// Start polls Telegram for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	zap.S().Info("bot polling started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendDoseReminder sends a dose reminder with a "taken" button
func (b *Bot) SendDoseReminder(chatID int64, dose service.DoseView) error {
	text := fmt.Sprintf("🔔 <b>Пора принять лекарство</b>\n\n%s", service.FormatDose(dose))
	return b.SendMessageWithKeyboard(chatID, text, doseKeyboard(dose))
}
