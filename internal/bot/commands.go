package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/service"
)

const helpText = `<b>Команды:</b>

/today — приемы на сегодня
/tomorrow — приемы на завтра
/meds — список лекарств
/help — эта справка

💡 Нажми на прием в списке, чтобы отметить его принятым`

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	text, kb := b.commandReply(msg.Command())

	var err error
	if kb != nil {
		err = b.SendMessageWithKeyboard(chatID, text, *kb)
	} else {
		err = b.SendMessage(chatID, text)
	}
	if err != nil {
		zap.S().Errorw("failed to reply", "command", msg.Command(), "error", err)
	}
}

// commandReply renders the answer to a command without sending it
func (b *Bot) commandReply(cmd string) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch cmd {
	case "start", "help":
		return helpText, nil
	case "today":
		return b.dayReply(0)
	case "tomorrow":
		return b.dayReply(1)
	case "meds":
		return service.FormatMedicineList(b.medicineService.List()), nil
	default:
		return "Неизвестная команда. /help для списка команд", nil
	}
}

// dayReply renders the plan offset days from today
func (b *Bot) dayReply(offset int) (string, *tgbotapi.InlineKeyboardMarkup) {
	date := b.reminderService.Today(b.now()).AddDays(offset)
	day := b.medicineService.Day(date)

	refresh := "today"
	if offset == 1 {
		refresh = "tomorrow"
	}
	return b.reminderService.FormatDay(day), dayKeyboard(day, refresh)
}
