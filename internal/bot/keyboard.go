package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/medreminder/internal/service"
)

const (
	actionTake    = "take"
	actionRefresh = "refresh"
)

// Single reminder keyboard
func doseKeyboard(dose service.DoseView) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принято", actionTake+":"+dose.ID),
		),
	)
}

// Day plan keyboard: one toggle per dose, then refresh
func dayKeyboard(day service.DayView, refresh string) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, d := range day.Doses {
		mark := "⭕"
		if d.Completed {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s %s", mark, d.TimeOfDay, truncate(d.MedicineName, 30)),
				actionTake+":"+d.ID,
			),
		))
		if len(rows) >= 20 {
			break
		}
	}
	if len(rows) == 0 {
		return nil
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄", actionRefresh+":"+refresh),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
