package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/medreminder/config"
	"github.com/tazhate/medreminder/internal/domain"
	"github.com/tazhate/medreminder/internal/service"
	"github.com/tazhate/medreminder/internal/storage"
)

// newTestBot builds a bot without a Telegram connection; only the
// rendering and toggling paths are exercised
func newTestBot(t *testing.T) (*Bot, *domain.Medicine) {
	t.Helper()
	store, err := storage.NewJSONFile(t.TempDir())
	require.NoError(t, err)

	meds, err := service.NewMedicineService(context.Background(), store)
	require.NoError(t, err)

	start, _ := domain.ParseDate("2024-01-01")
	end, _ := domain.ParseDate("2024-01-02")
	m, err := meds.Create(context.Background(), service.MedicineInput{
		Name:      "Amoxicillin",
		Dosage:    "500 mg",
		StartDate: start,
		EndDate:   end,
		TimeOfDay: []string{"08:00", "20:00"},
	})
	require.NoError(t, err)

	b := &Bot{
		cfg:             &config.Config{TelegramChatID: 1},
		medicineService: meds,
		reminderService: service.NewReminderService(meds, time.UTC),
		now:             func() time.Time { return time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC) },
	}
	return b, m
}

func TestCommandReplyToday(t *testing.T) {
	b, m := newTestBot(t)

	text, kb := b.commandReply("today")

	assert.Contains(t, text, "01.01.2024")
	assert.Contains(t, text, "08:00 Amoxicillin")
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "take:"+m.ID+"-2024-01-01-08:00", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "refresh:today", *kb.InlineKeyboard[2][0].CallbackData)
}

func TestCommandReplyTomorrowAndEmpty(t *testing.T) {
	b, _ := newTestBot(t)

	_, kb := b.commandReply("tomorrow")
	require.NotNil(t, kb)
	assert.Equal(t, "refresh:tomorrow", *kb.InlineKeyboard[len(kb.InlineKeyboard)-1][0].CallbackData)

	b.now = func() time.Time { return time.Date(2024, 1, 5, 7, 0, 0, 0, time.UTC) }
	text, kb := b.commandReply("today")
	assert.Nil(t, kb)
	assert.Contains(t, text, "нет запланированных")
}

func TestCommandReplyOther(t *testing.T) {
	b, _ := newTestBot(t)

	text, _ := b.commandReply("meds")
	assert.Contains(t, text, "<b>Amoxicillin</b> 500 mg")

	text, _ = b.commandReply("help")
	assert.Contains(t, text, "/tomorrow")

	text, _ = b.commandReply("unknown")
	assert.Contains(t, text, "Неизвестная команда")
}

func TestTakeDose(t *testing.T) {
	b, m := newTestBot(t)
	ctx := context.Background()
	id := m.ID + "-2024-01-01-08:00"

	assert.Equal(t, "✅ Принято", b.takeDose(ctx, id))
	text, kb := b.commandReply("today")
	assert.Contains(t, text, "✅ 08:00")
	assert.True(t, strings.HasPrefix(kb.InlineKeyboard[0][0].Text, "✅"))

	assert.Equal(t, "↩️ Отметка снята", b.takeDose(ctx, id))
	assert.Equal(t, "Прием не найден", b.takeDose(ctx, m.ID+"-2024-03-01-08:00"))
	assert.Equal(t, "Прием не найден", b.takeDose(ctx, "garbage"))
}

func TestRefreshFor(t *testing.T) {
	b, m := newTestBot(t)

	assert.Equal(t, "tomorrow", b.refreshFor(m.ID+"-2024-01-02-08:00"))
	assert.Equal(t, "today", b.refreshFor(m.ID+"-2024-01-01-08:00"))
	assert.Equal(t, "today", b.refreshFor("garbage"))
}

func TestDoseKeyboardFitsCallbackLimit(t *testing.T) {
	dose := service.DoseView{ID: "6f1c1d52-8f0a-4a8e-9c55-3d2b1c0e9f77-2024-01-01-08:00"}

	kb := doseKeyboard(dose)

	data := *kb.InlineKeyboard[0][0].CallbackData
	assert.LessOrEqual(t, len(data), 64)
	assert.Equal(t, "take:"+dose.ID, data)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "Амок…", truncate("Амоксициллин", 5))
}
