package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/config"
	"github.com/tazhate/medreminder/internal/service"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
	SendDoseReminder(chatID int64, dose service.DoseView) error
}

type Scheduler struct {
	cron            *cron.Cron
	cfg             *config.Config
	reminderService *service.ReminderService
	sender          MessageSender
	now             func() time.Time
}

func New(cfg *config.Config, reminderSvc *service.ReminderService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:            c,
		cfg:             cfg,
		reminderService: reminderSvc,
		now:             time.Now,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// DailySpec turns "HH:MM" into a five-field cron spec firing once a day
func DailySpec(clock string) (string, error) {
	h, m, ok := strings.Cut(clock, ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q", clock)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", clock)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Утренний план приема
	morningSpec, err := DailySpec(s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("morning time: %w", err)
	}
	if _, err := s.cron.AddFunc(morningSpec, s.morningBriefing); err != nil {
		return fmt.Errorf("add morning briefing: %w", err)
	}

	// Вечерний чекин
	eveningSpec, err := DailySpec(s.cfg.EveningTime)
	if err != nil {
		return fmt.Errorf("evening time: %w", err)
	}
	if _, err := s.cron.AddFunc(eveningSpec, s.eveningCheckin); err != nil {
		return fmt.Errorf("add evening checkin: %w", err)
	}

	// Проверка доз каждую минуту
	if _, err := s.cron.AddFunc("* * * * *", s.checkReminders); err != nil {
		return fmt.Errorf("add reminder check: %w", err)
	}

	s.cron.Start()
	zap.S().Infow("scheduler started",
		"tz", s.cfg.Timezone.String(), "morning", s.cfg.MorningTime, "evening", s.cfg.EveningTime)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) morningBriefing() {
	if s.sender == nil {
		return
	}

	day := s.reminderService.TodayPlan(s.now())

	text := "☀️ <b>Доброе утро!</b>\n\n"
	if day.Total == 0 {
		text += "Сегодня лекарства принимать не нужно."
	} else {
		text += fmt.Sprintf("<b>Сегодня приемов: %d</b>\n\n", day.Total)
		text += s.reminderService.FormatDay(day)
	}

	if err := s.sender.SendMessage(s.cfg.TelegramChatID, text); err != nil {
		zap.S().Errorw("failed to send morning briefing", "error", err)
	}
}

func (s *Scheduler) eveningCheckin() {
	if s.sender == nil {
		return
	}

	pending := s.reminderService.PendingToday(s.now())
	day := s.reminderService.TodayPlan(s.now())
	if day.Total == 0 {
		return
	}

	text := "🌙 <b>Вечерний чекин</b>\n\n"
	if len(pending) == 0 {
		text += "Все лекарства на сегодня приняты! 🎉"
	} else {
		text += fmt.Sprintf("Не отмечено приемов: %d из %d\n\n", len(pending), day.Total)
		for _, d := range pending {
			text += service.FormatDose(d) + "\n"
		}
		text += "\n/today — отметить"
	}

	if err := s.sender.SendMessage(s.cfg.TelegramChatID, text); err != nil {
		zap.S().Errorw("failed to send evening checkin", "error", err)
	}
}

func (s *Scheduler) checkReminders() {
	if s.sender == nil {
		return
	}

	for _, dose := range s.reminderService.DueDoses(s.now()) {
		if err := s.sender.SendDoseReminder(s.cfg.TelegramChatID, dose); err != nil {
			zap.S().Errorw("failed to send dose reminder", "dose", dose.ID, "error", err)
			continue
		}

		// Повторно в эту минуту не напоминаем
		s.reminderService.MarkSent(dose.ID)
	}
}
