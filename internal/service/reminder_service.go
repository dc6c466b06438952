package service

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/tazhate/medreminder/internal/domain"
)

// ReminderService decides which doses need a nudge and renders the briefings
type ReminderService struct {
	medicines *MedicineService
	timezone  *time.Location

	mu   sync.Mutex
	day  domain.Date
	sent map[string]struct{} // dose ids already reminded today
}

func NewReminderService(medicines *MedicineService, tz *time.Location) *ReminderService {
	if tz == nil {
		tz = time.UTC
	}
	return &ReminderService{
		medicines: medicines,
		timezone:  tz,
		sent:      make(map[string]struct{}),
	}
}

// Today returns the calendar date of now in the service timezone
func (s *ReminderService) Today(now time.Time) domain.Date {
	return domain.DateOf(now.In(s.timezone))
}

// DueDoses returns untaken doses scheduled for the current minute that have not
// been reminded yet
func (s *ReminderService) DueDoses(now time.Time) []DoseView {
	local := now.In(s.timezone)
	today := domain.DateOf(local)
	clock := local.Format("15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.day != today {
		s.day = today
		s.sent = make(map[string]struct{})
	}

	var due []DoseView
	for _, d := range s.medicines.Day(today).Doses {
		if d.Completed || d.TimeOfDay != clock {
			continue
		}
		if _, ok := s.sent[d.ID]; ok {
			continue
		}
		due = append(due, d)
	}
	return due
}

// MarkSent records that a reminder for doseID went out
func (s *ReminderService) MarkSent(doseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[doseID] = struct{}{}
}

// TodayPlan returns today's doses with their taken marks
func (s *ReminderService) TodayPlan(now time.Time) DayView {
	return s.medicines.Day(s.Today(now))
}

// PendingToday returns today's doses not yet taken
func (s *ReminderService) PendingToday(now time.Time) []DoseView {
	var pending []DoseView
	for _, d := range s.TodayPlan(now).Doses {
		if !d.Completed {
			pending = append(pending, d)
		}
	}
	return pending
}

// FormatDay renders a day plan as Telegram HTML
func (s *ReminderService) FormatDay(day DayView) string {
	if day.Total == 0 {
		return "На этот день нет запланированных приемов лекарств"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s %s, %s</b> — %d/%d\n\n",
		day.Status.Emoji(), domain.WeekdayName(day.Date.Weekday()), day.Date.Time(s.timezone).Format("02.01.2006"), day.Completed, day.Total))
	for _, d := range day.Doses {
		sb.WriteString(FormatDose(d))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatDose renders one line: mark, time, name and dosage
func FormatDose(d DoseView) string {
	mark := "⭕"
	if d.Completed {
		mark = "✅"
	}
	return fmt.Sprintf("%s %s %s — %s", mark, d.TimeOfDay, html.EscapeString(d.MedicineName), html.EscapeString(d.Dosage))
}

// FormatMedicineList renders the medicine list with status and times
func FormatMedicineList(meds []domain.Medicine) string {
	if len(meds) == 0 {
		return "Нет лекарств"
	}

	var sb strings.Builder
	for _, m := range meds {
		status := "💊"
		if !m.IsActive {
			status = "⏸"
		}
		sb.WriteString(fmt.Sprintf("%s <b>%s</b> %s\n", status, html.EscapeString(m.Name), html.EscapeString(m.Dosage)))
		sb.WriteString(fmt.Sprintf("    %s – %s, %s\n", m.StartDate.String(), m.EndDate.String(), m.TimesLabel()))
	}
	return sb.String()
}
