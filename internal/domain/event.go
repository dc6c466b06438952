package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EventID identifies one dose: medicine, calendar date and time of day.
// Its string form is "<medicineID>-<YYYY-MM-DD>-<HH:MM>".
type EventID struct {
	MedicineID string
	Date       Date
	TimeOfDay  string
}

func (id EventID) String() string {
	return id.MedicineID + "-" + id.Date.String() + "-" + id.TimeOfDay
}

// ParseEventID splits an id from the right, so medicine ids may contain dashes
func ParseEventID(s string) (EventID, error) {
	// "-YYYY-MM-DD-HH:MM" is 17 bytes
	const suffixLen = 1 + len(DateLayout) + 1 + len("15:04")
	if len(s) <= suffixLen {
		return EventID{}, fmt.Errorf("%w: %q", ErrInvalidEventID, s)
	}
	medicineID := s[:len(s)-suffixLen]
	rest := s[len(s)-suffixLen:]
	if rest[0] != '-' || rest[11] != '-' {
		return EventID{}, fmt.Errorf("%w: %q", ErrInvalidEventID, s)
	}
	date, err := ParseDate(rest[1:11])
	if err != nil {
		return EventID{}, fmt.Errorf("%w: %q", ErrInvalidEventID, s)
	}
	tod := rest[12:]
	if !timeOfDayRe.MatchString(tod) {
		return EventID{}, fmt.Errorf("%w: %q", ErrInvalidEventID, s)
	}
	return EventID{MedicineID: medicineID, Date: date, TimeOfDay: tod}, nil
}

// ScheduleEvent is one dose occurrence derived from a Medicine. Never stored.
type ScheduleEvent struct {
	MedicineID   string `json:"medicineId"`
	MedicineName string `json:"medicineName"`
	Dosage       string `json:"dosage"`
	Date         Date   `json:"date"`
	TimeOfDay    string `json:"timeOfDay"`
}

func (e ScheduleEvent) ID() EventID {
	return EventID{MedicineID: e.MedicineID, Date: e.Date, TimeOfDay: e.TimeOfDay}
}

// CompletionSet holds the ids of doses marked as taken
type CompletionSet map[string]struct{}

func NewCompletionSet(ids ...string) CompletionSet {
	s := make(CompletionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s CompletionSet) Has(id EventID) bool {
	_, ok := s[id.String()]
	return ok
}

func (s CompletionSet) Clone() CompletionSet {
	out := make(CompletionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same ids
func (s CompletionSet) Equal(other CompletionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// RemoveMedicine drops every completion belonging to medicineID
func (s CompletionSet) RemoveMedicine(medicineID string) int {
	prefix := medicineID + "-"
	removed := 0
	for id := range s {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if parsed, err := ParseEventID(id); err == nil && parsed.MedicineID != medicineID {
			continue
		}
		delete(s, id)
		removed++
	}
	return removed
}

// RetainSchedule drops the completions of m that are no longer among its doses
func (s CompletionSet) RetainSchedule(m *Medicine) int {
	removed := 0
	for id := range s {
		parsed, err := ParseEventID(id)
		if err != nil || parsed.MedicineID != m.ID || m.Schedules(parsed) {
			continue
		}
		delete(s, id)
		removed++
	}
	return removed
}

// Slice returns the ids sorted, for stable persistence
func (s CompletionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DayStatus is the aggregate completion state of one calendar day
type DayStatus string

const (
	DayNone      DayStatus = "none"
	DayPending   DayStatus = "pending"
	DayPartial   DayStatus = "partial"
	DayCompleted DayStatus = "completed"
)

// StatusFor classifies completed out of total doses
func StatusFor(completed, total int) DayStatus {
	switch {
	case total == 0:
		return DayNone
	case completed >= total:
		return DayCompleted
	case completed == 0:
		return DayPending
	default:
		return DayPartial
	}
}

// Emoji returns the calendar marker for the status
func (s DayStatus) Emoji() string {
	switch s {
	case DayCompleted:
		return "✅"
	case DayPartial:
		return "🟡"
	case DayPending:
		return "⭕"
	default:
		return ""
	}
}

// Label returns the legend text for the status
func (s DayStatus) Label() string {
	switch s {
	case DayCompleted:
		return "Все принято"
	case DayPartial:
		return "Частично принято"
	case DayPending:
		return "Ожидает приема"
	default:
		return "Нет приемов"
	}
}
