package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Frequency labels offered by the medicine form. Free text is accepted too.
const (
	FrequencyOnce      = "1 раз в день"
	FrequencyTwice     = "2 раза в день"
	FrequencyThrice    = "3 раза в день"
	FrequencyFourTimes = "4 раза в день"
	FrequencyAsNeeded  = "По необходимости"
)

// MaxCourseDays bounds the date range of one medicine
const MaxCourseDays = 3660

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Medicine is a user-defined regimen: what to take, how much, on which days and at what times
type Medicine struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency string   `json:"frequency"`
	StartDate Date     `json:"startDate"`
	EndDate   Date     `json:"endDate"`
	TimeOfDay []string `json:"timeOfDay"` // "HH:MM", sorted, unique
	Notes     string   `json:"notes,omitempty"`
	IsActive  bool     `json:"isActive"`
}

// Schedules reports whether id is one of the medicine's doses, ignoring the active flag
func (m *Medicine) Schedules(id EventID) bool {
	if id.MedicineID != m.ID || id.Date.Before(m.StartDate) || id.Date.After(m.EndDate) {
		return false
	}
	for _, t := range m.TimeOfDay {
		if t == id.TimeOfDay {
			return true
		}
	}
	return false
}

// ActiveOn reports whether the medicine produces doses on d
func (m *Medicine) ActiveOn(d Date) bool {
	return m.IsActive && !d.Before(m.StartDate) && !d.After(m.EndDate)
}

// DurationDays returns the length of the range as end minus start
func (m *Medicine) DurationDays() int {
	return m.StartDate.DaysUntil(m.EndDate)
}

// DurationLabel returns the human readable course length
func (m *Medicine) DurationLabel() string {
	days := m.DurationDays()
	switch {
	case days == 1:
		return "1 день"
	case days < 7:
		return fmt.Sprintf("%d дней", days)
	case days < 30:
		weeks := (days + 6) / 7
		return fmt.Sprintf("%d %s", weeks, plural(weeks, "неделя", "недели", "недель"))
	default:
		months := (days + 29) / 30
		return fmt.Sprintf("%d %s", months, plural(months, "месяц", "месяца", "месяцев"))
	}
}

// StatusText returns the history label for the active flag
func (m *Medicine) StatusText() string {
	if m.IsActive {
		return "Активно"
	}
	return "Завершено"
}

// TimesLabel joins the dose times for display
func (m *Medicine) TimesLabel() string {
	return strings.Join(m.TimeOfDay, ", ")
}

// Validate trims text fields, sorts and dedupes times and checks the date range.
func (m *Medicine) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Dosage = strings.TrimSpace(m.Dosage)
	m.Frequency = strings.TrimSpace(m.Frequency)
	m.Notes = strings.TrimSpace(m.Notes)

	if m.Name == "" {
		return ErrEmptyName
	}
	if m.Dosage == "" {
		return ErrEmptyDosage
	}
	if m.StartDate.IsZero() || m.EndDate.IsZero() {
		return ErrMissingDate
	}
	if m.EndDate.Before(m.StartDate) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDateRange, m.EndDate, m.StartDate)
	}
	if days := m.DurationDays(); days > MaxCourseDays {
		return fmt.Errorf("%w: %d days, at most %d", ErrCourseTooLong, days, MaxCourseDays)
	}

	times, err := NormalizeTimes(m.TimeOfDay)
	if err != nil {
		return err
	}
	m.TimeOfDay = times
	return nil
}

// NormalizeTimes validates "HH:MM" entries and returns them sorted without duplicates.
// Single-digit hours ("9:30") are zero-padded.
func NormalizeTimes(times []string) ([]string, error) {
	seen := make(map[string]struct{}, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if len(t) == 4 && t[1] == ':' {
			t = "0" + t
		}
		if !timeOfDayRe.MatchString(t) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTime, t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func plural(n int, one, few, many string) string {
	switch {
	case n == 1:
		return one
	case n < 5:
		return few
	default:
		return many
	}
}
