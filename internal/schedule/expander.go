// Package schedule expands medicines into dose events and answers calendar
// queries over them. Everything here is a pure function of its input.
package schedule

import (
	"sort"

	"github.com/tazhate/medreminder/internal/domain"
)

// Expand returns one event per (medicine, date, time) for every active medicine
// and every date in its inclusive range. The result is grouped by medicine and
// date; it is not sorted across dates. An inverted range yields nothing.
func Expand(medicines []domain.Medicine) []domain.ScheduleEvent {
	var events []domain.ScheduleEvent
	for i := range medicines {
		events = appendMedicine(events, &medicines[i], medicines[i].StartDate, medicines[i].EndDate)
	}
	return events
}

// ExpandRange is Expand restricted to dates within [from, to]. Only the
// overlap of each medicine's range with the window is walked.
func ExpandRange(medicines []domain.Medicine, from, to domain.Date) []domain.ScheduleEvent {
	var events []domain.ScheduleEvent
	for i := range medicines {
		m := &medicines[i]
		start, end := m.StartDate, m.EndDate
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		events = appendMedicine(events, m, start, end)
	}
	return events
}

func appendMedicine(events []domain.ScheduleEvent, m *domain.Medicine, from, to domain.Date) []domain.ScheduleEvent {
	if !m.IsActive || len(m.TimeOfDay) == 0 {
		return events
	}

	times := uniqueSorted(m.TimeOfDay)
	for d := from; !d.After(to); d = d.AddDays(1) {
		for _, t := range times {
			events = append(events, domain.ScheduleEvent{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Dosage:       m.Dosage,
				Date:         d,
				TimeOfDay:    t,
			})
		}
	}
	return events
}

func uniqueSorted(times []string) []string {
	out := make([]string, 0, len(times))
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EventsOnDate returns the events dated d, ordered by time of day
func EventsOnDate(events []domain.ScheduleEvent, d domain.Date) []domain.ScheduleEvent {
	var out []domain.ScheduleEvent
	for _, e := range events {
		if e.Date == d {
			out = append(out, e)
		}
	}
	SortByTime(out)
	return out
}

// EventsInRange returns the events dated within [from, to], ordered by date then time
func EventsInRange(events []domain.ScheduleEvent, from, to domain.Date) []domain.ScheduleEvent {
	var out []domain.ScheduleEvent
	for _, e := range events {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].TimeOfDay < out[j].TimeOfDay
	})
	return out
}

// SortByTime orders events of one day by "HH:MM"; ties keep their input order
func SortByTime(events []domain.ScheduleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimeOfDay < events[j].TimeOfDay
	})
}

// ToggleCompletion returns a copy of set with id flipped. Applying it twice
// with the same id gives back the original membership.
func ToggleCompletion(set domain.CompletionSet, id domain.EventID) domain.CompletionSet {
	out := set.Clone()
	key := id.String()
	if _, ok := out[key]; ok {
		delete(out, key)
	} else {
		out[key] = struct{}{}
	}
	return out
}

// DayStatus classifies the events of a single date against the completion set
func DayStatus(eventsOnDate []domain.ScheduleEvent, set domain.CompletionSet) domain.DayStatus {
	return domain.StatusFor(CountCompleted(eventsOnDate, set), len(eventsOnDate))
}

// CountCompleted returns how many of events are in set
func CountCompleted(events []domain.ScheduleEvent, set domain.CompletionSet) int {
	n := 0
	for _, e := range events {
		if set.Has(e.ID()) {
			n++
		}
	}
	return n
}
