package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/clients/caldav"
	"github.com/tazhate/medreminder/internal/domain"
)

const (
	uidSuffix    = "@medreminder"
	doseDuration = 15 * time.Minute
)

// CalendarClient is the part of the CalDAV client the sync needs
type CalendarClient interface {
	IsConfigured() bool
	FindEvents(ctx context.Context, calendarPath, uidPart string) ([]caldav.Event, error)
	PutEvent(ctx context.Context, calendarPath string, event *caldav.Event) error
	DeleteEvent(ctx context.Context, calendarPath, eventUID string) error
}

// CalendarService publishes the dose schedule as iCalendar events: one daily
// recurring event per medicine and time of day
type CalendarService struct {
	medicines    *MedicineService
	client       CalendarClient
	calendarPath string
	timezone     *time.Location
	alarm        time.Duration
}

// NewCalendarService creates a new calendar service; client may be nil
func NewCalendarService(medicines *MedicineService, client CalendarClient, calendarPath string, tz *time.Location, alarm time.Duration) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		medicines:    medicines,
		client:       client,
		calendarPath: calendarPath,
		timezone:     tz,
		alarm:        alarm,
	}
}

// IsConfigured returns true if CalDAV sync can run
func (s *CalendarService) IsConfigured() bool {
	return s.client != nil && s.client.IsConfigured() && s.calendarPath != ""
}

// Events converts active medicines to recurring calendar events
func (s *CalendarService) Events() []caldav.Event {
	return BuildEvents(s.medicines.List(), s.timezone, s.alarm)
}

// WriteICS writes the whole schedule as one .ics document
func (s *CalendarService) WriteICS(w io.Writer) error {
	return caldav.Encode(w, s.Events())
}

// BuildEvents maps each (active medicine, time of day) pair to a VEVENT that
// starts on the first dose and repeats daily through the end date. Start times
// stay in tz so the dose keeps its wall-clock time across DST changes.
func BuildEvents(meds []domain.Medicine, tz *time.Location, alarm time.Duration) []caldav.Event {
	var events []caldav.Event
	for _, m := range meds {
		if !m.IsActive || m.EndDate.Before(m.StartDate) {
			continue
		}
		for _, tod := range m.TimeOfDay {
			start, err := atTime(m.StartDate, tod, tz)
			if err != nil {
				continue
			}
			// last second of the end date
			until := m.EndDate.AddDays(1).Time(tz).Add(-time.Second)

			summary := fmt.Sprintf("💊 %s — %s", m.Name, m.Dosage)
			desc := m.Frequency
			if m.Notes != "" {
				desc = strings.TrimSpace(desc + "\n" + m.Notes)
			}

			events = append(events, caldav.Event{
				UID:         EventUID(m.ID, tod),
				Summary:     summary,
				Description: desc,
				StartTime:   start,
				EndTime:     start.Add(doseDuration),
				Recurrence: &rrule.ROption{
					Freq:  rrule.DAILY,
					Until: until.UTC(),
				},
				Alarm: alarm,
			})
		}
	}
	return events
}

// EventUID is stable across syncs for the same medicine and time
func EventUID(medicineID, timeOfDay string) string {
	return medicineID + "-" + strings.ReplaceAll(timeOfDay, ":", "") + uidSuffix
}

// SyncResult contains sync operation results
type SyncResult struct {
	Pushed  int      `json:"pushed"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// Sync pushes every schedule event and removes events this service created
// earlier that no longer correspond to an active medicine
func (s *CalendarService) Sync(ctx context.Context) (*SyncResult, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	result := &SyncResult{}
	events := s.Events()

	want := make(map[string]bool, len(events))
	for i := range events {
		want[events[i].UID] = true
		if err := s.client.PutEvent(ctx, s.calendarPath, &events[i]); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Pushed++
	}

	remote, err := s.client.FindEvents(ctx, s.calendarPath, uidSuffix)
	if err != nil {
		return result, fmt.Errorf("list remote events: %w", err)
	}
	for _, e := range remote {
		if !strings.HasSuffix(e.UID, uidSuffix) || want[e.UID] {
			continue
		}
		if err := s.client.DeleteEvent(ctx, s.calendarPath, e.UID); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Deleted++
	}

	zap.S().Infow("calendar synced", "pushed", result.Pushed, "deleted", result.Deleted, "errors", len(result.Errors))
	return result, nil
}

func atTime(d domain.Date, timeOfDay string, tz *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", timeOfDay, err)
	}
	return time.Date(d.Year, d.Month, d.Day, clock.Hour(), clock.Minute(), 0, 0, tz), nil
}
