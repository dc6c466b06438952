package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/medreminder/internal/clients/caldav"
)

type fakeCalendar struct {
	configured bool
	remote     map[string]caldav.Event
	putErr     error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{configured: true, remote: make(map[string]caldav.Event)}
}

func (f *fakeCalendar) IsConfigured() bool { return f.configured }

func (f *fakeCalendar) FindEvents(ctx context.Context, calendarPath, uidPart string) ([]caldav.Event, error) {
	var out []caldav.Event
	for _, e := range f.remote {
		if strings.Contains(e.UID, uidPart) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) PutEvent(ctx context.Context, calendarPath string, event *caldav.Event) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.remote[event.UID] = *event
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarPath, eventUID string) error {
	delete(f.remote, eventUID)
	return nil
}

func TestBuildEvents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := aspirinInput(t)
	in.TimeOfDay = []string{"09:00", "21:00"}
	m, err := svc.Create(ctx, in)
	require.NoError(t, err)
	paused, err := svc.Create(ctx, aspirinInput(t))
	require.NoError(t, err)
	_, err = svc.ToggleActive(ctx, paused.ID)
	require.NoError(t, err)

	tz := time.FixedZone("MSK", 3*60*60)
	events := BuildEvents(svc.List(), tz, 10*time.Minute)

	require.Len(t, events, 2)
	first := events[0]
	assert.Equal(t, m.ID+"-0900@medreminder", first.UID)
	assert.Equal(t, "💊 Aspirin — 100 mg", first.Summary)
	assert.True(t, first.StartTime.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, tz)))
	assert.Equal(t, 15*time.Minute, first.EndTime.Sub(first.StartTime))
	assert.Equal(t, 10*time.Minute, first.Alarm)

	// the recurrence yields one occurrence per scheduled dose
	require.NotNil(t, first.Recurrence)
	opt := *first.Recurrence
	opt.Dtstart = first.StartTime
	rule, err := rrule.NewRRule(opt)
	require.NoError(t, err)
	assert.Len(t, rule.All(), len(svc.Events(in.StartDate, in.EndDate))/2)
}

func TestBuildEventsAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	svc, _ := newTestService(t)
	in := aspirinInput(t)
	in.StartDate = d(t, "2024-03-28")
	in.EndDate = d(t, "2024-04-02")
	_, err = svc.Create(context.Background(), in)
	require.NoError(t, err)

	events := BuildEvents(svc.List(), berlin, 0)
	require.Len(t, events, 1)

	var buf bytes.Buffer
	require.NoError(t, caldav.Encode(&buf, events))
	assert.Contains(t, buf.String(), "DTSTART;TZID=Europe/Berlin:20240328T090000")

	decoded, err := caldav.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	opt := *decoded[0].Recurrence
	opt.Dtstart = decoded[0].StartTime
	rule, err := rrule.NewRRule(opt)
	require.NoError(t, err)

	occurrences := rule.All()
	require.Len(t, occurrences, 6, "one per day through the end date")
	for _, o := range occurrences {
		local := o.In(berlin)
		assert.Equal(t, 9, local.Hour(), local.String())
	}
	assert.Equal(t, 2, occurrences[5].In(berlin).Day())
}

func TestCalendarSync(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m, err := svc.Create(ctx, aspirinInput(t))
	require.NoError(t, err)

	client := newFakeCalendar()
	client.remote["gone-0800@medreminder"] = caldav.Event{UID: "gone-0800@medreminder"}
	client.remote["dentist"] = caldav.Event{UID: "dentist"}
	client.remote["old-2000@medreminder"] = caldav.Event{
		UID:       "old-2000@medreminder",
		StartTime: time.Date(2019, 5, 1, 20, 0, 0, 0, time.UTC),
	}

	cal := NewCalendarService(svc, client, "/cal/meds/", time.UTC, 0)
	require.True(t, cal.IsConfigured())

	result, err := cal.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pushed)
	assert.Equal(t, 2, result.Deleted)
	assert.Empty(t, result.Errors)
	assert.Contains(t, client.remote, EventUID(m.ID, "09:00"))
	assert.Contains(t, client.remote, "dentist", "foreign events are left alone")
	assert.NotContains(t, client.remote, "gone-0800@medreminder")
	assert.NotContains(t, client.remote, "old-2000@medreminder", "stale events are found whatever their dates")
}

func TestCalendarSyncCollectsErrors(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), aspirinInput(t))
	require.NoError(t, err)

	client := newFakeCalendar()
	client.putErr = errors.New("403 forbidden")
	cal := NewCalendarService(svc, client, "/cal/meds/", time.UTC, 0)

	result, err := cal.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Pushed)
	assert.Len(t, result.Errors, 1)
}

func TestCalendarSyncNotConfigured(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := NewCalendarService(svc, nil, "", time.UTC, 0).Sync(context.Background())
	assert.Error(t, err)

	var client *caldav.Client
	assert.False(t, NewCalendarService(svc, client, "/cal/", time.UTC, 0).IsConfigured())
}

func TestWriteICS(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), aspirinInput(t))
	require.NoError(t, err)
	cal := NewCalendarService(svc, nil, "", time.UTC, 5*time.Minute)

	var buf bytes.Buffer
	require.NoError(t, cal.WriteICS(&buf))

	events, err := caldav.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "💊 Aspirin — 100 mg", events[0].Summary)
	require.NotNil(t, events[0].Recurrence)
	assert.Equal(t, rrule.DAILY, events[0].Recurrence.Freq)
}
