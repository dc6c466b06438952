package caldav

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestEncodeDecode(t *testing.T) {
	start := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	events := []Event{
		{
			UID:         "med1-0900@medreminder",
			Summary:     "Aspirin; 100 mg",
			Description: "once a day\nafter food",
			StartTime:   start,
			EndTime:     start.Add(15 * time.Minute),
			Recurrence:  &rrule.ROption{Freq: rrule.DAILY, Until: until},
			Alarm:       10 * time.Minute,
		},
		{
			UID:       "single",
			Summary:   "One-off",
			StartTime: start,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, events))

	raw := buf.String()
	assert.Contains(t, raw, "PRODID:"+ProductID)
	assert.Contains(t, raw, "FREQ=DAILY")
	assert.Contains(t, raw, "UNTIL=20240110T060000Z")
	assert.Contains(t, raw, "-PT10M")
	assert.Equal(t, 1, strings.Count(raw, "BEGIN:VALARM"))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "med1-0900@medreminder", got[0].UID)
	assert.Equal(t, "Aspirin; 100 mg", got[0].Summary)
	assert.Equal(t, "once a day\nafter food", got[0].Description)
	assert.True(t, got[0].StartTime.Equal(start))
	assert.True(t, got[0].EndTime.Equal(start.Add(15*time.Minute)))
	require.NotNil(t, got[0].Recurrence)
	assert.Equal(t, rrule.DAILY, got[0].Recurrence.Freq)
	assert.True(t, got[0].Recurrence.Until.Equal(until))

	assert.Nil(t, got[1].Recurrence)
	assert.True(t, got[1].EndTime.IsZero())
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode(strings.NewReader("not a calendar"))
	assert.Error(t, err)
}

func TestIsConfigured(t *testing.T) {
	var nilClient *Client
	assert.False(t, nilClient.IsConfigured())
	assert.False(t, NewClient("https://dav.example.com", "", "").IsConfigured())
	assert.True(t, NewClient("https://dav.example.com", "user", "secret").IsConfigured())
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/cal/meds/a@b.ics", objectPath("/cal/meds", "a@b"))
	assert.Equal(t, "/cal/meds/a@b.ics", objectPath("/cal/meds/", "a@b"))

	c := NewClient("https://dav.example.com", "u", "p")
	_, err := c.resolvePath("")
	assert.Error(t, err)
	c.SetCalendarID("/cal/default/")
	p, err := c.resolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/cal/default/", p)
}

func TestEncodeKeepsZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, berlin)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []Event{{UID: "a", Summary: "A", StartTime: start, EndTime: start.Add(15 * time.Minute)}}))

	raw := buf.String()
	assert.Contains(t, raw, "DTSTART;TZID=Europe/Berlin:20240601T090000")
	assert.Contains(t, raw, "DTEND;TZID=Europe/Berlin:20240601T091500")

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].StartTime.Equal(start))
	assert.Equal(t, "Europe/Berlin", got[0].StartTime.Location().String())
}

func TestICSTime(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 9, 0, 0, 0, time.FixedZone("MSK", 3*60*60))
	assert.Equal(t, time.UTC, icsTime(fixed).Location())
	assert.True(t, icsTime(fixed).Equal(fixed))

	local := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	assert.Equal(t, time.UTC, icsTime(local).Location())
}
