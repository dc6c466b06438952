package caldav

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Calendar represents a remote calendar collection
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event represents a calendar event
type Event struct {
	UID         string // Unique ID in CalDAV
	Summary     string // Title
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Recurrence  *rrule.ROption // nil for one-off events
	Alarm       time.Duration  // reminder before start, 0 = none
}
