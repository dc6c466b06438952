package caldav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const ProductID = "-//MedReminder//CalDAV//EN"

// Client is a CalDAV client for a single user's calendars
type Client struct {
	baseURL    string
	username   string
	password   string
	calendarID string // Optional: specific calendar to use
	client     *caldav.Client
}

// NewClient creates a new CalDAV client
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has an endpoint and credentials
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != "" && c.username != "" && c.password != ""
}

// SetCalendarID sets the calendar to use
func (c *Client) SetCalendarID(id string) {
	c.calendarID = id
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the user
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			ID:          cal.Path,
			DisplayName: cal.Name,
			URL:         cal.Path,
		})
	}

	return result, nil
}

// FindEvents returns every event whose UID contains uidPart, whatever its dates
func (c *Client) FindEvents(ctx context.Context, calendarPath, uidPart string) ([]Event, error) {
	return c.query(ctx, calendarPath, caldav.CompFilter{
		Name: ical.CompEvent,
		Props: []caldav.PropFilter{
			{Name: ical.PropUID, TextMatch: &caldav.TextMatch{Text: uidPart}},
		},
	})
}

func (c *Client) query(ctx context.Context, calendarPath string, eventFilter caldav.CompFilter) ([]Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	calendarPath, err = c.resolvePath(calendarPath)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{eventFilter},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events = append(events, ParseCalendar(obj.Data)...)
	}

	return events, nil
}

// PutEvent creates or replaces an event; CalDAV PUT is an upsert
func (c *Client) PutEvent(ctx context.Context, calendarPath string, event *Event) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	calendarPath, err = c.resolvePath(calendarPath)
	if err != nil {
		return err
	}

	cal := NewCalendar()
	cal.Children = append(cal.Children, eventToICS(event))

	if _, err := client.PutCalendarObject(ctx, objectPath(calendarPath, event.UID), cal); err != nil {
		return fmt.Errorf("put event %s: %w", event.UID, err)
	}
	return nil
}

// DeleteEvent deletes an event by UID
func (c *Client) DeleteEvent(ctx context.Context, calendarPath, eventUID string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	calendarPath, err = c.resolvePath(calendarPath)
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, objectPath(calendarPath, eventUID)); err != nil {
		return fmt.Errorf("delete event %s: %w", eventUID, err)
	}
	return nil
}

func (c *Client) resolvePath(calendarPath string) (string, error) {
	if calendarPath == "" {
		calendarPath = c.calendarID
	}
	if calendarPath == "" {
		return "", fmt.Errorf("calendar path not specified")
	}
	return calendarPath, nil
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}

// NewCalendar returns an empty VCALENDAR with version and product set
func NewCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	return cal
}

// Encode writes all events as one VCALENDAR document
func Encode(w io.Writer, events []Event) error {
	cal := NewCalendar()
	for i := range events {
		cal.Children = append(cal.Children, eventToICS(&events[i]))
	}
	return ical.NewEncoder(w).Encode(cal)
}

// Decode reads a VCALENDAR document
func Decode(r io.Reader) ([]Event, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	return ParseCalendar(cal), nil
}

// ParseCalendar extracts every VEVENT of cal
func ParseCalendar(cal *ical.Calendar) []Event {
	var events []Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		events = append(events, parseEvent(comp))
	}
	return events
}

func parseEvent(comp *ical.Component) Event {
	event := Event{}

	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		event.UID = prop.Value
	}
	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		event.Summary, _ = prop.Text()
	}
	if prop := comp.Props.Get(ical.PropDescription); prop != nil {
		event.Description, _ = prop.Text()
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			event.StartTime = t
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			event.EndTime = t
		}
	}
	if rule, err := comp.Props.RecurrenceRule(); err == nil {
		event.Recurrence = rule
	}

	return event
}

// eventToICS converts an Event to a VEVENT component
func eventToICS(event *Event) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStart, icsTime(event.StartTime))
	if !event.EndTime.IsZero() {
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, icsTime(event.EndTime))
	}

	if event.Recurrence != nil {
		vevent.Props.SetRecurrenceRule(event.Recurrence)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if event.Alarm > 0 {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, event.Summary)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetValueType(ical.ValueDuration)
		trigger.Value = fmt.Sprintf("-PT%dM", int(event.Alarm.Minutes()))
		alarm.Props.Set(trigger)
		vevent.Children = append(vevent.Children, alarm)
	}

	return vevent.Component
}

// icsTime keeps wall-clock time with a TZID for IANA zones, so a daily rule
// follows DST there. Anything else is written in UTC with the Z suffix.
func icsTime(t time.Time) time.Time {
	loc := t.Location()
	if loc == time.UTC || loc == time.Local || loc.String() == "" {
		return t.UTC()
	}
	if _, err := time.LoadLocation(loc.String()); err != nil {
		return t.UTC()
	}
	return t
}
