package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-01-02", want: "2024-01-02"},
		{in: " 2024-01-02 ", want: "2024-01-02"},
		{in: "2024-01-02T00:00:00.000Z", want: "2024-01-02"},
		{in: "2024-01-01T21:00:00.000Z", want: "2024-01-01"},
		{in: "2024-01-02T23:30:00+03:00", want: "2024-01-02"},
		{in: "02.01.2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := mustDate(t, "2024-02-28")

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", mustDate(t, "2024-01-01").AddDays(-1).String())
	assert.Equal(t, 2, d.DaysUntil(mustDate(t, "2024-03-01")))
	assert.Equal(t, 3652058, mustDate(t, "0001-01-01").DaysUntil(mustDate(t, "9999-12-31")))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(NewDate(2024, time.February, 28)))
	assert.Equal(t, time.Wednesday, d.Weekday())
}

func TestDateJSON(t *testing.T) {
	var out struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-01-05T00:00:00.000Z"}`), &out))
	assert.Equal(t, "2024-01-05", out.D.String())

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-01-05"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"d":"tomorrow"}`), &out))
	assert.Error(t, json.Unmarshal([]byte(`{"d":5}`), &out))
}

func TestMedicineValidate(t *testing.T) {
	base := func() Medicine {
		return Medicine{
			Name:      " Aspirin ",
			Dosage:    "100 mg",
			StartDate: mustDate(t, "2024-01-01"),
			EndDate:   mustDate(t, "2024-01-03"),
			TimeOfDay: []string{"21:00", "9:00", "09:00"},
		}
	}

	m := base()
	require.NoError(t, m.Validate())
	assert.Equal(t, "Aspirin", m.Name)
	assert.Equal(t, []string{"09:00", "21:00"}, m.TimeOfDay)

	tests := []struct {
		name   string
		mutate func(*Medicine)
		want   error
	}{
		{name: "empty name", mutate: func(m *Medicine) { m.Name = "  " }, want: ErrEmptyName},
		{name: "empty dosage", mutate: func(m *Medicine) { m.Dosage = "" }, want: ErrEmptyDosage},
		{name: "missing date", mutate: func(m *Medicine) { m.EndDate = Date{} }, want: ErrMissingDate},
		{name: "inverted range", mutate: func(m *Medicine) { m.EndDate = mustDate(t, "2023-12-31") }, want: ErrInvalidDateRange},
		{name: "endless course", mutate: func(m *Medicine) {
			m.StartDate = mustDate(t, "0001-01-01")
			m.EndDate = mustDate(t, "9999-12-31")
		}, want: ErrCourseTooLong},
		{name: "bad time", mutate: func(m *Medicine) { m.TimeOfDay = []string{"25:00"} }, want: ErrInvalidTime},
		{name: "garbage time", mutate: func(m *Medicine) { m.TimeOfDay = []string{"noon"} }, want: ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)
			err := m.Validate()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestMedicineSameDayRangeIsValid(t *testing.T) {
	m := Medicine{
		Name:      "Aspirin",
		Dosage:    "100 mg",
		StartDate: mustDate(t, "2024-01-01"),
		EndDate:   mustDate(t, "2024-01-01"),
	}
	assert.NoError(t, m.Validate())
}

func TestDurationLabel(t *testing.T) {
	tests := []struct {
		end  string
		want string
	}{
		{end: "2024-01-01", want: "0 дней"},
		{end: "2024-01-02", want: "1 день"},
		{end: "2024-01-04", want: "3 дней"},
		{end: "2024-01-08", want: "1 неделя"},
		{end: "2024-01-15", want: "2 недели"},
		{end: "2024-01-31", want: "1 месяц"},
		{end: "2024-04-01", want: "4 месяца"},
		{end: "2024-12-31", want: "13 месяцев"},
	}

	for _, tt := range tests {
		t.Run(tt.end, func(t *testing.T) {
			m := Medicine{StartDate: mustDate(t, "2024-01-01"), EndDate: mustDate(t, tt.end)}
			assert.Equal(t, tt.want, m.DurationLabel())
		})
	}
}

func TestActiveOn(t *testing.T) {
	m := Medicine{StartDate: mustDate(t, "2024-01-01"), EndDate: mustDate(t, "2024-01-03"), IsActive: true}

	assert.True(t, m.ActiveOn(mustDate(t, "2024-01-01")))
	assert.True(t, m.ActiveOn(mustDate(t, "2024-01-03")))
	assert.False(t, m.ActiveOn(mustDate(t, "2024-01-04")))

	m.IsActive = false
	assert.False(t, m.ActiveOn(mustDate(t, "2024-01-02")))
}

func TestEventIDRoundTrip(t *testing.T) {
	id := EventID{
		MedicineID: "3f1c2a9e-8d7b-4c55-9a0e-1b2c3d4e5f60",
		Date:       mustDate(t, "2024-01-02"),
		TimeOfDay:  "09:00",
	}

	s := id.String()
	assert.Equal(t, "3f1c2a9e-8d7b-4c55-9a0e-1b2c3d4e5f60-2024-01-02-09:00", s)

	parsed, err := ParseEventID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseEventIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "m1", "-2024-01-02-09:00", "m1-2024-13-02-09:00", "m1-2024-01-02-9:00x", "m1_2024-01-02-09:00"} {
		_, err := ParseEventID(in)
		assert.ErrorIs(t, err, ErrInvalidEventID, in)
	}
}

func TestCompletionSetRemoveMedicine(t *testing.T) {
	s := NewCompletionSet(
		"m1-2024-01-01-09:00",
		"m1-2024-01-02-09:00",
		"m10-2024-01-01-09:00",
		"m2-2024-01-01-09:00",
	)

	removed := s.RemoveMedicine("m1")

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"m10-2024-01-01-09:00", "m2-2024-01-01-09:00"}, s.Slice())
}

func TestCompletionSetRetainSchedule(t *testing.T) {
	m := Medicine{
		ID:        "m1",
		StartDate: mustDate(t, "2024-01-01"),
		EndDate:   mustDate(t, "2024-01-02"),
		TimeOfDay: []string{"09:00"},
	}
	s := NewCompletionSet(
		"m1-2024-01-01-09:00",
		"m1-2024-01-01-21:00",
		"m1-2024-01-03-09:00",
		"m10-2024-01-03-09:00",
	)

	removed := s.RetainSchedule(&m)

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"m1-2024-01-01-09:00", "m10-2024-01-03-09:00"}, s.Slice())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, DayNone, StatusFor(0, 0))
	assert.Equal(t, DayPending, StatusFor(0, 3))
	assert.Equal(t, DayPartial, StatusFor(1, 3))
	assert.Equal(t, DayCompleted, StatusFor(3, 3))
}

func TestWeekdayNames(t *testing.T) {
	d := mustDate(t, "2024-01-02")
	assert.Equal(t, "Вторник", WeekdayName(d.Weekday()))
	assert.Equal(t, "Вт", WeekdayNameShort(d.Weekday()))
	assert.Equal(t, "", WeekdayName(time.Weekday(9)))
}
