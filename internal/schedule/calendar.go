package schedule

import (
	"time"

	"github.com/tazhate/medreminder/internal/domain"
)

// Palette colours medicines by their position in the list
var Palette = []string{
	"#667eea",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
	"#06b6d4",
	"#84cc16",
	"#f97316",
	"#ec4899",
	"#14b8a6",
}

// MedicineDay summarizes one medicine's doses on one date
type MedicineDay struct {
	MedicineID string           `json:"medicineId"`
	Name       string           `json:"name"`
	Color      string           `json:"color"`
	Completed  int              `json:"completed"`
	Total      int              `json:"total"`
	Status     domain.DayStatus `json:"status"`
}

// MonthGrid returns the dates of a month laid out Monday-first. Leading cells
// before the 1st are nil.
func MonthGrid(year int, month time.Month) []*domain.Date {
	first := domain.NewDate(year, month, 1)
	lead := (int(first.Weekday()) + 6) % 7
	days := daysIn(year, month)

	grid := make([]*domain.Date, lead, lead+days)
	for d := 1; d <= days; d++ {
		date := domain.NewDate(year, month, d)
		grid = append(grid, &date)
	}
	return grid
}

// WeekHeader returns short weekday names in grid order, Monday first
func WeekHeader() []string {
	out := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		out = append(out, domain.WeekdayNameShort(time.Weekday(i%7)))
	}
	return out
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayMedicines groups the events of a single date by medicine, in order of first
// appearance. Colours follow the medicine's index in medicines.
func DayMedicines(eventsOnDate []domain.ScheduleEvent, set domain.CompletionSet, medicines []domain.Medicine) []MedicineDay {
	index := make(map[string]int, len(medicines))
	for i, m := range medicines {
		index[m.ID] = i
	}

	var out []MedicineDay
	pos := make(map[string]int)
	for _, e := range eventsOnDate {
		i, ok := pos[e.MedicineID]
		if !ok {
			color := Palette[0]
			if idx, known := index[e.MedicineID]; known {
				color = Palette[idx%len(Palette)]
			}
			out = append(out, MedicineDay{MedicineID: e.MedicineID, Name: e.MedicineName, Color: color})
			i = len(out) - 1
			pos[e.MedicineID] = i
		}
		out[i].Total++
		if set.Has(e.ID()) {
			out[i].Completed++
		}
	}
	for i := range out {
		out[i].Status = domain.StatusFor(out[i].Completed, out[i].Total)
	}
	return out
}
