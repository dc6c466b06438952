package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/domain"
	"github.com/tazhate/medreminder/internal/schedule"
	"github.com/tazhate/medreminder/internal/storage"
)

// MedicineInput is what the create and edit forms submit
type MedicineInput struct {
	Name      string      `json:"name"`
	Dosage    string      `json:"dosage"`
	Frequency string      `json:"frequency"`
	StartDate domain.Date `json:"startDate"`
	EndDate   domain.Date `json:"endDate"`
	TimeOfDay []string    `json:"timeOfDay"`
	Notes     string      `json:"notes"`
}

// MedicineService owns the session: the medicine list and the completion set.
// State is loaded once from the store and written back whole after every change.
type MedicineService struct {
	mu        sync.Mutex
	store     storage.Store
	medicines []domain.Medicine
	completed domain.CompletionSet
	newID     func() string
}

func NewMedicineService(ctx context.Context, store storage.Store) (*MedicineService, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state.Completed == nil {
		state.Completed = domain.NewCompletionSet()
	}

	zap.S().Infow("state loaded", "medicines", len(state.Medicines), "completed", len(state.Completed))

	return &MedicineService{
		store:     store,
		medicines: state.Medicines,
		completed: state.Completed,
		newID:     uuid.NewString,
	}, nil
}

func (s *MedicineService) Create(ctx context.Context, in MedicineInput) (*domain.Medicine, error) {
	m := in.toMedicine()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.ID = s.newID()
	m.IsActive = true

	s.mu.Lock()
	defer s.mu.Unlock()

	s.medicines = append(s.medicines, m)
	s.persist(ctx)

	zap.S().Infow("medicine created", "id", m.ID, "name", m.Name)
	return &m, nil
}

// Update replaces the editable fields; the active flag and id are kept
func (s *MedicineService) Update(ctx context.Context, id string, in MedicineInput) (*domain.Medicine, error) {
	m := in.toMedicine()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("medicine %s: %w", id, domain.ErrNotFound)
	}
	m.ID = id
	m.IsActive = s.medicines[i].IsActive
	s.medicines[i] = m
	// Убираем отметки приемов, которых больше нет в расписании
	if removed := s.completed.RetainSchedule(&m); removed > 0 {
		zap.S().Infow("stale completions removed", "id", id, "count", removed)
	}
	s.persist(ctx)

	return &m, nil
}

// Delete removes the medicine together with its completion marks
func (s *MedicineService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("medicine %s: %w", id, domain.ErrNotFound)
	}
	s.medicines = append(s.medicines[:i:i], s.medicines[i+1:]...)
	removed := s.completed.RemoveMedicine(id)
	s.persist(ctx)

	zap.S().Infow("medicine deleted", "id", id, "completions_removed", removed)
	return nil
}

// ToggleActive flips whether the medicine takes part in the schedule
func (s *MedicineService) ToggleActive(ctx context.Context, id string) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("medicine %s: %w", id, domain.ErrNotFound)
	}
	s.medicines[i].IsActive = !s.medicines[i].IsActive
	s.persist(ctx)

	m := s.medicines[i]
	return &m, nil
}

func (s *MedicineService) Get(id string) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("medicine %s: %w", id, domain.ErrNotFound)
	}
	m := s.medicines[i]
	return &m, nil
}

// List returns a copy of the medicine list in insertion order
func (s *MedicineService) List() []domain.Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ToggleEvent flips the taken mark of one dose and returns the new state.
// Only ids of doses that exist in the current schedule are accepted.
func (s *MedicineService) ToggleEvent(ctx context.Context, rawID string) (bool, error) {
	id, err := domain.ParseEventID(rawID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id.MedicineID)
	if i < 0 || !s.medicines[i].IsActive || !s.medicines[i].Schedules(id) {
		return false, fmt.Errorf("event %s: %w", rawID, domain.ErrNotFound)
	}

	s.completed = schedule.ToggleCompletion(s.completed, id)
	s.persist(ctx)

	return s.completed.Has(id), nil
}

// DoseView is a scheduled dose with its taken mark
type DoseView struct {
	ID string `json:"id"`
	domain.ScheduleEvent
	Completed bool `json:"completed"`
}

// DayView is everything the calendar shows for one date
type DayView struct {
	Date      domain.Date            `json:"date"`
	Status    domain.DayStatus       `json:"status"`
	Completed int                    `json:"completed"`
	Total     int                    `json:"total"`
	Doses     []DoseView             `json:"doses"`
	Medicines []schedule.MedicineDay `json:"medicines"`
}

// MonthCell is one square of the month grid; Date is nil for leading blanks
type MonthCell struct {
	Date      *domain.Date           `json:"date"`
	Status    domain.DayStatus       `json:"status"`
	Completed int                    `json:"completed"`
	Total     int                    `json:"total"`
	Medicines []schedule.MedicineDay `json:"medicines,omitempty"`
}

type MonthView struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Weekdays []string    `json:"weekdays"`
	Cells    []MonthCell `json:"cells"`
}

func (s *MedicineService) Day(d domain.Date) DayView {
	meds, completed := s.snapshot()
	return dayView(schedule.ExpandRange(meds, d, d), completed, meds, d)
}

func (s *MedicineService) Month(year int, month time.Month) MonthView {
	meds, completed := s.snapshot()
	first := domain.Date{Year: year, Month: month, Day: 1}
	last := domain.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	events := schedule.ExpandRange(meds, first, last)

	view := MonthView{Year: year, Month: int(month), Weekdays: schedule.WeekHeader()}
	for _, d := range schedule.MonthGrid(year, month) {
		if d == nil {
			view.Cells = append(view.Cells, MonthCell{Status: domain.DayNone})
			continue
		}
		day := dayView(events, completed, meds, *d)
		view.Cells = append(view.Cells, MonthCell{
			Date:      d,
			Status:    day.Status,
			Completed: day.Completed,
			Total:     day.Total,
			Medicines: day.Medicines,
		})
	}
	return view
}

// Events returns the doses dated within [from, to]
func (s *MedicineService) Events(from, to domain.Date) []DoseView {
	meds, completed := s.snapshot()
	events := schedule.EventsInRange(schedule.ExpandRange(meds, from, to), from, to)
	return doseViews(events, completed)
}

func dayView(events []domain.ScheduleEvent, completed domain.CompletionSet, meds []domain.Medicine, d domain.Date) DayView {
	onDate := schedule.EventsOnDate(events, d)
	done := schedule.CountCompleted(onDate, completed)
	return DayView{
		Date:      d,
		Status:    schedule.DayStatus(onDate, completed),
		Completed: done,
		Total:     len(onDate),
		Doses:     doseViews(onDate, completed),
		Medicines: schedule.DayMedicines(onDate, completed, meds),
	}
}

func doseViews(events []domain.ScheduleEvent, completed domain.CompletionSet) []DoseView {
	out := make([]DoseView, 0, len(events))
	for _, e := range events {
		out = append(out, DoseView{
			ID:            e.ID().String(),
			ScheduleEvent: e,
			Completed:     completed.Has(e.ID()),
		})
	}
	return out
}

// HistoryFilter narrows and orders the history list
type HistoryFilter struct {
	Query  string // matches name or dosage, case-insensitive
	Status string // "all", "active", "inactive"
	SortBy string // "name", "startDate", "endDate"
}

type HistoryEntry struct {
	domain.Medicine
	Duration   string `json:"duration"`
	StatusText string `json:"statusText"`
}

// History lists every medicine, active or not, with its course length
func (s *MedicineService) History(f HistoryFilter) []HistoryEntry {
	meds := s.List()
	query := strings.ToLower(strings.TrimSpace(f.Query))

	entries := make([]HistoryEntry, 0, len(meds))
	for i := range meds {
		m := &meds[i]
		if query != "" &&
			!strings.Contains(strings.ToLower(m.Name), query) &&
			!strings.Contains(strings.ToLower(m.Dosage), query) {
			continue
		}
		switch f.Status {
		case "active":
			if !m.IsActive {
				continue
			}
		case "inactive":
			if m.IsActive {
				continue
			}
		}
		entries = append(entries, HistoryEntry{
			Medicine:   *m,
			Duration:   m.DurationLabel(),
			StatusText: m.StatusText(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch f.SortBy {
		case "name":
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case "endDate":
			return a.EndDate.After(b.EndDate)
		default:
			return a.StartDate.After(b.StartDate)
		}
	})
	return entries
}

// snapshot copies state so callers can compute without holding the lock
func (s *MedicineService) snapshot() ([]domain.Medicine, domain.CompletionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.completed.Clone()
}

func (s *MedicineService) snapshotLocked() []domain.Medicine {
	out := make([]domain.Medicine, len(s.medicines))
	for i, m := range s.medicines {
		m.TimeOfDay = append([]string(nil), m.TimeOfDay...)
		out[i] = m
	}
	return out
}

func (s *MedicineService) indexOf(id string) int {
	for i := range s.medicines {
		if s.medicines[i].ID == id {
			return i
		}
	}
	return -1
}

// persist is best effort: a failed write is logged and the in-memory state stays authoritative
func (s *MedicineService) persist(ctx context.Context) {
	state := storage.State{Medicines: s.snapshotLocked(), Completed: s.completed.Clone()}
	if err := s.store.Save(ctx, state); err != nil {
		zap.S().Errorw("failed to save state", "error", err)
	}
}

func (in MedicineInput) toMedicine() domain.Medicine {
	return domain.Medicine{
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		TimeOfDay: append([]string(nil), in.TimeOfDay...),
		Notes:     in.Notes,
	}
}
