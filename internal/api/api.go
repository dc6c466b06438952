package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/domain"
	"github.com/tazhate/medreminder/internal/service"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Options struct {
	Username string // Basic Auth is off when empty
	Password string
	Timezone *time.Location
}

type API struct {
	opts      Options
	medicines *service.MedicineService
	calendar  *service.CalendarService
	now       func() time.Time
}

func New(opts Options, medicines *service.MedicineService, calendar *service.CalendarService) *API {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	return &API{
		opts:      opts,
		medicines: medicines,
		calendar:  calendar,
		now:       time.Now,
	}
}

// Router builds the HTTP handler with every route registered
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Use(a.basicAuth)

		// Medicines
		ar.Get("/medicines", a.listMedicines)
		ar.Post("/medicines", a.createMedicine)
		ar.Get("/medicines/{id}", a.getMedicine)
		ar.Put("/medicines/{id}", a.updateMedicine)
		ar.Delete("/medicines/{id}", a.deleteMedicine)
		ar.Post("/medicines/{id}/toggle", a.toggleMedicine)
		ar.Get("/history", a.history)

		// Schedule
		ar.Get("/calendar/day", a.calendarDay)
		ar.Get("/calendar/month", a.calendarMonth)
		ar.Get("/events", a.events)
		ar.Post("/events/{eventID}/toggle", a.toggleEvent)

		// Calendar export
		ar.Get("/calendar.ics", a.calendarICS)
		ar.Post("/calendar/sync", a.calendarSync)
	})

	return r
}

// basicAuth middleware
func (a *API) basicAuth(next http.Handler) http.Handler {
	if a.opts.Username == "" || a.opts.Password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != a.opts.Username || password != a.opts.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="MedReminder API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// serviceError maps domain errors to status codes
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrEmptyDosage),
		errors.Is(err, domain.ErrMissingDate),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrCourseTooLong),
		errors.Is(err, domain.ErrInvalidTime),
		errors.Is(err, domain.ErrInvalidEventID):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		zap.S().Errorw("request failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/medicines
func (a *API) listMedicines(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, a.medicines.List())
}

// POST /api/medicines
func (a *API) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req service.MedicineInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	m, err := a.medicines.Create(r.Context(), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}

// GET /api/medicines/{id}
func (a *API) getMedicine(w http.ResponseWriter, r *http.Request) {
	m, err := a.medicines.Get(chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, m)
}

// PUT /api/medicines/{id}
func (a *API) updateMedicine(w http.ResponseWriter, r *http.Request) {
	var req service.MedicineInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	m, err := a.medicines.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, m)
}

// DELETE /api/medicines/{id}
func (a *API) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	if err := a.medicines.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"deleted": true})
}

// POST /api/medicines/{id}/toggle - pause or resume
func (a *API) toggleMedicine(w http.ResponseWriter, r *http.Request) {
	m, err := a.medicines.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, m)
}

// GET /api/history?q=&status=&sort=
func (a *API) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.HistoryFilter{
		Query:  q.Get("q"),
		Status: q.Get("status"),
		SortBy: q.Get("sort"),
	}
	switch filter.Status {
	case "", "all", "active", "inactive":
	default:
		jsonError(w, "status must be all, active or inactive", http.StatusBadRequest)
		return
	}
	jsonResponse(w, http.StatusOK, a.medicines.History(filter))
}

// GET /api/calendar/day?date=YYYY-MM-DD (today by default)
func (a *API) calendarDay(w http.ResponseWriter, r *http.Request) {
	d, ok := a.dateParam(w, r, "date")
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, a.medicines.Day(d))
}

// GET /api/calendar/month?year=&month= (current month by default)
func (a *API) calendarMonth(w http.ResponseWriter, r *http.Request) {
	today := a.today()
	year, month := today.Year, int(today.Month)

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9999 {
			jsonError(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			jsonError(w, "Invalid month (1-12)", http.StatusBadRequest)
			return
		}
		month = n
	}

	jsonResponse(w, http.StatusOK, a.medicines.Month(year, time.Month(month)))
}

// GET /api/events?from=&to= - doses in an inclusive date range
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	from, ok := a.dateParam(w, r, "from")
	if !ok {
		return
	}
	to := from.AddDays(6)
	if r.URL.Query().Get("to") != "" {
		if to, ok = a.dateParam(w, r, "to"); !ok {
			return
		}
	}
	if to.Before(from) {
		jsonError(w, "to is before from", http.StatusBadRequest)
		return
	}
	jsonResponse(w, http.StatusOK, a.medicines.Events(from, to))
}

// POST /api/events/{eventID}/toggle - mark a dose taken or untaken
func (a *API) toggleEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	completed, err := a.medicines.ToggleEvent(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"completed": completed,
	})
}

// GET /api/calendar.ics - subscribe from any calendar app
func (a *API) calendarICS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="medreminder.ics"`)
	if err := a.calendar.WriteICS(w); err != nil {
		zap.S().Errorw("failed to write calendar", "error", err)
	}
}

// POST /api/calendar/sync - push the schedule to CalDAV
func (a *API) calendarSync(w http.ResponseWriter, r *http.Request) {
	if !a.calendar.IsConfigured() {
		jsonError(w, "Calendar not configured", http.StatusServiceUnavailable)
		return
	}

	result, err := a.calendar.Sync(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (a *API) today() domain.Date {
	return domain.DateOf(a.now().In(a.opts.Timezone))
}

// dateParam reads a YYYY-MM-DD query value, defaulting to today
func (a *API) dateParam(w http.ResponseWriter, r *http.Request, name string) (domain.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return a.today(), true
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		jsonError(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return domain.Date{}, false
	}
	return d, true
}
