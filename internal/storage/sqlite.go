package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sqlx.DB
}

// medicineRow mirrors the medicines table
type medicineRow struct {
	ID        string         `db:"id"`
	Position  int            `db:"position"`
	Name      string         `db:"name"`
	Dosage    string         `db:"dosage"`
	Frequency string         `db:"frequency"`
	StartDate string         `db:"start_date"`
	EndDate   string         `db:"end_date"`
	TimeOfDay string         `db:"time_of_day"`
	Notes     sql.NullString `db:"notes"`
	IsActive  bool           `db:"is_active"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// NewSQLite opens (or creates) the database at dbPath and applies migrations.
// ":memory:" gives a private in-memory database.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// every new connection to :memory: is a new empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS medicines (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL,
			dosage TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			time_of_day TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS completed_events (
			event_id TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_medicines_position ON medicines(position)`,
		// Notes were added after the first release
		`ALTER TABLE medicines ADD COLUMN notes TEXT DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// Load reads both collections. Rows that fail to decode are skipped.
func (s *SQLite) Load(ctx context.Context) (State, error) {
	var rows []medicineRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, position, name, dosage, frequency, start_date, end_date, time_of_day, notes, is_active, updated_at
		 FROM medicines ORDER BY position, id`)
	if err != nil {
		return State{}, fmt.Errorf("select medicines: %w", err)
	}

	meds := make([]domain.Medicine, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			zap.S().Warnw("skipping malformed medicine row", "id", r.ID, "error", err)
			continue
		}
		meds = append(meds, m)
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT event_id FROM completed_events ORDER BY event_id`); err != nil {
		return State{}, fmt.Errorf("select completed events: %w", err)
	}

	return State{
		Medicines: sanitize(meds, zap.S().Warnw),
		Completed: domain.NewCompletionSet(ids...),
	}, nil
}

// Save replaces both tables in a single transaction
func (s *SQLite) Save(ctx context.Context, state State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM medicines`); err != nil {
		return fmt.Errorf("clear medicines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM completed_events`); err != nil {
		return fmt.Errorf("clear completed events: %w", err)
	}

	now := time.Now()
	for i, m := range state.Medicines {
		row, err := fromDomain(m, i, now)
		if err != nil {
			return fmt.Errorf("encode medicine %s: %w", m.ID, err)
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO medicines (id, position, name, dosage, frequency, start_date, end_date, time_of_day, notes, is_active, updated_at)
			 VALUES (:id, :position, :name, :dosage, :frequency, :start_date, :end_date, :time_of_day, :notes, :is_active, :updated_at)`,
			row)
		if err != nil {
			return fmt.Errorf("insert medicine %s: %w", m.ID, err)
		}
	}

	for _, id := range state.Completed.Slice() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO completed_events (event_id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("insert completed event %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r medicineRow) toDomain() (domain.Medicine, error) {
	start, err := domain.ParseDate(r.StartDate)
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("start date: %w", err)
	}
	end, err := domain.ParseDate(r.EndDate)
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("end date: %w", err)
	}

	var times []string
	if r.TimeOfDay != "" {
		if err := json.Unmarshal([]byte(r.TimeOfDay), &times); err != nil {
			return domain.Medicine{}, fmt.Errorf("time_of_day: %w", err)
		}
	}

	return domain.Medicine{
		ID:        r.ID,
		Name:      r.Name,
		Dosage:    r.Dosage,
		Frequency: r.Frequency,
		StartDate: start,
		EndDate:   end,
		TimeOfDay: times,
		Notes:     r.Notes.String,
		IsActive:  r.IsActive,
	}, nil
}

func fromDomain(m domain.Medicine, position int, now time.Time) (medicineRow, error) {
	times := m.TimeOfDay
	if times == nil {
		times = []string{}
	}
	data, err := json.Marshal(times)
	if err != nil {
		return medicineRow{}, err
	}
	return medicineRow{
		ID:        m.ID,
		Position:  position,
		Name:      m.Name,
		Dosage:    m.Dosage,
		Frequency: m.Frequency,
		StartDate: m.StartDate.String(),
		EndDate:   m.EndDate.String(),
		TimeOfDay: string(data),
		Notes:     sql.NullString{String: m.Notes, Valid: true},
		IsActive:  m.IsActive,
		UpdatedAt: now,
	}, nil
}
