package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tazhate/medreminder/internal/domain"
)

const (
	medicinesFile = "medicines.json"
	completedFile = "completedEvents.json"
)

// JSONFile keeps the two collections as separate JSON documents in one
// directory, in the same shape the browser app kept them in local storage.
type JSONFile struct {
	dir string
}

func NewJSONFile(dir string) (*JSONFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile{dir: dir}, nil
}

func (s *JSONFile) Close() error { return nil }

// Load never fails on bad content: an unreadable document yields an empty
// collection, a bad record inside a readable one is skipped.
func (s *JSONFile) Load(ctx context.Context) (State, error) {
	state := State{Completed: domain.NewCompletionSet()}

	var raw []json.RawMessage
	if err := s.read(medicinesFile, &raw); err != nil {
		zap.S().Warnw("medicines file unreadable, starting empty", "error", err)
	}
	meds := make([]domain.Medicine, 0, len(raw))
	for i, r := range raw {
		var m domain.Medicine
		if err := json.Unmarshal(r, &m); err != nil {
			zap.S().Warnw("skipping malformed medicine record", "index", i, "error", err)
			continue
		}
		meds = append(meds, m)
	}
	state.Medicines = sanitize(meds, zap.S().Warnw)

	var ids []string
	if err := s.read(completedFile, &ids); err != nil {
		zap.S().Warnw("completed events file unreadable, starting empty", "error", err)
	}
	state.Completed = domain.NewCompletionSet(ids...)

	return state, ctx.Err()
}

func (s *JSONFile) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meds := state.Medicines
	if meds == nil {
		meds = []domain.Medicine{}
	}
	if err := s.write(medicinesFile, meds); err != nil {
		return err
	}
	return s.write(completedFile, state.Completed.Slice())
}

func (s *JSONFile) read(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces the file atomically via rename
func (s *JSONFile) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
