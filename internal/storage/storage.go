package storage

import (
	"context"

	"github.com/tazhate/medreminder/internal/domain"
)

// State is everything that survives a restart: the medicine list and the
// set of doses marked as taken. The two are persisted independently.
type State struct {
	Medicines []domain.Medicine
	Completed domain.CompletionSet
}

// Store loads state once at start and overwrites it whole on every change.
// There is no versioning or merging: the last Save wins.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Close() error
}

// sanitize drops records that cannot take part in scheduling. It never fails:
// a broken record is skipped so the rest of the list keeps rendering.
func sanitize(meds []domain.Medicine, warn func(msg string, kv ...interface{})) []domain.Medicine {
	out := make([]domain.Medicine, 0, len(meds))
	for _, m := range meds {
		switch {
		case m.ID == "":
			warn("skipping medicine without id", "name", m.Name)
			continue
		case m.Name == "":
			warn("skipping medicine without name", "id", m.ID)
			continue
		case m.StartDate.IsZero() || m.EndDate.IsZero():
			warn("skipping medicine without dates", "id", m.ID)
			continue
		}
		times, err := domain.NormalizeTimes(m.TimeOfDay)
		if err != nil {
			warn("dropping invalid times", "id", m.ID, "error", err)
			times = validTimes(m.TimeOfDay)
		}
		m.TimeOfDay = times
		out = append(out, m)
	}
	return out
}

func validTimes(times []string) []string {
	var ok []string
	for _, t := range times {
		if n, err := domain.NormalizeTimes([]string{t}); err == nil {
			ok = append(ok, n...)
		}
	}
	n, _ := domain.NormalizeTimes(ok)
	return n
}
