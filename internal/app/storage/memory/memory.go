package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/domain/sleeplog"
	"github.com/winddownhq/winddown/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Missing rows surface as sql.ErrNoRows so callers classify
// failures the same way against either backend.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	routines  map[string]routine.Routine
	steps     map[string][]routine.Step
	sleepLogs map[string]sleeplog.Log
}

var _ storage.RoutineStore = (*Store)(nil)
var _ storage.SleepLogStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:    1,
		routines:  make(map[string]routine.Routine),
		steps:     make(map[string][]routine.Step),
		sleepLogs: make(map[string]sleeplog.Log),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// RoutineStore implementation -------------------------------------------------

func (s *Store) CreateRoutine(_ context.Context, r routine.Routine, steps []routine.Step) (routine.Routine, []routine.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.routines[r.ID]; exists {
		return routine.Routine{}, nil, fmt.Errorf("routine %s already exists", r.ID)
	}

	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	stored := make([]routine.Step, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			step.ID = s.nextIDLocked()
		}
		step.RoutineID = r.ID
		step.CreatedAt = now
		stored[i] = step
	}

	s.routines[r.ID] = r
	s.steps[r.ID] = cloneSteps(stored)
	return r, stored, nil
}

func (s *Store) UpdateRoutine(_ context.Context, r routine.Routine, steps []routine.Step, replaceSteps bool) (routine.Routine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.routines[r.ID]
	if !ok || original.UserID != r.UserID {
		return routine.Routine{}, fmt.Errorf("routine %s: %w", r.ID, sql.ErrNoRows)
	}

	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.routines[r.ID] = r

	if replaceSteps {
		now := time.Now().UTC()
		stored := make([]routine.Step, len(steps))
		for i, step := range steps {
			if step.ID == "" {
				step.ID = s.nextIDLocked()
			}
			step.RoutineID = r.ID
			step.CreatedAt = now
			stored[i] = step
		}
		s.steps[r.ID] = stored
	}

	return r, nil
}

func (s *Store) ArchiveRoutine(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routines[id]
	if !ok || r.UserID != userID {
		return fmt.Errorf("routine %s: %w", id, sql.ErrNoRows)
	}

	r.Active = false
	r.UpdatedAt = time.Now().UTC()
	s.routines[id] = r
	return nil
}

func (s *Store) GetRoutine(_ context.Context, userID, id string) (routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routines[id]
	if !ok || r.UserID != userID {
		return routine.Routine{}, fmt.Errorf("routine %s: %w", id, sql.ErrNoRows)
	}
	return r, nil
}

func (s *Store) GetRoutineByID(_ context.Context, id string) (routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routines[id]
	if !ok {
		return routine.Routine{}, fmt.Errorf("routine %s: %w", id, sql.ErrNoRows)
	}
	return r, nil
}

func (s *Store) ListRoutines(_ context.Context, userID string, includeInactive bool) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]routine.Routine, 0)
	for _, r := range s.routines {
		if r.UserID != userID {
			continue
		}
		if !includeInactive && !r.Active {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *Store) ListSteps(_ context.Context, routineID string) ([]routine.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := cloneSteps(s.steps[routineID])
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].OrderIndex < steps[j].OrderIndex
	})
	return steps, nil
}

// SleepLogStore implementation ------------------------------------------------

func (s *Store) CreateSleepLog(_ context.Context, entry sleeplog.Log) (sleeplog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	} else if _, exists := s.sleepLogs[entry.ID]; exists {
		return sleeplog.Log{}, fmt.Errorf("sleep log %s already exists", entry.ID)
	}

	entry.CreatedAt = time.Now().UTC()
	s.sleepLogs[entry.ID] = entry
	return entry, nil
}

func (s *Store) UpdateSleepLog(_ context.Context, entry sleeplog.Log) (sleeplog.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sleepLogs[entry.ID]
	if !ok || original.UserID != entry.UserID {
		return sleeplog.Log{}, fmt.Errorf("sleep log %s: %w", entry.ID, sql.ErrNoRows)
	}

	entry.CreatedAt = original.CreatedAt
	s.sleepLogs[entry.ID] = entry
	return entry, nil
}

func (s *Store) GetSleepLog(_ context.Context, userID, id string) (sleeplog.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sleepLogs[id]
	if !ok || entry.UserID != userID {
		return sleeplog.Log{}, fmt.Errorf("sleep log %s: %w", id, sql.ErrNoRows)
	}
	return entry, nil
}

func (s *Store) ListSleepLogs(_ context.Context, userID string, opts sleeplog.ListOptions) ([]sleeplog.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]sleeplog.Log, 0)
	for _, entry := range s.sleepLogs {
		if entry.UserID != userID {
			continue
		}
		if opts.RoutineID != nil && (entry.RoutineID == nil || *entry.RoutineID != *opts.RoutineID) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SleepDate.Equal(matched[j].SleepDate) {
			return matched[i].SleepDate.After(matched[j].SleepDate)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = sleeplog.DefaultPageSize
	}

	start := (page - 1) * size
	if start >= len(matched) {
		return []sleeplog.Log{}, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func cloneSteps(steps []routine.Step) []routine.Step {
	if steps == nil {
		return nil
	}
	out := make([]routine.Step, len(steps))
	copy(out, steps)
	return out
}
