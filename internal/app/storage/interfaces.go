package storage

import (
	"context"

	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/domain/sleeplog"
)

// RoutineStore persists routines and their ordered steps. Implementations
// report missing rows as sql.ErrNoRows, and user-scoped lookups treat rows
// owned by other users as missing. Writes touching a routine together with
// its step list are atomic.
type RoutineStore interface {
	CreateRoutine(ctx context.Context, r routine.Routine, steps []routine.Step) (routine.Routine, []routine.Step, error)
	UpdateRoutine(ctx context.Context, r routine.Routine, steps []routine.Step, replaceSteps bool) (routine.Routine, error)
	ArchiveRoutine(ctx context.Context, userID, id string) error
	GetRoutine(ctx context.Context, userID, id string) (routine.Routine, error)
	GetRoutineByID(ctx context.Context, id string) (routine.Routine, error)
	ListRoutines(ctx context.Context, userID string, includeInactive bool) ([]routine.Routine, error)
	ListSteps(ctx context.Context, routineID string) ([]routine.Step, error)
}

// SleepLogStore persists sleep session logs.
type SleepLogStore interface {
	CreateSleepLog(ctx context.Context, entry sleeplog.Log) (sleeplog.Log, error)
	UpdateSleepLog(ctx context.Context, entry sleeplog.Log) (sleeplog.Log, error)
	GetSleepLog(ctx context.Context, userID, id string) (sleeplog.Log, error)
	ListSleepLogs(ctx context.Context, userID string, opts sleeplog.ListOptions) ([]sleeplog.Log, error)
}
