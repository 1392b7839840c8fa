package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/domain/sleeplog"
	"github.com/winddownhq/winddown/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.RoutineStore = (*Store)(nil)
var _ storage.SleepLogStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// --- RoutineStore -----------------------------------------------------------

func (s *Store) CreateRoutine(ctx context.Context, r routine.Routine, steps []routine.Step) (routine.Routine, []routine.Step, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	stored := make([]routine.Step, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		step.RoutineID = r.ID
		step.CreatedAt = now
		stored[i] = step
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO routines (id, user_id, name, goal_description, target_bed_time_local, target_wake_time_local, time_zone, notes, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, r.ID, r.UserID, r.Name, r.GoalDescription, r.TargetBedTimeLocal, r.TargetWakeTimeLocal, r.TimeZone, r.Notes, r.Active, r.CreatedAt, r.UpdatedAt); err != nil {
			return err
		}
		return insertSteps(ctx, tx, stored)
	})
	if err != nil {
		return routine.Routine{}, nil, err
	}
	return r, stored, nil
}

func (s *Store) UpdateRoutine(ctx context.Context, r routine.Routine, steps []routine.Step, replaceSteps bool) (routine.Routine, error) {
	now := time.Now().UTC()
	r.UpdatedAt = now

	stored := make([]routine.Step, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		step.RoutineID = r.ID
		step.CreatedAt = now
		stored[i] = step
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE routines
			SET name = $3, goal_description = $4, target_bed_time_local = $5, target_wake_time_local = $6, time_zone = $7, notes = $8, active = $9, updated_at = $10
			WHERE id = $1 AND user_id = $2
		`, r.ID, r.UserID, r.Name, r.GoalDescription, r.TargetBedTimeLocal, r.TargetWakeTimeLocal, r.TimeZone, r.Notes, r.Active, r.UpdatedAt)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		if !replaceSteps {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM routine_steps WHERE routine_id = $1
		`, r.ID); err != nil {
			return err
		}
		return insertSteps(ctx, tx, stored)
	})
	if err != nil {
		return routine.Routine{}, err
	}
	return r, nil
}

func (s *Store) ArchiveRoutine(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE routines
		SET active = FALSE, updated_at = $3
		WHERE id = $1 AND user_id = $2
	`, id, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) GetRoutine(ctx context.Context, userID, id string) (routine.Routine, error) {
	var r routine.Routine
	err := s.db.GetContext(ctx, &r, `
		SELECT id, user_id, name, goal_description, target_bed_time_local, target_wake_time_local, time_zone, notes, active, created_at, updated_at
		FROM routines
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return routine.Routine{}, err
	}
	return r, nil
}

func (s *Store) GetRoutineByID(ctx context.Context, id string) (routine.Routine, error) {
	var r routine.Routine
	err := s.db.GetContext(ctx, &r, `
		SELECT id, user_id, name, goal_description, target_bed_time_local, target_wake_time_local, time_zone, notes, active, created_at, updated_at
		FROM routines
		WHERE id = $1
	`, id)
	if err != nil {
		return routine.Routine{}, err
	}
	return r, nil
}

func (s *Store) ListRoutines(ctx context.Context, userID string, includeInactive bool) ([]routine.Routine, error) {
	routines := []routine.Routine{}
	err := s.db.SelectContext(ctx, &routines, `
		SELECT id, user_id, name, goal_description, target_bed_time_local, target_wake_time_local, time_zone, notes, active, created_at, updated_at
		FROM routines
		WHERE user_id = $1 AND ($2 OR active)
		ORDER BY updated_at DESC
	`, userID, includeInactive)
	if err != nil {
		return nil, err
	}
	return routines, nil
}

func (s *Store) ListSteps(ctx context.Context, routineID string) ([]routine.Step, error) {
	steps := []routine.Step{}
	err := s.db.SelectContext(ctx, &steps, `
		SELECT id, routine_id, order_index, title, description, minutes_before_bed, created_at
		FROM routine_steps
		WHERE routine_id = $1
		ORDER BY order_index, created_at
	`, routineID)
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func insertSteps(ctx context.Context, tx *sqlx.Tx, steps []routine.Step) error {
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO routine_steps (id, routine_id, order_index, title, description, minutes_before_bed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, step.ID, step.RoutineID, step.OrderIndex, step.Title, step.Description, step.MinutesBeforeBed, step.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// --- SleepLogStore ----------------------------------------------------------

func (s *Store) CreateSleepLog(ctx context.Context, entry sleeplog.Log) (sleeplog.Log, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sleep_logs (id, user_id, routine_id, sleep_date, bed_time, wake_time, quality_score, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.UserID, entry.RoutineID, entry.SleepDate, entry.BedTime, entry.WakeTime, entry.QualityScore, entry.Notes, entry.CreatedAt)
	if err != nil {
		return sleeplog.Log{}, err
	}
	return entry, nil
}

func (s *Store) UpdateSleepLog(ctx context.Context, entry sleeplog.Log) (sleeplog.Log, error) {
	existing, err := s.GetSleepLog(ctx, entry.UserID, entry.ID)
	if err != nil {
		return sleeplog.Log{}, err
	}
	entry.CreatedAt = existing.CreatedAt

	result, err := s.db.ExecContext(ctx, `
		UPDATE sleep_logs
		SET routine_id = $3, sleep_date = $4, bed_time = $5, wake_time = $6, quality_score = $7, notes = $8
		WHERE id = $1 AND user_id = $2
	`, entry.ID, entry.UserID, entry.RoutineID, entry.SleepDate, entry.BedTime, entry.WakeTime, entry.QualityScore, entry.Notes)
	if err != nil {
		return sleeplog.Log{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sleeplog.Log{}, sql.ErrNoRows
	}
	return entry, nil
}

func (s *Store) GetSleepLog(ctx context.Context, userID, id string) (sleeplog.Log, error) {
	var entry sleeplog.Log
	err := s.db.GetContext(ctx, &entry, `
		SELECT id, user_id, routine_id, sleep_date, bed_time, wake_time, quality_score, notes, created_at
		FROM sleep_logs
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return sleeplog.Log{}, err
	}
	return entry, nil
}

func (s *Store) ListSleepLogs(ctx context.Context, userID string, opts sleeplog.ListOptions) ([]sleeplog.Log, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = sleeplog.DefaultPageSize
	}

	logs := []sleeplog.Log{}
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, user_id, routine_id, sleep_date, bed_time, wake_time, quality_score, notes, created_at
		FROM sleep_logs
		WHERE user_id = $1 AND ($2::text IS NULL OR routine_id = $2)
		ORDER BY sleep_date DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, opts.RoutineID, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
