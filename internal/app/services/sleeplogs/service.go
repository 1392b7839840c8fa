// Package sleeplogs manages per-user sleep session records.
package sleeplogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/winddownhq/winddown/internal/app/domain/sleeplog"
	"github.com/winddownhq/winddown/internal/app/storage"
	apperrors "github.com/winddownhq/winddown/internal/errors"
	"github.com/winddownhq/winddown/pkg/logger"
)

// ErrRoutineNotOwned reports a routine reference that resolves to another
// user's routine. A reference to a missing routine stays sql.ErrNoRows.
var ErrRoutineNotOwned = errors.New("routine belongs to another user")

// Service manages sleep logs. Logs may reference a routine, but only one the
// calling user owns; archived routines remain valid references.
type Service struct {
	store    storage.SleepLogStore
	routines storage.RoutineStore
	log      *logger.Logger
}

// New constructs a sleep log service.
func New(store storage.SleepLogStore, routines storage.RoutineStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sleeplogs")
	}
	return &Service{
		store:    store,
		routines: routines,
		log:      log,
	}
}

// Create records a sleep session. SleepDate defaults to the current instant;
// bed and wake times are free-form and deliberately unordered, a session may
// cross midnight.
func (s *Service) Create(ctx context.Context, userID string, in sleeplog.NewLog) (sleeplog.Log, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return sleeplog.Log{}, apperrors.ValidationFailed("user id is required")
	}
	if err := validateQuality(in.QualityScore); err != nil {
		return sleeplog.Log{}, err
	}
	if err := s.checkRoutineRef(ctx, userID, in.RoutineID); err != nil {
		return sleeplog.Log{}, err
	}

	entry := sleeplog.Log{
		UserID:       userID,
		RoutineID:    in.RoutineID,
		BedTime:      in.BedTime,
		WakeTime:     in.WakeTime,
		QualityScore: in.QualityScore,
		Notes:        in.Notes,
	}
	if in.SleepDate != nil {
		entry.SleepDate = in.SleepDate.UTC()
	} else {
		entry.SleepDate = time.Now().UTC()
	}

	entry, err := s.store.CreateSleepLog(ctx, entry)
	if err != nil {
		return sleeplog.Log{}, fmt.Errorf("create sleep log: %w", err)
	}
	s.log.WithField("sleep_log_id", entry.ID).
		WithField("user_id", userID).
		Info("sleep log created")
	return entry, nil
}

// Update applies the non-nil patch fields to a log the caller owns. A
// RoutineID in the patch re-validates ownership the same way Create does.
func (s *Service) Update(ctx context.Context, userID, id string, patch sleeplog.Patch) (sleeplog.Log, error) {
	entry, err := s.store.GetSleepLog(ctx, userID, id)
	if err != nil {
		return sleeplog.Log{}, fmt.Errorf("load sleep log: %w", err)
	}

	if patch.RoutineID != nil {
		if err := s.checkRoutineRef(ctx, userID, patch.RoutineID); err != nil {
			return sleeplog.Log{}, err
		}
		entry.RoutineID = patch.RoutineID
	}
	if patch.SleepDate != nil {
		entry.SleepDate = patch.SleepDate.UTC()
	}
	if patch.BedTime != nil {
		entry.BedTime = patch.BedTime
	}
	if patch.WakeTime != nil {
		entry.WakeTime = patch.WakeTime
	}
	if patch.QualityScore != nil {
		if err := validateQuality(patch.QualityScore); err != nil {
			return sleeplog.Log{}, err
		}
		entry.QualityScore = patch.QualityScore
	}
	if patch.Notes != nil {
		entry.Notes = *patch.Notes
	}

	entry, err = s.store.UpdateSleepLog(ctx, entry)
	if err != nil {
		return sleeplog.Log{}, fmt.Errorf("update sleep log: %w", err)
	}
	s.log.WithField("sleep_log_id", entry.ID).
		WithField("user_id", userID).
		Info("sleep log updated")
	return entry, nil
}

// List returns one page of the caller's logs, newest sleep date first with
// creation time as the tie break.
func (s *Service) List(ctx context.Context, userID string, opts sleeplog.ListOptions) ([]sleeplog.Log, error) {
	return s.store.ListSleepLogs(ctx, userID, opts.Normalize())
}

// checkRoutineRef resolves an optional routine reference. The routine must
// exist and belong to userID; archived routines pass.
func (s *Service) checkRoutineRef(ctx context.Context, userID string, routineID *string) error {
	if routineID == nil {
		return nil
	}
	id := strings.TrimSpace(*routineID)
	if id == "" {
		return apperrors.ValidationFailed("routine_id cannot be empty")
	}
	r, err := s.routines.GetRoutineByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("routine %s: %w", id, sql.ErrNoRows)
		}
		return fmt.Errorf("resolve routine: %w", err)
	}
	if r.UserID != userID {
		return ErrRoutineNotOwned
	}
	return nil
}

func validateQuality(score *int) error {
	if score == nil {
		return nil
	}
	if *score < 1 || *score > 10 {
		return apperrors.ValidationFailed("sleep_quality_score must be between 1 and 10")
	}
	return nil
}
