// Package routines manages bedtime routines and their ordered steps.
package routines

import (
	"context"
	"fmt"
	"strings"

	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/storage"
	apperrors "github.com/winddownhq/winddown/internal/errors"
	"github.com/winddownhq/winddown/pkg/logger"
)

// Service manages routine definitions. Every operation takes the calling
// user's id explicitly; rows owned by other users are reported as missing.
type Service struct {
	store storage.RoutineStore
	log   *logger.Logger
}

// New constructs a routines service.
func New(store storage.RoutineStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("routines")
	}
	return &Service{
		store: store,
		log:   log,
	}
}

// Create registers a new routine, with any steps committed in the same
// transaction as the routine row.
func (s *Service) Create(ctx context.Context, userID string, in routine.NewRoutine) (routine.Routine, []routine.Step, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return routine.Routine{}, nil, apperrors.ValidationFailed("user id is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return routine.Routine{}, nil, apperrors.ValidationFailed("name is required")
	}

	steps, err := buildSteps(in.Steps)
	if err != nil {
		return routine.Routine{}, nil, err
	}

	r := routine.Routine{
		UserID:              userID,
		Name:                name,
		GoalDescription:     in.GoalDescription,
		TargetBedTimeLocal:  in.TargetBedTimeLocal,
		TargetWakeTimeLocal: in.TargetWakeTimeLocal,
		TimeZone:            in.TimeZone,
		Notes:               in.Notes,
		Active:              true,
	}
	r, steps, err = s.store.CreateRoutine(ctx, r, steps)
	if err != nil {
		return routine.Routine{}, nil, fmt.Errorf("create routine: %w", err)
	}
	s.log.WithField("routine_id", r.ID).
		WithField("user_id", userID).
		WithField("steps", len(steps)).
		Info("routine created")
	return r, steps, nil
}

// Update applies the non-nil patch fields to a routine the caller owns. A
// non-nil patch.Steps replaces the full step list in the same transaction;
// an empty slice clears it.
func (s *Service) Update(ctx context.Context, userID, id string, patch routine.Patch) (routine.Routine, error) {
	r, err := s.store.GetRoutine(ctx, userID, id)
	if err != nil {
		return routine.Routine{}, fmt.Errorf("load routine: %w", err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return routine.Routine{}, apperrors.ValidationFailed("name cannot be empty")
		}
		r.Name = name
	}
	if patch.GoalDescription != nil {
		r.GoalDescription = *patch.GoalDescription
	}
	if patch.TargetBedTimeLocal != nil {
		r.TargetBedTimeLocal = *patch.TargetBedTimeLocal
	}
	if patch.TargetWakeTimeLocal != nil {
		r.TargetWakeTimeLocal = *patch.TargetWakeTimeLocal
	}
	if patch.TimeZone != nil {
		r.TimeZone = *patch.TimeZone
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	if patch.Active != nil {
		r.Active = *patch.Active
	}

	var steps []routine.Step
	replaceSteps := patch.Steps != nil
	if replaceSteps {
		steps, err = buildSteps(patch.Steps)
		if err != nil {
			return routine.Routine{}, err
		}
	}

	r, err = s.store.UpdateRoutine(ctx, r, steps, replaceSteps)
	if err != nil {
		return routine.Routine{}, fmt.Errorf("update routine: %w", err)
	}
	s.log.WithField("routine_id", r.ID).
		WithField("user_id", userID).
		Info("routine updated")
	return r, nil
}

// Archive marks a routine inactive. Archiving an already archived routine
// succeeds again; the routine stays archived.
func (s *Service) Archive(ctx context.Context, userID, id string) error {
	if err := s.store.ArchiveRoutine(ctx, userID, id); err != nil {
		return fmt.Errorf("archive routine: %w", err)
	}
	s.log.WithField("routine_id", id).
		WithField("user_id", userID).
		Info("routine archived")
	return nil
}

// GetWithSteps returns a routine the caller owns together with its steps in
// ascending order_index order.
func (s *Service) GetWithSteps(ctx context.Context, userID, id string) (routine.Routine, []routine.Step, error) {
	r, err := s.store.GetRoutine(ctx, userID, id)
	if err != nil {
		return routine.Routine{}, nil, fmt.Errorf("load routine: %w", err)
	}
	steps, err := s.store.ListSteps(ctx, r.ID)
	if err != nil {
		return routine.Routine{}, nil, fmt.Errorf("load steps: %w", err)
	}
	return r, steps, nil
}

// List returns the caller's routines, newest update first. Archived routines
// appear only when includeInactive is set.
func (s *Service) List(ctx context.Context, userID string, includeInactive bool) ([]routine.Routine, error) {
	return s.store.ListRoutines(ctx, userID, includeInactive)
}

// buildSteps converts step inputs into rows. A step without an explicit
// order index gets its 1-based position; indexes are advisory and may repeat.
func buildSteps(inputs []routine.StepInput) ([]routine.Step, error) {
	steps := make([]routine.Step, len(inputs))
	for i, in := range inputs {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, apperrors.ValidationFailed(fmt.Sprintf("step %d: title is required", i+1))
		}
		orderIndex := i + 1
		if in.OrderIndex != nil {
			orderIndex = *in.OrderIndex
		}
		steps[i] = routine.Step{
			OrderIndex:       orderIndex,
			Title:            title,
			Description:      in.Description,
			MinutesBeforeBed: in.MinutesBeforeBed,
		}
	}
	return steps, nil
}
