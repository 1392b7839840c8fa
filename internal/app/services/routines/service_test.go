package routines

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/storage/memory"
	apperrors "github.com/winddownhq/winddown/internal/errors"
)

func TestService_CreateWithSteps(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	explicit := 5
	minutes := 30
	r, steps, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{
		Name:               "  Wind down  ",
		GoalDescription:    "fall asleep faster",
		TargetBedTimeLocal: "22:30",
		TimeZone:           "America/Chicago",
		Steps: []routine.StepInput{
			{Title: "Dim the lights", OrderIndex: &explicit, MinutesBeforeBed: &minutes},
			{Title: "Read"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Name != "Wind down" {
		t.Fatalf("name not trimmed: %q", r.Name)
	}
	if !r.Active {
		t.Fatal("new routine should be active")
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].OrderIndex != 5 {
		t.Fatalf("explicit order index lost: %d", steps[0].OrderIndex)
	}
	if steps[1].OrderIndex != 2 {
		t.Fatalf("positional order index expected 2, got %d", steps[1].OrderIndex)
	}
	if steps[0].MinutesBeforeBed == nil || *steps[0].MinutesBeforeBed != 30 {
		t.Fatalf("minutes before bed lost: %+v", steps[0].MinutesBeforeBed)
	}
}

func TestService_CreateRequiresName(t *testing.T) {
	svc := New(memory.New(), nil)

	_, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{Name: "   "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil || svcErr.Code != apperrors.CodeValidationFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodeValidationFailed, err)
	}
}

func TestService_CreateRequiresStepTitles(t *testing.T) {
	svc := New(memory.New(), nil)

	_, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{
		Name:  "Wind down",
		Steps: []routine.StepInput{{Title: "  "}},
	})
	if err == nil {
		t.Fatal("expected validation error for blank step title")
	}
}

func TestService_UpdateAppliesSparsePatch(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	r, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{
		Name:            "Wind down",
		GoalDescription: "original goal",
		Steps:           []routine.StepInput{{Title: "Read"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Evening reset"
	updated, err := svc.Update(context.Background(), "user-1", r.ID, routine.Patch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Evening reset" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
	if updated.GoalDescription != "original goal" {
		t.Fatalf("untouched field changed: %q", updated.GoalDescription)
	}
	if !updated.UpdatedAt.After(r.UpdatedAt) && !updated.UpdatedAt.Equal(r.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %v -> %v", r.UpdatedAt, updated.UpdatedAt)
	}

	steps, err := store.ListSteps(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("nil patch steps should leave steps alone, got %d", len(steps))
	}
}

func TestService_UpdateReplacesSteps(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	r, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{
		Name:  "Wind down",
		Steps: []routine.StepInput{{Title: "Read"}, {Title: "Stretch"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(context.Background(), "user-1", r.ID, routine.Patch{
		Steps: []routine.StepInput{{Title: "Journal"}},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	steps, err := store.ListSteps(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 1 || steps[0].Title != "Journal" {
		t.Fatalf("steps not replaced: %+v", steps)
	}

	if _, err := svc.Update(context.Background(), "user-1", r.ID, routine.Patch{
		Steps: []routine.StepInput{},
	}); err != nil {
		t.Fatalf("update with empty steps: %v", err)
	}
	steps, err = store.ListSteps(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("empty patch steps should wipe list, got %d", len(steps))
	}
}

func TestService_OperationsScopedToOwner(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	r, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{Name: "Wind down"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "hijacked"
	if _, err := svc.Update(context.Background(), "user-2", r.ID, routine.Patch{Name: &name}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign update expected sql.ErrNoRows, got %v", err)
	}
	if err := svc.Archive(context.Background(), "user-2", r.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign archive expected sql.ErrNoRows, got %v", err)
	}
	if _, _, err := svc.GetWithSteps(context.Background(), "user-2", r.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("foreign get expected sql.ErrNoRows, got %v", err)
	}
}

func TestService_ArchiveIdempotent(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	r, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{Name: "Wind down"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Archive(context.Background(), "user-1", r.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := svc.Archive(context.Background(), "user-1", r.ID); err != nil {
		t.Fatalf("second archive should succeed: %v", err)
	}

	got, _, err := svc.GetWithSteps(context.Background(), "user-1", r.ID)
	if err != nil {
		t.Fatalf("archived routine should remain readable: %v", err)
	}
	if got.Active {
		t.Fatal("routine should be inactive after archive")
	}
}

func TestService_ListFiltersInactive(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	active, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{Name: "Active"})
	if err != nil {
		t.Fatalf("create active: %v", err)
	}
	archived, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{Name: "Archived"})
	if err != nil {
		t.Fatalf("create archived: %v", err)
	}
	if err := svc.Archive(context.Background(), "user-1", archived.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, _, err := svc.Create(context.Background(), "user-2", routine.NewRoutine{Name: "Other user"}); err != nil {
		t.Fatalf("create for other user: %v", err)
	}

	items, err := svc.List(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != active.ID {
		t.Fatalf("expected only the active routine, got %+v", items)
	}

	items, err = svc.List(context.Background(), "user-1", true)
	if err != nil {
		t.Fatalf("list include inactive: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both routines, got %d", len(items))
	}
}

func TestService_GetWithStepsOrdersByIndex(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	third, first := 3, 1
	r, _, err := svc.Create(context.Background(), "user-1", routine.NewRoutine{
		Name: "Wind down",
		Steps: []routine.StepInput{
			{Title: "Lights out", OrderIndex: &third},
			{Title: "Dim the lights", OrderIndex: &first},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, steps, err := svc.GetWithSteps(context.Background(), "user-1", r.ID)
	if err != nil {
		t.Fatalf("get with steps: %v", err)
	}
	if len(steps) != 2 || steps[0].Title != "Dim the lights" || steps[1].Title != "Lights out" {
		t.Fatalf("steps not ordered by index: %+v", steps)
	}
}
