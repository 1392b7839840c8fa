// Package routine defines the bedtime routine records and their inputs.
package routine

import "time"

// Routine is a named bedtime plan owned by exactly one user. The owning user
// never changes after creation, and routines are only ever archived (Active
// cleared), never deleted.
type Routine struct {
	ID                  string    `json:"id" db:"id"`
	UserID              string    `json:"user_id" db:"user_id"`
	Name                string    `json:"name" db:"name"`
	GoalDescription     string    `json:"goal_description,omitempty" db:"goal_description"`
	TargetBedTimeLocal  string    `json:"target_bed_time_local,omitempty" db:"target_bed_time_local"`
	TargetWakeTimeLocal string    `json:"target_wake_time_local,omitempty" db:"target_wake_time_local"`
	TimeZone            string    `json:"time_zone,omitempty" db:"time_zone"`
	Notes               string    `json:"notes,omitempty" db:"notes"`
	Active              bool      `json:"active" db:"active"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Step is one ordered item of a routine's pre-sleep ritual. OrderIndex is
// advisory ordering data: not unique, not gap-free.
type Step struct {
	ID               string    `json:"id" db:"id"`
	RoutineID        string    `json:"routine_id" db:"routine_id"`
	OrderIndex       int       `json:"order_index" db:"order_index"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description,omitempty" db:"description"`
	MinutesBeforeBed *int      `json:"minutes_before_bed,omitempty" db:"minutes_before_bed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// StepInput describes one step supplied on create or replace. A nil
// OrderIndex takes the step's 1-based position in the submitted list.
type StepInput struct {
	Title            string
	Description      string
	MinutesBeforeBed *int
	OrderIndex       *int
}

// NewRoutine carries the fields accepted when creating a routine.
type NewRoutine struct {
	Name                string
	GoalDescription     string
	TargetBedTimeLocal  string
	TargetWakeTimeLocal string
	TimeZone            string
	Notes               string
	Steps               []StepInput
}

// Patch applies any subset of routine fields. Nil fields stay untouched. A
// nil Steps slice leaves the step list alone; a non-nil slice, empty
// included, replaces every existing step.
type Patch struct {
	Name                *string
	GoalDescription     *string
	TargetBedTimeLocal  *string
	TargetWakeTimeLocal *string
	TimeZone            *string
	Notes               *string
	Active              *bool
	Steps               []StepInput
}

// HasFieldChanges reports whether the patch touches any routine column.
func (p Patch) HasFieldChanges() bool {
	return p.Name != nil || p.GoalDescription != nil || p.TargetBedTimeLocal != nil ||
		p.TargetWakeTimeLocal != nil || p.TimeZone != nil || p.Notes != nil || p.Active != nil
}
