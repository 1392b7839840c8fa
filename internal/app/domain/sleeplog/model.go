// Package sleeplog defines sleep session records and their inputs.
package sleeplog

import "time"

// Log records one actual sleep session. RoutineID, when set, references a
// routine owned by the same user. Logs carry no update timestamp: patches
// change only the fields they name.
type Log struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	RoutineID    *string    `json:"routine_id,omitempty" db:"routine_id"`
	SleepDate    time.Time  `json:"sleep_date" db:"sleep_date"`
	BedTime      *time.Time `json:"bed_time,omitempty" db:"bed_time"`
	WakeTime     *time.Time `json:"wake_time,omitempty" db:"wake_time"`
	QualityScore *int       `json:"sleep_quality_score,omitempty" db:"quality_score"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// NewLog carries the fields accepted when creating a log. A nil SleepDate
// defaults to the creation instant.
type NewLog struct {
	RoutineID    *string
	SleepDate    *time.Time
	BedTime      *time.Time
	WakeTime     *time.Time
	QualityScore *int
	Notes        string
}

// Patch applies any subset of log fields. Nil fields stay untouched; a
// RoutineID in the patch re-validates ownership before it lands.
type Patch struct {
	RoutineID    *string
	SleepDate    *time.Time
	BedTime      *time.Time
	WakeTime     *time.Time
	QualityScore *int
	Notes        *string
}

// ListOptions selects one page of a user's logs, newest sleep date first.
type ListOptions struct {
	Page      int
	PageSize  int
	RoutineID *string
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize returns a copy with page and page size forced into range.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}
