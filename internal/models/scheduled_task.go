package models

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type (
	ScheduledTaskStatus string
	ScheduledTaskType   string
)

const (
	ScheduledTaskStatusActive   ScheduledTaskStatus = "active"
	ScheduledTaskStatusDone     ScheduledTaskStatus = "done"
	ScheduledTaskStatusFailure  ScheduledTaskStatus = "failure"
	ScheduledTaskStatusDisabled ScheduledTaskStatus = "disabled"

	ScheduledTaskTypeOneTime   ScheduledTaskType = "onetime"
	ScheduledTaskTypeRecurring ScheduledTaskType = "recurring"
)

// Outcomes written to ScheduledTaskHistory.Status.
const (
	TaskRunSucceeded       = "success"
	TaskRunFailed          = "failure"
	TaskRunHandlerNotFound = "handler_not_found"
)

var ErrNoRecurrence = errors.New("task has no recurrence rule")

// ScheduledTask is a job the worker runs once Due has passed: billing a
// session, reconciling duplicates, sending reminders. Recurring jobs carry an
// RRULE and are pushed forward after every run.
type ScheduledTask struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TaskName  string            `gorm:"type:varchar(255)" json:"task_name"`
	Arguments datatypes.JSONMap `json:"arguments"`

	Status ScheduledTaskStatus `gorm:"type:varchar(20);index:idx_scheduled_tasks_status_due,priority:1,where:deleted_at IS NULL" json:"status"`
	Due    time.Time           `gorm:"index:idx_scheduled_tasks_status_due,priority:2,where:deleted_at IS NULL" json:"due"`

	TaskType          ScheduledTaskType `gorm:"type:varchar(20);default:'onetime'" json:"task_type"`
	RecurringInterval *string           `gorm:"type:text" json:"recurring_interval"`
	MaxAttempt        int               `json:"max_attempt"`
	LastRun           *time.Time        `json:"last_run"`
}

func (t ScheduledTask) IsRecurring() bool {
	return t.TaskType == ScheduledTaskTypeRecurring
}

// Attempts is how many times one run may call the handler. Never below one.
func (t ScheduledTask) Attempts() int {
	return max(t.MaxAttempt, 1)
}

// Recurrence parses RecurringInterval anchored at Due.
func (t ScheduledTask) Recurrence() (*rrule.RRule, error) {
	if t.RecurringInterval == nil || *t.RecurringInterval == "" {
		return nil, ErrNoRecurrence
	}
	return ParseRecurrence(*t.RecurringInterval, t.Due)
}

// NextRunAfter is the first occurrence later than both Due and now, so runs
// missed while the worker was down are skipped rather than replayed. ok is
// false for one-time tasks, missing or broken rules, and exhausted rules.
func (t ScheduledTask) NextRunAfter(now time.Time) (next time.Time, ok bool) {
	if !t.IsRecurring() {
		return time.Time{}, false
	}
	rule, err := t.Recurrence()
	if err != nil {
		return time.Time{}, false
	}
	from := t.Due
	if now.After(from) {
		from = now
	}
	next = rule.After(from, false)
	return next, !next.IsZero()
}

// NewRun starts the history entry for one attempt.
func (t ScheduledTask) NewRun(attempt int, at time.Time) ScheduledTaskHistory {
	return ScheduledTaskHistory{
		ScheduledTaskID: t.ID,
		TaskName:        t.TaskName,
		RunAt:           at,
		AttemptNumber:   attempt,
		Arguments:       t.Arguments,
	}
}

// ParseRecurrence reads an RRULE string such as "FREQ=WEEKLY;BYDAY=SA".
// A zero start leaves the rule's own DTSTART in place.
func ParseRecurrence(rule string, start time.Time) (*rrule.RRule, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}
	if !start.IsZero() {
		r.DTStart(start)
	}
	return r, nil
}

// ScheduledTaskHistory is one handler call. A run that retries leaves one row
// per attempt.
type ScheduledTaskHistory struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	ScheduledTaskID uint      `gorm:"index" json:"scheduled_task_id"`

	TaskName      string            `gorm:"type:varchar(255)" json:"task_name"`
	AttemptNumber int               `json:"attempt_number"`
	RunAt         time.Time         `json:"run_at"`
	RuntimeMs     int               `json:"runtime_ms"`
	Status        string            `gorm:"type:varchar(50)" json:"status"`
	Arguments     datatypes.JSONMap `json:"arguments"`
	Result        datatypes.JSONMap `json:"result"`
}
