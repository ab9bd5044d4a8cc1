package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"badminton_club/internal/models"
)

// ErrNoRetry marks a handler error the runner must not retry in place.
var ErrNoRetry = errors.New("task must not be retried")

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// decodeArgs converts the stored JSON arguments into a typed struct.
func decodeArgs(task models.ScheduledTask, out interface{}) error {
	if len(task.Arguments) == 0 {
		return nil
	}
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, out); err != nil {
		return fmt.Errorf("invalid arguments for %s: %v: %w", task.TaskName, err, ErrNoRetry)
	}
	return nil
}
