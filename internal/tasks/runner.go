package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/models"
	"badminton_club/internal/store"
)

// Runner executes due scheduled tasks and records every attempt.
type Runner struct {
	registry *Registry
	store    store.TaskStore
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(registry *Registry, st store.TaskStore, log *zap.Logger) *Runner {
	return &Runner{registry: registry, store: st, log: log, now: time.Now}
}

// RunDue processes every active task whose due time has passed and returns how
// many were processed.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	pending, err := r.store.DueTasks(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		r.log.Debug("no pending tasks found")
		return 0, nil
	}
	r.log.Info("found pending tasks", zap.Int("count", len(pending)))

	processed := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		r.execute(ctx, task)
		processed++
	}
	return processed, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	log := r.log.With(zap.Uint("task_id", task.ID), zap.String("task_name", task.TaskName))
	log.Info("processing task")

	if task.Arguments == nil {
		task.Arguments = map[string]interface{}{}
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warn("task handler not found, marking as failure")
		now := r.now()
		task.LastRun = &now
		task.Status = models.ScheduledTaskStatusFailure
		run := task.NewRun(1, now)
		run.Status = models.TaskRunHandlerNotFound
		run.Result = map[string]interface{}{"error": "Handler not found"}
		r.finish(ctx, log, task, []models.ScheduledTaskHistory{run})
		return
	}

	maxAttempt := task.Attempts()

	var history []models.ScheduledTaskHistory
	var lastErr error
	var startTime time.Time
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.now()
		result, err := handler(ctx, task)
		runtimeMs := int(time.Since(startTime).Milliseconds())

		entry := task.NewRun(attempt, startTime)
		entry.RuntimeMs = runtimeMs
		entry.Status = models.TaskRunSucceeded
		entry.Result = result
		lastErr = err
		if err != nil {
			entry.Status = models.TaskRunFailed
			entry.Result = map[string]interface{}{"error": err.Error()}
			if result != nil {
				entry.Result["result"] = result
			}
			log.Warn("task attempt failed", zap.Int("attempt", attempt), zap.Int("max_attempt", maxAttempt), zap.Error(err))
		}
		history = append(history, entry)

		if err == nil || errors.Is(err, ErrNoRetry) || ctx.Err() != nil {
			break
		}
	}

	task.LastRun = &startTime
	task.Status, task.Due = r.nextState(task, lastErr)
	if lastErr == nil {
		log.Info("task completed successfully", zap.String("status", string(task.Status)))
	}
	r.finish(ctx, log, task, history)
}

// nextState decides what happens to a task after its run. Recurring tasks
// stay active and move to their next occurrence even after a failed run.
func (r *Runner) nextState(task models.ScheduledTask, runErr error) (models.ScheduledTaskStatus, time.Time) {
	if task.IsRecurring() {
		if next, ok := task.NextRunAfter(r.now()); ok {
			return models.ScheduledTaskStatusActive, next
		}
		if runErr != nil {
			return models.ScheduledTaskStatusFailure, task.Due
		}
		return models.ScheduledTaskStatusDone, task.Due
	}
	if runErr != nil {
		return models.ScheduledTaskStatusFailure, task.Due
	}
	return models.ScheduledTaskStatusDone, task.Due
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, task models.ScheduledTask, history []models.ScheduledTaskHistory) {
	// The run already happened, so record it even if the worker is shutting down.
	saveCtx := context.WithoutCancel(ctx)
	if err := r.store.FinishTaskRun(saveCtx, task, history); err != nil {
		log.Error("record task run", zap.Error(fmt.Errorf("task %d: %w", task.ID, err)))
	}
}
