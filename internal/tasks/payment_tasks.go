package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/services"
	"badminton_club/internal/store"
)

// GenerateSessionPaymentsArgs defines the arguments of generate_session_payments.
type GenerateSessionPaymentsArgs struct {
	MatchID string `json:"match_id"`
}

// GenerateSessionPaymentsTaskDef bills the attendance of a match.
type GenerateSessionPaymentsTaskDef struct {
	sessions *services.SessionPaymentService
}

func (t *GenerateSessionPaymentsTaskDef) TaskID() string {
	return "generate_session_payments"
}

// CreateTask builds a one-time ScheduledTask for a match.
func (t *GenerateSessionPaymentsTaskDef) CreateTask(matchID string, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), GenerateSessionPaymentsArgs{MatchID: matchID}, due, nil, models.ScheduledTaskTypeOneTime, 3)
}

func (t *GenerateSessionPaymentsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args GenerateSessionPaymentsArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}
	if args.MatchID == "" {
		return nil, fmt.Errorf("match_id not provided")
	}

	result, err := t.sessions.GenerateForMatch(ctx, args.MatchID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":        "success",
		"session_date":  result.SessionDate.Format(billing.DateLayout),
		"created_count": len(result.Payments),
		"skipped":       result.Skipped,
		"total_revenue": result.Summary.TotalRevenue,
	}, nil
}

// CleanupDuplicatesArgs defines the arguments of cleanup_duplicate_payments.
type CleanupDuplicatesArgs struct {
	DryRun bool `json:"dry_run"`
}

// CleanupDuplicatesTaskDef runs the system-wide duplicate sweep. Usually
// scheduled as a recurring task, e.g. FREQ=WEEKLY;BYDAY=SU.
type CleanupDuplicatesTaskDef struct {
	reconcile *services.ReconcileService
}

func (t *CleanupDuplicatesTaskDef) TaskID() string {
	return "cleanup_duplicate_payments"
}

func (t *CleanupDuplicatesTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args CleanupDuplicatesArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}

	report, err := t.reconcile.SystemWideCleanup(ctx, args.DryRun)
	if err != nil {
		return nil, err
	}
	result := map[string]interface{}{
		"status":                   "success",
		"dry_run":                  report.DryRun,
		"members_scanned":          report.MembersScanned,
		"total_duplicates_found":   report.TotalDuplicatesFound,
		"total_duplicates_removed": report.TotalDuplicatesRemoved,
		"message":                  report.Message,
	}
	if len(report.Failures) > 0 {
		result["failures"] = len(report.Failures)
	}
	return result, nil
}

// MarkOverdueArgs defines the arguments of mark_overdue_payments. A nil
// GraceDays uses the configured default.
type MarkOverdueArgs struct {
	GraceDays *int `json:"grace_days"`
}

// MarkOverdueTaskDef moves pending payments past due date + grace days to overdue.
type MarkOverdueTaskDef struct {
	payments  store.PaymentStore
	graceDays int
	now       func() time.Time
	log       *zap.Logger
}

func (t *MarkOverdueTaskDef) TaskID() string {
	return "mark_overdue_payments"
}

func (t *MarkOverdueTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args MarkOverdueArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}
	grace := t.graceDays
	if args.GraceDays != nil {
		grace = *args.GraceDays
	}
	if grace < 0 {
		return nil, fmt.Errorf("grace_days cannot be negative, got %d", grace)
	}

	// A payment is overdue once due_date + grace is strictly before today.
	cutoff := billing.DateOf(t.now()).AddDate(0, 0, -grace-1)
	pending, err := t.payments.ListPayments(ctx, store.PaymentFilter{
		Statuses: []models.PaymentStatus{models.PaymentStatusPending},
		DueTo:    &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}

	marked := 0
	var failures []string
	for _, p := range pending {
		p.Status = models.PaymentStatusOverdue
		if _, err := t.payments.UpdatePayment(ctx, p); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				t.log.Info("payment changed while marking overdue, skipped", zap.String("payment_id", p.ID))
			} else {
				t.log.Warn("mark payment overdue", zap.String("payment_id", p.ID), zap.Error(err))
			}
			failures = append(failures, fmt.Sprintf("%s: %v", p.ID, err))
			continue
		}
		marked++
	}

	result := map[string]interface{}{
		"status":     "success",
		"cutoff":     cutoff.Format(billing.DateLayout),
		"candidates": len(pending),
		"marked":     marked,
	}
	if len(failures) > 0 {
		result["errors"] = failures
	}
	return result, nil
}
