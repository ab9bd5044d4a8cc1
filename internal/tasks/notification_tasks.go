package tasks

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/services"
	"badminton_club/internal/store"
)

const defaultReminderTemplate = "Halo $name, ada $count tagihan badminton yang lewat jatuh tempo ($due_dates) dengan total $amount. Mohon segera dilunasi, terima kasih."

// retryDelay is how long a partially failed reminder run waits before the
// failed recipients are retried.
const retryDelay = 5 * time.Minute

// SendRemindersArgs defines the arguments of send_payment_reminders. An empty
// MemberIDs reminds every member with an overdue payment.
type SendRemindersArgs struct {
	MemberIDs    []string `json:"member_ids,omitempty"`
	Template     string   `json:"template,omitempty"`
	AttemptCount int      `json:"attempt_count"`
}

// SendRemindersTaskDef sends WhatsApp reminders for overdue payments. Members
// the message could not reach are rescheduled as a new one-time task until the
// attempt budget is spent.
type SendRemindersTaskDef struct {
	payments  store.PaymentStore
	members   store.MemberStore
	tasks     store.TaskStore
	messenger services.Messenger
	now       func() time.Time
	log       *zap.Logger
}

func (t *SendRemindersTaskDef) TaskID() string {
	return "send_payment_reminders"
}

// CreateTask builds a one-time reminder task.
func (t *SendRemindersTaskDef) CreateTask(args SendRemindersArgs, due time.Time, maxAttempt int) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
}

func (t *SendRemindersTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SendRemindersArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}
	template := args.Template
	if template == "" {
		template = defaultReminderTemplate
	}

	overdue, err := t.payments.ListPayments(ctx, store.PaymentFilter{
		MemberIDs: args.MemberIDs,
		Statuses:  []models.PaymentStatus{models.PaymentStatusOverdue},
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue payments: %w", err)
	}
	byMember := lo.GroupBy(overdue, func(p models.Payment) string { return p.MemberID })
	memberIDs := lo.Keys(byMember)
	sort.Strings(memberIDs)

	successCount, skippedCount := 0, 0
	var failures []string
	var failedMembers []string

	for _, memberID := range memberIDs {
		member, err := t.members.GetMember(ctx, memberID)
		if err != nil {
			t.log.Warn("load member for reminder", zap.String("member_id", memberID), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", memberID, err))
			failedMembers = append(failedMembers, memberID)
			continue
		}
		if member.Phone == "" {
			t.log.Info("skipping reminder, member has no phone", zap.String("member_id", memberID))
			skippedCount++
			continue
		}

		msg := renderReminder(template, member, byMember[memberID])
		if err := t.messenger.SendMessage(ctx, member.Phone, msg); err != nil {
			t.log.Warn("send reminder", zap.String("member_id", memberID), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", member.Name, err))
			failedMembers = append(failedMembers, memberID)
			continue
		}
		successCount++
	}

	result := map[string]interface{}{
		"total":   len(memberIDs),
		"success": successCount,
		"skipped": skippedCount,
		"failure": len(failedMembers),
	}
	if len(failedMembers) == 0 {
		return result, nil
	}
	result["errors"] = failures

	attempt := args.AttemptCount + 1
	if attempt >= task.MaxAttempt {
		t.log.Warn("reminder attempts exhausted",
			zap.Int("max_attempt", task.MaxAttempt),
			zap.Int("failed", len(failedMembers)),
		)
		return result, fmt.Errorf("max attempts reached, failed to remind %d members: %w", len(failedMembers), ErrNoRetry)
	}

	retryArgs := SendRemindersArgs{MemberIDs: failedMembers, Template: args.Template, AttemptCount: attempt}
	retry, err := t.CreateTask(retryArgs, t.now().Add(retryDelay), task.MaxAttempt)
	if err == nil {
		err = t.tasks.CreateScheduledTask(ctx, retry)
	}
	if err != nil {
		t.log.Error("create reminder retry task", zap.Error(err))
		return result, fmt.Errorf("reschedule %d failed reminders: %w", len(failedMembers), err)
	}
	t.log.Info("partial reminder failure, rescheduled",
		zap.Int("failed", len(failedMembers)),
		zap.Int("next_attempt", attempt+1),
		zap.Uint("retry_task_id", retry.ID),
	)
	result["retry_task_id"] = retry.ID
	return result, nil
}

func renderReminder(template string, member models.Member, payments []models.Payment) string {
	sort.Slice(payments, func(i, j int) bool { return payments[i].DueDate.Before(payments[j].DueDate) })
	dates := lo.Map(payments, func(p models.Payment, _ int) string { return p.DueDate.Format(billing.DateLayout) })
	outstanding := lo.SumBy(payments, func(p models.Payment) int64 { return p.Amount - p.PaidAmount })

	res := strings.ReplaceAll(template, "$name", member.Name)
	res = strings.ReplaceAll(res, "$count", strconv.Itoa(len(payments)))
	res = strings.ReplaceAll(res, "$due_dates", strings.Join(dates, ", "))
	res = strings.ReplaceAll(res, "$amount", formatRupiah(outstanding))
	return res
}

// formatRupiah renders 45000 as "Rp 45.000".
func formatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}
