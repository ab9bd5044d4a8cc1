package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/mq"
	"badminton_club/internal/obs"
	"badminton_club/internal/store"
)

// DuplicateReport is the outcome of reconciling one member.
type DuplicateReport struct {
	MemberID        string `json:"member_id"`
	DryRun          bool   `json:"dry_run"`
	DuplicatesFound bool   `json:"duplicates_found"`
	// DuplicateCount is the number of extra records, whether or not they
	// were removed.
	DuplicateCount    int                      `json:"duplicate_count"`
	DuplicatesRemoved int                      `json:"duplicates_removed"`
	Groups            []billing.DuplicateGroup `json:"groups"`
	Errors            []string                 `json:"errors,omitempty"`
	Message           string                   `json:"message"`
}

// MemberFailure is a member the system-wide scan could not process.
type MemberFailure struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

// CleanupReport aggregates a system-wide scan.
type CleanupReport struct {
	DryRun                 bool              `json:"dry_run"`
	MembersScanned         int               `json:"members_scanned"`
	TotalDuplicatesFound   int               `json:"total_duplicates_found"`
	TotalDuplicatesRemoved int               `json:"total_duplicates_removed"`
	PerMember              []DuplicateReport `json:"per_member_breakdown"`
	Failures               []MemberFailure   `json:"failures"`
	Message                string            `json:"message"`
}

type duplicatesRemovedEvent struct {
	MemberID   string   `json:"member_id"`
	PaymentIDs []string `json:"payment_ids"`
}

// ReconcileService finds and removes duplicate payment records. Deletion is a
// batch job: one failed delete is reported and the rest carry on.
type ReconcileService struct {
	store  store.PaymentStore
	locker Locker
	pub    mq.Publisher
	log    *zap.Logger
}

func NewReconcileService(st store.PaymentStore, locker Locker, pub mq.Publisher, log *zap.Logger) *ReconcileService {
	return &ReconcileService{store: st, locker: locker, pub: pub, log: log}
}

// DetectAndResolve reconciles one member's payments. In dry-run mode the
// store is only read.
func (s *ReconcileService) DetectAndResolve(ctx context.Context, memberID string, dryRun bool) (DuplicateReport, error) {
	ctx, span := obs.Tracer().Start(ctx, "ReconcileService.DetectAndResolve")
	defer span.End()
	span.SetAttributes(attribute.String("member_id", memberID), attribute.Bool("dry_run", dryRun))

	if memberID == "" {
		return DuplicateReport{}, apperr.Validation("member_id is required")
	}

	if !dryRun {
		release, err := s.locker.Acquire(ctx, memberLockKey(memberID), defaultLockTTL)
		if err != nil {
			return DuplicateReport{}, err
		}
		defer release()
	}

	payments, err := s.store.ListPayments(ctx, store.PaymentFilter{MemberID: memberID})
	if err != nil {
		return DuplicateReport{}, fmt.Errorf("load payments of member %s: %w", memberID, err)
	}

	groups := billing.FindDuplicates(payments)
	report := DuplicateReport{
		MemberID:        memberID,
		DryRun:          dryRun,
		DuplicatesFound: len(groups) > 0,
		DuplicateCount:  billing.CountRemovals(groups),
		Groups:          groups,
	}

	if dryRun || len(groups) == 0 {
		report.Message = reportMessage(report)
		return report, nil
	}

	removedIDs := make([]string, 0, report.DuplicateCount)
	for _, g := range groups {
		for _, extra := range g.Remove {
			if err := s.store.DeletePayment(ctx, extra.ID); err != nil {
				s.log.Warn("delete duplicate payment",
					zap.String("member_id", memberID),
					zap.String("payment_id", extra.ID),
					zap.Error(err),
				)
				report.Errors = append(report.Errors, fmt.Sprintf("payment %s: %v", extra.ID, err))
				continue
			}
			removedIDs = append(removedIDs, extra.ID)
		}
	}
	report.DuplicatesRemoved = len(removedIDs)
	report.Message = reportMessage(report)

	if len(removedIDs) > 0 {
		event := duplicatesRemovedEvent{MemberID: memberID, PaymentIDs: removedIDs}
		if err := s.pub.PublishJSON(ctx, mq.KeyDuplicatesRemoved, event); err != nil {
			s.log.Warn("publish duplicates removed", zap.String("member_id", memberID), zap.Error(err))
		}
	}
	return report, nil
}

// SystemWideCleanup reconciles every member that owns a payment. A member that
// fails is recorded in Failures and the scan moves on.
func (s *ReconcileService) SystemWideCleanup(ctx context.Context, dryRun bool) (CleanupReport, error) {
	ctx, span := obs.Tracer().Start(ctx, "ReconcileService.SystemWideCleanup")
	defer span.End()

	memberIDs, err := s.store.ListPaymentMemberIDs(ctx)
	if err != nil {
		return CleanupReport{}, fmt.Errorf("list members with payments: %w", err)
	}

	report := CleanupReport{
		DryRun:    dryRun,
		PerMember: []DuplicateReport{},
		Failures:  []MemberFailure{},
	}
	for _, memberID := range memberIDs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.MembersScanned++

		member, err := s.DetectAndResolve(ctx, memberID, dryRun)
		if err != nil {
			s.log.Error("reconcile member", zap.String("member_id", memberID), zap.Error(err))
			report.Failures = append(report.Failures, MemberFailure{MemberID: memberID, Error: err.Error()})
			continue
		}
		if !member.DuplicatesFound {
			continue
		}
		report.TotalDuplicatesFound += member.DuplicateCount
		report.TotalDuplicatesRemoved += member.DuplicatesRemoved
		report.PerMember = append(report.PerMember, member)
	}

	report.Message = cleanupMessage(report)
	span.SetAttributes(
		attribute.Int("members_scanned", report.MembersScanned),
		attribute.Int("duplicates_found", report.TotalDuplicatesFound),
	)
	s.log.Info("duplicate cleanup finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("members_scanned", report.MembersScanned),
		zap.Int("duplicates_found", report.TotalDuplicatesFound),
		zap.Int("duplicates_removed", report.TotalDuplicatesRemoved),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

func reportMessage(r DuplicateReport) string {
	switch {
	case !r.DuplicatesFound:
		return "No duplicate payments found"
	case r.DryRun:
		return fmt.Sprintf("Found %d duplicate payments in %d groups (dry run, nothing removed)", r.DuplicateCount, len(r.Groups))
	case len(r.Errors) > 0:
		return fmt.Sprintf("Removed %d of %d duplicate payments, %d failed", r.DuplicatesRemoved, r.DuplicateCount, len(r.Errors))
	default:
		return fmt.Sprintf("Removed %d duplicate payments", r.DuplicatesRemoved)
	}
}

func cleanupMessage(r CleanupReport) string {
	msg := fmt.Sprintf("Scanned %d members, found %d duplicate payments across %d members",
		r.MembersScanned, r.TotalDuplicatesFound, len(r.PerMember))
	if r.DryRun {
		msg += " (dry run, nothing removed)"
	} else {
		msg += fmt.Sprintf(", removed %d", r.TotalDuplicatesRemoved)
	}
	if len(r.Failures) > 0 {
		msg += fmt.Sprintf("; %d members failed", len(r.Failures))
	}
	return msg
}
