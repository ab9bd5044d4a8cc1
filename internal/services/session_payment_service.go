package services

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/obs"
	"badminton_club/internal/store"
)

type sessionStore interface {
	store.PaymentStore
	store.MembershipStore
	store.RosterStore
}

// GenerateRequest is one session to bill.
type GenerateRequest struct {
	SessionDate      time.Time
	MatchID          *string
	MemberIDs        []string
	ShuttlecocksUsed int
}

// GenerateResult reports what was billed. Skipped members already held a
// session payment for that date.
type GenerateResult struct {
	SessionDate time.Time                      `json:"session_date"`
	Payments    []models.Payment               `json:"payments"`
	Results     []billing.SessionPaymentResult `json:"results"`
	Summary     billing.PaymentSummary         `json:"summary"`
	Skipped     []string                       `json:"skipped"`
}

type paymentsGeneratedEvent struct {
	SessionDate string   `json:"session_date"`
	MatchID     *string  `json:"match_id,omitempty"`
	PaymentIDs  []string `json:"payment_ids"`
	Total       int64    `json:"total"`
}

// SessionPaymentService bills attendance and stores the resulting payments.
type SessionPaymentService struct {
	calc  *billing.Calculator
	store sessionStore
	pub   mq.Publisher
	log   *zap.Logger
}

func NewSessionPaymentService(calc *billing.Calculator, st sessionStore, pub mq.Publisher, log *zap.Logger) *SessionPaymentService {
	return &SessionPaymentService{calc: calc, store: st, pub: pub, log: log}
}

// GenerateForMatch bills the recorded attendance of a match.
func (s *SessionPaymentService) GenerateForMatch(ctx context.Context, matchID string) (GenerateResult, error) {
	if matchID == "" {
		return GenerateResult{}, apperr.Validation("match_id is required")
	}
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return GenerateResult{}, err
	}
	return s.Generate(ctx, GenerateRequest{
		SessionDate:      match.SessionDate,
		MatchID:          &match.ID,
		MemberIDs:        match.MemberIDs(),
		ShuttlecocksUsed: match.ShuttlecocksUsed,
	})
}

// Generate prices every attending member and stores one pending daily payment
// each. Members that already have a live daily payment for the date are
// skipped, so running it twice creates nothing new.
func (s *SessionPaymentService) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	ctx, span := obs.Tracer().Start(ctx, "SessionPaymentService.Generate")
	defer span.End()

	if req.SessionDate.IsZero() {
		return GenerateResult{}, apperr.Validation("session_date is required")
	}
	date := billing.DateOf(req.SessionDate)
	memberIDs := lo.Uniq(lo.Filter(req.MemberIDs, func(id string, _ int) bool { return id != "" }))
	if len(memberIDs) == 0 {
		return GenerateResult{}, apperr.Validation("at least one member is required")
	}
	if req.ShuttlecocksUsed < 0 {
		return GenerateResult{}, apperr.Validation("shuttlecocks used cannot be negative, got %d", req.ShuttlecocksUsed)
	}
	span.SetAttributes(attribute.String("session_date", date.Format(billing.DateLayout)), attribute.Int("members", len(memberIDs)))

	existing, err := s.store.ListPayments(ctx, store.PaymentFilter{
		MemberIDs: memberIDs,
		Type:      models.PaymentTypeDaily,
		Statuses:  livePaymentStatuses,
		DueFrom:   &date,
		DueTo:     &date,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load existing payments: %w", err)
	}
	billed := make(map[string]bool, len(existing))
	for _, p := range existing {
		billed[p.MemberID] = true
	}
	isBilled := func(id string, _ int) bool { return billed[id] }
	skipped, toBill := lo.Filter(memberIDs, isBilled), lo.Reject(memberIDs, isBilled)

	result := GenerateResult{SessionDate: date, Skipped: skipped, Payments: []models.Payment{}, Results: []billing.SessionPaymentResult{}}
	if len(toBill) == 0 {
		result.Summary = billing.GeneratePaymentSummary(nil, date)
		s.log.Info("session already billed", zap.String("session_date", date.Format(billing.DateLayout)))
		return result, nil
	}

	memberships, err := membershipsForMonth(ctx, s.store, toBill, date)
	if err != nil {
		return GenerateResult{}, err
	}
	payments, results, err := s.calc.GenerateSessionPayments(billing.SessionRoster{
		SessionDate:      date,
		MatchID:          req.MatchID,
		MemberIDs:        toBill,
		ShuttlecocksUsed: req.ShuttlecocksUsed,
		Memberships:      memberships,
	})
	if err != nil {
		return GenerateResult{}, err
	}

	created, err := s.store.CreatePayments(ctx, payments)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("store session payments: %w", err)
	}

	result.Payments = created
	result.Results = results
	result.Summary = billing.GeneratePaymentSummary(results, date)

	event := paymentsGeneratedEvent{
		SessionDate: date.Format(billing.DateLayout),
		MatchID:     req.MatchID,
		PaymentIDs:  lo.Map(created, func(p models.Payment, _ int) string { return p.ID }),
		Total:       result.Summary.TotalRevenue,
	}
	if err := s.pub.PublishJSON(ctx, mq.KeyPaymentsGenerated, event); err != nil {
		s.log.Warn("publish payments generated", zap.Error(err))
	}

	s.log.Info("session payments generated",
		zap.String("session_date", event.SessionDate),
		zap.Int("created", len(created)),
		zap.Int("skipped", len(skipped)),
		zap.Int64("total", event.Total),
	)
	return result, nil
}

var livePaymentStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusPartial,
	models.PaymentStatusPaid,
	models.PaymentStatusOverdue,
}
