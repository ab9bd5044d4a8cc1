package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/store"
)

type membershipStore interface {
	store.MembershipStore
	store.MemberStore
}

// MembershipService handles opting members into monthly billing.
type MembershipService struct {
	calc  *billing.Calculator
	store membershipStore
	pub   mq.Publisher
	log   *zap.Logger
}

func NewMembershipService(calc *billing.Calculator, st membershipStore, pub mq.Publisher, log *zap.Logger) *MembershipService {
	return &MembershipService{calc: calc, store: st, pub: pub, log: log}
}

// OptIn records a pending membership for (year, month) priced by the monthly
// bracket. A second opt-in for the same month is a Conflict.
func (s *MembershipService) OptIn(ctx context.Context, memberID string, year, month int) (models.MembershipPayment, error) {
	if memberID == "" {
		return models.MembershipPayment{}, apperr.Validation("member_id is required")
	}
	fee, err := s.calc.CalculateMonthlyFee(year, month)
	if err != nil {
		return models.MembershipPayment{}, err
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return models.MembershipPayment{}, err
	}

	mp := models.MembershipPayment{
		MemberID:     memberID,
		Year:         year,
		Month:        month,
		WeeksInMonth: fee.WeeksInMonth,
		Amount:       fee.Amount,
		Status:       models.MembershipStatusPending,
	}
	if err := s.store.CreateMembershipPayment(ctx, &mp); err != nil {
		return models.MembershipPayment{}, err
	}

	if err := s.pub.PublishJSON(ctx, mq.KeyMembershipOptedIn, mp); err != nil {
		s.log.Warn("publish membership event", zap.String("member_id", memberID), zap.Error(err))
	}
	return mp, nil
}

// Status resolves a member's membership for the month containing date.
func (s *MembershipService) Status(ctx context.Context, memberID string, date time.Time) (billing.MembershipStatus, error) {
	if memberID == "" {
		return billing.MembershipStatus{}, apperr.Validation("member_id is required")
	}
	if date.IsZero() {
		return billing.MembershipStatus{}, apperr.Validation("date is required")
	}
	byMember, err := membershipsForMonth(ctx, s.store, []string{memberID}, date)
	if err != nil {
		return billing.MembershipStatus{}, err
	}
	return billing.CheckMembershipStatus(memberID, byMember[memberID], date), nil
}

// ensureMembership creates the pending membership row for the period unless
// one already exists.
func ensureMembership(ctx context.Context, st store.MembershipStore, memberID string, year, month, weeks int, amount int64) (bool, error) {
	existing, err := st.ListMembershipPayments(ctx, store.MembershipFilter{MemberIDs: []string{memberID}, Year: year, Month: month})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	mp := models.MembershipPayment{
		MemberID:     memberID,
		Year:         year,
		Month:        month,
		WeeksInMonth: weeks,
		Amount:       amount,
		Status:       models.MembershipStatusPending,
	}
	if err := st.CreateMembershipPayment(ctx, &mp); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return false, nil
		}
		return false, fmt.Errorf("create membership: %w", err)
	}
	return true, nil
}

// releaseMembership removes the period's membership row if it is still pending.
func releaseMembership(ctx context.Context, st store.MembershipStore, memberID string, year, month int) (bool, error) {
	existing, err := st.ListMembershipPayments(ctx, store.MembershipFilter{MemberIDs: []string{memberID}, Year: year, Month: month})
	if err != nil {
		return false, err
	}
	removed := false
	for _, mp := range existing {
		if mp.Status != models.MembershipStatusPending {
			continue
		}
		if err := st.DeleteMembershipPayment(ctx, mp.ID); err != nil {
			return removed, fmt.Errorf("delete membership %s: %w", mp.ID, err)
		}
		removed = true
	}
	return removed, nil
}
