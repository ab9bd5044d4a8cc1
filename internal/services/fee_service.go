package services

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/store"
)

// FeeService serves quotes and previews that never write payments.
type FeeService struct {
	calc        *billing.Calculator
	memberships store.MembershipStore
	cache       Cache
	cacheTTL    time.Duration
	log         *zap.Logger
}

func NewFeeService(calc *billing.Calculator, memberships store.MembershipStore, log *zap.Logger) *FeeService {
	return &FeeService{calc: calc, memberships: memberships, log: log}
}

// WithCache enables caching of monthly quotes.
func (s *FeeService) WithCache(c Cache, ttl time.Duration) *FeeService {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *FeeService) Calculator() *billing.Calculator {
	return s.calc
}

// MonthlyFee quotes the membership fee of a month. The cache key carries the
// prices so a config change never serves a stale quote.
func (s *FeeService) MonthlyFee(ctx context.Context, year, month int) (billing.MonthlyFee, error) {
	sch := s.calc.Schedule()
	key := fmt.Sprintf("fee:monthly:%d:%02d:%d:%d:%d", year, month, sch.Weekday, sch.MonthlyFeeFourWeeks, sch.MonthlyFeeFiveWeeks)
	return GetOrSet(s.cache, ctx, key, s.cacheTTL, func() (billing.MonthlyFee, error) {
		return s.calc.CalculateMonthlyFee(year, month)
	})
}

// Sessions lists the session dates between start and end inclusive.
func (s *FeeService) Sessions(start, end time.Time) []time.Time {
	return billing.EnumerateWeeklySessions(start, end, s.calc.Schedule().Weekday)
}

// Preview prices a roster without persisting anything.
func (s *FeeService) Preview(ctx context.Context, memberIDs []string, sessionDate time.Time, shuttlecocksUsed int) ([]billing.SessionPaymentResult, billing.PaymentSummary, error) {
	memberships, err := membershipsForMonth(ctx, s.memberships, memberIDs, sessionDate)
	if err != nil {
		return nil, billing.PaymentSummary{}, err
	}
	results, err := s.calc.CalculateGroupSessionPayments(memberIDs, sessionDate, shuttlecocksUsed, memberships)
	if err != nil {
		return nil, billing.PaymentSummary{}, err
	}
	return results, billing.GeneratePaymentSummary(results, sessionDate), nil
}

// membershipsForMonth loads the membership rows of the month containing date,
// keyed by member.
func membershipsForMonth(ctx context.Context, st store.MembershipStore, memberIDs []string, date time.Time) (map[string][]models.MembershipPayment, error) {
	if len(memberIDs) == 0 {
		return map[string][]models.MembershipPayment{}, nil
	}
	rows, err := st.ListMembershipPayments(ctx, store.MembershipFilter{
		MemberIDs: memberIDs,
		Year:      date.Year(),
		Month:     int(date.Month()),
	})
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	return lo.GroupBy(rows, func(mp models.MembershipPayment) string { return mp.MemberID }), nil
}
