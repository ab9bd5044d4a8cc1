package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/testutil"
)

func newConversionService(env *testEnv, now string) *ConversionService {
	conv := billing.NewConverter(env.calc, billing.WithClock(fixedNow(now)))
	return NewConversionService(conv, env.store, env.locker, env.pub, env.log)
}

func TestConvertToMembershipUpdatesInPlace(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	svc := newConversionService(env, "2025-01-10")

	res, err := svc.ToMembership(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", res.Payment.ID)
	assert.Equal(t, models.PaymentTypeMonthly, res.Payment.Type)
	assert.Equal(t, int64(40000), res.Payment.Amount)
	assert.Equal(t, testutil.MustDate("2025-01-04"), res.Payment.DueDate)
	assert.Equal(t, 2, res.Payment.Version)
	assert.True(t, res.MembershipCreated)

	stored, err := env.store.GetPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, res.Payment, stored)
	assert.Len(t, env.store.Payments(), 1)

	memberships := env.store.Memberships()
	require.Len(t, memberships, 1)
	assert.Equal(t, 2025, memberships[0].Year)
	assert.Equal(t, 1, memberships[0].Month)
	assert.Equal(t, models.MembershipStatusPending, memberships[0].Status)

	assert.Equal(t, []string{mq.KeyPaymentConverted}, env.pub.Keys())
}

func TestConvertRoundTripReleasesMembership(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	svc := newConversionService(env, "2025-01-10")
	ctx := context.Background()

	_, err := svc.ToMembership(ctx, "p1")
	require.NoError(t, err)
	back, err := svc.ToSession(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, int64(18000), back.Payment.Amount)
	assert.Equal(t, models.PaymentTypeDaily, back.Payment.Type)
	assert.Equal(t, testutil.MustDate("2025-01-04"), back.Payment.DueDate)
	assert.True(t, back.MembershipRemoved)
	assert.Empty(t, env.store.Memberships())
}

func TestConvertBackInLaterMonthReleasesBilledMonth(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	ctx := context.Background()

	_, err := newConversionService(env, "2025-01-10").ToMembership(ctx, "p1")
	require.NoError(t, err)
	env.store.SeedMemberships(models.MembershipPayment{ID: "feb", MemberID: "m1", Year: 2025, Month: 2, Status: models.MembershipStatusPending})

	back, err := newConversionService(env, "2025-02-03").ToSession(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, back.MembershipRemoved)
	assert.Equal(t, 1, back.TargetMonth)

	remaining := env.store.Memberships()
	require.Len(t, remaining, 1)
	assert.Equal(t, "feb", remaining[0].ID)

	status := billing.CheckMembershipStatus("m1", remaining, testutil.MustDate("2025-01-11"))
	assert.False(t, status.IsActive, "january sessions must be billed again")
}

func TestConvertBackKeepsMonthCoveredByAnotherPayment(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	svc := newConversionService(env, "2025-01-10")
	ctx := context.Background()

	_, err := svc.ToMembership(ctx, "p1")
	require.NoError(t, err)

	imported := pendingSession("p2", "m1", "2025-01-11")
	imported.Type = models.PaymentTypeMonthly
	imported.Amount = 40000
	imported.BilledYear = 2025
	imported.BilledMonth = 1
	env.store.SeedPayments(imported)

	back, err := svc.ToSession(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, back.MembershipRemoved)

	p1, err := env.store.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentTypeMonthly, p1.Type)
	assert.Equal(t, int64(40000), p1.Amount)

	memberships := env.store.Memberships()
	require.Len(t, memberships, 1)
	assert.Equal(t, 1, memberships[0].Month)
}

func TestConvertRejectsSecondMembershipForSameMonth(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(
		pendingSession("p1", "m1", "2025-01-04"),
		pendingSession("p2", "m1", "2025-01-11"),
	)
	svc := newConversionService(env, "2025-01-10")
	ctx := context.Background()

	_, err := svc.ToMembership(ctx, "p1")
	require.NoError(t, err)

	_, err = svc.ToMembership(ctx, "p2")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	p2, err := env.store.GetPayment(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentTypeDaily, p2.Type)
	assert.Equal(t, int64(18000), p2.Amount)
	assert.Equal(t, 1, env.store.Calls.Updates)
	assert.Len(t, env.store.Memberships(), 1)
}

func TestConvertAllowsMembershipAfterCoveringPaymentCancelled(t *testing.T) {
	env := newTestEnv()
	cancelled := pendingSession("old", "m1", "2025-01-04")
	cancelled.Type = models.PaymentTypeMonthly
	cancelled.Status = models.PaymentStatusCancelled
	cancelled.BilledYear = 2025
	cancelled.BilledMonth = 1
	env.store.SeedPayments(cancelled, pendingSession("p1", "m1", "2025-01-11"))

	_, err := newConversionService(env, "2025-01-10").ToMembership(context.Background(), "p1")
	assert.NoError(t, err)
}

func TestConvertCarriesShuttlecockCharge(t *testing.T) {
	env := newTestEnv()
	p := pendingSession("p1", "m1", "2025-01-04")
	p.Amount = 23000
	p.SessionFee = 18000
	p.ShuttlecockFee = 5000
	env.store.SeedPayments(p)
	svc := newConversionService(env, "2025-01-10")
	ctx := context.Background()

	res, err := svc.ToMembership(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), res.Payment.Amount)
	memberships := env.store.Memberships()
	require.Len(t, memberships, 1)
	assert.Equal(t, int64(40000), memberships[0].Amount)

	back, err := svc.ToSession(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(23000), back.Payment.Amount)
	assert.Equal(t, int64(5000), back.Payment.ShuttlecockFee)
}

func TestConvertKeepsPaidMembershipOnToSession(t *testing.T) {
	env := newTestEnv()
	monthly := pendingSession("p1", "m1", "2025-01-04")
	monthly.Type = models.PaymentTypeMonthly
	monthly.Amount = 40000
	env.store.SeedPayments(monthly)
	env.store.SeedMemberships(models.MembershipPayment{MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusPaid})
	svc := newConversionService(env, "2025-01-10")

	res, err := svc.ToSession(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, res.MembershipRemoved)
	assert.Len(t, env.store.Memberships(), 1)
}

func TestConvertPreconditionLeavesRecordUntouched(t *testing.T) {
	env := newTestEnv()
	paid := pendingSession("p1", "m1", "2025-01-04")
	paid.Status = models.PaymentStatusPaid
	env.store.SeedPayments(paid)
	svc := newConversionService(env, "2025-01-10")

	_, err := svc.ToMembership(context.Background(), "p1")
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	stored, _ := env.store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentTypeDaily, stored.Type)
	assert.Equal(t, 1, stored.Version)
	assert.Zero(t, env.store.Calls.Updates)
	assert.Empty(t, env.pub.Events)
}

func TestConvertMissingPayment(t *testing.T) {
	env := newTestEnv()
	svc := newConversionService(env, "2025-01-10")

	_, err := svc.ToMembership(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConvertRejectsConcurrentWriter(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	svc := newConversionService(env, "2025-01-10")

	release, err := env.locker.Acquire(context.Background(), paymentLockKey("p1"), time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = svc.ToMembership(context.Background(), "p1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Zero(t, env.store.Calls.Updates)
}

// staleStore hands out a payment whose version has already moved on.
type staleStore struct {
	*testutil.MemoryStore
}

func (s staleStore) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	p, err := s.MemoryStore.GetPayment(ctx, id)
	p.Version--
	return p, err
}

func TestConvertStaleVersionIsConflict(t *testing.T) {
	env := newTestEnv()
	p := pendingSession("p1", "m1", "2025-01-04")
	p.Version = 4
	env.store.SeedPayments(p)
	conv := billing.NewConverter(env.calc, billing.WithClock(fixedNow("2025-01-10")))
	svc := NewConversionService(conv, staleStore{env.store}, env.locker, env.pub, env.log)

	_, err := svc.ToMembership(context.Background(), "p1")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	stored, _ := env.store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentTypeDaily, stored.Type)
	assert.Equal(t, int64(18000), stored.Amount)
}

// brokenMembershipStore fails every membership write.
type brokenMembershipStore struct {
	*testutil.MemoryStore
}

func (brokenMembershipStore) CreateMembershipPayment(context.Context, *models.MembershipPayment) error {
	return errors.New("memberships table unavailable")
}

func TestConvertSurvivesMembershipTrackingFailure(t *testing.T) {
	env := newTestEnv()
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	conv := billing.NewConverter(env.calc, billing.WithClock(fixedNow("2025-01-10")))
	svc := NewConversionService(conv, brokenMembershipStore{env.store}, env.locker, env.pub, env.log)

	res, err := svc.ToMembership(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, res.MembershipCreated)
	assert.Equal(t, models.PaymentTypeMonthly, res.Payment.Type)
}

func TestConvertEventFailureIsNotFatal(t *testing.T) {
	env := newTestEnv()
	env.pub.Err = errors.New("broker down")
	env.store.SeedPayments(pendingSession("p1", "m1", "2025-01-04"))
	svc := newConversionService(env, "2025-01-10")

	_, err := svc.ToMembership(context.Background(), "p1")
	assert.NoError(t, err)
}
