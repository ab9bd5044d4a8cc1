package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/testutil"
)

func TestGenerateBillsRosterAndWaivesMembers(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMemberships(models.MembershipPayment{ID: "ms1", MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusPending})
	svc := NewSessionPaymentService(env.calc, env.store, env.pub, env.log)

	res, err := svc.Generate(context.Background(), GenerateRequest{
		SessionDate:      testutil.MustDate("2025-01-04"),
		MemberIDs:        []string{"m1", "m2"},
		ShuttlecocksUsed: 1,
	})
	require.NoError(t, err)

	require.Len(t, res.Payments, 2)
	assert.Equal(t, "m1", res.Payments[0].MemberID)
	assert.Equal(t, int64(5000), res.Payments[0].Amount)
	assert.Equal(t, int64(0), res.Payments[0].SessionFee)
	assert.Equal(t, "m2", res.Payments[1].MemberID)
	assert.Equal(t, int64(23000), res.Payments[1].Amount)
	assert.NotEmpty(t, res.Payments[0].ID)

	assert.Equal(t, int64(28000), res.Summary.TotalRevenue)
	assert.Equal(t, 1, res.Summary.MembershipCount)
	assert.Empty(t, res.Skipped)
	assert.Len(t, env.store.Payments(), 2)
	assert.Equal(t, []string{mq.KeyPaymentsGenerated}, env.pub.Keys())
}

func TestGenerateSkipsAlreadyBilledMembers(t *testing.T) {
	env := newTestEnv()
	svc := NewSessionPaymentService(env.calc, env.store, env.pub, env.log)
	req := GenerateRequest{
		SessionDate:      testutil.MustDate("2025-01-04"),
		MemberIDs:        []string{"m1", "m2"},
		ShuttlecocksUsed: 2,
	}

	_, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	req.MemberIDs = []string{"m1", "m2", "m3", "m3"}
	again, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2"}, again.Skipped)
	require.Len(t, again.Payments, 1)
	assert.Equal(t, "m3", again.Payments[0].MemberID)
	assert.Len(t, env.store.Payments(), 3)
}

func TestGenerateBillsAgainAfterCancellation(t *testing.T) {
	env := newTestEnv()
	cancelled := pendingSession("old", "m1", "2025-01-04")
	cancelled.Status = models.PaymentStatusCancelled
	env.store.SeedPayments(cancelled)
	svc := NewSessionPaymentService(env.calc, env.store, env.pub, env.log)

	res, err := svc.Generate(context.Background(), GenerateRequest{
		SessionDate: testutil.MustDate("2025-01-04"),
		MemberIDs:   []string{"m1"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Payments, 1)
	assert.Empty(t, res.Skipped)
}

func TestGenerateForMatch(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMatch(models.Match{
		ID:               "match-1",
		SessionDate:      testutil.MustDate("2025-01-11"),
		ShuttlecocksUsed: 3,
		Attendances: []models.MatchAttendance{
			{MatchID: "match-1", MemberID: "m2"},
			{MatchID: "match-1", MemberID: "m1"},
		},
	})
	svc := NewSessionPaymentService(env.calc, env.store, env.pub, env.log)

	res, err := svc.GenerateForMatch(context.Background(), "match-1")
	require.NoError(t, err)

	require.Len(t, res.Payments, 2)
	assert.Equal(t, "m2", res.Payments[0].MemberID)
	require.NotNil(t, res.Payments[0].MatchID)
	assert.Equal(t, "match-1", *res.Payments[0].MatchID)
	assert.Equal(t, int64(18000+15000), res.Payments[0].Amount)
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv()
	svc := NewSessionPaymentService(env.calc, env.store, env.pub, env.log)
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateRequest{MemberIDs: []string{"m1"}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Generate(ctx, GenerateRequest{SessionDate: testutil.MustDate("2025-01-04"), MemberIDs: []string{""}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Generate(ctx, GenerateRequest{SessionDate: testutil.MustDate("2025-01-04"), MemberIDs: []string{"m1"}, ShuttlecocksUsed: -1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.GenerateForMatch(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Zero(t, env.store.Calls.Creates)
}
