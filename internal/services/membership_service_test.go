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

func TestOptInPricesByMonth(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMembers(models.Member{ID: "m1", Name: "Ayu", IsActive: true})
	svc := NewMembershipService(env.calc, env.store, env.pub, env.log)

	tests := []struct {
		year, month int
		weeks       int
		amount      int64
	}{
		{2025, 1, 4, 40000},
		{2025, 3, 5, 45000},
	}
	for _, tt := range tests {
		mp, err := svc.OptIn(context.Background(), "m1", tt.year, tt.month)
		require.NoError(t, err)
		assert.Equal(t, tt.weeks, mp.WeeksInMonth)
		assert.Equal(t, tt.amount, mp.Amount)
		assert.Equal(t, models.MembershipStatusPending, mp.Status)
		assert.NotEmpty(t, mp.ID)
	}
	assert.Equal(t, []string{mq.KeyMembershipOptedIn, mq.KeyMembershipOptedIn}, env.pub.Keys())
}

func TestOptInTwiceIsConflict(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMembers(models.Member{ID: "m1", Name: "Ayu"})
	svc := NewMembershipService(env.calc, env.store, env.pub, env.log)

	_, err := svc.OptIn(context.Background(), "m1", 2025, 1)
	require.NoError(t, err)
	_, err = svc.OptIn(context.Background(), "m1", 2025, 1)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestOptInValidation(t *testing.T) {
	env := newTestEnv()
	svc := NewMembershipService(env.calc, env.store, env.pub, env.log)

	_, err := svc.OptIn(context.Background(), "m1", 2025, 13)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.OptIn(context.Background(), "ghost", 2025, 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMembershipStatus(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMemberships(models.MembershipPayment{ID: "ms1", MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusOverdue})
	svc := NewMembershipService(env.calc, env.store, env.pub, env.log)
	ctx := context.Background()

	status, err := svc.Status(ctx, "m1", testutil.MustDate("2025-01-18"))
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.Equal(t, "ms1", status.SourcePaymentID)
	assert.Equal(t, models.MembershipStatusOverdue, status.PaymentStatus)

	status, err = svc.Status(ctx, "m1", testutil.MustDate("2025-02-01"))
	require.NoError(t, err)
	assert.False(t, status.IsActive)

	_, err = svc.Status(ctx, "", testutil.MustDate("2025-02-01"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
