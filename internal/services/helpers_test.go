package services

import (
	"time"

	"go.uber.org/zap"

	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/mq"
	"badminton_club/internal/testutil"
)

type testEnv struct {
	store  *testutil.MemoryStore
	pub    *mq.Recorder
	locker *LocalLocker
	calc   *billing.Calculator
	log    *zap.Logger
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:  testutil.NewMemoryStore(),
		pub:    &mq.Recorder{},
		locker: NewLocalLocker(),
		calc:   billing.NewCalculator(billing.DefaultFeeSchedule()),
		log:    zap.NewNop(),
	}
}

func fixedNow(s string) func() time.Time {
	t := testutil.MustDate(s).Add(9 * time.Hour)
	return func() time.Time { return t }
}

func pendingSession(id, member, due string) models.Payment {
	return models.Payment{
		ID:       id,
		MemberID: member,
		Type:     models.PaymentTypeDaily,
		Amount:   18000,
		Status:   models.PaymentStatusPending,
		DueDate:  testutil.MustDate(due),
		Source:   models.PaymentSourceSession,
	}
}
