package store

import (
	"context"
	"time"

	"badminton_club/internal/models"
)

// PaymentFilter narrows ListPayments. Zero values mean "any".
type PaymentFilter struct {
	MemberID  string
	MemberIDs []string
	MatchID   string
	Type      models.PaymentType
	Statuses  []models.PaymentStatus
	// DueFrom and DueTo are inclusive calendar dates.
	DueFrom *time.Time
	DueTo   *time.Time
}

// MembershipFilter narrows ListMembershipPayments. Year and Month are ignored
// when zero.
type MembershipFilter struct {
	MemberIDs []string
	Year      int
	Month     int
}

type PaymentStore interface {
	CreatePayments(ctx context.Context, payments []models.Payment) ([]models.Payment, error)
	GetPayment(ctx context.Context, id string) (models.Payment, error)
	// UpdatePayment writes p only if the stored version still equals
	// p.Version and returns the record with its version bumped. A stale
	// version fails with a Conflict error and leaves the row untouched.
	UpdatePayment(ctx context.Context, p models.Payment) (models.Payment, error)
	DeletePayment(ctx context.Context, id string) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)
	// ListPaymentMemberIDs returns every member that owns at least one payment.
	ListPaymentMemberIDs(ctx context.Context) ([]string, error)
}

type MembershipStore interface {
	ListMembershipPayments(ctx context.Context, filter MembershipFilter) ([]models.MembershipPayment, error)
	CreateMembershipPayment(ctx context.Context, mp *models.MembershipPayment) error
	DeleteMembershipPayment(ctx context.Context, id string) error
}

// RosterStore is the attendance source for a session.
type RosterStore interface {
	GetMatch(ctx context.Context, id string) (models.Match, error)
	CreateMatch(ctx context.Context, m *models.Match) error
}

type MemberStore interface {
	CreateMember(ctx context.Context, m *models.Member) error
	GetMember(ctx context.Context, id string) (models.Member, error)
	ListMembers(ctx context.Context, activeOnly bool) ([]models.Member, error)
}

type GatewayStore interface {
	// ActiveGatewaySession returns nil when the payment has no open checkout.
	ActiveGatewaySession(ctx context.Context, paymentID string) (*models.GatewaySession, error)
	GetGatewaySessionByOrderID(ctx context.Context, orderID string) (models.GatewaySession, error)
	SaveGatewaySession(ctx context.Context, s *models.GatewaySession) error
	CreateCallbackHistory(ctx context.Context, h *models.PaymentCallbackHistory) error
}

// TaskStore persists scheduled tasks for the worker.
type TaskStore interface {
	// DueTasks returns active tasks whose due time is at or before now.
	DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	CreateScheduledTask(ctx context.Context, t *models.ScheduledTask) error
	// FinishTaskRun stores the attempt history and the task's new schedule
	// (status, due, last_run) together.
	FinishTaskRun(ctx context.Context, task models.ScheduledTask, history []models.ScheduledTaskHistory) error
}

// Store is everything the services need from persistence.
type Store interface {
	PaymentStore
	MembershipStore
	RosterStore
	MemberStore
	GatewayStore
}
