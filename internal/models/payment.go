package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentType is the billing mode of a payment record
type PaymentType string

const (
	PaymentTypeDaily      PaymentType = "daily"
	PaymentTypeMonthly    PaymentType = "monthly"
	PaymentTypeTournament PaymentType = "tournament"
)

// PaymentStatus is the lifecycle state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentSource tells records generated by the session engine apart from
// rows migrated from the old generic payments table.
type PaymentSource string

const (
	PaymentSourceSession PaymentSource = "session"
	PaymentSourceLegacy  PaymentSource = "legacy"
)

// Payment is one member's fee obligation for a session, a tournament, or a
// converted monthly membership sharing the session's due date.
type Payment struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MemberID string        `gorm:"type:uuid;index:idx_payments_member_due,priority:1" json:"member_id"`
	MatchID  *string       `gorm:"type:uuid;index" json:"match_id"`
	Type     PaymentType   `gorm:"type:varchar(20);default:'daily'" json:"type"`
	Amount   int64         `gorm:"not null" json:"amount"`
	Status   PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	DueDate  time.Time     `gorm:"type:date;index:idx_payments_member_due,priority:2" json:"due_date"`

	PaidDate       *time.Time `json:"paid_date"`
	PaidAmount     int64      `json:"paid_amount"`
	PaymentMethod  string     `gorm:"type:varchar(50)" json:"payment_method"`
	ShuttlecockFee int64      `json:"shuttlecock_fee"`
	SessionFee     int64      `gorm:"column:attendance_fee" json:"session_fee"`
	Notes          string     `gorm:"type:text" json:"notes"`

	// BilledYear and BilledMonth name the membership month a converted
	// monthly payment pays for. Both are zero on session billing.
	BilledYear  int `json:"billed_year,omitempty"`
	BilledMonth int `json:"billed_month,omitempty"`

	Source  PaymentSource `gorm:"type:varchar(20);default:'session'" json:"source"`
	Version int           `gorm:"not null;default:1" json:"version"`

	// Relationships
	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not provide one
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// IsSettled reports whether nothing more is owed on the payment
func (p Payment) IsSettled() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusCancelled
}

// BilledPeriod returns the membership month recorded when the payment was
// converted. ok is false when no month was recorded.
func (p Payment) BilledPeriod() (year int, month time.Month, ok bool) {
	if p.BilledYear < 1 || p.BilledMonth < 1 || p.BilledMonth > 12 {
		return 0, 0, false
	}
	return p.BilledYear, time.Month(p.BilledMonth), true
}
