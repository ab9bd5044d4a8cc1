package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipStatus is the settlement state of a monthly membership obligation
type MembershipStatus string

const (
	MembershipStatusPending MembershipStatus = "pending"
	MembershipStatusPaid    MembershipStatus = "paid"
	MembershipStatusOverdue MembershipStatus = "overdue"
)

// MembershipPayment records that a member chose monthly billing for a month.
// At most one row exists per (member, month, year).
type MembershipPayment struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MemberID     string           `gorm:"type:uuid;uniqueIndex:idx_membership_member_period,priority:1" json:"member_id"`
	Month        int              `gorm:"uniqueIndex:idx_membership_member_period,priority:3" json:"month"`
	Year         int              `gorm:"uniqueIndex:idx_membership_member_period,priority:2" json:"year"`
	WeeksInMonth int              `json:"weeks_in_month"`
	Amount       int64            `json:"amount"`
	Status       MembershipStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaidDate     *time.Time       `json:"paid_date"`

	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}

func (m *MembershipPayment) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
