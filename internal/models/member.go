package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberType represents the role of a community member
type MemberType string

const (
	MemberTypeAdmin  MemberType = "Admin"
	MemberTypeMember MemberType = "Member"
)

// Member represents a person who attends the weekly sessions
type Member struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name       string     `gorm:"type:varchar(255)" json:"name"`
	Phone      string     `gorm:"type:varchar(50)" json:"phone"`
	Email      string     `gorm:"type:varchar(255);uniqueIndex:idx_members_email,where:email <> ''" json:"email"`
	MemberType MemberType `gorm:"type:varchar(20);default:'Member'" json:"member_type"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`

	// Relationships
	Payments           []Payment           `gorm:"foreignKey:MemberID" json:"payments,omitempty"`
	MembershipPayments []MembershipPayment `gorm:"foreignKey:MemberID" json:"membership_payments,omitempty"`
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
