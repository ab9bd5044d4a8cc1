package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// GatewaySession is a checkout opened at the payment gateway for one Payment
type GatewaySession struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	PaymentID        string         `gorm:"type:uuid;index" json:"payment_id"`
	MemberID         string         `gorm:"type:uuid" json:"member_id"`
	PaymentGateway   PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID          string         `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	Amount           int64          `json:"amount"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	RequestMetadata  datatypes.JSON `json:"request_metadata"`
	ResponseMetadata datatypes.JSON `json:"response_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
