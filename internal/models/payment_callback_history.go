package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentCallbackHistory keeps every raw gateway notification we received
type PaymentCallbackHistory struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID           string         `gorm:"type:varchar(100);index" json:"order_id"`
	TransactionStatus string         `gorm:"type:varchar(50)" json:"transaction_status"`
	Metadata          datatypes.JSON `json:"metadata"`
	CreatedAt         time.Time      `json:"created_at"`
}
