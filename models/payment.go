package models

import "time"

// Payment statuses as reported by the provider. Refunded and deleted are
// terminal: a non-terminal event arriving afterwards for the same payment is
// stale and must not resurrect it.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentReceived  = "received"
	PaymentOverdue   = "overdue"
	PaymentRefunded  = "refunded"
	PaymentDeleted   = "deleted"
)

// PaymentStatusTerminal reports whether a status may never be overwritten by a
// non-terminal one.
func PaymentStatusTerminal(status string) bool {
	return status == PaymentRefunded || status == PaymentDeleted
}

type Payment struct {
	ID                uint     `json:"id" gorm:"primaryKey"`
	ProviderPaymentID string   `json:"provider_payment_id" gorm:"size:64;not null;uniqueIndex"`
	CustomerID        uint     `json:"-" gorm:"index"`
	Customer          Customer `json:"customer" gorm:"foreignKey:CustomerID;references:ID"`

	// Optional link to a subscription when the provider reports one.
	SubscriptionID *uint `json:"subscription_id" gorm:"index"`

	Status      string     `json:"status" gorm:"size:20;index"`
	Value       float64    `json:"value" gorm:"type:numeric(12,2)"`
	DueDate     *time.Time `json:"due_date"`
	PaymentDate *time.Time `json:"payment_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
