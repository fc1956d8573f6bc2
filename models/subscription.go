package models

import "time"

// Subscription statuses. Transitions derive their target from the incoming
// event, never from the assumed prior state.
const (
	SubscriptionPending  = "pending"
	SubscriptionActive   = "active"
	SubscriptionOverdue  = "overdue"
	SubscriptionCanceled = "canceled"
)

type Subscription struct {
	ID                     uint     `json:"id" gorm:"primaryKey"`
	ProviderSubscriptionID string   `json:"provider_subscription_id" gorm:"size:64;not null;uniqueIndex"`
	CustomerID             uint     `json:"-" gorm:"index"`
	Customer               Customer `json:"customer" gorm:"foreignKey:CustomerID;references:ID"`

	Status      string     `json:"status" gorm:"size:20;index"`
	Value       float64    `json:"value" gorm:"type:numeric(12,2)"`
	NextDueDate *time.Time `json:"next_due_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
