package models

import "time"

// Customer mirrors the provider-side customer identity. The surrounding
// application owns the full record; the reconciler only resolves provider ids
// against it and never creates customers on its own.
type Customer struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	ProviderCustomerID string    `json:"provider_customer_id" gorm:"size:64;not null;uniqueIndex"`
	Name               string    `json:"name"`
	Email              string    `json:"email" gorm:"index"`
	Active             bool      `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}
