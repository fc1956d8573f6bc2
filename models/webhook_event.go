package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Processing results stored on a ledger entry. A duplicate delivery never gets
// its own row; the reconciler reports it from the original entry.
const (
	ResultPending = "pending"
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultIgnored = "ignored" // recognized request, unknown event kind
)

// WebhookEvent is the ledger entry for one provider event. The unique index on
// EventID is the deduplication constraint: a concurrent second delivery of the
// same event id fails the insert and must read this row instead.
type WebhookEvent struct {
	ID       uint   `json:"-" gorm:"primaryKey"`
	PublicID string `json:"public_id" gorm:"size:36;uniqueIndex"`
	EventID  string `json:"event_id" gorm:"size:191;not null;uniqueIndex"`

	EventType  string         `json:"event_type" gorm:"size:100;index"`
	RawPayload datatypes.JSON `json:"raw_payload" gorm:"type:jsonb"` // verbatim body, kept for audit and replay

	ReceivedAt       time.Time  `json:"received_at" gorm:"autoCreateTime"`
	ProcessedAt      *time.Time `json:"processed_at"`
	ProcessingResult string     `json:"processing_result" gorm:"size:20;index"`
	ErrorDetail      string     `json:"error_detail" gorm:"type:text"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.PublicID == "" {
		e.PublicID = uuid.NewString()
	}
	return
}

// Settled reports whether the entry reached a result that must not be
// reapplied: successful entries are immutable, ignored ones stay ignored.
func (e *WebhookEvent) Settled() bool {
	return e.ProcessingResult == ResultSuccess || e.ProcessingResult == ResultIgnored
}
