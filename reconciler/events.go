// Package reconciler turns provider webhook deliveries into exactly-once state
// transitions on subscription and payment records.
package reconciler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing-gateway-backend/models"
	"billing-gateway-backend/utils"

	"github.com/go-playground/validator/v10"
)

// EventType is the provider's event enumeration. Values outside this set are
// accepted and recorded but never applied.
type EventType string

const (
	EventPaymentConfirmed    EventType = "PAYMENT_CONFIRMED"
	EventPaymentReceived     EventType = "PAYMENT_RECEIVED"
	EventPaymentOverdue      EventType = "PAYMENT_OVERDUE"
	EventPaymentDeleted      EventType = "PAYMENT_DELETED"
	EventPaymentUpdated      EventType = "PAYMENT_UPDATED"
	EventPaymentRefunded     EventType = "PAYMENT_REFUNDED"
	EventSubscriptionUpdated EventType = "SUBSCRIPTION_UPDATED"
	EventSubscriptionDeleted EventType = "SUBSCRIPTION_DELETED"
)

func (e EventType) PaymentEvent() bool {
	switch e {
	case EventPaymentConfirmed, EventPaymentReceived, EventPaymentOverdue,
		EventPaymentDeleted, EventPaymentUpdated, EventPaymentRefunded:
		return true
	}
	return false
}

func (e EventType) SubscriptionEvent() bool {
	return e == EventSubscriptionUpdated || e == EventSubscriptionDeleted
}

func (e EventType) Known() bool {
	return e.PaymentEvent() || e.SubscriptionEvent()
}

// TargetPaymentStatus maps an event kind to the payment status it implies.
// Empty means the status comes from the payload (PAYMENT_UPDATED).
func (e EventType) TargetPaymentStatus() string {
	switch e {
	case EventPaymentConfirmed:
		return models.PaymentConfirmed
	case EventPaymentReceived:
		return models.PaymentReceived
	case EventPaymentOverdue:
		return models.PaymentOverdue
	case EventPaymentDeleted:
		return models.PaymentDeleted
	case EventPaymentRefunded:
		return models.PaymentRefunded
	}
	return ""
}

// TargetSubscriptionStatus mirrors TargetPaymentStatus for subscription events.
func (e EventType) TargetSubscriptionStatus() string {
	if e == EventSubscriptionDeleted {
		return models.SubscriptionCanceled
	}
	return ""
}

// PaymentPayload is the payment object carried by PAYMENT_* events. Optional
// fields are pointers so absent values are distinguishable from zero values
// and never clobber stored state.
type PaymentPayload struct {
	ID           string   `json:"id" validate:"required,max=64"`
	Customer     string   `json:"customer" validate:"required,max=64"`
	Subscription *string  `json:"subscription"`
	Value        *float64 `json:"value" validate:"omitempty,gte=0"`
	Status       *string  `json:"status"`
	DueDate      *string  `json:"dueDate"`
	PaymentDate  *string  `json:"paymentDate"`
}

// SubscriptionPayload is the subscription object carried by SUBSCRIPTION_* events.
type SubscriptionPayload struct {
	ID          string   `json:"id" validate:"required,max=64"`
	Customer    string   `json:"customer"`
	Status      *string  `json:"status"`
	Value       *float64 `json:"value" validate:"omitempty,gte=0"`
	NextDueDate *string  `json:"nextDueDate"`
}

// Delivery is one webhook request body: a closed tagged union over the event
// kinds, with the branch payloads optional.
type Delivery struct {
	EventID      string               `json:"id" validate:"required,max=191"`
	Event        EventType            `json:"event" validate:"required"`
	Payment      *PaymentPayload      `json:"payment"`
	Subscription *SubscriptionPayload `json:"subscription"`
}

var validate = validator.New()

// ParseDelivery decodes and validates a webhook body. Unknown event kinds pass
// structural validation (id + event only); the branch object is only required
// and validated for recognized kinds.
func ParseDelivery(body []byte) (*Delivery, error) {
	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if err := validate.Struct(&d); err != nil {
		return nil, err
	}

	switch {
	case d.Event.PaymentEvent():
		if d.Payment == nil {
			return nil, errors.New("payment event without payment object")
		}
		if err := validate.Struct(d.Payment); err != nil {
			return nil, err
		}
		utils.NormalizePtrDTO(d.Payment)
	case d.Event.SubscriptionEvent():
		if d.Subscription == nil {
			return nil, errors.New("subscription event without subscription object")
		}
		if err := validate.Struct(d.Subscription); err != nil {
			return nil, err
		}
		utils.NormalizePtrDTO(d.Subscription)
	}

	return &d, nil
}

// providerPaymentStatus maps the provider's reported payment status to ours.
// Unknown values return "" (keep the stored status).
func providerPaymentStatus(s *string) string {
	if s == nil {
		return ""
	}
	switch strings.ToUpper(strings.TrimSpace(*s)) {
	case "PENDING", "AWAITING_PAYMENT":
		return models.PaymentPending
	case "CONFIRMED":
		return models.PaymentConfirmed
	case "RECEIVED", "RECEIVED_IN_CASH":
		return models.PaymentReceived
	case "OVERDUE":
		return models.PaymentOverdue
	case "REFUNDED":
		return models.PaymentRefunded
	case "DELETED":
		return models.PaymentDeleted
	}
	return ""
}

// providerSubscriptionStatus maps the provider's subscription status to ours.
func providerSubscriptionStatus(s *string) string {
	if s == nil {
		return ""
	}
	switch strings.ToUpper(strings.TrimSpace(*s)) {
	case "ACTIVE":
		return models.SubscriptionActive
	case "OVERDUE":
		return models.SubscriptionOverdue
	case "EXPIRED", "INACTIVE", "CANCELED":
		return models.SubscriptionCanceled
	}
	return ""
}

// parseDate parses the provider's date format ("2006-01-02"), tolerating full
// RFC 3339 timestamps. Unparseable values are dropped, not errors: a bad date
// must not block the status transition itself.
func parseDate(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t
	}
	return nil
}
