package reconciler

import (
	"testing"

	"billing-gateway-backend/models"

	"github.com/stretchr/testify/assert"
)

func TestPaymentTransitionStale(t *testing.T) {
	cases := []struct {
		name    string
		current string
		next    string
		stale   bool
	}{
		{"confirmation after refund", models.PaymentRefunded, models.PaymentConfirmed, true},
		{"receipt after deletion", models.PaymentDeleted, models.PaymentReceived, true},
		{"update without status after refund", models.PaymentRefunded, "", true},
		{"refund after confirmation", models.PaymentConfirmed, models.PaymentRefunded, false},
		{"confirmation after pending", models.PaymentPending, models.PaymentConfirmed, false},
		{"overdue after pending", models.PaymentPending, models.PaymentOverdue, false},
		{"deletion after refund", models.PaymentRefunded, models.PaymentDeleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.stale, paymentTransitionStale(tc.current, tc.next))
		})
	}
}

func TestSubscriptionTransitionStale(t *testing.T) {
	cases := []struct {
		name    string
		current string
		next    string
		stale   bool
	}{
		{"update after cancellation", models.SubscriptionCanceled, models.SubscriptionActive, true},
		{"update without status after cancellation", models.SubscriptionCanceled, "", true},
		{"repeated cancellation", models.SubscriptionCanceled, models.SubscriptionCanceled, false},
		{"cancellation of active", models.SubscriptionActive, models.SubscriptionCanceled, false},
		{"activation of pending", models.SubscriptionPending, models.SubscriptionActive, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.stale, subscriptionTransitionStale(tc.current, tc.next))
		})
	}
}
