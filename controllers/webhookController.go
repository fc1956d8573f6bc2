package controllers

import (
	"context"
	"crypto/hmac"
	"errors"
	"log"

	"billing-gateway-backend/reconciler"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// WebhookProcessor is what the controller needs from the reconciler; the
// concrete *reconciler.Service satisfies it, tests use fakes.
type WebhookProcessor interface {
	Process(ctx context.Context, d *reconciler.Delivery, raw []byte) (reconciler.Outcome, error)
}

// HandlePaymentWebhook receives provider webhooks. Contract with the
// provider: 200 for anything structurally valid and authentic (including
// duplicates, unknown event kinds and permanent failures) so it stops
// retrying; 401 for a bad token; 400 for broken JSON, 422 for schema
// violations; 500 only for transient failures worth a redelivery.
func HandlePaymentWebhook(svc WebhookProcessor, token, tokenHeader string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !verifyWebhookToken(c.Get(tokenHeader), token) {
			// Potential security event: nothing is recorded, nothing processed.
			log.Printf("webhook auth failure from %s", c.IP())
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook token")
		}

		// Fiber reuses the request buffer after the handler returns; the raw
		// payload outlives it in the ledger, so copy.
		raw := make([]byte, len(c.Body()))
		copy(raw, c.Body())

		d, err := reconciler.ParseDelivery(raw)
		if err != nil {
			// Schema violations render per-field as 422 through the global
			// error handler; anything else (broken JSON, missing event
			// branch) is a plain 400.
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				return ve
			}
			return fiber.NewError(fiber.StatusBadRequest, "invalid webhook payload")
		}

		outcome, err := svc.Process(c.UserContext(), d, raw)
		if err != nil {
			log.Printf("webhook %s: transient processing failure: %v", d.EventID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "webhook processing failed")
		}

		return c.JSON(fiber.Map{
			"id":     d.EventID,
			"status": string(outcome),
		})
	}
}

// verifyWebhookToken compares the shared-secret header in constant time. An
// unconfigured secret rejects everything rather than accepting everything.
func verifyWebhookToken(got, want string) bool {
	if want == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}
