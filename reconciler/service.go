package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"billing-gateway-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome is the per-call result the HTTP layer reports back to the provider.
// Every outcome maps to HTTP 200: even permanent failures must stop the
// provider's redelivery; only transient errors (returned separately) are 500s.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate-ignored"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// Claims older than this that are still pending belong to a crashed attempt
// and may be retaken. Younger ones belong to a concurrent in-flight delivery.
const defaultPendingGrace = time.Minute

// Service applies one webhook delivery exactly once. There is no in-process
// retry loop: transient failures are left for the provider's own redelivery,
// which reprocesses idempotently through the ledger.
type Service struct {
	repo         Repository
	pendingGrace time.Duration
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, pendingGrace: defaultPendingGrace}
}

// NewServiceFromDB creates a reconciler service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Process runs the reconciliation protocol: claim the event id in the ledger,
// apply the state transition, finalize. The transition and the success mark
// share one transaction so a crash between them cannot leave the ledger and
// the domain state inconsistent; the claim itself is durable outside that
// transaction so a failed attempt stays visible as failed.
func (s *Service) Process(ctx context.Context, d *Delivery, raw []byte) (Outcome, error) {
	entry := &models.WebhookEvent{
		EventID:          d.EventID,
		EventType:        string(d.Event),
		RawPayload:       datatypes.JSON(raw),
		ProcessingResult: models.ResultPending,
	}

	stored, claimed, err := s.repo.ClaimEvent(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("ledger claim: %w", err)
	}

	if !claimed {
		if stored.Settled() {
			// Idempotent replay: success is immutable, no side effects rerun.
			return OutcomeDuplicate, nil
		}
		if stored.ProcessingResult == models.ResultPending && time.Since(stored.ReceivedAt) < s.pendingGrace {
			// A concurrent delivery of the same event owns the claim.
			return OutcomeDuplicate, nil
		}
		// failed, or a pending claim left behind by a crash: reprocess.
	}

	if !d.Event.Known() {
		if err := s.repo.FinalizeEvent(ctx, d.EventID, models.ResultIgnored, "unrecognized event type"); err != nil {
			return "", fmt.Errorf("ledger finalize: %w", err)
		}
		log.Printf("webhook %s: unrecognized event %q recorded and skipped", d.EventID, d.Event)
		return OutcomeIgnored, nil
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := applyTransition(ctx, tx, d); err != nil {
			return err
		}
		return tx.FinalizeEvent(ctx, d.EventID, models.ResultSuccess, "")
	})
	if err == nil {
		return OutcomeApplied, nil
	}

	if errors.Is(err, ErrUnknownCustomer) || errors.Is(err, ErrUnknownSubscription) {
		// Permanent failure: record terminally, needs operator review.
		if ferr := s.repo.FinalizeEvent(ctx, d.EventID, models.ResultFailed, err.Error()); ferr != nil {
			return "", fmt.Errorf("ledger finalize: %w", ferr)
		}
		log.Printf("webhook %s: permanent failure: %v", d.EventID, err)
		return OutcomeFailed, nil
	}

	// Transient failure: mark failed (best effort) and surface the error so
	// the provider redelivers.
	if ferr := s.repo.FinalizeEvent(ctx, d.EventID, models.ResultFailed, err.Error()); ferr != nil {
		log.Printf("webhook %s: could not record failure: %v", d.EventID, ferr)
	}
	return "", err
}

func applyTransition(ctx context.Context, tx Repository, d *Delivery) error {
	switch {
	case d.Event.PaymentEvent():
		return tx.ApplyPaymentState(ctx, d.Payment, d.Event.TargetPaymentStatus())
	case d.Event.SubscriptionEvent():
		return tx.ApplySubscriptionState(ctx, d.Subscription, d.Event.TargetSubscriptionStatus())
	}
	return fmt.Errorf("no transition for event type %s", d.Event)
}
