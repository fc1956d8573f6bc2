package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing-gateway-backend/models"
	"billing-gateway-backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Permanent failures: the payload references state that cannot exist locally.
// Redelivery would fail identically, so these are recorded terminally.
var (
	ErrUnknownCustomer     = errors.New("unknown customer")
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Repository provides the ledger and domain-state operations the reconciler
// needs. Transaction yields a Repository bound to one database transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	// ClaimEvent inserts the entry if its event id was never seen, relying on
	// the unique index to make exactly one concurrent caller the claimer.
	// It returns the stored row (the new one or the pre-existing one) and
	// whether this call created it.
	ClaimEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error)
	// FinalizeEvent records the attempt's result. An entry that already
	// reached success is immutable; finalizing it again is a no-op.
	FinalizeEvent(ctx context.Context, eventID, result, errDetail string) error

	// ApplyPaymentState upserts the payment identified by the provider payment
	// id and moves it to status. Empty status means "derive from the payload".
	ApplyPaymentState(ctx context.Context, p *PaymentPayload, status string) error
	// ApplySubscriptionState updates the subscription identified by the
	// provider subscription id. Empty status means "derive from the payload".
	ApplySubscriptionState(ctx context.Context, sub *SubscriptionPayload, status string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciler repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) ClaimEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	claimed := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, claimed, nil
}

func (r *gormRepository) FinalizeEvent(ctx context.Context, eventID, result, errDetail string) error {
	now := time.Now().UTC()
	// Success is immutable: a slower concurrent attempt marking its own
	// failure must not overwrite an entry another attempt already settled.
	// Zero rows affected means exactly that and is not an error.
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ? AND processing_result <> ?", eventID, models.ResultSuccess).
		Updates(map[string]any{
			"processed_at":      &now,
			"processing_result": result,
			"error_detail":      errDetail,
		}).Error
}

// paymentTransitionStale reports whether an event asking for next arrived out
// of order: a terminal payment (refunded/deleted) never reverts to a
// non-terminal state.
func paymentTransitionStale(current, next string) bool {
	return models.PaymentStatusTerminal(current) && !models.PaymentStatusTerminal(next)
}

// subscriptionTransitionStale reports whether applying next would revive a
// canceled subscription; late updates for the old lifecycle are dropped.
func subscriptionTransitionStale(current, next string) bool {
	return current == models.SubscriptionCanceled && next != models.SubscriptionCanceled
}

// paymentPatch/subscriptionPatch carry only the columns an update event may
// touch; json tags double as column names for UpdatesFromPtrDTO.
type paymentPatch struct {
	Status      *string    `json:"status"`
	Value       *float64   `json:"value"`
	DueDate     *time.Time `json:"due_date"`
	PaymentDate *time.Time `json:"payment_date"`
}

type subscriptionPatch struct {
	Status      *string    `json:"status"`
	Value       *float64   `json:"value"`
	NextDueDate *time.Time `json:"next_due_date"`
}

func (r *gormRepository) ApplyPaymentState(ctx context.Context, p *PaymentPayload, status string) error {
	db := r.db.WithContext(ctx)

	var customer models.Customer
	if err := db.Where("provider_customer_id = ?", p.Customer).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownCustomer, p.Customer)
		}
		return err
	}

	if status == "" {
		status = providerPaymentStatus(p.Status)
	}

	var payment models.Payment
	err := db.Where("provider_payment_id = ?", p.ID).First(&payment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First sight of this payment: create it from the event.
		create := models.Payment{
			ProviderPaymentID: p.ID,
			CustomerID:        customer.ID,
			Status:            status,
			DueDate:           parseDate(p.DueDate),
			PaymentDate:       parseDate(p.PaymentDate),
		}
		if create.Status == "" {
			create.Status = models.PaymentPending
		}
		if p.Value != nil {
			create.Value = *p.Value
		}
		if p.Subscription != nil {
			var sub models.Subscription
			if e := db.Where("provider_subscription_id = ?", *p.Subscription).First(&sub).Error; e == nil {
				create.SubscriptionID = &sub.ID
			}
		}
		return db.Create(&create).Error
	case err != nil:
		return err
	}

	if paymentTransitionStale(payment.Status, status) {
		return nil
	}

	patch := paymentPatch{
		Value:       p.Value,
		DueDate:     parseDate(p.DueDate),
		PaymentDate: parseDate(p.PaymentDate),
	}
	if status != "" {
		patch.Status = &status
	}
	updates := utils.UpdatesFromPtrDTO(&patch, nil)
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&payment).Updates(updates).Error
}

func (r *gormRepository) ApplySubscriptionState(ctx context.Context, sub *SubscriptionPayload, status string) error {
	db := r.db.WithContext(ctx)

	var existing models.Subscription
	if err := db.Where("provider_subscription_id = ?", sub.ID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownSubscription, sub.ID)
		}
		return err
	}

	if status == "" {
		status = providerSubscriptionStatus(sub.Status)
	}

	if subscriptionTransitionStale(existing.Status, status) {
		return nil
	}

	patch := subscriptionPatch{
		Value:       sub.Value,
		NextDueDate: parseDate(sub.NextDueDate),
	}
	if status != "" {
		patch.Status = &status
	}
	updates := utils.UpdatesFromPtrDTO(&patch, nil)
	if len(updates) == 0 {
		return nil
	}
	return db.Model(&existing).Updates(updates).Error
}
