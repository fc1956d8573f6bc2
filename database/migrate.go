package database

import (
	"fmt"

	"billing-gateway-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Money column types (NUMERIC(12,2))
// - Unique index on webhook_events.event_id (the dedup constraint)
// - Basic CHECK constraints
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Customer{},
			&models.Subscription{},
			&models.Payment{},
			&models.WebhookEvent{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE subscriptions ALTER COLUMN value TYPE numeric(12,2)`,
			`ALTER TABLE payments      ALTER COLUMN value TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Indexes (idempotent). The unique event_id index is what makes a
		// concurrent duplicate delivery surface as an insert conflict. ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_webhook_events_event_id ON webhook_events (event_id)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_events_received_at ON webhook_events (received_at)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_customer_status ON payments (customer_id, status)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payments'::regclass
					  AND conname  = 'chk_payments_value_nonneg'
				) THEN
					ALTER TABLE payments
					ADD CONSTRAINT chk_payments_value_nonneg
					CHECK (value >= 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'subscriptions'::regclass
					  AND conname  = 'chk_subscriptions_value_nonneg'
				) THEN
					ALTER TABLE subscriptions
					ADD CONSTRAINT chk_subscriptions_value_nonneg
					CHECK (value >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
