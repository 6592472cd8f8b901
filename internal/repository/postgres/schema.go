package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema DDL хранилища кредитов.
// transactions.sequence фиксирует порядок коммита;
// уникальный индекс на purchases.external_transaction_id поддерживает
// защиту от повторной обработки чеков на уровне базы.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL,
	credits BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
	subscription_tier TEXT NOT NULL DEFAULT 'free',
	subscription_expiry TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	sequence BIGSERIAL PRIMARY KEY,
	id UUID NOT NULL UNIQUE,
	user_id UUID NOT NULL,
	kind TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount > 0),
	description TEXT NOT NULL DEFAULT '',
	related_ids TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, sequence DESC);

CREATE TABLE IF NOT EXISTS purchases (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	product_id TEXT NOT NULL,
	external_transaction_id TEXT NOT NULL UNIQUE,
	platform TEXT NOT NULL,
	refunded BOOLEAN NOT NULL DEFAULT FALSE,
	refunded_at TIMESTAMPTZ,
	refund_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS subscriptions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	plan_id TEXT NOT NULL,
	status TEXT NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
	canceled_at TIMESTAMPTZ,
	cancel_reason TEXT NOT NULL DEFAULT '',
	last_payment_at TIMESTAMPTZ,
	next_payment_at TIMESTAMPTZ,
	payment_transaction_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_subscriptions_end_date ON subscriptions (status, end_date);
`

// Migrate применяет DDL схемы хранилища
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
