package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// PostgresSubscriptionRepository реализация хранилища подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новое хранилище подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionCols = `id, user_id, plan_id, status, start_date, end_date, auto_renew, canceled_at, cancel_reason, last_payment_at, next_payment_at, payment_transaction_id, created_at, updated_at`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&sub.StartDate,
		&sub.EndDate,
		&sub.AutoRenew,
		&sub.CanceledAt,
		&sub.CancelReason,
		&sub.LastPaymentAt,
		&sub.NextPaymentAt,
		&sub.PaymentTransactionID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

// Create создает новую подписку
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
		INSERT INTO subscriptions (` + subscriptionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.AutoRenew,
		sub.CanceledAt,
		sub.CancelReason,
		sub.LastPaymentAt,
		sub.NextPaymentAt,
		sub.PaymentTransactionID,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Subscription{}, repository.ErrDuplicate
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// Update обновляет существующую подписку
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, status = $2, start_date = $3, end_date = $4, auto_renew = $5,
			canceled_at = $6, cancel_reason = $7, last_payment_at = $8, next_payment_at = $9,
			payment_transaction_id = $10, updated_at = now()
		WHERE id = $11
	`

	tag, err := r.db.Exec(ctx, query,
		sub.PlanID,
		sub.Status,
		sub.StartDate,
		sub.EndDate,
		sub.AutoRenew,
		sub.CanceledAt,
		sub.CancelReason,
		sub.LastPaymentAt,
		sub.NextPaymentAt,
		sub.PaymentTransactionID,
		sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetByUserID возвращает все подписки пользователя от новых к старым
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// GetLiveByUserID возвращает живую подписку пользователя
func (r *PostgresSubscriptionRepository) GetLiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionCols + `
		FROM subscriptions
		WHERE user_id = $1
			AND (status = 'active' OR (status = 'canceled' AND end_date > $2))
		ORDER BY created_at DESC
		LIMIT 1
	`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, repository.ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get live subscription: %w", err)
	}

	return sub, nil
}

// GetExpiredCandidates возвращает подписки, чей оплаченный период истек,
// но статус еще не переведен в expired
func (r *PostgresSubscriptionRepository) GetExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionCols + `
		FROM subscriptions
		WHERE status IN ('active', 'canceled') AND end_date <= $1
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}
