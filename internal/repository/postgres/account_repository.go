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

// PostgresAccountRepository реализация каталога пользователей через PostgreSQL
type PostgresAccountRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresAccountRepository создает новый репозиторий аккаунтов через PostgreSQL
func NewPostgresAccountRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		db:  db,
		log: log,
	}
}

// GetByID возвращает аккаунт по ID
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	query := `
		SELECT id, email, credits, subscription_tier, subscription_expiry, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	err := r.db.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Email,
		&account.Credits,
		&account.SubscriptionTier,
		&account.SubscriptionExpiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, repository.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// Create создает новый аккаунт
func (r *PostgresAccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	if account.SubscriptionTier == "" {
		account.SubscriptionTier = domain.TierFree
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, email, credits, subscription_tier, subscription_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Credits,
		account.SubscriptionTier,
		account.SubscriptionExpiry,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Account{}, repository.ErrDuplicate
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// SetBalance записывает новый баланс кредитов аккаунта
func (r *PostgresAccountRepository) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	query := `
		UPDATE accounts
		SET credits = $1, updated_at = now()
		WHERE id = $2
	`

	tag, err := r.db.Exec(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateSubscription обновляет поля подписки аккаунта
func (r *PostgresAccountRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, tier domain.SubscriptionTier, expiry *time.Time) error {
	query := `
		UPDATE accounts
		SET subscription_tier = $1, subscription_expiry = $2, updated_at = now()
		WHERE id = $3
	`

	tag, err := r.db.Exec(ctx, query, tier, expiry, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
