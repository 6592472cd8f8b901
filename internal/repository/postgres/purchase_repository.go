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

// PostgresPurchaseRepository реализация записей о покупках через PostgreSQL.
// Уникальный индекс на external_transaction_id страхует дедупликацию чеков.
type PostgresPurchaseRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPurchaseRepository создает новый репозиторий покупок через PostgreSQL
func NewPostgresPurchaseRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{
		db:  db,
		log: log,
	}
}

const purchaseCols = `id, user_id, product_id, external_transaction_id, platform, refunded, refunded_at, refund_reason, created_at`

func scanPurchase(row pgx.Row) (domain.PurchaseRecord, error) {
	var record domain.PurchaseRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ProductID,
		&record.ExternalTransactionID,
		&record.Platform,
		&record.Refunded,
		&record.RefundedAt,
		&record.RefundReason,
		&record.CreatedAt,
	)
	return record, err
}

// Create добавляет запись о покупке.
// Возвращает ErrDuplicate, если внешний ID транзакции уже встречался.
func (r *PostgresPurchaseRepository) Create(ctx context.Context, record domain.PurchaseRecord) (domain.PurchaseRecord, error) {
	if record.ExternalTransactionID == "" {
		return domain.PurchaseRecord{}, repository.ErrInvalidData
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO purchases (` + purchaseCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.ProductID,
		record.ExternalTransactionID,
		record.Platform,
		record.Refunded,
		record.RefundedAt,
		record.RefundReason,
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.PurchaseRecord{}, repository.ErrDuplicate
		}
		return domain.PurchaseRecord{}, fmt.Errorf("failed to create purchase record: %w", err)
	}

	return record, nil
}

// GetByExternalID возвращает запись о покупке по внешнему ID транзакции
func (r *PostgresPurchaseRepository) GetByExternalID(ctx context.Context, externalTransactionID string) (domain.PurchaseRecord, error) {
	query := `SELECT ` + purchaseCols + ` FROM purchases WHERE external_transaction_id = $1`

	record, err := scanPurchase(r.db.QueryRow(ctx, query, externalTransactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PurchaseRecord{}, repository.ErrNotFound
		}
		return domain.PurchaseRecord{}, fmt.Errorf("failed to get purchase record: %w", err)
	}

	return record, nil
}

// GetByUserID возвращает покупки пользователя от новых к старым
func (r *PostgresPurchaseRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	query := `SELECT ` + purchaseCols + ` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	return records, nil
}

// MarkRefunded переключает флаг refunded записи о покупке
func (r *PostgresPurchaseRepository) MarkRefunded(ctx context.Context, externalTransactionID, reason string, at time.Time) error {
	query := `
		UPDATE purchases
		SET refunded = TRUE, refunded_at = $1, refund_reason = $2
		WHERE external_transaction_id = $3
	`

	tag, err := r.db.Exec(ctx, query, at, reason, externalTransactionID)
	if err != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
