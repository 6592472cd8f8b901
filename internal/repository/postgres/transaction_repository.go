package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// PostgresTransactionRepository реализация журнала транзакций через PostgreSQL.
// Порядок коммита фиксируется колонкой sequence (BIGSERIAL).
type PostgresTransactionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresTransactionRepository создает новый журнал транзакций через PostgreSQL
func NewPostgresTransactionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{
		db:  db,
		log: log,
	}
}

// Append добавляет транзакцию в журнал
func (r *PostgresTransactionRepository) Append(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if txn.Amount <= 0 {
		return domain.Transaction{}, repository.ErrInvalidData
	}

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	if txn.RelatedIDs == nil {
		txn.RelatedIDs = []string{}
	}

	query := `
		INSERT INTO transactions (id, user_id, kind, amount, description, related_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING sequence
	`

	err := r.db.QueryRow(ctx, query,
		txn.ID,
		txn.UserID,
		txn.Kind,
		txn.Amount,
		txn.Description,
		txn.RelatedIDs,
		txn.CreatedAt,
	).Scan(&txn.Sequence)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to append transaction: %w", err)
	}

	return txn, nil
}

// GetByUserID возвращает транзакции пользователя от новых к старым
// (в порядке коммита)
func (r *PostgresTransactionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT sequence, id, user_id, kind, amount, description, related_ids, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY sequence DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		err := rows.Scan(
			&txn.Sequence,
			&txn.ID,
			&txn.UserID,
			&txn.Kind,
			&txn.Amount,
			&txn.Description,
			&txn.RelatedIDs,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// SumByKind возвращает сумму транзакций пользователя указанного типа
func (r *PostgresTransactionRepository) SumByKind(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND kind = $2
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, userID, kind).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return total, nil
}
