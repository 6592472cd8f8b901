package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind тип транзакции по кредитам
type TransactionKind string

const (
	TransactionKindPurchase    TransactionKind = "purchase"
	TransactionKindConsumption TransactionKind = "consumption"
	TransactionKindRefund      TransactionKind = "refund"
)

// Transaction неизменяемая запись журнала транзакций.
// Создается только Ledger-ом, никогда не изменяется и не удаляется.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Kind        TransactionKind `json:"kind"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	RelatedIDs  []string        `json:"related_ids,omitempty"`
	// Sequence присваивается хранилищем в порядке коммита
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// Effect возвращает влияние транзакции на баланс:
// purchase/refund увеличивают баланс, consumption уменьшает.
func (t Transaction) Effect() int64 {
	if t.Kind == TransactionKindConsumption {
		return -t.Amount
	}
	return t.Amount
}

// TransactionResult результат успешной операции Ledger
type TransactionResult struct {
	Transaction Transaction `json:"transaction"`
	NewBalance  int64       `json:"new_balance"`
}

// ValidationResult результат проверки достаточности кредитов
type ValidationResult struct {
	Valid          bool   `json:"valid"`
	CurrentBalance int64  `json:"current_balance"`
	Message        string `json:"message,omitempty"`
}
