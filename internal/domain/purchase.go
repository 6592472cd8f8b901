package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform платформа магазина приложений
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Receipt чек покупки, присланный клиентом
type Receipt struct {
	Platform              Platform `json:"platform"`
	ReceiptData           string   `json:"receipt_data"`
	ProductID             string   `json:"product_id"`
	ExternalTransactionID string   `json:"external_transaction_id"`
}

// PurchaseRecord запись об одной внешней покупке.
// ExternalTransactionID уникален и служит ключом дедупликации повторных чеков.
// Refunded единственное изменяемое поле, переключается ровно один раз.
type PurchaseRecord struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	ProductID             string     `json:"product_id"`
	ExternalTransactionID string     `json:"external_transaction_id"`
	Platform              Platform   `json:"platform"`
	Refunded              bool       `json:"refunded"`
	RefundedAt            *time.Time `json:"refunded_at,omitempty"`
	RefundReason          string     `json:"refund_reason,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// PurchaseResult результат обработки покупки или возврата
type PurchaseResult struct {
	TransactionID string `json:"transaction_id"`
	CreditsAdded  int64  `json:"credits_added"`
	NewBalance    int64  `json:"new_balance"`
}
