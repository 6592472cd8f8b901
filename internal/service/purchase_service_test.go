package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/receipts"
	"github.com/stickerai/credits-service/internal/repository"
)

type purchaseFixture struct {
	purchases PurchaseService
	ledger    LedgerService
	accounts  repository.AccountStore
	userID    uuid.UUID
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	log := testLog()
	accounts := repository.NewInMemoryAccountRepository(log)
	transactions := repository.NewInMemoryTransactionRepository(log)
	purchaseStore := repository.NewInMemoryPurchaseRepository(log)

	account, err := accounts.Create(context.Background(), domain.Account{
		ID:    uuid.New(),
		Email: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	ledger := NewLedgerService(accounts, transactions, nil, nil, log)
	purchases := NewPurchaseService(purchaseStore, ledger, receipts.NewRegistry(log), nil, nil, log)

	return &purchaseFixture{
		purchases: purchases,
		ledger:    ledger,
		accounts:  accounts,
		userID:    account.ID,
	}
}

func iosReceipt(productID, extID string) domain.Receipt {
	return domain.Receipt{
		Platform:              domain.PlatformIOS,
		ReceiptData:           "base64-receipt-payload",
		ProductID:             productID,
		ExternalTransactionID: extID,
	}
}

func TestProcessPurchaseCreditsPackage(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	result, err := f.purchases.ProcessPurchase(ctx, f.userID, iosReceipt("credits_small", "txn-1"))
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if result.TransactionID != "txn-1" {
		t.Errorf("TransactionID = %q, want txn-1", result.TransactionID)
	}
	if result.CreditsAdded != 50 || result.NewBalance != 50 {
		t.Errorf("result = %+v, want 50 credits added and balance 50", result)
	}

	history, err := f.purchases.PurchaseHistory(ctx, f.userID)
	if err != nil {
		t.Fatalf("PurchaseHistory: %v", err)
	}
	if len(history) != 1 || history[0].Refunded {
		t.Errorf("history = %+v, want one unrefunded record", history)
	}

	transactions, _ := f.ledger.History(ctx, f.userID)
	if len(transactions) != 1 || transactions[0].Kind != domain.TransactionKindPurchase {
		t.Errorf("ledger history = %+v, want one purchase transaction", transactions)
	}
}

func TestProcessPurchaseRejectsDuplicateReceipt(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()
	receipt := iosReceipt("credits_small", "txn-dup")

	if _, err := f.purchases.ProcessPurchase(ctx, f.userID, receipt); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	_, err := f.purchases.ProcessPurchase(ctx, f.userID, receipt)
	if !domain.IsCode(err, domain.CodeDuplicateTransaction) {
		t.Fatalf("err = %v, want DuplicateTransaction", err)
	}

	account, _ := f.accounts.GetByID(ctx, f.userID)
	if account.Credits != 50 {
		t.Errorf("balance = %d, duplicate must not credit twice", account.Credits)
	}
}

func TestProcessPurchaseConcurrentSameReceipt(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()
	receipt := iosReceipt("credits_medium", "txn-race")

	const workers = 10
	var succeeded int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.purchases.ProcessPurchase(ctx, f.userID, receipt); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	account, _ := f.accounts.GetByID(ctx, f.userID)
	if account.Credits != 150 {
		t.Errorf("balance = %d, want 150", account.Credits)
	}
}

func TestProcessPurchaseUnknownProduct(t *testing.T) {
	f := newPurchaseFixture(t)

	_, err := f.purchases.ProcessPurchase(context.Background(), f.userID, iosReceipt("credits_mega", "txn-2"))
	if !domain.IsCode(err, domain.CodeInvalidProduct) {
		t.Errorf("err = %v, want InvalidProduct", err)
	}
}

func TestProcessPurchaseRejectedReceipt(t *testing.T) {
	f := newPurchaseFixture(t)

	receipt := iosReceipt("credits_small", "txn-3")
	receipt.ReceiptData = ""
	_, err := f.purchases.ProcessPurchase(context.Background(), f.userID, receipt)
	if !domain.IsCode(err, domain.CodeInvalidReceipt) {
		t.Errorf("err = %v, want InvalidReceipt", err)
	}
}

func TestProcessPurchaseUnsupportedPlatform(t *testing.T) {
	f := newPurchaseFixture(t)

	receipt := iosReceipt("credits_small", "txn-4")
	receipt.Platform = domain.Platform("windows")
	_, err := f.purchases.ProcessPurchase(context.Background(), f.userID, receipt)
	if !domain.IsCode(err, domain.CodeValidationFailed) {
		t.Errorf("err = %v, want ValidationFailed", err)
	}
}

func TestProcessRefund(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	if _, err := f.purchases.ProcessPurchase(ctx, f.userID, iosReceipt("credits_small", "txn-5")); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	result, err := f.purchases.ProcessRefund(ctx, f.userID, "txn-5", "accidental purchase")
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if result.CreditsAdded != -50 || result.NewBalance != 0 {
		t.Errorf("result = %+v, want -50 credits and balance 0", result)
	}

	history, _ := f.purchases.PurchaseHistory(ctx, f.userID)
	if len(history) != 1 || !history[0].Refunded {
		t.Errorf("record not marked refunded: %+v", history)
	}

	// Повторный возврат того же чека отклоняется
	_, err = f.purchases.ProcessRefund(ctx, f.userID, "txn-5", "again")
	if !domain.IsCode(err, domain.CodeAlreadyRefunded) {
		t.Errorf("second refund err = %v, want AlreadyRefunded", err)
	}
}

func TestProcessRefundUnknownTransaction(t *testing.T) {
	f := newPurchaseFixture(t)

	_, err := f.purchases.ProcessRefund(context.Background(), f.userID, "txn-missing", "")
	if !domain.IsCode(err, domain.CodeTransactionNotFound) {
		t.Errorf("err = %v, want TransactionNotFound", err)
	}
}

func TestProcessRefundByNonOwner(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	if _, err := f.purchases.ProcessPurchase(ctx, f.userID, iosReceipt("credits_small", "txn-6")); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	_, err := f.purchases.ProcessRefund(ctx, uuid.New(), "txn-6", "")
	if !domain.IsCode(err, domain.CodeTransactionNotFound) {
		t.Errorf("err = %v, want TransactionNotFound for foreign transaction", err)
	}
}

func TestProcessRefundAfterSpending(t *testing.T) {
	f := newPurchaseFixture(t)
	ctx := context.Background()

	if _, err := f.purchases.ProcessPurchase(ctx, f.userID, iosReceipt("credits_small", "txn-7")); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := f.ledger.Deduct(ctx, f.userID, 30, "stickers", nil); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	_, err := f.purchases.ProcessRefund(ctx, f.userID, "txn-7", "")
	if !domain.IsCode(err, domain.CodeInsufficientCreditsForRefund) {
		t.Fatalf("err = %v, want InsufficientCreditsForRefund", err)
	}

	// Неудачный возврат ничего не меняет
	account, _ := f.accounts.GetByID(ctx, f.userID)
	if account.Credits != 20 {
		t.Errorf("balance = %d, want 20", account.Credits)
	}
	history, _ := f.purchases.PurchaseHistory(ctx, f.userID)
	if history[0].Refunded {
		t.Error("record must not be marked refunded")
	}
}
