package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

func testLog() *logger.Logger {
	return logger.New(logger.ERROR)
}

type ledgerFixture struct {
	ledger       LedgerService
	accounts     repository.AccountStore
	transactions repository.TransactionStore
	userID       uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	log := testLog()
	accounts := repository.NewInMemoryAccountRepository(log)
	transactions := repository.NewInMemoryTransactionRepository(log)

	account, err := accounts.Create(context.Background(), domain.Account{
		ID:    uuid.New(),
		Email: "user@example.com",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	return &ledgerFixture{
		ledger:       NewLedgerService(accounts, transactions, nil, nil, log),
		accounts:     accounts,
		transactions: transactions,
		userID:       account.ID,
	}
}

func (f *ledgerFixture) balance(t *testing.T) int64 {
	t.Helper()
	account, err := f.accounts.GetByID(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.Credits
}

func TestLedgerAddDeductRefundScenario(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Add(ctx, f.userID, 10, "Initial pack", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	result, err := f.ledger.Deduct(ctx, f.userID, 3, "Sticker generation", nil)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if result.NewBalance != 7 {
		t.Errorf("balance after deduct = %d, want 7", result.NewBalance)
	}

	result, err = f.ledger.Add(ctx, f.userID, 20, "Purchased Starter Pack", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.NewBalance != 27 {
		t.Errorf("balance after add = %d, want 27", result.NewBalance)
	}

	result, err = f.ledger.Refund(ctx, f.userID, 3, "Failed generation", nil)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if result.NewBalance != 30 {
		t.Errorf("balance after refund = %d, want 30", result.NewBalance)
	}
	if f.balance(t) != 30 {
		t.Errorf("stored balance = %d, want 30", f.balance(t))
	}
}

func TestLedgerValidate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Add(ctx, f.userID, 10, "seed", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	result, err := f.ledger.Validate(ctx, f.userID, 5)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid || result.CurrentBalance != 10 {
		t.Errorf("Validate = %+v, want valid with balance 10", result)
	}

	result, err = f.ledger.Validate(ctx, f.userID, 25)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Error("validation must fail when the balance is short")
	}
	want := "Insufficient credits. Required: 25, Available: 10"
	if result.Message != want {
		t.Errorf("Message = %q, want %q", result.Message, want)
	}

	if _, err := f.ledger.Validate(ctx, uuid.New(), 5); !domain.IsCode(err, domain.CodeUserNotFound) {
		t.Errorf("unknown user err = %v, want UserNotFound", err)
	}
}

func TestLedgerDeductInsufficient(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Add(ctx, f.userID, 5, "seed", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, err := f.ledger.Deduct(ctx, f.userID, 6, "too much", nil)
	if !domain.IsCode(err, domain.CodeInsufficientCredits) {
		t.Fatalf("err = %v, want InsufficientCredits", err)
	}
	if domain.IsRetryable(err) {
		t.Error("insufficient credits must not be retryable")
	}
	if f.balance(t) != 5 {
		t.Errorf("failed deduct must not change the balance, got %d", f.balance(t))
	}

	history, _ := f.ledger.History(ctx, f.userID)
	if len(history) != 1 {
		t.Errorf("failed deduct must not append a transaction, history = %d", len(history))
	}
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		if _, err := f.ledger.Deduct(ctx, f.userID, amount, "", nil); !domain.IsCode(err, domain.CodeInvalidAmount) {
			t.Errorf("Deduct(%d) err = %v, want InvalidAmount", amount, err)
		}
		if _, err := f.ledger.Add(ctx, f.userID, amount, "", nil); !domain.IsCode(err, domain.CodeInvalidAmount) {
			t.Errorf("Add(%d) err = %v, want InvalidAmount", amount, err)
		}
		if _, err := f.ledger.Validate(ctx, f.userID, amount); !domain.IsCode(err, domain.CodeInvalidAmount) {
			t.Errorf("Validate(%d) err = %v, want InvalidAmount", amount, err)
		}
	}
}

func TestLedgerUnknownUser(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.ledger.Deduct(context.Background(), uuid.New(), 1, "", nil)
	if !domain.IsCode(err, domain.CodeUserNotFound) {
		t.Errorf("err = %v, want UserNotFound", err)
	}
}

func TestLedgerHistoryNewestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.ledger.Add(ctx, f.userID, 10, "first", nil)
	f.ledger.Deduct(ctx, f.userID, 2, "second", nil)
	f.ledger.Refund(ctx, f.userID, 2, "third", nil)

	history, err := f.ledger.History(ctx, f.userID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want 3", len(history))
	}
	if history[0].Description != "third" || history[2].Description != "first" {
		t.Errorf("history not newest-first: %q ... %q", history[0].Description, history[2].Description)
	}
}

func TestLedgerTotals(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.ledger.Add(ctx, f.userID, 50, "", nil)
	f.ledger.Add(ctx, f.userID, 150, "", nil)
	f.ledger.Deduct(ctx, f.userID, 40, "", nil)
	f.ledger.Refund(ctx, f.userID, 5, "", nil)

	purchased, err := f.ledger.Totals(ctx, f.userID, domain.TransactionKindPurchase)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if purchased != 200 {
		t.Errorf("purchased = %d, want 200", purchased)
	}
	consumed, _ := f.ledger.Totals(ctx, f.userID, domain.TransactionKindConsumption)
	if consumed != 40 {
		t.Errorf("consumed = %d, want 40", consumed)
	}
	refunded, _ := f.ledger.Totals(ctx, f.userID, domain.TransactionKindRefund)
	if refunded != 5 {
		t.Errorf("refunded = %d, want 5", refunded)
	}
}

func TestLedgerConcurrentDeductsNeverOverspend(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Add(ctx, f.userID, 100, "seed", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	const workers = 50
	var succeeded int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Deduct(ctx, f.userID, 3, "concurrent", nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 100 / 3 = 33 списания, остаток 1
	if succeeded != 33 {
		t.Errorf("succeeded = %d, want 33", succeeded)
	}
	if f.balance(t) != 1 {
		t.Errorf("balance = %d, want 1", f.balance(t))
	}

	// Баланс равен сумме эффектов записей леджера
	history, _ := f.ledger.History(ctx, f.userID)
	var sum int64
	for _, txn := range history {
		sum += txn.Effect()
	}
	if sum != f.balance(t) {
		t.Errorf("balance %d != ledger sum %d", f.balance(t), sum)
	}
}

// failingTransactionStore падает на Append для проверки компенсации баланса
type failingTransactionStore struct {
	repository.TransactionStore
	fail bool
}

func (s *failingTransactionStore) Append(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if s.fail {
		return domain.Transaction{}, errors.New("append failed")
	}
	return s.TransactionStore.Append(ctx, txn)
}

func TestLedgerAppendFailureRollsBackBalance(t *testing.T) {
	log := testLog()
	accounts := repository.NewInMemoryAccountRepository(log)
	store := &failingTransactionStore{TransactionStore: repository.NewInMemoryTransactionRepository(log)}
	ledger := NewLedgerService(accounts, store, nil, nil, log)
	ctx := context.Background()

	account, err := accounts.Create(ctx, domain.Account{ID: uuid.New(), Email: "user@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := ledger.Add(ctx, account.ID, 10, "seed", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.fail = true
	_, err = ledger.Deduct(ctx, account.ID, 4, "doomed", nil)
	if !domain.IsCode(err, domain.CodeUpdateFailed) {
		t.Fatalf("err = %v, want UpdateFailed", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("rolled-back failure must be retryable")
	}

	got, _ := accounts.GetByID(ctx, account.ID)
	if got.Credits != 10 {
		t.Errorf("balance = %d, want 10 after rollback", got.Credits)
	}
}
