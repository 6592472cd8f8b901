package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/repository"
)

type subscriptionFixture struct {
	subscriptions SubscriptionService
	store         *repository.InMemorySubscriptionRepository
	accounts      repository.AccountStore
	ledger        LedgerService
	userID        uuid.UUID
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	log := testLog()
	accounts := repository.NewInMemoryAccountRepository(log)
	transactions := repository.NewInMemoryTransactionRepository(log)
	store := repository.NewInMemorySubscriptionRepository(log)

	account, err := accounts.Create(context.Background(), domain.Account{
		ID:    uuid.New(),
		Email: "subscriber@example.com",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	ledger := NewLedgerService(accounts, transactions, nil, nil, log)
	subscriptions := NewSubscriptionService(store, accounts, ledger, nil, nil, log)

	return &subscriptionFixture{
		subscriptions: subscriptions,
		store:         store,
		accounts:      accounts,
		ledger:        ledger,
		userID:        account.ID,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func TestCreateSubscriptionGrantsCredits(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.Status != domain.SubscriptionStatusActive {
		t.Errorf("status = %s, want active", sub.Status)
	}
	if !sameDay(sub.EndDate, sub.StartDate.AddDate(0, 1, 0)) {
		t.Errorf("endDate = %v, want start + 1 month", sub.EndDate)
	}
	if !sub.AutoRenew {
		t.Error("new subscription must auto-renew")
	}

	account, _ := f.accounts.GetByID(ctx, f.userID)
	if account.Credits != 100 {
		t.Errorf("balance = %d, want 100 monthly credits", account.Credits)
	}
	if account.SubscriptionTier != domain.TierPremium {
		t.Errorf("tier = %s, want premium", account.SubscriptionTier)
	}
}

func TestCreateSubscriptionYearlyInterval(t *testing.T) {
	f := newSubscriptionFixture(t)

	sub, err := f.subscriptions.Create(context.Background(), f.userID, "premium_yearly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sameDay(sub.EndDate, sub.StartDate.AddDate(1, 0, 0)) {
		t.Errorf("endDate = %v, want start + 1 year", sub.EndDate)
	}
}

func TestCreateSubscriptionRejectsSecondLive(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	if _, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-2")
	if !domain.IsCode(err, domain.CodeExistingSubscription) {
		t.Errorf("err = %v, want ExistingSubscription", err)
	}

	// Отмененная подписка в grace period тоже блокирует оформление новой
	if _, err := f.subscriptions.Cancel(ctx, f.userID, "switching"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err = f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-3")
	if !domain.IsCode(err, domain.CodeExistingSubscription) {
		t.Errorf("err = %v, want ExistingSubscription during grace period", err)
	}
}

func TestCreateSubscriptionInvalidPlan(t *testing.T) {
	f := newSubscriptionFixture(t)

	_, err := f.subscriptions.Create(context.Background(), f.userID, "premium_weekly", "pay-1")
	if !domain.IsCode(err, domain.CodeInvalidPlan) {
		t.Errorf("err = %v, want InvalidPlan", err)
	}
}

func TestCreateSubscriptionUnknownUser(t *testing.T) {
	f := newSubscriptionFixture(t)

	_, err := f.subscriptions.Create(context.Background(), uuid.New(), "premium_monthly", "pay-1")
	if !domain.IsCode(err, domain.CodeUserNotFound) {
		t.Errorf("err = %v, want UserNotFound", err)
	}
}

func TestCancelKeepsGraceAccess(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	created, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	canceled, err := f.subscriptions.Cancel(ctx, f.userID, "too expensive")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != domain.SubscriptionStatusCanceled {
		t.Errorf("status = %s, want canceled", canceled.Status)
	}
	if canceled.AutoRenew {
		t.Error("canceled subscription must not auto-renew")
	}
	if !canceled.EndDate.Equal(created.EndDate) {
		t.Error("cancel must not shorten the paid period")
	}

	// Доступ до конца оплаченного периода сохраняется
	active, err := f.subscriptions.GetActive(ctx, f.userID)
	if err != nil {
		t.Fatalf("GetActive after cancel: %v", err)
	}
	if active.DaysRemaining <= 0 {
		t.Errorf("DaysRemaining = %d, want > 0", active.DaysRemaining)
	}

	// Повторная отмена невозможна
	if _, err := f.subscriptions.Cancel(ctx, f.userID, "again"); !domain.IsCode(err, domain.CodeNoActiveSubscription) {
		t.Errorf("second cancel err = %v, want NoActiveSubscription", err)
	}
}

func TestCancelWithoutSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)

	_, err := f.subscriptions.Cancel(context.Background(), f.userID, "")
	if !domain.IsCode(err, domain.CodeNoActiveSubscription) {
		t.Errorf("err = %v, want NoActiveSubscription", err)
	}
}

func TestRenewExtendsFromCurrentEndDate(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	created, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	renewed, err := f.subscriptions.Renew(ctx, f.userID, "pay-2")
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !sameDay(renewed.EndDate, created.EndDate.AddDate(0, 1, 0)) {
		t.Errorf("endDate = %v, want previous end + 1 month", renewed.EndDate)
	}

	account, _ := f.accounts.GetByID(ctx, f.userID)
	if account.Credits != 200 {
		t.Errorf("balance = %d, want 200 after two grants", account.Credits)
	}
}

func TestRenewAfterCancelReactivates(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	if _, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.subscriptions.Cancel(ctx, f.userID, "changed my mind"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	renewed, err := f.subscriptions.Renew(ctx, f.userID, "pay-2")
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.Status != domain.SubscriptionStatusActive {
		t.Errorf("status = %s, want active", renewed.Status)
	}
	if !renewed.AutoRenew || renewed.CanceledAt != nil {
		t.Error("renewal must clear the cancellation")
	}
}

// flakyAccountStore падает на записи баланса, пока взведен flag
type flakyAccountStore struct {
	repository.AccountStore
	failSetBalance bool
}

func (s *flakyAccountStore) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	if s.failSetBalance {
		return errors.New("balance write failed")
	}
	return s.AccountStore.SetBalance(ctx, id, balance)
}

func TestRenewFailedGrantLeavesSubscriptionUntouched(t *testing.T) {
	log := testLog()
	accounts := &flakyAccountStore{AccountStore: repository.NewInMemoryAccountRepository(log)}
	transactions := repository.NewInMemoryTransactionRepository(log)
	store := repository.NewInMemorySubscriptionRepository(log)

	account, err := accounts.Create(context.Background(), domain.Account{ID: uuid.New(), Email: "subscriber@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	ledger := NewLedgerService(accounts, transactions, nil, nil, log)
	subscriptions := NewSubscriptionService(store, accounts, ledger, nil, nil, log)
	ctx := context.Background()

	created, err := subscriptions.Create(ctx, account.ID, "premium_monthly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	accounts.failSetBalance = true
	_, err = subscriptions.Renew(ctx, account.ID, "pay-2")
	if !domain.IsCode(err, domain.CodeUpdateFailed) {
		t.Fatalf("err = %v, want UpdateFailed", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("failed grant before any subscription write must be retryable")
	}

	active, err := subscriptions.GetActive(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if !active.EndDate.Equal(created.EndDate) {
		t.Errorf("endDate = %v, failed renewal must not extend the period", active.EndDate)
	}

	// Повтор после восстановления продлевает период ровно один раз
	accounts.failSetBalance = false
	renewed, err := subscriptions.Renew(ctx, account.ID, "pay-2")
	if err != nil {
		t.Fatalf("retry Renew: %v", err)
	}
	if !sameDay(renewed.EndDate, created.EndDate.AddDate(0, 1, 0)) {
		t.Errorf("endDate = %v, want original end + 1 month", renewed.EndDate)
	}
	got, _ := accounts.GetByID(ctx, account.ID)
	if got.Credits != 200 {
		t.Errorf("balance = %d, want 200 (one create grant, one renewal grant)", got.Credits)
	}
}

// flakySubscriptionStore падает на Update, пока взведен flag
type flakySubscriptionStore struct {
	repository.SubscriptionStore
	failUpdate bool
}

func (s *flakySubscriptionStore) Update(ctx context.Context, sub domain.Subscription) error {
	if s.failUpdate {
		return errors.New("subscription write failed")
	}
	return s.SubscriptionStore.Update(ctx, sub)
}

func TestRenewFailedWriteRevokesGrantedCredits(t *testing.T) {
	log := testLog()
	accounts := repository.NewInMemoryAccountRepository(log)
	transactions := repository.NewInMemoryTransactionRepository(log)
	store := &flakySubscriptionStore{SubscriptionStore: repository.NewInMemorySubscriptionRepository(log)}

	account, err := accounts.Create(context.Background(), domain.Account{ID: uuid.New(), Email: "subscriber@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	ledger := NewLedgerService(accounts, transactions, nil, nil, log)
	subscriptions := NewSubscriptionService(store, accounts, ledger, nil, nil, log)
	ctx := context.Background()

	created, err := subscriptions.Create(ctx, account.ID, "premium_monthly", "pay-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.failUpdate = true
	_, err = subscriptions.Renew(ctx, account.ID, "pay-2")
	if !domain.IsCode(err, domain.CodeInternal) {
		t.Fatalf("err = %v, want Internal", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("compensated renewal failure must be retryable")
	}

	got, _ := accounts.GetByID(ctx, account.ID)
	if got.Credits != 100 {
		t.Errorf("balance = %d, granted renewal credits must be revoked", got.Credits)
	}
	active, err := subscriptions.GetActive(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if !active.EndDate.Equal(created.EndDate) {
		t.Errorf("endDate = %v, failed renewal must not extend the period", active.EndDate)
	}
}

func TestRenewWithoutSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)

	_, err := f.subscriptions.Renew(context.Background(), f.userID, "pay-1")
	if !domain.IsCode(err, domain.CodeNoSubscriptionToRenew) {
		t.Errorf("err = %v, want NoSubscriptionToRenew", err)
	}
}

func TestBenefits(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	benefits, err := f.subscriptions.Benefits(ctx, f.userID)
	if err != nil {
		t.Fatalf("Benefits: %v", err)
	}
	if benefits.Priority || benefits.MonthlyCredits != 10 {
		t.Errorf("free benefits = %+v", benefits)
	}

	if _, err := f.subscriptions.Create(ctx, f.userID, "premium_monthly", "pay-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	benefits, err = f.subscriptions.Benefits(ctx, f.userID)
	if err != nil {
		t.Fatalf("Benefits: %v", err)
	}
	if !benefits.Priority || benefits.MonthlyCredits != 100 {
		t.Errorf("premium benefits = %+v", benefits)
	}
}

func TestProcessExpired(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	now := time.Now()

	// Истекшая активная подписка
	if _, err := f.store.Create(ctx, domain.Subscription{
		UserID:    f.userID,
		PlanID:    "premium_monthly",
		Status:    domain.SubscriptionStatusActive,
		StartDate: now.AddDate(0, -2, 0),
		EndDate:   now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Отмененная подписка с прошедшим grace period у другого пользователя
	other, err := f.accounts.Create(ctx, domain.Account{ID: uuid.New(), Email: "other@example.com"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := f.store.Create(ctx, domain.Subscription{
		UserID:    other.ID,
		PlanID:    "premium_monthly",
		Status:    domain.SubscriptionStatusCanceled,
		StartDate: now.AddDate(0, -2, 0),
		EndDate:   now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, err := f.subscriptions.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("ProcessExpired: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	for _, userID := range []uuid.UUID{f.userID, other.ID} {
		if _, err := f.subscriptions.GetActive(ctx, userID); !domain.IsCode(err, domain.CodeNoActiveSubscription) {
			t.Errorf("user %s still has a live subscription after sweep", userID)
		}
		account, _ := f.accounts.GetByID(ctx, userID)
		if account.SubscriptionTier != domain.TierFree {
			t.Errorf("user %s tier = %s, want free", userID, account.SubscriptionTier)
		}
	}

	// Повторный проход ничего не находит
	count, err = f.subscriptions.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("ProcessExpired: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep count = %d, want 0", count)
	}
}

func TestProcessExpiredSkipsRenewed(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	now := time.Now()

	sub, err := f.store.Create(ctx, domain.Subscription{
		UserID:    f.userID,
		PlanID:    "premium_monthly",
		Status:    domain.SubscriptionStatusActive,
		StartDate: now.AddDate(0, -1, 0),
		EndDate:   now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Подписку продлили до того, как до нее дошел проход
	sub.EndDate = now.AddDate(0, 1, 0)
	if err := f.store.Update(ctx, sub); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := f.subscriptions.ProcessExpired(ctx)
	if err != nil {
		t.Fatalf("ProcessExpired: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, renewed subscription must be skipped", count)
	}
}

func TestSubscriptionHistory(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := f.store.Create(ctx, domain.Subscription{
		UserID:  f.userID,
		PlanID:  "premium_monthly",
		Status:  domain.SubscriptionStatusExpired,
		EndDate: now.AddDate(0, -6, 0),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.subscriptions.Create(ctx, f.userID, "premium_yearly", "pay-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	history, err := f.subscriptions.HistoryFor(ctx, f.userID)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history = %d entries, want 2 (expired records are retained)", len(history))
	}
}
