package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/catalog"
	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/kafka/producer"
	"github.com/stickerai/credits-service/internal/locks"
	"github.com/stickerai/credits-service/internal/metrics"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// SubscriptionService интерфейс жизненного цикла подписок.
// У пользователя может быть не больше одной живой подписки;
// мутации сериализуются по пользователю.
type SubscriptionService interface {
	Create(ctx context.Context, userID uuid.UUID, planID string, paymentTransactionID string) (*domain.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, reason string) (*domain.Subscription, error)
	Renew(ctx context.Context, userID uuid.UUID, paymentTransactionID string) (*domain.Subscription, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*domain.ActiveSubscription, error)
	Benefits(ctx context.Context, userID uuid.UUID) (catalog.Benefits, error)
	HistoryFor(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	ProcessExpired(ctx context.Context) (int, error)
}

type subscriptionService struct {
	subscriptions repository.SubscriptionStore
	accounts      repository.AccountStore
	ledger        LedgerService
	userLocks     *locks.KeyedMutex
	events        producer.CreditProducer
	metrics       metrics.CreditMetrics
	log           *logger.Logger
}

// NewSubscriptionService создает новый сервис подписок
func NewSubscriptionService(
	subscriptions repository.SubscriptionStore,
	accounts repository.AccountStore,
	ledger LedgerService,
	events producer.CreditProducer,
	creditMetrics metrics.CreditMetrics,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subscriptions: subscriptions,
		accounts:      accounts,
		ledger:        ledger,
		userLocks:     locks.NewKeyedMutex(),
		events:        events,
		metrics:       creditMetrics,
		log:           log,
	}
}

// Create оформляет новую подписку и зачисляет месячные кредиты плана
func (s *subscriptionService) Create(ctx context.Context, userID uuid.UUID, planID string, paymentTransactionID string) (*domain.Subscription, error) {
	s.log.Debug("Creating subscription for user %s: plan=%s", userID, planID)

	plan, ok := catalog.PlanByID(planID)
	if !ok {
		return nil, domain.NewInvalidPlan(planID)
	}

	key := userID.String()
	s.userLocks.Lock(key)
	defer s.userLocks.Unlock(key)

	if _, err := s.accounts.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewUserNotFound(userID.String())
		}
		return nil, domain.NewInternal(err, true)
	}

	now := time.Now()
	if _, err := s.subscriptions.GetLiveByUserID(ctx, userID, now); err == nil {
		s.log.Warn("User %s already has a live subscription", userID)
		return nil, domain.NewExistingSubscription(userID.String())
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewInternal(err, true)
	}

	endDate := addInterval(now, plan.Interval)
	sub := domain.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		PlanID:               plan.ID,
		Status:               domain.SubscriptionStatusActive,
		StartDate:            now,
		EndDate:              endDate,
		AutoRenew:            true,
		LastPaymentAt:        &now,
		NextPaymentAt:        &endDate,
		PaymentTransactionID: paymentTransactionID,
	}

	created, err := s.subscriptions.Create(ctx, sub)
	if err != nil {
		s.log.Error("Failed to create subscription for user %s: %v", userID, err)
		return nil, domain.NewInternal(err, true)
	}

	if _, err := s.ledger.Add(ctx, userID, plan.Benefits.MonthlyCredits,
		fmt.Sprintf("Subscription to %s", plan.Name), []string{created.ID.String()}); err != nil {
		// Зачисление не прошло: подписка остается в pending до повторной оплаты
		created.Status = domain.SubscriptionStatusPending
		if updErr := s.subscriptions.Update(ctx, created); updErr != nil {
			s.log.Error("Failed to park subscription %s as pending: %v", created.ID, updErr)
		}
		return nil, err
	}

	s.updateAccountTier(ctx, userID, domain.TierPremium, &endDate)
	s.incSubscriptionEvent("created", plan.ID)
	s.publishSubscription(ctx, created, producerEventCreated)

	s.log.Infow("Subscription created",
		"userID", userID.String(), "planID", plan.ID, "endDate", endDate.Format(time.RFC3339))

	return &created, nil
}

// Cancel отключает автопродление; доступ сохраняется до конца оплаченного периода
func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID, reason string) (*domain.Subscription, error) {
	s.log.Debug("Canceling subscription for user %s", userID)

	key := userID.String()
	s.userLocks.Lock(key)
	defer s.userLocks.Unlock(key)

	now := time.Now()
	sub, err := s.subscriptions.GetLiveByUserID(ctx, userID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNoActiveSubscription(userID.String())
		}
		return nil, domain.NewInternal(err, true)
	}
	if sub.Status != domain.SubscriptionStatusActive {
		// Уже отменена, доживает grace period
		return nil, domain.NewNoActiveSubscription(userID.String())
	}

	sub.Status = domain.SubscriptionStatusCanceled
	sub.AutoRenew = false
	sub.CanceledAt = &now
	sub.CancelReason = reason
	sub.NextPaymentAt = nil

	if err := s.subscriptions.Update(ctx, sub); err != nil {
		s.log.Error("Failed to cancel subscription %s: %v", sub.ID, err)
		return nil, domain.NewInternal(err, true)
	}

	s.incSubscriptionEvent("canceled", sub.PlanID)
	s.publishSubscription(ctx, sub, producerEventCanceled)

	s.log.Infow("Subscription canceled",
		"userID", userID.String(), "subscriptionID", sub.ID.String(),
		"accessUntil", sub.EndDate.Format(time.RFC3339))

	return &sub, nil
}

// Renew продлевает подписку от текущей даты окончания и зачисляет кредиты плана.
// Продление отмененной подписки в grace period снова включает автопродление.
func (s *subscriptionService) Renew(ctx context.Context, userID uuid.UUID, paymentTransactionID string) (*domain.Subscription, error) {
	s.log.Debug("Renewing subscription for user %s", userID)

	key := userID.String()
	s.userLocks.Lock(key)
	defer s.userLocks.Unlock(key)

	now := time.Now()
	sub, err := s.subscriptions.GetLiveByUserID(ctx, userID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNoSubscriptionToRenew(userID.String())
		}
		return nil, domain.NewInternal(err, true)
	}

	plan, ok := catalog.PlanByID(sub.PlanID)
	if !ok {
		return nil, domain.NewInvalidPlan(sub.PlanID)
	}

	// Кредиты зачисляются до записи продления: неудачное зачисление
	// оставляет подписку нетронутой, и повтор не продлит период дважды
	if _, err := s.ledger.Add(ctx, userID, plan.Benefits.MonthlyCredits,
		fmt.Sprintf("Subscription renewal: %s", plan.Name), []string{sub.ID.String()}); err != nil {
		return nil, err
	}

	// Оплаченное время не теряется: новый период начинается с конца текущего
	newEnd := addInterval(sub.EndDate, plan.Interval)
	sub.Status = domain.SubscriptionStatusActive
	sub.EndDate = newEnd
	sub.AutoRenew = true
	sub.CanceledAt = nil
	sub.CancelReason = ""
	sub.LastPaymentAt = &now
	sub.NextPaymentAt = &newEnd
	sub.PaymentTransactionID = paymentTransactionID

	if err := s.subscriptions.Update(ctx, sub); err != nil {
		s.log.Error("Failed to renew subscription %s after credit grant: %v", sub.ID, err)
		if _, rbErr := s.ledger.Deduct(ctx, userID, plan.Benefits.MonthlyCredits,
			fmt.Sprintf("Reversal of failed renewal: %s", plan.Name), []string{sub.ID.String()}); rbErr != nil {
			s.log.Error("Failed to revoke credits for unrecorded renewal %s: %v", sub.ID, rbErr)
			return nil, domain.NewInternal(err, false)
		}
		return nil, domain.NewInternal(err, true)
	}

	s.updateAccountTier(ctx, userID, domain.TierPremium, &newEnd)
	s.incSubscriptionEvent("renewed", plan.ID)
	s.publishSubscription(ctx, sub, producerEventRenewed)

	s.log.Infow("Subscription renewed",
		"userID", userID.String(), "subscriptionID", sub.ID.String(),
		"newEndDate", newEnd.Format(time.RFC3339))

	return &sub, nil
}

// GetActive возвращает живую подписку пользователя с оставшимися днями
func (s *subscriptionService) GetActive(ctx context.Context, userID uuid.UUID) (*domain.ActiveSubscription, error) {
	now := time.Now()
	sub, err := s.subscriptions.GetLiveByUserID(ctx, userID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNoActiveSubscription(userID.String())
		}
		return nil, domain.NewInternal(err, true)
	}

	return &domain.ActiveSubscription{
		Subscription:  sub,
		DaysRemaining: sub.DaysRemaining(now),
	}, nil
}

// Benefits возвращает преимущества текущего уровня пользователя.
// Без живой подписки возвращается бесплатный уровень, это не ошибка.
func (s *subscriptionService) Benefits(ctx context.Context, userID uuid.UUID) (catalog.Benefits, error) {
	sub, err := s.subscriptions.GetLiveByUserID(ctx, userID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return catalog.FreeBenefits(), nil
		}
		return catalog.Benefits{}, domain.NewInternal(err, true)
	}

	plan, ok := catalog.PlanByID(sub.PlanID)
	if !ok {
		s.log.Warn("Live subscription %s references unknown plan %s", sub.ID, sub.PlanID)
		return catalog.FreeBenefits(), nil
	}
	return plan.Benefits, nil
}

// HistoryFor возвращает все подписки пользователя, новые первыми
func (s *subscriptionService) HistoryFor(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	subs, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewInternal(err, true)
	}
	return subs, nil
}

// ProcessExpired переводит подписки с прошедшей датой окончания в expired
// и понижает уровень аккаунта. Возвращает количество обработанных подписок.
func (s *subscriptionService) ProcessExpired(ctx context.Context) (int, error) {
	now := time.Now()
	candidates, err := s.subscriptions.GetExpiredCandidates(ctx, now)
	if err != nil {
		return 0, domain.NewInternal(err, true)
	}

	expired := 0
	for _, candidate := range candidates {
		if err := s.expireSubscription(ctx, candidate, now); err != nil {
			s.log.Error("Failed to expire subscription %s: %v", candidate.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.Infow("Expired subscriptions processed", "count", expired)
	}
	return expired, nil
}

// expireSubscription истекает одну подписку под блокировкой ее пользователя
func (s *subscriptionService) expireSubscription(ctx context.Context, candidate domain.Subscription, now time.Time) error {
	key := candidate.UserID.String()
	s.userLocks.Lock(key)
	defer s.userLocks.Unlock(key)

	// Перечитываем под блокировкой: подписку могли успеть продлить
	subs, err := s.subscriptions.GetByUserID(ctx, candidate.UserID)
	if err != nil {
		return err
	}
	var current *domain.Subscription
	for i := range subs {
		if subs[i].ID == candidate.ID {
			current = &subs[i]
			break
		}
	}
	if current == nil {
		return repository.ErrNotFound
	}
	if current.Status != domain.SubscriptionStatusActive && current.Status != domain.SubscriptionStatusCanceled {
		return nil
	}
	if current.EndDate.After(now) {
		return nil
	}

	current.Status = domain.SubscriptionStatusExpired
	current.AutoRenew = false
	current.NextPaymentAt = nil
	if err := s.subscriptions.Update(ctx, *current); err != nil {
		return err
	}

	s.updateAccountTier(ctx, current.UserID, domain.TierFree, nil)
	s.incSubscriptionEvent("expired", current.PlanID)
	s.publishSubscription(ctx, *current, producerEventExpired)

	s.log.Infow("Subscription expired",
		"userID", current.UserID.String(), "subscriptionID", current.ID.String())
	return nil
}

// addInterval прибавляет период плана к дате
func addInterval(from time.Time, interval catalog.PlanInterval) time.Time {
	if interval == catalog.IntervalYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// updateAccountTier обновляет денормализованный уровень на аккаунте.
// Авторитетны статус и дата подписки, поэтому ошибка здесь не фатальна.
func (s *subscriptionService) updateAccountTier(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, expiry *time.Time) {
	if err := s.accounts.UpdateSubscription(ctx, userID, tier, expiry); err != nil {
		s.log.Warnw("Failed to update account subscription tier",
			"userID", userID.String(), "tier", string(tier), "error", err)
	}
}

type subscriptionEventKind int

const (
	producerEventCreated subscriptionEventKind = iota
	producerEventRenewed
	producerEventCanceled
	producerEventExpired
)

func (s *subscriptionService) incSubscriptionEvent(event, planID string) {
	if s.metrics != nil {
		s.metrics.IncSubscriptionEvent(event, planID)
	}
}

// publishSubscription отправляет событие подписки, ошибки доставки не фатальны
func (s *subscriptionService) publishSubscription(ctx context.Context, sub domain.Subscription, kind subscriptionEventKind) {
	if s.events == nil {
		return
	}
	var err error
	switch kind {
	case producerEventCreated:
		err = s.events.PublishSubscriptionCreated(ctx, sub)
	case producerEventRenewed:
		err = s.events.PublishSubscriptionRenewed(ctx, sub)
	case producerEventCanceled:
		err = s.events.PublishSubscriptionCanceled(ctx, sub)
	case producerEventExpired:
		err = s.events.PublishSubscriptionExpired(ctx, sub)
	}
	if err != nil {
		s.log.Warnw("Failed to publish subscription event",
			"subscriptionID", sub.ID.String(), "error", err)
	}
}
