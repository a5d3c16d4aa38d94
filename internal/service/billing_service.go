package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/kafka"
	"github.com/lumoapp/billing-service/internal/metrics"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/internal/stripe"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// CreateSubscriptionInput входные данные для создания подписки
type CreateSubscriptionInput struct {
	UserID       string              `validate:"required"`
	Email        string              `validate:"required,email"`
	DisplayName  string              `validate:"-"`
	PlanType     domain.PlanType     `validate:"required,oneof=basic premium family"`
	BillingCycle domain.BillingCycle `validate:"required,oneof=monthly yearly"`
}

var validate = validator.New()

// CreateSubscriptionResult результат создания подписки
type CreateSubscriptionResult struct {
	Subscription *domain.Subscription
	ClientSecret string
}

// PriceTable сопоставляет план и цикл оплаты с ID цены на стороне шлюза.
// Ключи вида "premium:monthly".
type PriceTable map[string]string

// PriceFor возвращает ID цены для пары план/цикл
func (t PriceTable) PriceFor(plan domain.PlanType, cycle domain.BillingCycle) (string, bool) {
	priceID, ok := t[fmt.Sprintf("%s:%s", plan, cycle)]
	return priceID, ok
}

// BillingService уровень бизнес-логики для управления подписками
type BillingService interface {
	// CreateSubscription создает подписку на шлюзе и зеркальную запись.
	// Перед созданием применяет политику единственной активной подписки.
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*CreateSubscriptionResult, error)

	// CancelSubscription отменяет подписку пользователя. Подписка другого
	// пользователя неотличима от несуществующей.
	CancelSubscription(ctx context.Context, userID, subscriptionID string, atPeriodEnd bool) error

	// GetSubscriptionByID возвращает зеркальную запись по ID с проверкой владельца.
	GetSubscriptionByID(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error)

	// GetSubscriptionsByUserID возвращает все зеркальные записи пользователя.
	GetSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)

	// GetPromotionCode возвращает активный промокод по его видимому коду.
	GetPromotionCode(ctx context.Context, code string) (*stripe.PromotionCode, error)
}

type billingService struct {
	subRepo      repository.SubscriptionRepository
	userRepo     repository.UserRepository
	ledger       LedgerService
	reconciler   Reconciler
	stripeClient stripe.Client
	producer     kafka.Producer
	metrics      metrics.BillingMetrics
	prices       PriceTable
	now          func() time.Time
	log          *logger.Logger
}

// NewBillingService создает новый сервис управления подписками.
// producer может быть nil, тогда события в Kafka не публикуются.
func NewBillingService(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	ledger LedgerService,
	reconciler Reconciler,
	stripeClient stripe.Client,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	prices PriceTable,
	log *logger.Logger,
) BillingService {
	if producer == nil {
		log.Warnw("Kafka producer is not configured, subscription events will not be published")
	}
	return &billingService{
		subRepo:      subRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		reconciler:   reconciler,
		stripeClient: stripeClient,
		producer:     producer,
		metrics:      billingMetrics,
		prices:       prices,
		now:          time.Now,
		log:          log,
	}
}

// CreateSubscription создает подписку на шлюзе и зеркальную запись
func (s *billingService) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*CreateSubscriptionResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	priceID, ok := s.prices.PriceFor(input.PlanType, input.BillingCycle)
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %s with billing cycle %s", domain.ErrInvalidPayload, input.PlanType, input.BillingCycle)
	}

	customerID, err := s.stripeClient.GetOrCreateCustomer(ctx, input.UserID, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gateway customer: %w", err)
	}

	if err := s.userRepo.SetStripeCustomerID(ctx, input.UserID, customerID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Warnw("Failed to link Stripe customer ID to user", "error", err, "userID", input.UserID)
	}

	// Проактивное применение политики: старые активные подписки отменяются
	// до создания новой, а не после первого вебхука
	if err := s.reconciler.EnforceSingleActive(ctx, input.UserID, ""); err != nil {
		s.log.Errorw("Pre-create enforcement reported failures, continuing", "error", err, "userID", input.UserID)
	}

	idempotencyKey := uuid.NewString()
	subID, clientSecret, err := s.createSubscriptionWithRetry(ctx, customerID, priceID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway subscription: %w", err)
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:                   domain.MirrorID(subID),
		UserID:               input.UserID,
		Status:               domain.SubscriptionStatusIncomplete,
		PlanType:             input.PlanType,
		BillingCycle:         input.BillingCycle,
		StripeSubscriptionID: subID,
		StripeCustomerID:     customerID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.subRepo.Upsert(ctx, sub); err != nil {
		// Подписка на шлюзе уже существует, зеркало догонит ее через вебхук
		s.log.Errorw("Failed to store mirror record, relying on webhook reconciliation", "error", err, "stripeSubscriptionID", subID)
	}

	s.metrics.IncSubscriptionCreated(string(input.PlanType))
	s.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionCreated, domain.SubscriptionEventCreated, sub)

	s.log.Infow("Subscription created", "userID", input.UserID, "stripeSubscriptionID", subID, "planType", string(input.PlanType))

	return &CreateSubscriptionResult{Subscription: sub, ClientSecret: clientSecret}, nil
}

// createSubscriptionWithRetry создает подписку с повторами при временных сбоях шлюза
func (s *billingService) createSubscriptionWithRetry(ctx context.Context, customerID, priceID, idempotencyKey string) (string, string, error) {
	var subID, clientSecret string

	operation := func() error {
		var err error
		subID, clientSecret, err = s.stripeClient.CreateSubscription(ctx, customerID, priceID, idempotencyKey)
		if err != nil {
			if !isRetryableStripeError(err) {
				return backoff.Permanent(err)
			}
			s.log.Warnw("Retryable gateway error while creating subscription", "error", err, "stripeCustomerID", customerID)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = 1 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", "", err
	}

	return subID, clientSecret, nil
}

// CancelSubscription отменяет подписку пользователя
func (s *billingService) CancelSubscription(ctx context.Context, userID, subscriptionID string, atPeriodEnd bool) error {
	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}

	// Подписка чужого пользователя неотличима от несуществующей
	if sub.UserID != userID {
		return repository.ErrNotFound
	}

	if sub.Status == domain.SubscriptionStatusCanceled {
		s.log.Infow("Subscription is already canceled", "subscriptionID", subscriptionID)
		return nil
	}

	if atPeriodEnd {
		err = s.stripeClient.CancelSubscriptionAtPeriodEnd(ctx, sub.StripeSubscriptionID)
	} else {
		err = s.stripeClient.CancelSubscription(ctx, sub.StripeSubscriptionID)
	}
	if err != nil {
		return fmt.Errorf("failed to cancel gateway subscription: %w", err)
	}

	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
		sub.UpdatedAt = s.now()
	} else {
		sub.MarkCanceled(s.now())
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		s.log.Errorw("Failed to update mirror record after cancellation", "error", err, "subscriptionID", subscriptionID)
	}

	s.metrics.IncSubscriptionCancelled(string(sub.PlanType))
	s.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionCancelled, domain.SubscriptionEventCancelled, sub)

	s.log.Infow("Subscription canceled", "userID", userID, "subscriptionID", subscriptionID, "atPeriodEnd", atPeriodEnd)
	return nil
}

// GetSubscriptionByID возвращает зеркальную запись по ID с проверкой владельца
func (s *billingService) GetSubscriptionByID(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

// GetSubscriptionsByUserID возвращает все зеркальные записи пользователя
func (s *billingService) GetSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subRepo.GetByUserID(ctx, userID)
}

// GetPromotionCode возвращает активный промокод по его видимому коду
func (s *billingService) GetPromotionCode(ctx context.Context, code string) (*stripe.PromotionCode, error) {
	return s.stripeClient.GetPromotionCode(ctx, code)
}

// publishSubscriptionEvent публикует событие в Kafka асинхронно,
// ошибки публикации не влияют на основной поток
func (s *billingService) publishSubscriptionEvent(ctx context.Context, topic string, eventType domain.SubscriptionEventType, sub *domain.Subscription) {
	if s.producer == nil {
		return
	}

	event := &domain.SubscriptionEvent{
		Type:                 eventType,
		UserID:               sub.UserID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		PlanType:             sub.PlanType,
		BillingCycle:         sub.BillingCycle,
		Status:               sub.Status,
		Timestamp:            s.now(),
	}

	go func() {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := s.producer.PublishSubscriptionEvent(publishCtx, topic, event); err != nil {
			s.log.Errorw("Failed to publish subscription event", "error", err, "topic", topic, "stripeSubscriptionID", sub.StripeSubscriptionID)
		}
	}()
}

// isRetryableStripeError определяет, имеет ли смысл повторять запрос к шлюзу
func isRetryableStripeError(err error) bool {
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return false
	}

	if stripeErr.HTTPStatusCode == 429 {
		return true
	}
	// Сетевые сбои приходят как ErrorTypeAPI без HTTP-статуса
	if stripeErr.Type == stripego.ErrorTypeAPI && stripeErr.HTTPStatusCode == 0 {
		return true
	}
	if stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != 501 {
		return true
	}

	return false
}
