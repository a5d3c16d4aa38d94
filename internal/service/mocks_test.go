package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/metrics"
	"github.com/lumoapp/billing-service/internal/stripe"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// testLogger возвращает логгер, молчащий в тестовом выводе
func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

// testMetrics возвращает метрики с изолированным реестром
func testMetrics() metrics.BillingMetrics {
	return metrics.NewBillingMetrics(prometheus.NewRegistry(), testLogger())
}

// activeGatewayState возвращает живое состояние активной подписки на шлюзе
func activeGatewayState(subID, customerID string) *stripe.SubscriptionState {
	return &stripe.SubscriptionState{
		ID:                 subID,
		CustomerID:         customerID,
		Status:             domain.SubscriptionStatusActive,
		PlanType:           domain.PlanTypePremium,
		BillingCycle:       domain.BillingCycleMonthly,
		CurrentPeriodStart: time.Now().Add(-time.Hour).UTC(),
		CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour).UTC(),
	}
}

// publishedEvent опубликованное событие вместе с топиком назначения
type publishedEvent struct {
	topic string
	event domain.SubscriptionEvent
}

// fakeProducer собирает опубликованные события подписок
type fakeProducer struct {
	mu     sync.Mutex
	events []publishedEvent
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{}
}

func (f *fakeProducer) PublishSubscriptionEvent(ctx context.Context, topic string, event *domain.SubscriptionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{topic: topic, event: *event})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

// published возвращает копию списка опубликованных событий
func (f *fakeProducer) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

// fakeGateway управляемая реализация шлюза для тестов
type fakeGateway struct {
	mu sync.Mutex

	subscriptions  map[string]*stripe.SubscriptionState
	customerEmails map[string]string

	scheduledCancellations []string
	immediateCancellations []string

	createSubscriptionFn func(ctx context.Context, customerID, priceID, idempotencyKey string) (string, string, error)
	cancelAtPeriodEndErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions:  make(map[string]*stripe.SubscriptionState),
		customerEmails: make(map[string]string),
	}
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	return "cus_" + userID, nil
}

func (f *fakeGateway) GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	return "cus_" + userID, nil
}

func (f *fakeGateway) GetCustomerEmail(ctx context.Context, stripeCustomerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.customerEmails[stripeCustomerID]
	if !ok {
		return "", domain.NewNotFoundError("customer", stripeCustomerID)
	}
	return email, nil
}

func (f *fakeGateway) CreateSubscription(ctx context.Context, customerID, priceID, idempotencyKey string) (string, string, error) {
	if f.createSubscriptionFn != nil {
		return f.createSubscriptionFn(ctx, customerID, priceID, idempotencyKey)
	}
	return "sub_new", "cs_secret", nil
}

func (f *fakeGateway) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripe.SubscriptionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.subscriptions[stripeSubscriptionID]
	if !ok {
		return nil, domain.NewNotFoundError("subscription", stripeSubscriptionID)
	}
	copied := *state
	return &copied, nil
}

func (f *fakeGateway) ListSubscriptions(ctx context.Context, stripeCustomerID string) ([]stripe.SubscriptionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []stripe.SubscriptionState
	for _, state := range f.subscriptions {
		if state.CustomerID == stripeCustomerID {
			result = append(result, *state)
		}
	}
	return result, nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, stripeSubscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.immediateCancellations = append(f.immediateCancellations, stripeSubscriptionID)
	return nil
}

func (f *fakeGateway) CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelAtPeriodEndErr != nil {
		return f.cancelAtPeriodEndErr
	}
	f.scheduledCancellations = append(f.scheduledCancellations, stripeSubscriptionID)
	return nil
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, stripeCustomerID string, amount int64, currency string) (string, string, error) {
	return "pi_test", "pi_secret", nil
}

func (f *fakeGateway) GetPromotionCode(ctx context.Context, code string) (*stripe.PromotionCode, error) {
	return nil, domain.ErrNotFound
}
