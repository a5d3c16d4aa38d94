package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/internal/kafka"
	"github.com/lumoapp/billing-service/internal/metrics"
	"github.com/lumoapp/billing-service/internal/repository"
	"github.com/lumoapp/billing-service/internal/secrets"
	"github.com/lumoapp/billing-service/internal/stripe"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// Результаты обработки события для метрик
const (
	outcomeProcessed = "processed"
	outcomeDropped   = "dropped"
	outcomeFailed    = "failed"
	outcomeIgnored   = "ignored"
)

// errEventDropped сигнализирует, что событие намеренно отброшено обработчиком
var errEventDropped = errors.New("event dropped")

// Reconciler применяет события жизненного цикла Stripe к зеркалу подписок
// и следит за инвариантом "не более одной активной подписки на пользователя".
type Reconciler interface {
	// Reconcile аутентифицирует конверт вебхука, классифицирует событие и
	// применяет его к зеркалу. Ошибки отдельных обработчиков поглощаются:
	// после успешной аутентификации и разбора событие всегда считается принятым.
	Reconcile(ctx context.Context, payload []byte, sigHeader string) error

	// EnforceSingleActive отменяет все активные подписки пользователя, кроме
	// указанной. Ошибки по отдельным подпискам изолируются друг от друга.
	EnforceSingleActive(ctx context.Context, userID, keepStripeSubID string) error

	// Resync перечитывает состояние подписки на стороне шлюза и перезаписывает
	// зеркало. Ручной механизм восстановления после дрейфа.
	Resync(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
}

type reconciler struct {
	subRepo         repository.SubscriptionRepository
	userRepo        repository.UserRepository
	ledger          LedgerService
	stripeClient    stripe.Client
	secretsProvider secrets.Provider
	producer        kafka.Producer
	metrics         metrics.BillingMetrics
	allowUnverified bool
	now             func() time.Time
	log             *logger.Logger
}

// NewReconciler создает новый реконсилер вебхуков.
// allowUnverified разрешает обработку неподписанных событий при отсутствии
// секрета; без него отсутствие секрета является ошибкой конфигурации.
func NewReconciler(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	ledger LedgerService,
	stripeClient stripe.Client,
	secretsProvider secrets.Provider,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	allowUnverified bool,
	log *logger.Logger,
) Reconciler {
	return &reconciler{
		subRepo:         subRepo,
		userRepo:        userRepo,
		ledger:          ledger,
		stripeClient:    stripeClient,
		secretsProvider: secretsProvider,
		producer:        producer,
		metrics:         billingMetrics,
		allowUnverified: allowUnverified,
		now:             time.Now,
		log:             log,
	}
}

// Reconcile аутентифицирует и применяет событие вебхука
func (r *reconciler) Reconcile(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := r.authenticate(payload, sigHeader)
	if err != nil {
		return err
	}

	if event.Data == nil {
		r.log.Errorw("Webhook event envelope has no data object", "eventType", string(event.Type), "eventID", event.ID)
		return fmt.Errorf("%w: missing event data", domain.ErrInvalidPayload)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		r.log.Errorw("Failed to parse webhook event data", "error", err, "eventType", string(event.Type))
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	eventType := string(event.Type)
	r.log.Infow("Handling webhook event", "type", eventType, "eventID", event.ID)

	// Ошибки обработчиков поглощаются: шлюз не должен повторять доставку
	// из-за частичного сбоя на нашей стороне
	var handlerErr error
	switch event.Type {
	case "customer.subscription.created":
		handlerErr = r.handleSubscriptionCreated(ctx, data)
	case "customer.subscription.updated":
		handlerErr = r.handleSubscriptionUpdated(ctx, data)
	case "customer.subscription.deleted":
		handlerErr = r.handleSubscriptionDeleted(ctx, data)
	case "customer.deleted":
		handlerErr = r.handleCustomerDeleted(ctx, data)
	case "invoice.payment_succeeded":
		handlerErr = r.handleInvoicePaymentSucceeded(ctx, data)
	case "invoice.payment_failed":
		handlerErr = r.handleInvoicePaymentFailed(ctx, data)
	default:
		r.log.Infow("Unhandled webhook event type received", "type", eventType)
		r.metrics.IncWebhookEvent(eventType, outcomeIgnored)
		return nil
	}

	if errors.Is(handlerErr, errEventDropped) {
		r.metrics.IncWebhookEvent(eventType, outcomeDropped)
		return nil
	}
	if handlerErr != nil {
		r.log.Errorw("Webhook handler failed, event acknowledged anyway", "error", handlerErr, "type", eventType, "eventID", event.ID)
		r.metrics.IncWebhookEvent(eventType, outcomeFailed)
		return nil
	}

	r.metrics.IncWebhookEvent(eventType, outcomeProcessed)
	return nil
}

// authenticate проверяет подпись конверта и разбирает событие
func (r *reconciler) authenticate(payload []byte, sigHeader string) (stripego.Event, error) {
	secret := r.secretsProvider.Get(secrets.StripeWebhookSecret)
	if secret == "" {
		if !r.allowUnverified {
			r.log.Errorw("Webhook signing secret is not configured and unverified processing is not enabled")
			return stripego.Event{}, domain.ErrWebhookSecretMissing
		}

		r.log.Warnw("Processing webhook event WITHOUT signature verification; configure a signing secret")
		var event stripego.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripego.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		return event, nil
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		r.log.Warnw("Webhook signature verification failed", "error", err)
		return stripego.Event{}, fmt.Errorf("%w: %v", domain.ErrWebhookVerificationFailed, err)
	}

	return event, nil
}

// handleSubscriptionCreated создает запись зеркала и финансовую запись
func (r *reconciler) handleSubscriptionCreated(ctx context.Context, data map[string]interface{}) error {
	subID := getStringValue(data, "id")
	customerID := getStringValue(data, "customer")
	if subID == "" || customerID == "" {
		r.log.Errorw("Subscription or customer ID missing in subscription.created event data")
		return domain.ErrInvalidPayload
	}

	user, err := r.resolveUser(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrNotFound) {
			// Пользователь не найден в справочнике: событие логируется и отбрасывается
			r.log.Warnw("No directory user for Stripe customer, dropping subscription.created", "stripeCustomerID", customerID, "stripeSubscriptionID", subID)
			return errEventDropped
		}
		return fmt.Errorf("failed to resolve user for customer %s: %w", customerID, err)
	}

	sub := r.subscriptionFromEventData(data, user.ID)
	if err := r.subRepo.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert mirror record for %s: %w", subID, err)
	}
	r.log.Infow("Mirror record upserted from subscription.created", "stripeSubscriptionID", subID, "userID", user.ID, "status", string(sub.Status))

	if sub.Status == domain.SubscriptionStatusActive {
		r.ledger.RecordAsync(ctx, domain.LedgerEntryInput{
			UserID:               user.ID,
			UserEmail:            user.Email,
			UserName:             user.DisplayName,
			StripeSubscriptionID: sub.StripeSubscriptionID,
			StripeCustomerID:     sub.StripeCustomerID,
			PlanType:             sub.PlanType,
			BillingCycle:         sub.BillingCycle,
			Amount:               extractAmountFromEventData(data),
			Currency:             getStringValue(data, "currency"),
			CurrentPeriodStart:   sub.CurrentPeriodStart,
			CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		})
	}

	return nil
}

// handleSubscriptionUpdated обновляет поля зеркала и применяет политику
// единственной активной подписки при переходе в active
func (r *reconciler) handleSubscriptionUpdated(ctx context.Context, data map[string]interface{}) error {
	subID := getStringValue(data, "id")
	status := getStringValue(data, "status")
	if subID == "" {
		r.log.Errorw("StripeSubscriptionID missing in customer.subscription.updated event data")
		return domain.ErrInvalidPayload
	}

	sub, err := r.upsertFromEventData(ctx, subID, data)
	if err != nil {
		if errors.Is(err, errEventDropped) {
			return err
		}
		return fmt.Errorf("failed processing subscription.updated: %w", err)
	}

	if domain.SubscriptionStatus(status) == domain.SubscriptionStatusActive && sub.UserID != "" {
		if err := r.EnforceSingleActive(ctx, sub.UserID, subID); err != nil {
			r.log.Errorw("Single-active enforcement reported failures", "error", err, "userID", sub.UserID, "keep", subID)
		}
	}

	r.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionUpdated, domain.SubscriptionEventUpdated, sub)
	return nil
}

// handleSubscriptionDeleted мягко отменяет запись зеркала
func (r *reconciler) handleSubscriptionDeleted(ctx context.Context, data map[string]interface{}) error {
	subID := getStringValue(data, "id")
	if subID == "" {
		r.log.Errorw("StripeSubscriptionID missing in customer.subscription.deleted event data")
		return domain.ErrInvalidPayload
	}

	sub, err := r.subRepo.GetByStripeSubscriptionID(ctx, subID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Received deletion for non-existent mirror record", "stripeSubscriptionID", subID)
			return nil
		}
		return fmt.Errorf("failed processing subscription.deleted: %w", err)
	}

	sub.MarkCanceled(r.now())
	if canceledAt := getTimeValueFromUnix(data, "canceled_at"); !canceledAt.IsZero() {
		sub.CanceledAt = &canceledAt
	}

	if err := r.subRepo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to mark mirror record canceled for %s: %w", subID, err)
	}

	r.log.Infow("Mirror record canceled from subscription.deleted", "stripeSubscriptionID", subID)
	return nil
}

// handleCustomerDeleted отменяет все записи зеркала клиента
func (r *reconciler) handleCustomerDeleted(ctx context.Context, data map[string]interface{}) error {
	customerID := getStringValue(data, "id")
	if customerID == "" {
		r.log.Errorw("Customer ID missing in customer.deleted event data")
		return domain.ErrInvalidPayload
	}

	subs, err := r.subRepo.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to list mirror records for customer %s: %w", customerID, err)
	}

	now := r.now()
	var firstErr error
	for i := range subs {
		sub := subs[i]
		if sub.Status == domain.SubscriptionStatusCanceled {
			continue
		}
		sub.MarkCanceled(now)
		if err := r.subRepo.Update(ctx, &sub); err != nil {
			r.log.Errorw("Failed to cancel mirror record for deleted customer", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	r.log.Infow("Mirror records canceled for deleted customer", "stripeCustomerID", customerID, "count", len(subs))
	return firstErr
}

// handleInvoicePaymentSucceeded сверяет зеркало с живым статусом шлюза
func (r *reconciler) handleInvoicePaymentSucceeded(ctx context.Context, data map[string]interface{}) error {
	invoiceID := getStringValue(data, "id")
	subID := getStringValue(data, "subscription")
	if subID == "" {
		r.log.Infow("Invoice is not related to a subscription, skipping", "invoiceID", invoiceID)
		return nil
	}

	return r.mirrorLiveStatus(ctx, subID, domain.SubscriptionStatusActive)
}

// handleInvoicePaymentFailed отражает просрочку оплаты в зеркале
func (r *reconciler) handleInvoicePaymentFailed(ctx context.Context, data map[string]interface{}) error {
	invoiceID := getStringValue(data, "id")
	subID := getStringValue(data, "subscription")
	if subID == "" {
		r.log.Infow("Failed invoice is not related to a subscription, skipping", "invoiceID", invoiceID)
		return nil
	}

	return r.mirrorLiveStatus(ctx, subID, domain.SubscriptionStatusPastDue)
}

// mirrorLiveStatus обновляет зеркало, только если живой статус шлюза равен
// ожидаемому и зеркало с ним расходится
func (r *reconciler) mirrorLiveStatus(ctx context.Context, subID string, expected domain.SubscriptionStatus) error {
	live, err := r.stripeClient.GetSubscription(ctx, subID)
	if err != nil {
		return fmt.Errorf("failed to fetch live gateway state for %s: %w", subID, err)
	}

	if live.Status != expected {
		r.log.Infow("Live gateway status does not match invoice outcome, leaving mirror unchanged",
			"stripeSubscriptionID", subID, "liveStatus", string(live.Status), "expected", string(expected))
		return nil
	}

	sub, err := r.subRepo.GetByStripeSubscriptionID(ctx, subID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Invoice event for non-existent mirror record", "stripeSubscriptionID", subID)
			return nil
		}
		return fmt.Errorf("failed to load mirror record for %s: %w", subID, err)
	}

	if sub.Status == expected {
		return nil
	}

	sub.Status = expected
	sub.CurrentPeriodStart = live.CurrentPeriodStart
	sub.CurrentPeriodEnd = live.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = live.CancelAtPeriodEnd
	if err := r.subRepo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to mirror live status for %s: %w", subID, err)
	}

	r.log.Infow("Mirror record status reconciled with live gateway state", "stripeSubscriptionID", subID, "status", string(expected))

	// Успешная оплата счета с переходом в active означает продление подписки
	if expected == domain.SubscriptionStatusActive {
		r.publishSubscriptionEvent(ctx, kafka.TopicSubscriptionRenewed, domain.SubscriptionEventRenewed, sub)
	}
	return nil
}

// EnforceSingleActive отменяет все активные подписки пользователя, кроме указанной
func (r *reconciler) EnforceSingleActive(ctx context.Context, userID, keepStripeSubID string) error {
	matches, err := r.subRepo.GetActiveByUserID(ctx, userID, keepStripeSubID)
	if err != nil {
		return fmt.Errorf("failed to query active subscriptions for user %s: %w", userID, err)
	}

	if len(matches) == 0 {
		return nil
	}

	r.log.Infow("Enforcing single active subscription", "userID", userID, "keep", keepStripeSubID, "toCancel", len(matches))

	now := r.now()
	var firstErr error
	for i := range matches {
		sub := matches[i]

		// Оба шага выполняются независимо: сбой отмены на шлюзе не должен
		// мешать обновлению зеркала, и наоборот
		if err := r.stripeClient.CancelSubscriptionAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
			r.log.Errorw("Failed to schedule gateway cancellation during enforcement", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID)
			r.metrics.IncEnforcementCancellation(outcomeFailed)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			r.metrics.IncEnforcementCancellation(outcomeProcessed)
		}

		sub.MarkCanceled(now)
		if err := r.subRepo.Update(ctx, &sub); err != nil {
			r.log.Errorw("Failed to cancel mirror record during enforcement", "error", err, "stripeSubscriptionID", sub.StripeSubscriptionID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Resync перечитывает состояние подписки со стороны шлюза и перезаписывает зеркало
func (r *reconciler) Resync(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	live, err := r.stripeClient.GetSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}

	sub, err := r.subRepo.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		// Зеркало не знает подписку: восстанавливаем запись через справочник
		user, uerr := r.resolveUser(ctx, live.CustomerID)
		if uerr != nil {
			return nil, fmt.Errorf("cannot rebuild mirror record, no directory user for customer %s: %w", live.CustomerID, uerr)
		}
		sub = &domain.Subscription{
			ID:                   domain.MirrorID(stripeSubscriptionID),
			UserID:               user.ID,
			StripeSubscriptionID: stripeSubscriptionID,
			StripeCustomerID:     live.CustomerID,
		}
	}

	sub.Status = live.Status
	if live.PlanType != "" {
		sub.PlanType = live.PlanType
	}
	if live.BillingCycle != "" {
		sub.BillingCycle = live.BillingCycle
	}
	sub.CurrentPeriodStart = live.CurrentPeriodStart
	sub.CurrentPeriodEnd = live.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = live.CancelAtPeriodEnd
	sub.CanceledAt = live.CanceledAt

	if err := r.subRepo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to overwrite mirror record for %s: %w", stripeSubscriptionID, err)
	}

	r.log.Infow("Mirror record resynced from live gateway state", "stripeSubscriptionID", stripeSubscriptionID, "status", string(sub.Status))
	return sub, nil
}

// publishSubscriptionEvent публикует событие в Kafka асинхронно,
// ошибки публикации не влияют на обработку вебхука
func (r *reconciler) publishSubscriptionEvent(ctx context.Context, topic string, eventType domain.SubscriptionEventType, sub *domain.Subscription) {
	if r.producer == nil {
		return
	}

	event := &domain.SubscriptionEvent{
		Type:                 eventType,
		UserID:               sub.UserID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		PlanType:             sub.PlanType,
		BillingCycle:         sub.BillingCycle,
		Status:               sub.Status,
		Timestamp:            r.now(),
	}

	go func() {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := r.producer.PublishSubscriptionEvent(publishCtx, topic, event); err != nil {
			r.log.Errorw("Failed to publish subscription event", "error", err, "topic", topic, "stripeSubscriptionID", sub.StripeSubscriptionID)
		}
	}()
}

// --- Вспомогательные функции ---

// resolveUser находит пользователя справочника для клиента Stripe: сначала по
// закешированному customer ID, затем по email клиента на стороне шлюза
func (r *reconciler) resolveUser(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	user, err := r.userRepo.GetByStripeCustomerID(ctx, stripeCustomerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	email, err := r.stripeClient.GetCustomerEmail(ctx, stripeCustomerID)
	if err != nil {
		return nil, err
	}

	user, err = r.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	// Кешируем customer ID на документе пользователя для будущих событий
	if user.StripeCustomerID == "" {
		if err := r.userRepo.SetStripeCustomerID(ctx, user.ID, stripeCustomerID); err != nil {
			r.log.Warnw("Failed to cache Stripe customer ID on user", "error", err, "userID", user.ID)
		}
	}

	return user, nil
}

// upsertFromEventData находит или создает запись зеркала из данных события
func (r *reconciler) upsertFromEventData(ctx context.Context, subID string, data map[string]interface{}) (*domain.Subscription, error) {
	existing, err := r.subRepo.GetByStripeSubscriptionID(ctx, subID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	userID := ""
	if existing != nil {
		userID = existing.UserID
	} else {
		customerID := getStringValue(data, "customer")
		user, uerr := r.resolveUser(ctx, customerID)
		if uerr != nil {
			if errors.Is(uerr, repository.ErrNotFound) || errors.Is(uerr, domain.ErrNotFound) {
				r.log.Warnw("No directory user for Stripe customer, dropping update", "stripeCustomerID", customerID, "stripeSubscriptionID", subID)
				return nil, errEventDropped
			}
			return nil, uerr
		}
		userID = user.ID
	}

	sub := r.subscriptionFromEventData(data, userID)
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
		// Сохраняем измерения плана, если событие их не принесло
		if sub.PlanType == "" {
			sub.PlanType = existing.PlanType
		}
		if sub.BillingCycle == "" {
			sub.BillingCycle = existing.BillingCycle
		}
	}

	if sub.Status == domain.SubscriptionStatusCanceled && sub.CanceledAt == nil {
		canceledAt := r.now()
		sub.CanceledAt = &canceledAt
	}

	if err := r.subRepo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	r.log.Infow("Mirror record upserted from event data", "stripeSubscriptionID", subID, "status", string(sub.Status))
	return sub, nil
}

// subscriptionFromEventData строит запись зеркала из объекта подписки события
func (r *reconciler) subscriptionFromEventData(data map[string]interface{}, userID string) *domain.Subscription {
	subID := getStringValue(data, "id")

	sub := &domain.Subscription{
		ID:                   domain.MirrorID(subID),
		UserID:               userID,
		Status:               domain.SubscriptionStatus(getStringValue(data, "status")),
		StripeSubscriptionID: subID,
		StripeCustomerID:     getStringValue(data, "customer"),
		CurrentPeriodStart:   getTimeValueFromUnix(data, "current_period_start"),
		CurrentPeriodEnd:     getTimeValueFromUnix(data, "current_period_end"),
		CancelAtPeriodEnd:    getBoolValue(data, "cancel_at_period_end"),
	}

	// Измерения плана приходят из метаданных шлюза и никогда не вычисляются локально
	if metadata, ok := data["metadata"].(map[string]interface{}); ok {
		sub.PlanType = domain.PlanType(getStringValue(metadata, "plan_type"))
		sub.BillingCycle = domain.BillingCycle(getStringValue(metadata, "billing_cycle"))
	}

	if canceledAt := getTimeValueFromUnix(data, "canceled_at"); !canceledAt.IsZero() {
		sub.CanceledAt = &canceledAt
	}

	return sub
}

// extractAmountFromEventData извлекает сумму плана из объекта подписки.
// Путь: plan.amount (в минорных единицах) или items.data[0].price.unit_amount.
func extractAmountFromEventData(data map[string]interface{}) float64 {
	if plan, ok := data["plan"].(map[string]interface{}); ok {
		if amount := getInt64Value(plan, "amount"); amount > 0 {
			return float64(amount) / 100
		}
	}
	if items, ok := data["items"].(map[string]interface{}); ok {
		if itemsData, ok := items["data"].([]interface{}); ok && len(itemsData) > 0 {
			if firstItem, ok := itemsData[0].(map[string]interface{}); ok {
				if price, ok := firstItem["price"].(map[string]interface{}); ok {
					if amount := getInt64Value(price, "unit_amount"); amount > 0 {
						return float64(amount) / 100
					}
				}
			}
		}
	}
	return 0
}

// getStringValue безопасно извлекает строковое значение из map[string]interface{}.
func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}

// getBoolValue безопасно извлекает булево значение.
func getBoolValue(data map[string]interface{}, key string) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return false
}

// getInt64Value безопасно извлекает int64 значение из map[string]interface{}.
// Stripe часто возвращает числа как float64, даже если они целые.
func getInt64Value(data map[string]interface{}, key string) int64 {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return i
			}
		}
	}
	return 0
}

// getTimeValueFromUnix безопасно извлекает время из Unix timestamp.
func getTimeValueFromUnix(data map[string]interface{}, key string) time.Time {
	unixTimestamp := getInt64Value(data, key)
	if unixTimestamp > 0 {
		return time.Unix(unixTimestamp, 0).UTC()
	}
	return time.Time{}
}
