package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

const (
	// Ключ метаданных для связи Stripe Customer с UserID
	metadataUserIDKey = "user_id"

	// Ключи метаданных подписки с измерениями плана
	metadataPlanTypeKey     = "plan_type"
	metadataBillingCycleKey = "billing_cycle"
)

// SubscriptionState снимок состояния подписки на стороне шлюза.
type SubscriptionState struct {
	ID                 string
	CustomerID         string
	Status             domain.SubscriptionStatus
	PlanType           domain.PlanType
	BillingCycle       domain.BillingCycle
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

// PromotionCode описывает промокод шлюза.
type PromotionCode struct {
	ID         string
	Code       string
	Active     bool
	PercentOff float64
	AmountOff  int64
	Currency   string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCustomer создает нового клиента в Stripe и возвращает его Stripe ID.
	CreateCustomer(ctx context.Context, userID, email string) (string, error)

	// GetOrCreateCustomer ищет клиента по userID, если не находит - создает нового.
	GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error)

	// GetCustomerEmail возвращает email клиента Stripe.
	GetCustomerEmail(ctx context.Context, stripeCustomerID string) (string, error)

	// CreateSubscription создает подписку в Stripe для клиента.
	// Возвращает Stripe Subscription ID и Client Secret для первого платежа (если нужен).
	CreateSubscription(ctx context.Context, stripeCustomerID, priceID, idempotencyKey string) (stripeSubscriptionID, clientSecret string, err error)

	// GetSubscription возвращает актуальное состояние подписки на стороне шлюза.
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*SubscriptionState, error)

	// ListSubscriptions возвращает подписки клиента на стороне шлюза.
	ListSubscriptions(ctx context.Context, stripeCustomerID string) ([]SubscriptionState, error)

	// CancelSubscription отменяет подписку в Stripe немедленно.
	CancelSubscription(ctx context.Context, stripeSubscriptionID string) error

	// CancelSubscriptionAtPeriodEnd планирует отмену подписки в конце оплаченного периода.
	CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error

	// CreatePaymentIntent создает платежное намерение и возвращает его ID и client secret.
	CreatePaymentIntent(ctx context.Context, stripeCustomerID string, amount int64, currency string) (string, string, error)

	// GetPromotionCode ищет активный промокод по его коду.
	GetPromotionCode(ctx context.Context, code string) (*PromotionCode, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCustomer создает нового клиента в Stripe.
func (sc *stripeClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataUserIDKey: userID,
		},
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", wrapGatewayError("CreateCustomer", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// GetOrCreateCustomer ищет клиента по userID в метаданных, если не находит - создает нового.
func (sc *stripeClient) GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	sc.log.Debugw("Searching for Stripe customer using Search API", "userID", userID)

	searchQuery := fmt.Sprintf("metadata['%s']:'%s'", metadataUserIDKey, userID)
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   searchQuery,
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	customers := sc.client.Customers.Search(searchParams)

	if customers.Next() {
		customer := customers.Customer()
		sc.log.Infow("Found existing Stripe customer via Search", "stripeCustomerID", customer.ID, "userID", userID)
		return customer.ID, nil
	}

	if err := customers.Err(); err != nil {
		logStripeError(sc.log, "SearchCustomers", err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
				return "", wrapGatewayError("SearchCustomers", err)
			}
		} else {
			return "", wrapGatewayError("SearchCustomers", err)
		}
		sc.log.Warnw("Non-fatal error during customer search, proceeding to create", "error", err)
	}

	sc.log.Infow("Stripe customer not found via Search, creating new one", "userID", userID)
	return sc.CreateCustomer(ctx, userID, email)
}

// GetCustomerEmail возвращает email клиента Stripe.
func (sc *stripeClient) GetCustomerEmail(ctx context.Context, stripeCustomerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := sc.client.Customers.Get(stripeCustomerID, params)
	if err != nil {
		logStripeError(sc.log, "GetCustomerEmail", err)
		return "", wrapGatewayError("GetCustomerEmail", err)
	}

	return cus.Email, nil
}

// CreateSubscription создает подписку в Stripe для указанного клиента и цены.
func (sc *stripeClient) CreateSubscription(ctx context.Context, stripeCustomerID, priceID, idempotencyKey string) (string, string, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(stripeCustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(priceID),
			},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		Params: stripe.Params{
			IdempotencyKey: stripe.String(idempotencyKey),
			Context:        ctx,
		},
	}
	params.AddExpand("latest_invoice.payment_intent")

	subscription, err := sc.client.Subscriptions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateSubscription", err)
		return "", "", wrapGatewayError("CreateSubscription", err)
	}

	sc.log.Infow("Stripe subscription created", "stripeSubscriptionID", subscription.ID, "status", string(subscription.Status))

	clientSecret := ""
	if subscription.LatestInvoice != nil && subscription.LatestInvoice.PaymentIntent != nil {
		clientSecret = subscription.LatestInvoice.PaymentIntent.ClientSecret
		sc.log.Debugw("Retrieved client secret from payment intent", "stripeSubscriptionID", subscription.ID, "paymentIntentID", subscription.LatestInvoice.PaymentIntent.ID)
	} else {
		sc.log.Warnw("No payment intent or client secret found in created subscription", "stripeSubscriptionID", subscription.ID, "status", string(subscription.Status))
	}

	return subscription.ID, clientSecret, nil
}

// GetSubscription возвращает актуальное состояние подписки на стороне шлюза.
func (sc *stripeClient) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	subscription, err := sc.client.Subscriptions.Get(stripeSubscriptionID, params)
	if err != nil {
		logStripeError(sc.log, "GetSubscription", err)
		return nil, wrapGatewayError("GetSubscription", err)
	}

	state := toSubscriptionState(subscription)
	return &state, nil
}

// ListSubscriptions возвращает подписки клиента на стороне шлюза.
func (sc *stripeClient) ListSubscriptions(ctx context.Context, stripeCustomerID string) ([]SubscriptionState, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(stripeCustomerID),
	}
	params.Context = ctx

	var states []SubscriptionState
	iter := sc.client.Subscriptions.List(params)
	for iter.Next() {
		states = append(states, toSubscriptionState(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		logStripeError(sc.log, "ListSubscriptions", err)
		return nil, wrapGatewayError("ListSubscriptions", err)
	}

	return states, nil
}

// CancelSubscription отменяет подписку в Stripe немедленно.
func (sc *stripeClient) CancelSubscription(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}

	_, err := sc.client.Subscriptions.Cancel(stripeSubscriptionID, params)
	if err != nil {
		// Подписка могла быть уже удалена на стороне шлюза
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			sc.log.Warnw("Attempted to cancel already canceled/missing Stripe subscription", "stripeSubscriptionID", stripeSubscriptionID)
			return nil
		}
		logStripeError(sc.log, "CancelSubscription", err)
		return wrapGatewayError("CancelSubscription", err)
	}

	sc.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// CancelSubscriptionAtPeriodEnd планирует отмену подписки в конце оплаченного периода.
func (sc *stripeClient) CancelSubscriptionAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	_, err := sc.client.Subscriptions.Update(stripeSubscriptionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			sc.log.Warnw("Attempted to schedule cancellation for missing Stripe subscription", "stripeSubscriptionID", stripeSubscriptionID)
			return nil
		}
		logStripeError(sc.log, "CancelSubscriptionAtPeriodEnd", err)
		return wrapGatewayError("CancelSubscriptionAtPeriodEnd", err)
	}

	sc.log.Infow("Stripe subscription scheduled for cancellation at period end", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// CreatePaymentIntent создает платежное намерение для клиента.
func (sc *stripeClient) CreatePaymentIntent(ctx context.Context, stripeCustomerID string, amount int64, currency string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Customer: stripe.String(stripeCustomerID),
	}
	params.Context = ctx

	intent, err := sc.client.PaymentIntents.New(params)
	if err != nil {
		logStripeError(sc.log, "CreatePaymentIntent", err)
		return "", "", wrapGatewayError("CreatePaymentIntent", err)
	}

	sc.log.Infow("Stripe payment intent created", "paymentIntentID", intent.ID, "amount", amount, "currency", currency)
	return intent.ID, intent.ClientSecret, nil
}

// GetPromotionCode ищет активный промокод по его коду.
func (sc *stripeClient) GetPromotionCode(ctx context.Context, code string) (*PromotionCode, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx

	iter := sc.client.PromotionCodes.List(params)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			logStripeError(sc.log, "GetPromotionCode", err)
			return nil, wrapGatewayError("GetPromotionCode", err)
		}
		return nil, domain.ErrNotFound
	}

	pc := iter.PromotionCode()
	result := &PromotionCode{
		ID:     pc.ID,
		Code:   pc.Code,
		Active: pc.Active,
	}
	if pc.Coupon != nil {
		result.PercentOff = pc.Coupon.PercentOff
		result.AmountOff = pc.Coupon.AmountOff
		result.Currency = string(pc.Coupon.Currency)
	}

	return result, nil
}

// toSubscriptionState преобразует подписку SDK в снимок состояния.
func toSubscriptionState(sub *stripe.Subscription) SubscriptionState {
	state := SubscriptionState{
		ID:                 sub.ID,
		Status:             domain.SubscriptionStatus(sub.Status),
		PlanType:           domain.PlanType(sub.Metadata[metadataPlanTypeKey]),
		BillingCycle:       domain.BillingCycle(sub.Metadata[metadataBillingCycleKey]),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.CanceledAt > 0 {
		canceledAt := time.Unix(sub.CanceledAt, 0).UTC()
		state.CanceledAt = &canceledAt
	}
	return state
}

// wrapGatewayError оборачивает ошибку Stripe в доменную ошибку шлюза.
func wrapGatewayError(operation string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return domain.NewGatewayError(operation, string(stripeErr.Code), stripeErr.Msg, err)
	}
	return domain.NewGatewayError(operation, "unknown", err.Error(), err)
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
