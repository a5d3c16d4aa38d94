package domain

import "time"

// SubscriptionEventType тип события жизненного цикла подписки
type SubscriptionEventType string

const (
	SubscriptionEventCreated   SubscriptionEventType = "subscription.created"
	SubscriptionEventUpdated   SubscriptionEventType = "subscription.updated"
	SubscriptionEventCancelled SubscriptionEventType = "subscription.cancelled"
	SubscriptionEventRenewed   SubscriptionEventType = "subscription.renewed"
)

// SubscriptionEvent представляет событие жизненного цикла подписки,
// публикуемое в Kafka для остальных частей платформы
type SubscriptionEvent struct {
	Type                 SubscriptionEventType `json:"type"`
	UserID               string                `json:"user_id"`
	StripeSubscriptionID string                `json:"stripe_subscription_id"`
	PlanType             PlanType              `json:"plan_type"`
	BillingCycle         BillingCycle          `json:"billing_cycle"`
	Status               SubscriptionStatus    `json:"status"`
	Timestamp            time.Time             `json:"timestamp"`
}

// FinancialRecordEvent представляет событие создания финансовой записи
type FinancialRecordEvent struct {
	RecordID             string    `json:"record_id"`
	UserID               string    `json:"user_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	Amount               float64   `json:"amount"`
	Currency             string    `json:"currency"`
	Timestamp            time.Time `json:"timestamp"`
}
