package domain

import (
	"fmt"
	"time"
)

// SubscriptionStatus статус подписки.
// Значения зеркалируют перечисление Stripe дословно — система не придумывает
// собственных статусов.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// PlanType тип тарифного плана (берется из метаданных Stripe, не вычисляется)
type PlanType string

const (
	PlanTypeBasic   PlanType = "basic"
	PlanTypePremium PlanType = "premium"
	PlanTypeFamily  PlanType = "family"
)

// BillingCycle период оплаты (берется из метаданных Stripe)
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// mirrorIDPrefix префикс локального ID зеркальной записи
const mirrorIDPrefix = "mirror_"

// MirrorID детерминированно выводит локальный ID записи из Stripe Subscription ID.
func MirrorID(stripeSubscriptionID string) string {
	return fmt.Sprintf("%s%s", mirrorIDPrefix, stripeSubscriptionID)
}

// Subscription представляет зеркальную запись подписки пользователя.
// Зеркало — это кеш состояния биллинга для быстрых чтений; источником истины
// всегда остается Stripe.
type Subscription struct {
	ID                   string             `db:"id" firestore:"id" json:"id"`
	UserID               string             `db:"user_id" firestore:"userId" json:"user_id"`
	PlanType             PlanType           `db:"plan_type" firestore:"planType" json:"plan_type"`
	BillingCycle         BillingCycle       `db:"billing_cycle" firestore:"billingCycle" json:"billing_cycle"`
	Status               SubscriptionStatus `db:"status" firestore:"status" json:"status"`
	StripeSubscriptionID string             `db:"stripe_subscription_id" firestore:"stripeSubscriptionId" json:"stripe_subscription_id"`
	StripeCustomerID     string             `db:"stripe_customer_id" firestore:"stripeCustomerId" json:"stripe_customer_id"`
	CurrentPeriodStart   time.Time          `db:"current_period_start" firestore:"currentPeriodStart" json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `db:"current_period_end" firestore:"currentPeriodEnd" json:"current_period_end"`
	CancelAtPeriodEnd    bool               `db:"cancel_at_period_end" firestore:"cancelAtPeriodEnd" json:"cancel_at_period_end"`
	CreatedAt            time.Time          `db:"created_at" firestore:"createdAt" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" firestore:"updatedAt" json:"updated_at"`
	CanceledAt           *time.Time         `db:"canceled_at" firestore:"canceledAt" json:"canceled_at,omitempty"`
}

// IsActive сообщает, считается ли подписка активной
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// MarkCanceled переводит запись в статус canceled и проставляет время отмены.
// Запись никогда не удаляется физически — жизненный цикл мягкий.
func (s *Subscription) MarkCanceled(now time.Time) {
	s.Status = SubscriptionStatusCanceled
	if s.CanceledAt == nil {
		canceledAt := now
		s.CanceledAt = &canceledAt
	}
	s.UpdatedAt = now
}
