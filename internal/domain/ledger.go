package domain

import "time"

const (
	// LedgerRetentionYears срок хранения финансовых записей (требование комплаенса)
	LedgerRetentionYears = 7

	// AnonymizedValue фиксированное значение-заглушка для обезличенных PII полей.
	// После анонимизации поля никогда не восстанавливаются.
	AnonymizedValue = "ANONYMIZED"
)

// LedgerRecord представляет финансовую запись, создаваемую при оформлении подписки.
// Ядро записи (сумма, валюта, план, периоды, внешние ID) неизменяемо; PII поля
// мутируются ровно один раз — операцией анонимизации.
type LedgerRecord struct {
	ID                   string       `db:"id" json:"id"`
	UserID               string       `db:"user_id" json:"user_id"`
	UserEmail            string       `db:"user_email" json:"user_email"`
	UserName             string       `db:"user_name" json:"user_name"`
	StripeSubscriptionID string       `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	StripeCustomerID     string       `db:"stripe_customer_id" json:"stripe_customer_id"`
	PlanType             PlanType     `db:"plan_type" json:"plan_type"`
	BillingCycle         BillingCycle `db:"billing_cycle" json:"billing_cycle"`
	Amount               float64      `db:"amount" json:"amount"`
	Currency             string       `db:"currency" json:"currency"`
	CurrentPeriodStart   time.Time    `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     time.Time    `db:"current_period_end" json:"current_period_end"`
	IsAnonymized         bool         `db:"is_anonymized" json:"is_anonymized"`
	AnonymizedAt         *time.Time   `db:"anonymized_at" json:"anonymized_at,omitempty"`
	RetainUntil          time.Time    `db:"retain_until" json:"retain_until"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}

// LedgerEntryInput данные для создания финансовой записи
type LedgerEntryInput struct {
	UserID               string
	UserEmail            string
	UserName             string
	StripeSubscriptionID string
	StripeCustomerID     string
	PlanType             PlanType
	BillingCycle         BillingCycle
	Amount               float64
	Currency             string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
}

// Anonymize обезличивает PII поля записи. Повторный вызов не меняет состояние.
func (r *LedgerRecord) Anonymize(now time.Time) {
	if r.IsAnonymized {
		return
	}
	r.UserID = AnonymizedValue
	r.UserEmail = AnonymizedValue
	r.UserName = AnonymizedValue
	r.StripeCustomerID = AnonymizedValue
	r.IsAnonymized = true
	anonymizedAt := now
	r.AnonymizedAt = &anonymizedAt
}
