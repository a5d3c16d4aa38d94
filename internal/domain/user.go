package domain

import "time"

// User представляет документ пользователя во внешней директории.
// Директория — отдельное хранилище идентичности; сервис биллинга только читает
// пользователей по email и кеширует на документе Stripe Customer ID.
type User struct {
	ID               string    `firestore:"id" json:"id"`
	Email            string    `firestore:"email" json:"email"`
	DisplayName      string    `firestore:"displayName" json:"display_name"`
	StripeCustomerID string    `firestore:"stripeCustomerId" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt        time.Time `firestore:"updatedAt" json:"updated_at"`
}
