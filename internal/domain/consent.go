package domain

import "time"

// ConsentTokenTTL время жизни токена родительского согласия
const ConsentTokenTTL = 24 * time.Hour

// ConsentToken представляет токен подтверждения родительского согласия.
// Токены живут только в памяти процесса: при рестарте они теряются, клиент
// перевыпускает их заново.
type ConsentToken struct {
	Token       string     `json:"token"`
	ParentEmail string     `json:"parent_email"`
	ChildName   string     `json:"child_name"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	IsVerified  bool       `json:"is_verified"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// IsExpired сообщает, истек ли токен на заданный момент времени
func (t *ConsentToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
