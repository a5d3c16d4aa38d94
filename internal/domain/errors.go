package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrInvalidPayload некорректное тело события или отсутствует обязательное поле
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrWebhookVerificationFailed не удалось проверить подпись вебхука
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")

	// ErrWebhookSecretMissing секрет подписи не сконфигурирован, а обработка
	// неподписанных событий не разрешена явно
	ErrWebhookSecretMissing = errors.New("webhook signing secret is not configured")

	// ErrTokenExpired токен согласия истек
	ErrTokenExpired = errors.New("consent token expired")

	// ErrTokenAlreadyVerified токен согласия уже был подтвержден
	ErrTokenAlreadyVerified = errors.New("consent token already verified")

	// ErrGatewayUnavailable платежный шлюз или хранилище недоступны
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")
)

// GatewayError представляет ошибку взаимодействия с платежным шлюзом
type GatewayError struct {
	Operation   string
	Code        string
	Message     string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *GatewayError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("gateway error [%s/%s]: %s: %v", e.Operation, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("gateway error [%s/%s]: %s", e.Operation, e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *GatewayError) Unwrap() error {
	return e.OriginalErr
}

// Is позволяет проверять GatewayError через errors.Is(err, ErrGatewayUnavailable)
func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

// NewGatewayError создает новую ошибку шлюза
func NewGatewayError(operation, code, message string, err error) *GatewayError {
	return &GatewayError{
		Operation:   operation,
		Code:        code,
		Message:     message,
		OriginalErr: err,
	}
}

// NotFoundError представляет ошибку "не найдено" с контекстом сущности
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
