package secrets

import (
	"os"
	"strings"

	"github.com/lumoapp/billing-service/pkg/logger"
)

// Имена секретов, используемые сервисом.
const (
	StripeAPIKey        = "STRIPE_API_KEY"
	StripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	SMTPPassword        = "SMTP_PASSWORD"
	JWTSecret           = "JWT_SECRET"
)

// Provider определяет источник секретов сервиса.
type Provider interface {
	// Get возвращает значение секрета по имени. Пустая строка означает,
	// что секрет не сконфигурирован.
	Get(name string) string
}

// envProvider читает секреты из переменных окружения.
type envProvider struct {
	prefix string
	log    *logger.Logger
}

// NewEnvProvider создает провайдер секретов на основе переменных окружения.
// Если задан prefix, сначала ищется переменная с префиксом, затем без него.
func NewEnvProvider(prefix string, log *logger.Logger) Provider {
	return &envProvider{
		prefix: strings.TrimSuffix(prefix, "_"),
		log:    log,
	}
}

// Get возвращает значение секрета по имени
func (p *envProvider) Get(name string) string {
	if p.prefix != "" {
		if value := os.Getenv(p.prefix + "_" + name); value != "" {
			return value
		}
	}

	value := os.Getenv(name)
	if value == "" {
		p.log.Debugw("Secret is not configured", "name", name)
	}
	return value
}

// staticProvider возвращает секреты из заранее заданной карты. Используется в тестах.
type staticProvider struct {
	values map[string]string
}

// NewStaticProvider создает провайдер секретов с фиксированными значениями.
func NewStaticProvider(values map[string]string) Provider {
	return &staticProvider{values: values}
}

// Get возвращает значение секрета по имени
func (p *staticProvider) Get(name string) string {
	return p.values[name]
}
