package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck обработчик для проверки работоспособности сервиса
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ReadinessHandler проверяет доступность внешних зависимостей
type ReadinessHandler struct {
	checks map[string]func(ctx context.Context) error
}

// NewReadinessHandler создает обработчик готовности из набора проверок
func NewReadinessHandler(checks map[string]func(ctx context.Context) error) *ReadinessHandler {
	return &ReadinessHandler{checks: checks}
}

// Ready возвращает 200, если все зависимости доступны, иначе 503
func (h *ReadinessHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			results[name] = "OK"
		}
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"checks": results,
	})
}
