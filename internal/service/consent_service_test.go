package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumoapp/billing-service/internal/domain"
)

func newConsentFixture(t *testing.T, start time.Time) (*consentService, *time.Time) {
	t.Helper()
	current := start
	svc := newConsentServiceWithClock(testLogger(), func() time.Time { return current })
	return svc, &current
}

func TestConsentService_IssueAndVerify(t *testing.T) {
	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newConsentFixture(t, start)

	issued := svc.Issue("tok_1", "parent@example.com", "Alex")
	assert.Equal(t, start.Add(24*time.Hour), issued.ExpiresAt)
	assert.False(t, issued.IsVerified)

	// Через час токен подтверждается
	*clock = start.Add(time.Hour)
	verified, err := svc.Verify("tok_1")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	require.NotNil(t, verified.VerifiedAt)
	assert.Equal(t, start.Add(time.Hour), *verified.VerifiedAt)

	// Повторное подтверждение различимо
	*clock = start.Add(time.Hour + time.Second)
	_, err = svc.Verify("tok_1")
	assert.ErrorIs(t, err, domain.ErrTokenAlreadyVerified)

	// Статус подтвержденного токена доступен и после истечения TTL
	*clock = start.Add(25 * time.Hour)
	state, err := svc.Status("tok_1")
	require.NoError(t, err)
	assert.True(t, state.IsVerified)
}

func TestConsentService_VerifyExpiredTokenEvicts(t *testing.T) {
	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newConsentFixture(t, start)

	svc.Issue("tok_1", "parent@example.com", "Alex")

	*clock = start.Add(25 * time.Hour)
	_, err := svc.Verify("tok_1")
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	// Запись удалена, последующие запросы не находят токен
	_, err = svc.Status("tok_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsentService_ExpiredTokenKeptUntilVerifyAttempt(t *testing.T) {
	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newConsentFixture(t, start)

	svc.Issue("tok_1", "parent@example.com", "Alex")

	// Истекший токен остается видимым через Status до попытки подтверждения
	*clock = start.Add(25 * time.Hour)
	state, err := svc.Status("tok_1")
	require.NoError(t, err)
	assert.False(t, state.IsVerified)
	assert.True(t, state.IsExpired(*clock))
}

func TestConsentService_UnknownToken(t *testing.T) {
	svc, _ := newConsentFixture(t, time.Now())

	_, err := svc.Verify("tok_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Status("tok_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsentService_ReissueOverwrites(t *testing.T) {
	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	svc, clock := newConsentFixture(t, start)

	svc.Issue("tok_1", "parent@example.com", "Alex")

	*clock = start.Add(23 * time.Hour)
	reissued := svc.Issue("tok_1", "parent@example.com", "Alex")
	assert.Equal(t, start.Add(47*time.Hour), reissued.ExpiresAt)

	// Срок жизни отсчитывается от повторной выдачи
	*clock = start.Add(30 * time.Hour)
	verified, err := svc.Verify("tok_1")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
}
