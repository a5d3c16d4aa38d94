package service

import (
	"sync"
	"time"

	"github.com/lumoapp/billing-service/internal/domain"
	"github.com/lumoapp/billing-service/pkg/logger"
)

// ConsentService управляет токенами родительского согласия.
// Токены живут только в памяти процесса: перезапуск сервиса их забывает,
// клиент может запросить повторную выдачу.
type ConsentService interface {
	// Issue создает токен с временем жизни 24 часа. Повторная выдача того же
	// токена молча перезаписывает запись.
	Issue(token, parentEmail, childName string) domain.ConsentToken

	// Verify подтверждает токен. Возвращает ErrNotFound для неизвестного токена,
	// ErrTokenExpired для истекшего (запись при этом удаляется),
	// ErrTokenAlreadyVerified для уже подтвержденного.
	Verify(token string) (domain.ConsentToken, error)

	// Status возвращает состояние токена без побочных эффектов.
	Status(token string) (domain.ConsentToken, error)
}

type consentService struct {
	tokens map[string]domain.ConsentToken
	mutex  sync.Mutex
	now    func() time.Time
	log    *logger.Logger
}

// NewConsentService создает новый сервис токенов согласия.
func NewConsentService(log *logger.Logger) ConsentService {
	return newConsentServiceWithClock(log, time.Now)
}

func newConsentServiceWithClock(log *logger.Logger, now func() time.Time) *consentService {
	return &consentService{
		tokens: make(map[string]domain.ConsentToken),
		now:    now,
		log:    log,
	}
}

// Issue создает токен с временем жизни 24 часа
func (s *consentService) Issue(token, parentEmail, childName string) domain.ConsentToken {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	record := domain.ConsentToken{
		Token:       token,
		ParentEmail: parentEmail,
		ChildName:   childName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.ConsentTokenTTL),
		IsVerified:  false,
	}
	s.tokens[token] = record

	s.log.Infow("Consent token issued", "parentEmail", parentEmail, "childName", childName, "expiresAt", record.ExpiresAt)
	return record
}

// Verify подтверждает токен
func (s *consentService) Verify(token string) (domain.ConsentToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.tokens[token]
	if !exists {
		return domain.ConsentToken{}, domain.ErrNotFound
	}

	now := s.now()
	if record.IsExpired(now) {
		// Истекший токен удаляется только при попытке подтверждения
		delete(s.tokens, token)
		s.log.Warnw("Consent token expired on verification attempt", "childName", record.ChildName)
		return domain.ConsentToken{}, domain.ErrTokenExpired
	}

	if record.IsVerified {
		return domain.ConsentToken{}, domain.ErrTokenAlreadyVerified
	}

	record.IsVerified = true
	verifiedAt := now
	record.VerifiedAt = &verifiedAt
	s.tokens[token] = record

	s.log.Infow("Consent token verified", "parentEmail", record.ParentEmail, "childName", record.ChildName)
	return record, nil
}

// Status возвращает состояние токена без побочных эффектов
func (s *consentService) Status(token string) (domain.ConsentToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.tokens[token]
	if !exists {
		return domain.ConsentToken{}, domain.ErrNotFound
	}

	return record, nil
}
