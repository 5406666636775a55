package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/events"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/mail"
	"github.com/Abishake01/0G-Proof-Pass/internal/metrics"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/ratelimit"
	"github.com/Abishake01/0G-Proof-Pass/internal/validation"
)

// Диапазон кода: шесть цифр без ведущих нулей.
const (
	otpCodeMin   = 100000
	otpCodeRange = 900000
)

// OTPStore хранилище ожидающих проверки кодов. Put перезаписывает запись безусловно.
// Consume атомарно читает запись, вызывает decide и применяет его решение;
// found=false, если записи нет.
type OTPStore interface {
	Put(ctx context.Context, entry *models.OTPEntry) error
	Get(ctx context.Context, identifier string) (*models.OTPEntry, bool, error)
	Remove(ctx context.Context, identifier string) error
	Consume(ctx context.Context, identifier string, decide models.OTPDecider) (found bool, err error)
}

// OTPService выдаёт и проверяет одноразовые коды подтверждения email.
type OTPService struct {
	store     OTPStore
	limiter   ratelimit.Limiter
	sender    mail.Sender
	publisher *events.Publisher

	expiry          time.Duration
	dispatchTimeout time.Duration
	maxAttempts     int64

	now      func() time.Time
	generate func() (string, error)

	// mu сериализует get-check-remove внутри процесса, между инстансами это делает Consume.
	// Во время отправки письма не удерживается.
	mu sync.Mutex
}

// NewOTPService создаёт сервис одноразовых кодов.
func NewOTPService(store OTPStore, limiter ratelimit.Limiter, sender mail.Sender, publisher *events.Publisher, cfg config.OTPConfig) *OTPService {
	return &OTPService{
		store:           store,
		limiter:         limiter,
		sender:          sender,
		publisher:       publisher,
		expiry:          cfg.Expiry,
		dispatchTimeout: cfg.DispatchTimeout,
		maxAttempts:     cfg.MaxVerifyAttempts,
		now:             time.Now,
		generate:        generateCode,
	}
}

// RequestCode выпускает новый код для email и отправляет его письмом.
// Код сохраняется до отправки, поэтому при ошибке доставки запись остаётся.
func (s *OTPService) RequestCode(ctx context.Context, rawIdentifier string) error {
	identifier := validation.NormalizeIdentifier(rawIdentifier)
	if err := validation.ValidateIdentifier(identifier); err != nil {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return apperror.ErrInvalidIdentifier.WithCause(err)
	}

	now := s.now()

	admitted, err := s.limiter.Admit(ctx, identifier, now)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("otp service: rate limiter: %w", err)
	}
	if !admitted {
		metrics.OTPRequests.WithLabelValues("rate_limited").Inc()
		logger.Log.WithField("identifier", identifier).Info("otp service: превышен лимит запросов кода")
		return apperror.ErrRateLimited
	}

	code, err := s.generate()
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("otp service: generate code: %w", err)
	}

	entry := &models.OTPEntry{
		Identifier: identifier,
		Code:       code,
		ExpiresAt:  now.Add(s.expiry),
	}

	s.mu.Lock()
	err = s.store.Put(ctx, entry)
	s.mu.Unlock()
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("otp service: store code: %w", err)
	}

	if err := s.dispatch(ctx, identifier, code); err != nil {
		metrics.OTPRequests.WithLabelValues("dispatch_failed").Inc()
		logger.Log.WithError(err).WithField("identifier", identifier).Error("otp service: не удалось отправить код")
		return apperror.ErrDispatchFailed.WithCause(err)
	}

	metrics.OTPRequests.WithLabelValues("sent").Inc()
	logger.Log.WithFields(logrus.Fields{
		"identifier": identifier,
		"expires_at": entry.ExpiresAt,
	}).Info("otp service: код отправлен")

	s.publisher.PublishAsync(models.EventOTPRequested, identifier, map[string]interface{}{
		"identifier": identifier,
		"expiresAt":  entry.ExpiresAt,
	})
	return nil
}

// dispatch отправляет письмо с ограничением по времени.
func (s *OTPService) dispatch(ctx context.Context, identifier, code string) error {
	if s.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.OTPDispatchDuration.Observe(time.Since(start).Seconds()) }()

	errCh := make(chan error, 1)
	go func() { errCh <- s.sender.SendOTP(ctx, identifier, code) }()

	// отправитель может не уважать контекст, поэтому ждём и его, и дедлайн
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("dispatch timeout: %w", ctx.Err())
	}
}

// VerifyCode сверяет код. Несовпадение не расходует запись, истёкшая и принятая удаляются.
func (s *OTPService) VerifyCode(ctx context.Context, rawIdentifier, code string) (*models.VerifyResult, error) {
	identifier := validation.NormalizeIdentifier(rawIdentifier)
	if identifier == "" || code == "" {
		return nil, apperror.ErrMissingOTPFields
	}

	result, outcome, err := s.verify(ctx, identifier, code)
	metrics.OTPVerifications.WithLabelValues(outcome).Inc()
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"identifier": identifier,
			"outcome":    outcome,
		}).Info("otp service: проверка кода не пройдена")
		return nil, err
	}

	logger.Log.WithField("identifier", identifier).Info("otp service: email подтверждён")
	s.publisher.PublishAsync(models.EventOTPVerified, identifier, map[string]interface{}{
		"identifier": identifier,
		"verifiedAt": result.VerifiedAt,
	})
	return result, nil
}

func (s *OTPService) verify(ctx context.Context, identifier, code string) (*models.VerifyResult, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Решение принимается внутри Consume: хранилище применяет его атомарно
	// относительно других инстансов, использующих тот же store.
	var outcome string
	found, err := s.store.Consume(ctx, identifier, func(entry *models.OTPEntry) models.OTPAction {
		switch {
		case entry.Expired(now):
			outcome = "expired"
			return models.OTPRemove
		case subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) == 1:
			outcome = "verified"
			return models.OTPRemove
		}
		return s.registerMismatch(entry, &outcome)
	})
	if err != nil {
		return nil, "error", fmt.Errorf("otp service: consume code: %w", err)
	}
	if !found {
		return nil, "not_found", apperror.ErrOTPNotFound
	}

	switch outcome {
	case "expired":
		return nil, outcome, apperror.ErrOTPExpired
	case "too_many_attempts":
		return nil, outcome, apperror.ErrTooManyAttempts
	case "mismatch":
		return nil, outcome, apperror.ErrOTPMismatch
	}
	return &models.VerifyResult{Identifier: identifier, VerifiedAt: now}, outcome, nil
}

// registerMismatch учитывает неверную попытку. Без лимита попыток запись не меняется.
func (s *OTPService) registerMismatch(entry *models.OTPEntry, outcome *string) models.OTPAction {
	if s.maxAttempts <= 0 {
		*outcome = "mismatch"
		return models.OTPKeep
	}

	entry.Attempts++
	if entry.Attempts >= s.maxAttempts {
		*outcome = "too_many_attempts"
		return models.OTPRemove
	}
	*outcome = "mismatch"
	return models.OTPUpdate
}

// generateCode возвращает равномерно распределённый код из [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpCodeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpCodeMin), nil
}
