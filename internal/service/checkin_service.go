package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"github.com/Abishake01/0G-Proof-Pass/internal/cache"
	"github.com/Abishake01/0G-Proof-Pass/internal/events"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/metrics"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/ethsig"
	"github.com/Abishake01/0G-Proof-Pass/internal/validation"
)

const (
	qrSize     = 256
	qrCacheTTL = time.Hour
)

// CheckInStore хранилище отметок.
type CheckInStore interface {
	CreateOrGet(ctx context.Context, c *models.CheckIn) (*models.CheckIn, bool, error)
	ListByWallet(ctx context.Context, wallet string) ([]models.CheckIn, error)
}

// CheckInService принимает подписанные кошельком отметки на событиях.
type CheckInService struct {
	store       CheckInStore
	publisher   *events.Publisher
	frontendURL string
	qrCache     *cache.MemoryCache
	now         func() time.Time
}

// NewCheckInService создаёт сервис. qrCache может быть nil, тогда QR рисуется на каждый запрос.
func NewCheckInService(store CheckInStore, publisher *events.Publisher, frontendURL string, qrCache *cache.MemoryCache) *CheckInService {
	return &CheckInService{
		store:       store,
		publisher:   publisher,
		frontendURL: frontendURL,
		qrCache:     qrCache,
		now:         time.Now,
	}
}

// CheckInMessage текст, который кошелёк подписывает при отметке.
func CheckInMessage(eventID int64, email, wallet string) string {
	return fmt.Sprintf("0G ProofPass Check-In\n\nEvent ID: %d\nEmail: %s\nWallet: %s\n\nThis signature proves you own this wallet and are checking in to the event.",
		eventID, email, wallet)
}

// Attest проверяет подпись и сохраняет отметку. email берётся из проверенного токена
// (нормализованный). Кошелёк подписывает адрес в том виде, как его ввёл пользователь,
// поэтому req.Email принимается, если после нормализации совпадает с email токена.
// Повторная отметка того же кошелька на событии возвращает исходную запись и created=false.
func (s *CheckInService) Attest(ctx context.Context, email string, req models.CheckInRequest) (*models.CheckIn, bool, error) {
	if email == "" {
		return nil, false, apperror.ErrUnauthorized
	}
	if req.EventID <= 0 {
		return nil, false, apperror.ErrInvalidEventID
	}
	if err := validation.ValidateWalletAddress(req.WalletAddress); err != nil {
		return nil, false, apperror.ErrInvalidWallet.WithCause(err)
	}
	wallet := validation.ChecksumAddress(req.WalletAddress)

	signedEmail := email
	if req.Email != "" {
		if validation.NormalizeIdentifier(req.Email) != validation.NormalizeIdentifier(email) {
			return nil, false, apperror.ErrEmailMismatch
		}
		signedEmail = req.Email
	}

	message := CheckInMessage(req.EventID, signedEmail, wallet)
	if err := ethsig.Verify(wallet, []byte(message), req.Signature); err != nil {
		return nil, false, apperror.ErrInvalidSignature.WithCause(err)
	}

	checkIn := &models.CheckIn{
		ID:            uuid.New(),
		EventID:       req.EventID,
		WalletAddress: wallet,
		Email:         email,
		Signature:     req.Signature,
		CreatedAt:     s.now().UTC(),
	}

	stored, created, err := s.store.CreateOrGet(ctx, checkIn)
	if err != nil {
		return nil, false, fmt.Errorf("checkin service: save: %w", err)
	}
	if !created {
		return stored, false, nil
	}

	metrics.CheckIns.Inc()
	logger.Log.WithFields(logrus.Fields{
		"event_id": stored.EventID,
		"wallet":   stored.WalletAddress,
	}).Info("checkin service: отметка принята")

	s.publisher.PublishAsync(models.EventCheckInAttested, wallet, map[string]interface{}{
		"eventId":       stored.EventID,
		"walletAddress": stored.WalletAddress,
		"checkInId":     stored.ID,
	})
	return stored, true, nil
}

// ListCheckIns возвращает отметки кошелька.
func (s *CheckInService) ListCheckIns(ctx context.Context, wallet string) ([]models.CheckIn, error) {
	if err := validation.ValidateWalletAddress(wallet); err != nil {
		return nil, apperror.ErrInvalidWallet.WithCause(err)
	}
	items, err := s.store.ListByWallet(ctx, validation.ChecksumAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("checkin service: list: %w", err)
	}
	return items, nil
}

// EventURL ссылка на страницу события во фронтенде.
func (s *CheckInService) EventURL(eventID int64) string {
	return fmt.Sprintf("%s/event/%d", s.frontendURL, eventID)
}

// CheckInQR PNG с QR кодом ссылки на событие.
func (s *CheckInService) CheckInQR(eventID int64) ([]byte, error) {
	if eventID <= 0 {
		return nil, apperror.ErrInvalidEventID
	}
	render := func() (interface{}, error) {
		png, err := qrcode.Encode(s.EventURL(eventID), qrcode.Medium, qrSize)
		if err != nil {
			return nil, fmt.Errorf("checkin service: qr: %w", err)
		}
		return png, nil
	}

	if s.qrCache == nil {
		png, err := render()
		if err != nil {
			return nil, err
		}
		return png.([]byte), nil
	}

	png, err := s.qrCache.GetOrSet(fmt.Sprintf("qr:event:%d", eventID), qrCacheTTL, render)
	if err != nil {
		return nil, err
	}
	return png.([]byte), nil
}
