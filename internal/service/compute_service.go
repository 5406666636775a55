package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Abishake01/0G-Proof-Pass/internal/events"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/metrics"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/validation"
)

const (
	defaultContributionsLimit = 50
	maxContributionsLimit     = 100
)

// ContributionScorer оценивает материалы участника.
type ContributionScorer interface {
	Name() string
	Score(ctx context.Context, req models.ContributionRequest) (*models.ContributionAnalysis, error)
}

// ContributionStore хранилище оценок.
type ContributionStore interface {
	Create(ctx context.Context, c *models.Contribution) error
	ExistsFingerprint(ctx context.Context, wallet string, eventID int64, feedbackHash string) (bool, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Contribution, error)
}

// WalletNotifier доставляет событие подключениям кошелька.
type WalletNotifier interface {
	BroadcastToWallet(wallet, event string, data any) error
}

// ComputeService оценивает вклад участника после события.
type ComputeService struct {
	scorers   []ContributionScorer
	store     ContributionStore
	publisher *events.Publisher
	notifier  WalletNotifier
	now       func() time.Time
}

// NewComputeService создаёт сервис. Оценщики пробуются по порядку до первого успешного.
func NewComputeService(store ContributionStore, publisher *events.Publisher, notifier WalletNotifier, scorers ...ContributionScorer) *ComputeService {
	return &ComputeService{
		scorers:   scorers,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Analyze проверяет запрос, оценивает вклад и сохраняет результат.
func (s *ComputeService) Analyze(ctx context.Context, req models.ContributionRequest) (*models.ContributionAnalysis, error) {
	if err := validateContribution(&req); err != nil {
		return nil, err
	}

	feedbackHash := FeedbackFingerprint(req.Feedback)
	duplicate, err := s.store.ExistsFingerprint(ctx, req.WalletAddress, req.EventID, feedbackHash)
	if err != nil {
		return nil, fmt.Errorf("compute service: check duplicate: %w", err)
	}

	analysis, scorer, err := s.score(ctx, req)
	if err != nil {
		return nil, err
	}
	analysis.IsDuplicate = analysis.IsDuplicate || duplicate

	record := &models.Contribution{
		ID:            uuid.New(),
		EventID:       req.EventID,
		WalletAddress: req.WalletAddress,
		FeedbackHash:  feedbackHash,
		PhotoCount:    len(req.Photos),
		PhotoScore:    analysis.PhotoScore,
		FeedbackScore: analysis.FeedbackScore,
		OverallScore:  analysis.OverallScore,
		Tier:          analysis.Tier,
		Reasoning:     analysis.Reasoning,
		IsSpam:        analysis.IsSpam,
		IsDuplicate:   analysis.IsDuplicate,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("compute service: save contribution: %w", err)
	}

	metrics.ContributionsAnalyzed.WithLabelValues(string(analysis.Tier), scorer).Inc()
	logger.Log.WithFields(logrus.Fields{
		"event_id":  req.EventID,
		"wallet":    req.WalletAddress,
		"tier":      analysis.Tier,
		"score":     analysis.OverallScore,
		"scorer":    scorer,
		"duplicate": analysis.IsDuplicate,
	}).Info("compute service: вклад оценён")

	s.publisher.PublishAsync(models.EventContributionAnalyzed, req.WalletAddress, record)
	if s.notifier != nil {
		if err := s.notifier.BroadcastToWallet(req.WalletAddress, models.EventContributionAnalyzed, record); err != nil {
			logger.Log.WithError(err).Warn("compute service: не удалось уведомить подписчиков")
		}
	}

	return analysis, nil
}

func (s *ComputeService) score(ctx context.Context, req models.ContributionRequest) (*models.ContributionAnalysis, string, error) {
	var lastErr error
	for _, scorer := range s.scorers {
		analysis, err := scorer.Score(ctx, req)
		if err == nil {
			return analysis, scorer.Name(), nil
		}
		lastErr = err
		logger.Log.WithError(err).WithField("scorer", scorer.Name()).Warn("compute service: оценщик недоступен, пробуем следующий")
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("оценщики не настроены")
	}
	return nil, "", apperror.ErrAnalysisFailed.WithCause(lastErr)
}

// ListContributions возвращает оценки кошелька, новые первыми.
func (s *ComputeService) ListContributions(ctx context.Context, wallet string, limit int) ([]models.Contribution, error) {
	if err := validation.ValidateWalletAddress(wallet); err != nil {
		return nil, apperror.ErrInvalidWallet.WithCause(err)
	}
	if limit <= 0 {
		limit = defaultContributionsLimit
	}
	if limit > maxContributionsLimit {
		limit = maxContributionsLimit
	}

	items, err := s.store.ListByWallet(ctx, validation.ChecksumAddress(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("compute service: list contributions: %w", err)
	}
	return items, nil
}

// validateContribution проверяет поля и приводит адрес кошелька к EIP-55.
func validateContribution(req *models.ContributionRequest) error {
	if req.Photos == nil {
		return apperror.ErrPhotosRequired
	}
	if len(req.Photos) > validation.MaxPhotosCount {
		return apperror.ErrTooManyPhotos
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return apperror.ErrFeedbackRequired
	}
	if err := validation.ValidateLength("feedback", req.Feedback, 0, validation.MaxFeedbackLength); err != nil {
		return apperror.ErrFeedbackTooLong.WithCause(err)
	}
	if req.EventID == 0 || req.WalletAddress == "" {
		return apperror.ErrEventRequired
	}
	if req.EventID < 0 {
		return apperror.ErrInvalidEventID
	}
	if err := validation.ValidateWalletAddress(req.WalletAddress); err != nil {
		return apperror.ErrInvalidWallet.WithCause(err)
	}
	req.WalletAddress = validation.ChecksumAddress(req.WalletAddress)
	return nil
}

// FeedbackFingerprint keccak256 от отзыва без учёта регистра и пробелов по краям.
func FeedbackFingerprint(feedback string) string {
	normalized := strings.ToLower(strings.TrimSpace(feedback))
	return crypto.Keccak256Hash([]byte(normalized)).Hex()
}
