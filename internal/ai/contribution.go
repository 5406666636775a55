package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

const contributionSystemPrompt = "You evaluate event contributions for a proof-of-attendance platform. Reply with a single JSON object only."

// ContributionScorer оценивает вклад участника через модель.
type ContributionScorer struct {
	client *Client
}

func NewContributionScorer(client *Client) *ContributionScorer {
	return &ContributionScorer{client: client}
}

func (s *ContributionScorer) Name() string { return "ai" }

// Score отправляет материалы модели и разбирает JSON ответ.
func (s *ContributionScorer) Score(ctx context.Context, req models.ContributionRequest) (*models.ContributionAnalysis, error) {
	if !s.client.Configured() {
		return nil, fmt.Errorf("ai: scorer не настроен")
	}

	messages := []map[string]string{
		{"role": "system", "content": contributionSystemPrompt},
		{"role": "user", "content": buildContributionPrompt(req)},
	}

	reply, err := s.client.chatCompletionWithOptions(ctx, messages, 512, 0.2)
	if err != nil {
		return nil, err
	}

	return parseContributionAnalysis(reply)
}

func buildContributionPrompt(req models.ContributionRequest) string {
	return strings.TrimSpace(fmt.Sprintf(`
Analyze this event contribution:

Event ID: %d
Wallet: %s
Photos: %d image(s) uploaded
Feedback: %q

Please evaluate:
1. Photo quality and relevance (0-100)
2. Feedback depth and helpfulness (0-100)
3. Overall contribution score (0-100)
4. Tier classification (Attendee/Contributor/Champion)
5. Spam detection
6. Duplicate detection

Return JSON with: photoScore, feedbackScore, overallScore, tier, reasoning, isSpam, isDuplicate`,
		req.EventID, req.WalletAddress, len(req.Photos), req.Feedback))
}

// parseContributionAnalysis разбирает ответ модели: баллы ограничиваются 0..100,
// недостающий общий балл и уровень вычисляются по той же формуле, что и в MockScorer.
func parseContributionAnalysis(reply string) (*models.ContributionAnalysis, error) {
	data := parseJSONFromText(reply)
	if len(data) == 0 {
		return nil, fmt.Errorf("ai: ответ не содержит JSON")
	}

	photo, okPhoto := numberField(data, "photoScore")
	feedback, okFeedback := numberField(data, "feedbackScore")
	if !okPhoto || !okFeedback {
		return nil, fmt.Errorf("ai: в ответе нет photoScore/feedbackScore")
	}

	analysis := &models.ContributionAnalysis{
		PhotoScore:    clampScore(photo),
		FeedbackScore: clampScore(feedback),
	}

	if overall, ok := numberField(data, "overallScore"); ok {
		analysis.OverallScore = clampScore(overall)
	} else {
		analysis.OverallScore = overallScore(analysis.PhotoScore, analysis.FeedbackScore)
	}

	tier := models.ContributionTier(stringField(data, "tier"))
	if !tier.Valid() {
		tier = models.TierForScore(analysis.OverallScore)
	}
	analysis.Tier = tier

	analysis.Reasoning = stringField(data, "reasoning")
	analysis.IsSpam, _ = data["isSpam"].(bool)
	analysis.IsDuplicate, _ = data["isDuplicate"].(bool)

	return analysis, nil
}

func numberField(data map[string]interface{}, key string) (float64, bool) {
	v, ok := data[key].(float64)
	return v, ok
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return strings.TrimSpace(v)
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

// overallScore = floor(0.4*photo + 0.4*feedback + 20).
// Явные преобразования запрещают компилятору сливать операции в FMA.
func overallScore(photo, feedback int) int {
	p := float64(float64(photo) * 0.4)
	f := float64(float64(feedback) * 0.4)
	return int(math.Floor(float64(p+f) + 20))
}

// utf16Length длина в UTF-16 code units: так считают клиенты, и с этим числом
// совпадают баллы и текст reasoning.
func utf16Length(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// MockScorer детерминированная эвристика: длина отзыва, ключевые слова и наличие фото.
// Используется без модели и как запасной вариант при её ошибке.
type MockScorer struct{}

func NewMockScorer() *MockScorer { return &MockScorer{} }

func (MockScorer) Name() string { return "mock" }

func (MockScorer) Score(_ context.Context, req models.ContributionRequest) (*models.ContributionAnalysis, error) {
	feedbackLength := utf16Length(req.Feedback)

	feedbackScore := feedbackLength / 10
	if feedbackScore > 100 {
		feedbackScore = 100
	}
	lower := strings.ToLower(req.Feedback)
	if strings.Contains(lower, "great") || strings.Contains(lower, "excellent") {
		feedbackScore = min(100, feedbackScore+20)
	}

	photoScore := 0
	if len(req.Photos) > 0 {
		photoScore = 70
	}

	overall := overallScore(photoScore, feedbackScore)

	return &models.ContributionAnalysis{
		PhotoScore:    photoScore,
		FeedbackScore: feedbackScore,
		OverallScore:  overall,
		Tier:          models.TierForScore(overall),
		Reasoning: fmt.Sprintf(
			"Analyzed %d photo(s) and %d characters of feedback. Quality assessment based on content depth and relevance.",
			len(req.Photos), feedbackLength),
	}, nil
}
