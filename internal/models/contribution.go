package models

import (
	"time"

	"github.com/google/uuid"
)

// ContributionTier уровень вклада участника.
type ContributionTier string

const (
	TierAttendee    ContributionTier = "Attendee"
	TierContributor ContributionTier = "Contributor"
	TierChampion    ContributionTier = "Champion"
)

// Пороги уровней по общему баллу.
const (
	ChampionThreshold    = 67
	ContributorThreshold = 34
)

// TierForScore возвращает уровень по общему баллу.
func TierForScore(score int) ContributionTier {
	switch {
	case score >= ChampionThreshold:
		return TierChampion
	case score >= ContributorThreshold:
		return TierContributor
	default:
		return TierAttendee
	}
}

// Index номер уровня в контракте наград (0..2).
func (t ContributionTier) Index() int {
	switch t {
	case TierChampion:
		return 2
	case TierContributor:
		return 1
	default:
		return 0
	}
}

// Valid сообщает, известен ли уровень.
func (t ContributionTier) Valid() bool {
	return t == TierAttendee || t == TierContributor || t == TierChampion
}

// ContributionRequest материалы, присланные участником после события.
type ContributionRequest struct {
	Photos        []string
	Feedback      string
	EventID       int64
	WalletAddress string
}

// ContributionAnalysis результат оценки вклада.
type ContributionAnalysis struct {
	PhotoScore    int              `json:"photoScore"`
	FeedbackScore int              `json:"feedbackScore"`
	OverallScore  int              `json:"overallScore"`
	Tier          ContributionTier `json:"tier"`
	Reasoning     string           `json:"reasoning"`
	IsSpam        bool             `json:"isSpam"`
	IsDuplicate   bool             `json:"isDuplicate"`
}

// Contribution сохранённая оценка.
type Contribution struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	EventID       int64            `db:"event_id" json:"eventId"`
	WalletAddress string           `db:"wallet_address" json:"walletAddress"`
	FeedbackHash  string           `db:"feedback_hash" json:"feedbackHash"`
	PhotoCount    int              `db:"photo_count" json:"photoCount"`
	PhotoScore    int              `db:"photo_score" json:"photoScore"`
	FeedbackScore int              `db:"feedback_score" json:"feedbackScore"`
	OverallScore  int              `db:"overall_score" json:"overallScore"`
	Tier          ContributionTier `db:"tier" json:"tier"`
	Reasoning     string           `db:"reasoning" json:"reasoning"`
	IsSpam        bool             `db:"is_spam" json:"isSpam"`
	IsDuplicate   bool             `db:"is_duplicate" json:"isDuplicate"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
}
