package service

import (
	"github.com/shopspring/decimal"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// weiDecimals количество знаков OG после запятой.
const weiDecimals = 18

// RewardTier награда за уровень вклада.
type RewardTier struct {
	Index    int                     `json:"index"`
	Tier     models.ContributionTier `json:"tier"`
	AmountOG decimal.Decimal         `json:"amountOG"`
	// строкой, потому что в float64 значение теряет точность
	AmountWei string `json:"amountWei"`
}

// RewardTable награды по уровням. Индексы совпадают с контрактом наград.
type RewardTable struct {
	tiers []RewardTier
}

func NewRewardTable() *RewardTable {
	amounts := []struct {
		tier models.ContributionTier
		og   int64
	}{
		{models.TierAttendee, 10},
		{models.TierContributor, 50},
		{models.TierChampion, 100},
	}

	tiers := make([]RewardTier, 0, len(amounts))
	for _, a := range amounts {
		og := decimal.NewFromInt(a.og)
		tiers = append(tiers, RewardTier{
			Index:     a.tier.Index(),
			Tier:      a.tier,
			AmountOG:  og,
			AmountWei: ToWei(og).String(),
		})
	}
	return &RewardTable{tiers: tiers}
}

// Tiers возвращает копию таблицы.
func (t *RewardTable) Tiers() []RewardTier {
	out := make([]RewardTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// ForTier награда уровня.
func (t *RewardTable) ForTier(tier models.ContributionTier) (RewardTier, bool) {
	for _, r := range t.tiers {
		if r.Tier == tier {
			return r, true
		}
	}
	return RewardTier{}, false
}

// ToWei переводит OG в wei.
func ToWei(og decimal.Decimal) decimal.Decimal {
	return og.Shift(weiDecimals).Truncate(0)
}

// FromWei переводит wei в OG.
func FromWei(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-weiDecimals)
}
