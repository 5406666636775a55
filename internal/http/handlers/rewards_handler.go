package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/service"
)

type RewardsHandler struct {
	rewards *service.RewardTable
}

func NewRewardsHandler(rewards *service.RewardTable) *RewardsHandler {
	return &RewardsHandler{rewards: rewards}
}

// Tiers обрабатывает GET /api/rewards/tiers.
func (h *RewardsHandler) Tiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": h.rewards.Tiers()})
}
