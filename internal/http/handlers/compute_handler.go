package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/dto"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers/common"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
)

// ComputeHandler оценка вклада участника.
type ComputeHandler struct {
	compute *service.ComputeService
}

func NewComputeHandler(compute *service.ComputeService) *ComputeHandler {
	return &ComputeHandler{compute: compute}
}

// Analyze обрабатывает POST /api/compute/analyze.
func (h *ComputeHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, apperror.ErrInvalidBody.WithCause(err), apperror.ErrAnalysisFailed.Message)
		return
	}

	analysis, err := h.compute.Analyze(c.Request.Context(), models.ContributionRequest{
		Photos:        req.Photos,
		Feedback:      req.Feedback,
		EventID:       req.EventID,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		common.HandleError(c, err, apperror.ErrAnalysisFailed.Message)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// ListContributions обрабатывает GET /api/contributions?wallet=0x...&limit=N.
func (h *ComputeHandler) ListContributions(c *gin.Context) {
	items, err := h.compute.ListContributions(c.Request.Context(), walletQuery(c), limitQuery(c))
	if err != nil {
		common.HandleError(c, err, "Failed to list contributions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"contributions": items})
}
