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

// CheckInHandler отметки на событиях.
type CheckInHandler struct {
	checkins *service.CheckInService
}

func NewCheckInHandler(checkins *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins}
}

// Attest обрабатывает POST /api/checkin/attest. Требует токен подтверждённого email.
func (h *CheckInHandler) Attest(c *gin.Context) {
	email, err := common.CurrentEmail(c)
	if err != nil {
		common.HandleError(c, err, "Failed to check in")
		return
	}

	var req dto.AttestCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, apperror.ErrInvalidBody.WithCause(err), "Failed to check in")
		return
	}

	checkIn, created, err := h.checkins.Attest(c.Request.Context(), email, models.CheckInRequest{
		EventID:       req.EventID,
		WalletAddress: req.WalletAddress,
		Email:         req.Email,
		Signature:     req.Signature,
	})
	if err != nil {
		common.HandleError(c, err, "Failed to check in")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.CheckInResponse{CheckIn: checkIn, Created: created})
}

// ListCheckIns обрабатывает GET /api/checkins?wallet=0x...
func (h *CheckInHandler) ListCheckIns(c *gin.Context) {
	items, err := h.checkins.ListCheckIns(c.Request.Context(), walletQuery(c))
	if err != nil {
		common.HandleError(c, err, "Failed to list check-ins")
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkIns": items})
}

// QR обрабатывает GET /api/events/:id/checkin-qr.
func (h *CheckInHandler) QR(c *gin.Context) {
	eventID, err := common.EventID(c)
	if err != nil {
		common.HandleError(c, err, "Failed to render QR code")
		return
	}

	png, err := h.checkins.CheckInQR(eventID)
	if err != nil {
		common.HandleError(c, err, "Failed to render QR code")
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
