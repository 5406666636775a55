package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/dto"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers/common"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/middleware"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
)

// AuthHandler предоставляет HTTP слой подтверждения email одноразовым кодом.
type AuthHandler struct {
	otp    *service.OTPService
	tokens *service.TokenManager
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(otp *service.OTPService, tokens *service.TokenManager) *AuthHandler {
	return &AuthHandler{otp: otp, tokens: tokens}
}

// SendOTP обрабатывает POST /api/auth/send-otp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, apperror.ErrInvalidIdentifier.WithCause(err), apperror.ErrDispatchFailed.Message)
		return
	}

	if err := h.otp.RequestCode(c.Request.Context(), req.Email); err != nil {
		common.HandleError(c, err, apperror.ErrDispatchFailed.Message)
		return
	}

	c.JSON(http.StatusOK, dto.OTPResponse{Success: true, Message: "OTP sent to email"})
}

// VerifyOTP обрабатывает POST /api/auth/verify-otp.
// При успехе в заголовке X-Verification-Token возвращается токен подтверждённого email.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.HandleError(c, apperror.ErrMissingOTPFields.WithCause(err), apperror.ErrVerifyFailed.Message)
		return
	}

	result, err := h.otp.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		common.HandleError(c, err, apperror.ErrVerifyFailed.Message)
		return
	}

	// код уже погашен, поэтому ошибка выпуска токена не отменяет успешный ответ
	token, _, err := h.tokens.IssueEmailToken(result.Identifier)
	if err != nil {
		logger.Log.WithError(err).Error("auth handler: не удалось выпустить токен email")
	} else {
		c.Header(middleware.VerificationTokenHeader, token)
	}

	c.JSON(http.StatusOK, dto.OTPResponse{Success: true, Message: "OTP verified"})
}
