package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Abishake01/0G-Proof-Pass/internal/dto"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
)

const internalErrorMessage = "Internal server error"

// ErrorHandler обрабатывает ошибки централизованно.
// Ответ строится только из AppError, причина пишется в лог и клиенту не уходит.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		message := internalErrorMessage
		if appErr, ok := apperror.As(err); ok {
			statusCode = appErr.HTTPStatus
			message = appErr.Message
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": statusCode,
		})
		if statusCode >= http.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Debug("Request rejected")
		}

		c.JSON(statusCode, dto.ErrorResponse{Error: message})
	}
}
