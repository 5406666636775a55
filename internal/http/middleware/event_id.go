package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
)

// ContextEventIDKey ключ с разобранным идентификатором события.
const ContextEventIDKey = "eventID"

// EventIDValidator проверяет, что параметр является положительным целым.
// Использование: router.GET("/events/:id/checkin-qr", EventIDValidator("id"), handler.QR)
func EventIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
		if err != nil || id <= 0 {
			_ = c.Error(apperror.ErrInvalidEventID)
			c.Abort()
			return
		}

		c.Set(ContextEventIDKey, id)
		c.Next()
	}
}
