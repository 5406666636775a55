package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextEmailKey = "verifiedEmail"
)

// VerificationTokenHeader заголовок с токеном подтверждённого email в ответе verify-otp.
const VerificationTokenHeader = "X-Verification-Token"

// EmailTokenMiddleware пропускает запрос только с действующим токеном подтверждённого email.
func EmailTokenMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			_ = c.Error(apperror.ErrUnauthorized)
			c.Abort()
			return
		}

		token, err := tokens.ParseEmailToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			_ = c.Error(apperror.ErrUnauthorized.WithCause(err))
			c.Abort()
			return
		}

		c.Set(ContextEmailKey, token.Email)
		c.Next()
	}
}
