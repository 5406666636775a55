package common

import (
	"github.com/gin-gonic/gin"

	"github.com/Abishake01/0G-Proof-Pass/internal/http/middleware"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
)

// CurrentEmail извлекает подтверждённый email, положенный EmailTokenMiddleware.
func CurrentEmail(c *gin.Context) (string, error) {
	email := c.GetString(middleware.ContextEmailKey)
	if email == "" {
		return "", apperror.ErrUnauthorized
	}
	return email, nil
}

// EventID возвращает идентификатор события, разобранный EventIDValidator.
func EventID(c *gin.Context) (int64, error) {
	id := c.GetInt64(middleware.ContextEventIDKey)
	if id <= 0 {
		return 0, apperror.ErrInvalidEventID
	}
	return id, nil
}

// HandleError передаёт ошибку в ErrorHandler. Ошибка без AppError в цепочке
// превращается во внутреннюю с сообщением fallback.
func HandleError(c *gin.Context, err error, fallback string) {
	if _, ok := apperror.As(err); !ok {
		err = apperror.Wrap(err, apperror.ErrCodeInternal, fallback)
	}
	_ = c.Error(err)
	c.Abort()
}
