package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// walletQuery читает адрес кошелька из query параметра wallet.
func walletQuery(c *gin.Context) string {
	return c.Query("wallet")
}

// limitQuery читает limit. Некорректное значение трактуется как отсутствие.
func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
