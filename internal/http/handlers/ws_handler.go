package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers/common"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/validation"
	"github.com/Abishake01/0G-Proof-Pass/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins разрешает любой Origin.
func NewWSHandler(hub *ws.Hub, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Handle обслуживает GET /api/ws?wallet=0x...
// Оценки вклада публичны, поэтому подписка по адресу не требует токена.
func (h *WSHandler) Handle(c *gin.Context) {
	wallet := walletQuery(c)
	if err := validation.ValidateWalletAddress(wallet); err != nil {
		common.HandleError(c, apperror.ErrInvalidWallet.WithCause(err), "Failed to subscribe")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.Log.WithError(err).Debug("ws handler: upgrade не удался")
		return
	}

	client := ws.NewClient(conn, h.hub, validation.ChecksumAddress(wallet))
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
