package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Abishake01/0G-Proof-Pass/internal/goroutine"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
)

// Hub управляет WebSocket подписчиками, сгруппированными по адресу кошелька.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	ctx        context.Context
}

type message struct {
	wallet  string
	payload []byte
}

// NewHub создаёт новый хаб. Хаб живёт, пока не отменён ctx.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		ctx:        ctx,
	}
}

// walletKey адреса сравниваются без учёта регистра (checksum и lower-case равны).
func walletKey(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.wallet, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// BroadcastToWallet отправляет событие всем подключениям кошелька.
// Формат сообщения: {"type": <событие>, "data": <полезная нагрузка>}.
func (h *Hub) BroadcastToWallet(wallet, event string, data any) error {
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{wallet: walletKey(wallet), payload: raw}:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// Subscribers количество подключений кошелька.
func (h *Hub) Subscribers(wallet string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[walletKey(wallet)])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.wallet]; !ok {
		h.clients[client.wallet] = make(map[*Client]struct{})
	}
	h.clients[client.wallet][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.wallet]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.wallet)
		}
	}
}

// closeAll закрывает все подключения при остановке хаба.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0)
	for _, set := range h.clients {
		for client := range set {
			clients = append(clients, client)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

func (h *Hub) send(wallet string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[wallet] {
		select {
		case client.send <- payload:
		default:
			// медленный клиент: закрываем вне цикла хаба
			c := client
			logger.Log.WithField("wallet", wallet).Warn("ws: буфер клиента переполнен, соединение закрыто")
			goroutine.SafeGo(c.Close)
		}
	}
}
