package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub    *grouping.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *grouping.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// ServeWs обрабатывает WebSocket подключения для конкретного турнира.
// Клиент подключается к /ws/tournaments/{tournamentID} и получает события
// раунда: конфигурацию групп, статусы матчей, результаты и выбор победителя.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentIDStr := chi.URLParam(r, "tournamentID")
	if tournamentIDStr == "" {
		http.Error(w, "Missing tournamentID", http.StatusBadRequest)
		return
	}

	// ID комнаты соответствует ID турнира
	h.serveRoom(w, r, "tournament_"+tournamentIDStr)
}

// ServeLeaderboardWs подписывает клиента на обновления глобального лидерборда.
func (h *WebSocketHandler) ServeLeaderboardWs(w http.ResponseWriter, r *http.Request) {
	h.serveRoom(w, r, "leaderboard")
}

func (h *WebSocketHandler) serveRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, здесь просто логируем.
		h.logger.Error("failed to upgrade websocket connection", "room", roomID, "error", err)
		return
	}

	client := &grouping.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256), // Буферизированный канал
		Room: roomID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket client registered", "room", roomID)
}
