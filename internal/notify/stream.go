package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/domain"
	"github.com/UkralStul/rubbhub/internal/response"
)

const (
	pingInterval = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Authenticator достаёт пользователя из запроса на подключение.
type Authenticator func(r *http.Request) (*domain.Identity, error)

// StreamHandler отдаёт новые уведомления пользователя по websocket.
type StreamHandler struct {
	hub          *Hub
	authenticate Authenticator
	upgrader     websocket.Upgrader
}

func NewStreamHandler(hub *Hub, authenticate Authenticator, checkOrigin func(r *http.Request) bool) *StreamHandler {
	return &StreamHandler{
		hub:          hub,
		authenticate: authenticate,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
	}
}

func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	updates := s.hub.Subscribe(ctx, id.UserID)

	// клиент ничего не шлёт, чтение нужно только чтобы заметить закрытие
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(n); err != nil {
				log.Debug().Err(err).Str("user_id", id.UserID).Msg("notification stream closed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
