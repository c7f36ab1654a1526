package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/domain"
)

const subscriberBuffer = 16

// Hub раздаёт новые уведомления живым подключениям получателя.
type Hub struct {
	mu sync.RWMutex
	//          map[userID] map[subscriberID] channel
	subs map[string]map[string]chan *domain.Notification
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]chan *domain.Notification),
	}
}

// Subscribe подписывает на уведомления пользователя до отмены ctx.
// После отмены канал закрывается.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan *domain.Notification {
	ch := make(chan *domain.Notification, subscriberBuffer)
	subID := uuid.NewString()

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]chan *domain.Notification)
	}
	h.subs[userID][subID] = ch
	h.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if userSubs, ok := h.subs[userID]; ok {
			delete(userSubs, subID)
			if len(userSubs) == 0 {
				delete(h.subs, userID)
			}
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish не блокируется: медленный подписчик пропускает уведомление,
// оно остаётся в хранилище.
func (h *Hub) Publish(ctx context.Context, n *domain.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for subID, ch := range h.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
			log.Debug().Str("subscriber", subID).Str("recipient", n.RecipientID).Msg("subscriber is lagging, notification dropped")
		}
	}
	return nil
}

// Subscribers - число живых подключений пользователя.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
