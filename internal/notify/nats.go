package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/domain"
)

const subjectPrefix = "rubbhub.notifications."

// Subject - тема NATS для уведомлений одного получателя.
func Subject(recipientID string) string {
	return subjectPrefix + recipientID
}

// Publisher - часть *nats.Conn, которая нужна для публикации.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink публикует сохранённые уведомления для внешних потребителей.
type NATSSink struct {
	pub Publisher
}

func NewNATSSink(pub Publisher) *NATSSink {
	return &NATSSink{pub: pub}
}

func (s *NATSSink) Publish(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.pub.Publish(Subject(n.RecipientID), data)
}

// Connect подключается к NATS с несколькими попытками.
func Connect(url string, attempts int) (*nats.Conn, error) {
	var (
		conn *nats.Conn
		err  error
	)
	attempts = max(attempts, 1)
	for i := 0; i < attempts; i++ {
		conn, err = nats.Connect(url, nats.Name("rubbhub"))
		if err == nil {
			return conn, nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("waiting for NATS")
		time.Sleep(2 * time.Second)
	}
	return nil, err
}
