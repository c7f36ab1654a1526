package forum

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/domain"
	"github.com/UkralStul/rubbhub/internal/storage"
)

// Sink получает уже сохранённые уведомления: живые подписчики, брокер.
type Sink interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

// Event - действие, о котором может понадобиться уведомить пользователя.
type Event struct {
	Recipient  string
	Type       domain.NotificationType
	Actor      *domain.User
	EntryID    string
	EntryTitle string
	CommentID  string
}

// Fanout записывает уведомления и раздаёт их подписчикам.
type Fanout struct {
	store storage.NotificationStore
	sinks []Sink
	now   func() time.Time
}

func NewFanout(store storage.NotificationStore, sinks ...Sink) *Fanout {
	return &Fanout{store: store, sinks: sinks, now: time.Now}
}

// AddSink подключает ещё одного получателя уведомлений.
func (f *Fanout) AddSink(s Sink) {
	f.sinks = append(f.sinks, s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Notify сохраняет уведомление. Самому себе уведомления не отправляются:
// в этом случае возвращается nil без записи.
func (f *Fanout) Notify(ctx context.Context, ev Event) error {
	if ev.Recipient == "" || ev.Actor == nil || ev.Recipient == ev.Actor.ID {
		return nil
	}
	n := &domain.Notification{
		ID:            uuid.NewString(),
		RecipientID:   ev.Recipient,
		Type:          ev.Type,
		ActorID:       ev.Actor.ID,
		ActorUsername: ev.Actor.Username,
		EntryID:       optional(ev.EntryID),
		EntryTitle:    optional(ev.EntryTitle),
		CommentID:     optional(ev.CommentID),
		CreatedAt:     f.now().UTC(),
	}
	if err := f.store.CreateNotification(ctx, n); err != nil {
		return err
	}

	// Ошибки доставки не отменяют записанное уведомление
	for _, s := range f.sinks {
		if err := s.Publish(ctx, n); err != nil {
			log.Warn().Err(err).
				Str("notification_id", n.ID).
				Str("recipient", n.RecipientID).
				Msg("notification sink failed")
		}
	}
	return nil
}

// AfterAction - побочный эффект, который выполняется после успешной мутации.
type AfterAction func(ctx context.Context) error

// runAfter выполняет побочные эффекты по принципу best effort: ошибка
// пишется в лог и не возвращается вызывающему.
func runAfter(ctx context.Context, name string, actions ...AfterAction) {
	for _, action := range actions {
		if err := action(ctx); err != nil {
			log.Error().Err(err).Str("action", name).Msg("after-action failed")
		}
	}
}
