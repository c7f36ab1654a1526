package activity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/realip"
	"github.com/UkralStul/rubbhub/internal/storage"
)

const localTTL = time.Hour

// Tracker отмечает активность пользователей для списка онлайн.
// Один пользователь записывается не чаще раза в every.
type Tracker struct {
	sessions storage.SessionStore
	redis    redis.Cmdable // общий троттлинг для нескольких инстансов, может быть nil
	every    time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func New(sessions storage.SessionStore, client redis.Cmdable, every time.Duration) *Tracker {
	return &Tracker{
		sessions: sessions,
		redis:    client,
		every:    every,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func throttleKey(userID string) string {
	return "activity:" + userID
}

// due решает, пора ли писать активность пользователя, и занимает окно.
func (t *Tracker) due(ctx context.Context, userID string) bool {
	if t.redis != nil {
		ok, err := t.redis.SetNX(ctx, throttleKey(userID), 1, t.every).Result()
		if err == nil {
			return ok
		}
		log.Warn().Err(err).Msg("activity throttle unavailable, using local state")
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if at, ok := t.last[userID]; ok && now.Sub(at) < t.every {
		return false
	}
	t.last[userID] = now
	for id, at := range t.last {
		if now.Sub(at) > localTTL {
			delete(t.last, id)
		}
	}
	return true
}

// release освобождает окно после неудачной записи, следующий запрос повторит её.
func (t *Tracker) release(ctx context.Context, userID string) {
	if t.redis != nil {
		if err := t.redis.Del(ctx, throttleKey(userID)).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to release activity throttle")
		}
	}
	t.mu.Lock()
	delete(t.last, userID)
	t.mu.Unlock()
}

// Record записывает активность. Ошибки только логируются.
func (t *Tracker) Record(ctx context.Context, userID, ip string) {
	if userID == "" || !t.due(ctx, userID) {
		return
	}
	if err := t.sessions.TouchSession(ctx, userID, ip, t.now().UTC()); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to record user activity")
		t.release(ctx, userID)
	}
}

// Middleware ставится после auth: гостей не отслеживает.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	if t == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.IdentityFrom(r.Context()); id != nil {
			t.Record(r.Context(), id.UserID, realip.FromRequest(r))
		}
		next.ServeHTTP(w, r)
	})
}
