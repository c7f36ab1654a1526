package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/realip"
	"github.com/UkralStul/rubbhub/internal/response"
)

// fixed window: счётчик живёт ровно одно окно с первого запроса
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Limiter ограничивает число запросов с одного адреса за окно.
// nil-лимитер ничего не ограничивает.
type Limiter struct {
	client  redis.Scripter
	name    string
	limit   int
	window  time.Duration
	message string
}

func New(client redis.Scripter, name string, limit int, window time.Duration, message string) *Limiter {
	return &Limiter{client: client, name: name, limit: limit, window: window, message: message}
}

func (l *Limiter) key(client string) string {
	return "ratelimit:" + l.name + ":" + client
}

// Allow учитывает запрос. При недоступном redis запрос пропускается,
// ошибка возвращается вместе с true.
func (l *Limiter) Allow(ctx context.Context, client string) (bool, error) {
	n, err := windowScript.Run(ctx, l.client, []string{l.key(client)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true, err
	}
	return n <= int64(l.limit), nil
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := l.Allow(r.Context(), realip.FromRequest(r))
		if err != nil {
			log.Warn().Err(err).Str("limiter", l.name).Msg("rate limiter unavailable, failing open")
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			response.WriteError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMIT", l.message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
