package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/UkralStul/rubbhub/internal/activity"
	"github.com/UkralStul/rubbhub/internal/auth"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/forum"
	"github.com/UkralStul/rubbhub/internal/notify"
	"github.com/UkralStul/rubbhub/internal/ratelimit"
	"github.com/UkralStul/rubbhub/internal/storage"
)

const maxBodyBytes = 1 << 20

// Limiters - ограничители запросов по группам маршрутов. nil отключает группу.
type Limiters struct {
	API    *ratelimit.Limiter
	Auth   *ratelimit.Limiter
	Create *ratelimit.Limiter
}

// Handler содержит все зависимости, которые нужны REST-слою.
type Handler struct {
	Forum       *forum.Service
	Auth        *auth.Service
	Tokens      *auth.Tokens
	Likes       storage.LikeStore
	Hub         *notify.Hub
	Tracker     *activity.Tracker
	Limits      Limiters
	CORSOrigins []string
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.WrapValidation(err, "invalid JSON body")
	}
	return nil
}

// queryInt читает целый параметр запроса; мусор считается отсутствием.
func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return v
}

// pageParams понимает и pageSize, и старый limit.
func pageParams(r *http.Request) (int, int) {
	size := queryInt(r, "pageSize")
	if size == 0 {
		size = queryInt(r, "limit")
	}
	return queryInt(r, "page"), size
}
