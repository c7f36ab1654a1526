package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/response"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom возвращает пользователя запроса или nil для гостя.
func IdentityFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(*domain.Identity)
	return id
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// FromRequest проверяет токен из заголовка Authorization, а при его
// отсутствии из параметра token: браузер не ставит заголовки на websocket.
func (t *Tokens) FromRequest(r *http.Request) (*domain.Identity, error) {
	raw := bearer(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	claims, err := t.Verify(raw)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

// Optional кладёт пользователя в контекст, если токен валиден. Плохой
// токен превращает запрос в гостевой.
func (t *Tokens) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := bearer(r); raw != "" {
			if claims, err := t.Verify(raw); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), claims.Identity()))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Require пропускает только запросы с валидным токеном.
func (t *Tokens) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			response.WriteError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		claims, err := t.Verify(raw)
		if err != nil {
			response.FromError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
	})
}

// RequireAdmin ставится после Require.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsAdmin() {
			response.WriteError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
