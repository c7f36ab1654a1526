package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/UkralStul/rubbhub/internal/domain"
	"github.com/UkralStul/rubbhub/internal/storage"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	EntryLikers   *dataloader.Loader
	CommentLikers *dataloader.Loader
}

// likersBatchFn собирает ключи из окна ожидания и делает ОДИН запрос к хранилищу.
func likersBatchFn(store storage.LikeStore, kind domain.LikeKind) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		likers, err := store.GetLikers(ctx, kind, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, id := range ids {
			list := likers[id]
			if list == nil {
				list = []string{}
			}
			results[i] = &dataloader.Result{Data: list}
		}
		return results
	}
}

// NewLoaders создает лоадеры на один запрос: кэш лоадера живёт только в нём.
// opts применяются после настроек по умолчанию.
func NewLoaders(store storage.LikeStore, opts ...dataloader.Option) *Loaders {
	opts = append([]dataloader.Option{dataloader.WithWait(time.Millisecond * 1)}, opts...)
	return &Loaders{
		EntryLikers:   dataloader.NewBatchedLoader(likersBatchFn(store, domain.LikeEntry), opts...),
		CommentLikers: dataloader.NewBatchedLoader(likersBatchFn(store, domain.LikeComment), opts...),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.LikeStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста. Без middleware возвращает nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

func (l *Loaders) loader(kind domain.LikeKind) *dataloader.Loader {
	if kind == domain.LikeComment {
		return l.CommentLikers
	}
	return l.EntryLikers
}

// Thunk откладывает получение лайкнувших до вызова.
type Thunk func() ([]string, error)

// Likers ставит id в очередь лоадера и сразу возвращает thunk. Все Load,
// сделанные до первого вызова thunk, уходят в хранилище одним GetLikers.
// Без лоадеров в контексте каждый thunk ходит в хранилище сам.
func Likers(ctx context.Context, store storage.LikeStore, kind domain.LikeKind, id string) Thunk {
	l := For(ctx)
	if l == nil {
		return func() ([]string, error) {
			likers, err := store.GetLikers(ctx, kind, []string{id})
			if err != nil {
				return nil, err
			}
			return likers[id], nil
		}
	}

	thunk := l.loader(kind).Load(ctx, dataloader.StringKey(id))
	return func() ([]string, error) {
		v, err := thunk()
		if err != nil {
			return nil, err
		}
		list, _ := v.([]string)
		return list, nil
	}
}
