package forum

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

const (
	DefaultPageSize             = 10
	MaxPageSize                 = 100
	DefaultNotificationPageSize = 20

	entryIDAttempts = 5
)

// Service - ядро форума: посты, комментарии, лайки, подписки, уведомления.
type Service struct {
	store  storage.Storage
	fanout *Fanout
	now    func() time.Time
	newID  func(year int) string
}

func NewService(store storage.Storage, fanout *Fanout) *Service {
	if fanout == nil {
		fanout = NewFanout(store)
	}
	return &Service{
		store:  store,
		fanout: fanout,
		now:    time.Now,
		newID:  randomEntryID,
	}
}

const entryIDAlphabet = "ABCDEF0123456789"

// randomEntryID генерирует id вида RUB.<год>.<4 hex-символа в верхнем регистре>.
func randomEntryID(year int) string {
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = entryIDAlphabet[rand.IntN(len(entryIDAlphabet))]
	}
	return fmt.Sprintf("RUB.%d.%s", year, suffix[:])
}

// NormalizePage приводит номер и размер страницы к допустимым значениям.
func NormalizePage(page, pageSize, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = def
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// смещение (page-1)*pageSize не должно переполнять int
	if page > math.MaxInt/pageSize {
		page = math.MaxInt / pageSize
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func authRequired() error {
	return apperr.New(apperr.KindUnauthorized, "UNAUTHORIZED", "authentication required")
}

// actor загружает автора действия: его имя попадает в снимки и уведомления.
func (s *Service) actor(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	if id == nil {
		return nil, authRequired()
	}
	u, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.WrapUnauthorized(err, "account no longer exists")
		}
		return nil, err
	}
	return u, nil
}

// visibleEntry возвращает пост, если он виден зрителю. Отсутствующий и
// чужой приватный пост дают одну и ту же ошибку.
func (s *Service) visibleEntry(ctx context.Context, entryID string, viewer *domain.Identity) (*domain.Entry, error) {
	e, err := s.store.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !e.VisibleTo(viewer.ID()) {
		return nil, apperr.NotFound("entry not found")
	}
	return e, nil
}
