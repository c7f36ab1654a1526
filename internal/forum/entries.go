package forum

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/dataloader"
	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

// ListEntries возвращает страницу ленты: публичные посты и собственные
// приватные посты зрителя, от новых к старым.
func (s *Service) ListEntries(ctx context.Context, viewer *domain.Identity, page, pageSize int) (*EntryPage, error) {
	page, pageSize = NormalizePage(page, pageSize, DefaultPageSize)
	filter := storage.EntryFilter{ViewerID: viewer.ID()}

	// total считается тем же предикатом, но без окна страницы
	total, err := s.store.CountEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, filter, storage.PaginationArgs{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	views, err := s.entryViews(ctx, entries)
	if err != nil {
		return nil, err
	}
	return &EntryPage{
		Entries:    views,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		Limit:      pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// GetEntry отдаёт пост с лайками и деревом комментариев. Просмотр не
// автором увеличивает счётчик просмотров до построения ответа.
func (s *Service) GetEntry(ctx context.Context, viewer *domain.Identity, entryID string) (*EntryView, error) {
	e, err := s.visibleEntry(ctx, entryID, viewer)
	if err != nil {
		return nil, err
	}
	if e.AuthorID != viewer.ID() {
		n, err := s.store.IncrementViews(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		e.Views = n
	}
	views, err := s.entryViews(ctx, []*domain.Entry{e})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// entryViews достраивает посты лайками и комментариями. С лоадерами в
// контексте число запросов не зависит от количества постов.
func (s *Service) entryViews(ctx context.Context, entries []*domain.Entry) ([]EntryView, error) {
	views := make([]EntryView, 0, len(entries))
	if len(entries) == 0 {
		return views, nil
	}

	// сначала ставим в очередь все Load, лоадер склеит их в один запрос на вид лайка
	ids := make([]string, len(entries))
	entryThunks := make([]dataloader.Thunk, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		entryThunks[i] = dataloader.Likers(ctx, s.store, domain.LikeEntry, e.ID)
	}
	comments, err := s.store.GetCommentsByEntryIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	commentThunks := make([]dataloader.Thunk, len(comments))
	byEntry := make(map[string][]*domain.Comment)
	for i, c := range comments {
		commentThunks[i] = dataloader.Likers(ctx, s.store, domain.LikeComment, c.ID)
		byEntry[c.EntryID] = append(byEntry[c.EntryID], c)
	}

	commentLikers := make(map[string][]string, len(comments))
	for i, c := range comments {
		list, err := commentThunks[i]()
		if err != nil {
			return nil, err
		}
		commentLikers[c.ID] = list
	}
	entryLikers := make([][]string, len(entries))
	for i := range entries {
		list, err := entryThunks[i]()
		if err != nil {
			return nil, err
		}
		entryLikers[i] = list
	}

	for i, e := range entries {
		views = append(views, newEntryView(e, entryLikers[i], BuildThread(byEntry[e.ID], commentLikers)))
	}
	return views, nil
}

// CreateEntry публикует пост от имени автора и возвращает его id.
func (s *Service) CreateEntry(ctx context.Context, viewer *domain.Identity, in EntryInput) (string, error) {
	if err := in.normalize(); err != nil {
		return "", err
	}
	author, err := s.actor(ctx, viewer)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	e := &domain.Entry{
		AuthorID:   author.ID,
		AuthorName: author.Username,
		CreatedAt:  now,
	}
	in.apply(e)

	// Коротких id немного, при коллизии пробуем другой
	for attempt := 0; ; attempt++ {
		e.ID = s.newID(now.Year())
		_, err = s.store.CreateEntry(ctx, e)
		if err == nil || !apperr.IsConflict(err) || attempt+1 >= entryIDAttempts {
			break
		}
	}
	if err != nil {
		return "", err
	}

	log.Info().Str("entry_id", e.ID).Str("author", author.Username).Msg("entry created")
	return e.ID, nil
}

// UpdateEntry правит пост. Менять пост может только автор.
func (s *Service) UpdateEntry(ctx context.Context, viewer *domain.Identity, entryID string, in EntryInput) error {
	if viewer == nil {
		return authRequired()
	}
	if err := in.normalize(); err != nil {
		return err
	}
	e, err := s.visibleEntry(ctx, entryID, viewer)
	if err != nil {
		return err
	}
	if e.AuthorID != viewer.UserID {
		return apperr.Forbidden("not allowed to edit this entry")
	}
	in.apply(e)
	return s.store.UpdateEntry(ctx, e)
}

// DeleteEntry удаляет пост вместе с комментариями и лайками. Кроме автора
// удалить пост может админ, но только публичный.
func (s *Service) DeleteEntry(ctx context.Context, viewer *domain.Identity, entryID string) error {
	if viewer == nil {
		return authRequired()
	}
	e, err := s.visibleEntry(ctx, entryID, viewer)
	if err != nil {
		return err
	}
	isAuthor := e.AuthorID == viewer.UserID
	if !isAuthor && !(viewer.IsAdmin() && e.Visibility == domain.VisibilityPublic) {
		return apperr.Forbidden("not allowed to delete this entry")
	}
	if err := s.store.DeleteEntry(ctx, e.ID); err != nil {
		return err
	}
	log.Info().Str("entry_id", e.ID).Str("by", viewer.UserID).Msg("entry deleted")
	return nil
}

// ToggleEntryLike переключает лайк поста. Автор получает уведомление о
// новом лайке, если лайкнул не он сам.
func (s *Service) ToggleEntryLike(ctx context.Context, viewer *domain.Identity, entryID string) (bool, error) {
	liker, err := s.actor(ctx, viewer)
	if err != nil {
		return false, err
	}
	e, err := s.visibleEntry(ctx, entryID, viewer)
	if err != nil {
		return false, err
	}
	liked, err := s.store.ToggleLike(ctx, domain.LikeEntry, e.ID, liker.ID)
	if err != nil {
		return false, err
	}
	if liked {
		runAfter(ctx, "notify-like", func(ctx context.Context) error {
			return s.fanout.Notify(ctx, Event{
				Recipient:  e.AuthorID,
				Type:       domain.NotificationLike,
				Actor:      liker,
				EntryID:    e.ID,
				EntryTitle: e.Title,
			})
		})
	}
	return liked, nil
}
