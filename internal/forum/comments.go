package forum

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
)

// AddComment оставляет комментарий к посту. parentID может указывать как на
// корень, так и на ответ: ответ на ответ переносится под корень ветки.
func (s *Service) AddComment(ctx context.Context, viewer *domain.Identity, entryID, content, parentID string) (string, error) {
	content, err := validateComment(content)
	if err != nil {
		return "", err
	}
	author, err := s.actor(ctx, viewer)
	if err != nil {
		return "", err
	}
	e, err := s.visibleEntry(ctx, entryID, viewer)
	if err != nil {
		return "", err
	}

	c := &domain.Comment{
		ID:         ulid.Make().String(),
		EntryID:    e.ID,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}
	if parentID != "" {
		target, err := s.store.GetCommentByID(ctx, parentID)
		if err != nil {
			return "", err
		}
		if target.EntryID != e.ID {
			return "", apperr.NotFound("parent comment not found")
		}
		c.Reply = domain.ReplyTarget(target)
	}

	if _, err := s.store.CreateComment(ctx, c); err != nil {
		return "", err
	}

	runAfter(ctx, "notify-comment", func(ctx context.Context) error {
		return s.notifyComment(ctx, e, c, author)
	})
	return c.ID, nil
}

// notifyComment: корневой комментарий уведомляет автора поста, ответ -
// пользователя, на чей комментарий отвечали. Автор поста об ответах не узнаёт.
func (s *Service) notifyComment(ctx context.Context, e *domain.Entry, c *domain.Comment, author *domain.User) error {
	ev := Event{
		Type:       domain.NotificationComment,
		Recipient:  e.AuthorID,
		Actor:      author,
		EntryID:    e.ID,
		EntryTitle: e.Title,
		CommentID:  c.ID,
	}
	if c.Reply != nil {
		target, err := s.store.GetUserByUsername(ctx, c.Reply.ReplyTo)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil
			}
			return err
		}
		ev.Type = domain.NotificationReply
		ev.Recipient = target.ID
	}
	return s.fanout.Notify(ctx, ev)
}

// DeleteComment удаляет комментарий под видимым постом. Удалять может автор или админ.
func (s *Service) DeleteComment(ctx context.Context, viewer *domain.Identity, commentID string) error {
	if viewer == nil {
		return authRequired()
	}
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	// комментарий под невидимым постом тоже не найден, даже для админа
	if _, err := s.visibleEntry(ctx, c.EntryID, viewer); err != nil {
		return err
	}
	if c.AuthorID != viewer.UserID && !viewer.IsAdmin() {
		return apperr.Forbidden("not allowed to delete this comment")
	}
	return s.store.DeleteComment(ctx, c.ID)
}

// ToggleCommentLike переключает лайк комментария. Уведомлений нет.
func (s *Service) ToggleCommentLike(ctx context.Context, viewer *domain.Identity, commentID string) (bool, error) {
	if viewer == nil {
		return false, authRequired()
	}
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return false, err
	}
	if _, err := s.visibleEntry(ctx, c.EntryID, viewer); err != nil {
		return false, err
	}
	return s.store.ToggleLike(ctx, domain.LikeComment, c.ID, viewer.UserID)
}
