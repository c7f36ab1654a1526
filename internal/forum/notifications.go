package forum

import (
	"context"
	"time"

	"github.com/UkralStul/rubbhub/internal/domain"
	"github.com/UkralStul/rubbhub/internal/storage"
)

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// Все операции с уведомлениями ограничены получателем-зрителем.

func (s *Service) ListNotifications(ctx context.Context, viewer *domain.Identity, page, pageSize int) (*NotificationPage, error) {
	if viewer == nil {
		return nil, authRequired()
	}
	page, pageSize = NormalizePage(page, pageSize, DefaultNotificationPageSize)
	items, err := s.store.ListNotifications(ctx, viewer.UserID, storage.PaginationArgs{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountNotifications(ctx, viewer.UserID, false)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	return &NotificationPage{Notifications: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *Service) UnreadCount(ctx context.Context, viewer *domain.Identity) (int64, error) {
	if viewer == nil {
		return 0, authRequired()
	}
	return s.store.CountNotifications(ctx, viewer.UserID, true)
}

// MarkRead отмечает прочитанным уведомление зрителя; чужое не найдётся.
func (s *Service) MarkRead(ctx context.Context, viewer *domain.Identity, id string) error {
	if viewer == nil {
		return authRequired()
	}
	return s.store.MarkNotificationRead(ctx, viewer.UserID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, viewer *domain.Identity) error {
	if viewer == nil {
		return authRequired()
	}
	return s.store.MarkAllNotificationsRead(ctx, viewer.UserID)
}
