package storage

import (
	"context"
	"time"

	"github.com/UkralStul/rubbhub/internal/domain"
)

// PaginationArgs - аргументы для offset-пагинации.
type PaginationArgs struct {
	Limit  int
	Offset int
}

// EntryFilter описывает предикат видимости постов.
// Пост попадает в выборку, если он публичный или ViewerID - его автор.
// AuthorID дополнительно ограничивает выборку одним автором.
type EntryFilter struct {
	ViewerID string
	AuthorID string
}

type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, title, bio *string) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	SetBanned(ctx context.Context, id string, banned bool) error
}

type InviteStore interface {
	EnsureInviteCodes(ctx context.Context, codes []string) error
	IsInviteCodeActive(ctx context.Context, code string) (bool, error)
}

type EntryStore interface {
	CreateEntry(ctx context.Context, entry *domain.Entry) (*domain.Entry, error)
	GetEntryByID(ctx context.Context, id string) (*domain.Entry, error)
	UpdateEntry(ctx context.Context, entry *domain.Entry) error
	// DeleteEntry удаляет пост вместе с комментариями и лайками.
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, filter EntryFilter, args PaginationArgs) ([]*domain.Entry, error)
	CountEntries(ctx context.Context, filter EntryFilter) (int64, error)
	// IncrementViews увеличивает счётчик просмотров на единицу на стороне хранилища
	// и возвращает новое значение.
	IncrementViews(ctx context.Context, id string) (int, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*domain.Comment, error)
	GetCommentsByEntryIDs(ctx context.Context, entryIDs []string) ([]*domain.Comment, error)
	// DeleteComment удаляет комментарий, а для корневого ещё и все ответы.
	DeleteComment(ctx context.Context, id string) error
}

type LikeStore interface {
	// ToggleLike атомарно переключает пару (targetID, userID) и счётчик цели.
	ToggleLike(ctx context.Context, kind domain.LikeKind, targetID, userID string) (bool, error)
	// GetLikers - метод для Dataloader'ов: map[targetID][]userID.
	GetLikers(ctx context.Context, kind domain.LikeKind, targetIDs []string) (map[string][]string, error)
}

type FollowStore interface {
	ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	CountFollowers(ctx context.Context, userID string) (int64, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
	ListFollowers(ctx context.Context, userID string) ([]*domain.User, error)
	ListFollowing(ctx context.Context, userID string) ([]*domain.User, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, args PaginationArgs) ([]*domain.Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

type SessionStore interface {
	TouchSession(ctx context.Context, userID, ip string, at time.Time) error
	ListOnlineUsers(ctx context.Context, since time.Time, limit int) ([]*domain.OnlineUser, error)
}

// Storage определяет контракт для хранилищ.
type Storage interface {
	UserStore
	InviteStore
	EntryStore
	CommentStore
	LikeStore
	FollowStore
	NotificationStore
	SessionStore
}
