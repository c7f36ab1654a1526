package forum

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

// Profile собирает карточку пользователя. Счётчик постов учитывает
// приватные посты только для самого владельца.
func (s *Service) Profile(ctx context.Context, viewer *domain.Identity, username string) (*Profile, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	following, err := s.store.CountFollowing(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	followers, err := s.store.CountFollowers(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.CountEntries(ctx, storage.EntryFilter{ViewerID: viewer.ID(), AuthorID: u.ID})
	if err != nil {
		return nil, err
	}
	var isFollowing bool
	if viewer != nil {
		if isFollowing, err = s.store.IsFollowing(ctx, viewer.UserID, u.ID); err != nil {
			return nil, err
		}
	}
	return &Profile{
		ID:             u.ID,
		Username:       u.Username,
		Title:          u.Title,
		Bio:            u.Bio,
		JoinedAt:       u.CreatedAt,
		FollowingCount: following,
		FollowersCount: followers,
		EntriesCount:   entries,
		IsFollowing:    isFollowing,
	}, nil
}

// UserEntries - все видимые зрителю посты пользователя, от новых к старым.
func (s *Service) UserEntries(ctx context.Context, viewer *domain.Identity, username string) ([]EntryView, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, storage.EntryFilter{ViewerID: viewer.ID(), AuthorID: u.ID}, storage.PaginationArgs{})
	if err != nil {
		return nil, err
	}
	return s.entryViews(ctx, entries)
}

func (s *Service) Followers(ctx context.Context, username string) ([]UserSummary, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListFollowers(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (s *Service) Following(ctx context.Context, username string) ([]UserSummary, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListFollowing(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

// ToggleFollow подписывает или отписывает зрителя. Новая подписка
// уведомляет того, на кого подписались.
func (s *Service) ToggleFollow(ctx context.Context, viewer *domain.Identity, username string) (bool, error) {
	follower, err := s.actor(ctx, viewer)
	if err != nil {
		return false, err
	}
	target, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if target.ID == follower.ID {
		return false, apperr.New(apperr.KindValidation, "INVALID_OPERATION", "cannot follow yourself")
	}
	following, err := s.store.ToggleFollow(ctx, follower.ID, target.ID)
	if err != nil {
		return false, err
	}
	if following {
		runAfter(ctx, "notify-follow", func(ctx context.Context) error {
			return s.fanout.Notify(ctx, Event{
				Recipient: target.ID,
				Type:      domain.NotificationFollow,
				Actor:     follower,
			})
		})
	}
	return following, nil
}

// === Admin ===

func (s *Service) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.store.ListUsers(ctx)
}

// SetBanned блокирует или разблокирует пользователя. Себя и других
// админов блокировать нельзя.
func (s *Service) SetBanned(ctx context.Context, admin *domain.Identity, userID string, banned bool) error {
	if userID == admin.ID() {
		return apperr.New(apperr.KindValidation, "INVALID_OPERATION", "cannot ban yourself")
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		return apperr.New(apperr.KindValidation, "INVALID_OPERATION", "cannot ban an admin")
	}
	if err := s.store.SetBanned(ctx, u.ID, banned); err != nil {
		return err
	}
	log.Info().Str("admin", admin.ID()).Str("user", u.Username).Bool("banned", banned).Msg("user ban state changed")
	return nil
}

const (
	DefaultOnlineWindowMinutes = 5
	onlineUsersLimit           = 50
)

// OnlineUsers - пользователи, активные за последние windowMinutes минут.
func (s *Service) OnlineUsers(ctx context.Context, windowMinutes int) ([]*domain.OnlineUser, error) {
	if windowMinutes <= 0 {
		windowMinutes = DefaultOnlineWindowMinutes
	}
	since := s.now().UTC().Add(-minutes(windowMinutes))
	users, err := s.store.ListOnlineUsers(ctx, since, onlineUsersLimit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.OnlineUser{}
	}
	return users, nil
}
