package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, debug bool) (*Store, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true, // уникальные ключи приходят как gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(
		&userRow{}, &inviteCodeRow{}, &entryRow{}, &commentRow{},
		&entryLikeRow{}, &commentLikeRow{}, &followRow{},
		&notificationRow{}, &sessionRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.WrapNotFound(err, what+" not found")
	}
	return apperr.WrapInternal(err, "query "+what)
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(userToRow(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.WrapConflict(err, "email or username already taken")
		}
		return nil, apperr.WrapInternal(err, "create user")
	}
	return user, nil
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return userFromRow(&row), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, title, bio *string) error {
	updates := map[string]any{}
	if title != nil {
		updates["title"] = *title
	}
	if bio != nil {
		updates["bio"] = *bio
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "list users")
	}
	return usersFromRows(rows), nil
}

func usersFromRows(rows []userRow) []*domain.User {
	users := make([]*domain.User, len(rows))
	for i := range rows {
		users[i] = userFromRow(&rows[i])
	}
	return users
}

func (s *Store) SetBanned(ctx context.Context, id string, banned bool) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).UpdateColumn("is_banned", banned)
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "set banned")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// === Invite Methods ===

func (s *Store) EnsureInviteCodes(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]inviteCodeRow, len(codes))
	for i, c := range codes {
		rows[i] = inviteCodeRow{ID: uuid.NewString(), Code: c, IsActive: true}
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return apperr.WrapInternal(err, "seed invite codes")
	}
	return nil
}

func (s *Store) IsInviteCodeActive(ctx context.Context, code string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&inviteCodeRow{}).
		Where("code = ? AND is_active = ?", code, true).
		Count(&n).Error
	if err != nil {
		return false, apperr.WrapInternal(err, "check invite code")
	}
	return n > 0, nil
}

// === Entry Methods ===

func (s *Store) CreateEntry(ctx context.Context, entry *domain.Entry) (*domain.Entry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row, err := entryToRow(entry)
	if err != nil {
		return nil, apperr.WrapValidation(err, "invalid media")
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.WrapConflict(err, "entry id already exists")
		}
		return nil, apperr.WrapInternal(err, "create entry")
	}
	return entry, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id string) (*domain.Entry, error) {
	var row entryRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "entry")
	}
	return entryFromRow(&row), nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *domain.Entry) error {
	row, err := entryToRow(entry)
	if err != nil {
		return apperr.WrapValidation(err, "invalid media")
	}
	// map, чтобы пустые значения тоже записывались
	res := s.db.WithContext(ctx).Model(&entryRow{}).Where("id = ?", entry.ID).Updates(map[string]any{
		"title":          row.Title,
		"domain":         row.Domain,
		"major":          row.Major,
		"waste_type":     row.WasteType,
		"waste_sub_type": row.WasteSubType,
		"cause":          row.Cause,
		"content":        row.Content,
		"visibility":     row.Visibility,
		"media":          row.Media,
		"tags":           row.Tags,
	})
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "update entry")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("entry not found")
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&commentRow{}).Select("id").Where("entry_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&commentLikeRow{}).Error; err != nil {
			return apperr.WrapInternal(err, "delete comment likes")
		}
		if err := tx.Where("entry_id = ?", id).Delete(&commentRow{}).Error; err != nil {
			return apperr.WrapInternal(err, "delete comments")
		}
		if err := tx.Where("entry_id = ?", id).Delete(&entryLikeRow{}).Error; err != nil {
			return apperr.WrapInternal(err, "delete entry likes")
		}
		res := tx.Where("id = ?", id).Delete(&entryRow{})
		if res.Error != nil {
			return apperr.WrapInternal(res.Error, "delete entry")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("entry not found")
		}
		return nil
	})
}

func applyEntryFilter(q *gorm.DB, filter storage.EntryFilter) *gorm.DB {
	if filter.ViewerID != "" {
		q = q.Where("(visibility = ? OR author_id = ?)", domain.VisibilityPublic, filter.ViewerID)
	} else {
		q = q.Where("visibility = ?", domain.VisibilityPublic)
	}
	if filter.AuthorID != "" {
		q = q.Where("author_id = ?", filter.AuthorID)
	}
	return q
}

func (s *Store) ListEntries(ctx context.Context, filter storage.EntryFilter, args storage.PaginationArgs) ([]*domain.Entry, error) {
	if args.Offset < 0 {
		return []*domain.Entry{}, nil
	}
	var rows []entryRow
	q := applyEntryFilter(s.db.WithContext(ctx).Model(&entryRow{}), filter).
		Order("created_at DESC").Order("id DESC").
		Offset(args.Offset)
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "list entries")
	}
	entries := make([]*domain.Entry, len(rows))
	for i := range rows {
		entries[i] = entryFromRow(&rows[i])
	}
	return entries, nil
}

func (s *Store) CountEntries(ctx context.Context, filter storage.EntryFilter) (int64, error) {
	var n int64
	if err := applyEntryFilter(s.db.WithContext(ctx).Model(&entryRow{}), filter).Count(&n).Error; err != nil {
		return 0, apperr.WrapInternal(err, "count entries")
	}
	return n, nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) (int, error) {
	var row entryRow
	res := s.db.WithContext(ctx).Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "views"}}}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return 0, apperr.WrapInternal(res.Error, "increment views")
	}
	if res.RowsAffected == 0 {
		return 0, apperr.NotFound("entry not found")
	}
	return row.Views, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	// Проверяем существование поста и корня ветки в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&entryRow{}).Where("id = ?", comment.EntryID).Count(&n).Error; err != nil {
			return apperr.WrapInternal(err, "check entry")
		}
		if n == 0 {
			return apperr.NotFound("entry not found")
		}

		if comment.Reply != nil {
			if err := tx.Model(&commentRow{}).
				Where("id = ? AND entry_id = ? AND parent_id IS NULL", comment.Reply.RootID, comment.EntryID).
				Count(&n).Error; err != nil {
				return apperr.WrapInternal(err, "check parent comment")
			}
			if n == 0 {
				return apperr.NotFound("parent comment not found")
			}
		}

		if err := tx.Create(commentToRow(comment)).Error; err != nil {
			return apperr.WrapInternal(err, "create comment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	var row commentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "comment")
	}
	return commentFromRow(&row), nil
}

func (s *Store) GetCommentsByEntryIDs(ctx context.Context, entryIDs []string) ([]*domain.Comment, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	var rows []commentRow
	err := s.db.WithContext(ctx).
		Where("entry_id IN ?", entryIDs).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "list comments")
	}
	comments := make([]*domain.Comment, len(rows))
	for i := range rows {
		comments[i] = commentFromRow(&rows[i])
	}
	return comments, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row commentRow
		if err := tx.Select("id", "parent_id").First(&row, "id = ?", id).Error; err != nil {
			return notFound(err, "comment")
		}
		if row.ParentID == nil {
			// корень уносит с собой все ответы
			replyIDs := tx.Model(&commentRow{}).Select("id").Where("parent_id = ?", id)
			if err := tx.Where("comment_id IN (?)", replyIDs).Delete(&commentLikeRow{}).Error; err != nil {
				return apperr.WrapInternal(err, "delete reply likes")
			}
			if err := tx.Where("parent_id = ?", id).Delete(&commentRow{}).Error; err != nil {
				return apperr.WrapInternal(err, "delete replies")
			}
		}
		if err := tx.Where("comment_id = ?", id).Delete(&commentLikeRow{}).Error; err != nil {
			return apperr.WrapInternal(err, "delete comment likes")
		}
		if err := tx.Where("id = ?", id).Delete(&commentRow{}).Error; err != nil {
			return apperr.WrapInternal(err, "delete comment")
		}
		return nil
	})
}

// === Like Methods ===

type likeTarget struct {
	table   string // таблица цели
	counter string // колонка счётчика
	column  string // колонка цели в таблице лайков
	row     func(targetID, userID string) any
	model   any
}

var likeTargets = map[domain.LikeKind]likeTarget{
	domain.LikeEntry: {
		table:   "entries",
		counter: "sympathy",
		column:  "entry_id",
		row: func(targetID, userID string) any {
			return &entryLikeRow{EntryID: targetID, UserID: userID}
		},
		model: &entryLikeRow{},
	},
	domain.LikeComment: {
		table:   "comments",
		counter: "likes",
		column:  "comment_id",
		row: func(targetID, userID string) any {
			return &commentLikeRow{CommentID: targetID, UserID: userID}
		},
		model: &commentLikeRow{},
	},
}

// ToggleLike блокирует строку цели, поэтому переключения одной цели идут по очереди.
// Счётчик меняется только если удаление или вставка реально затронули строку.
func (s *Store) ToggleLike(ctx context.Context, kind domain.LikeKind, targetID, userID string) (bool, error) {
	target, ok := likeTargets[kind]
	if !ok {
		return false, apperr.Validation("unknown like kind")
	}

	var liked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Table(target.table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", targetID).
			Pluck("id", &ids).Error; err != nil {
			return apperr.WrapInternal(err, "lock like target")
		}
		if len(ids) == 0 {
			return apperr.NotFound(string(kind) + " not found")
		}

		res := tx.Where(target.column+" = ? AND user_id = ?", targetID, userID).Delete(target.model)
		if res.Error != nil {
			return apperr.WrapInternal(res.Error, "delete like")
		}
		if res.RowsAffected > 0 {
			liked = false
			return tx.Table(target.table).Where("id = ?", targetID).
				UpdateColumn(target.counter, gorm.Expr("GREATEST("+target.counter+" - 1, 0)")).Error
		}

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(target.row(targetID, userID))
		if res.Error != nil {
			return apperr.WrapInternal(res.Error, "insert like")
		}
		liked = true
		if res.RowsAffected == 0 {
			// параллельная вставка уже поставила лайк
			return nil
		}
		return tx.Table(target.table).Where("id = ?", targetID).
			UpdateColumn(target.counter, gorm.Expr(target.counter+" + 1")).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

func (s *Store) GetLikers(ctx context.Context, kind domain.LikeKind, targetIDs []string) (map[string][]string, error) {
	target, ok := likeTargets[kind]
	if !ok {
		return nil, apperr.Validation("unknown like kind")
	}
	result := make(map[string][]string, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}

	var pairs []struct {
		TargetID string
		UserID   string
	}
	// Загружаем лайки всех переданных целей одним запросом
	err := s.db.WithContext(ctx).Model(target.model).
		Select(target.column+" AS target_id, user_id").
		Where(target.column+" IN ?", targetIDs).
		Order("created_at ASC").
		Scan(&pairs).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "load likers")
	}
	for _, p := range pairs {
		result[p.TargetID] = append(result[p.TargetID], p.UserID)
	}
	return result, nil
}

// === Follow Methods ===

func (s *Store) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	var following bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userRow{}).Where("id = ?", followingID).Count(&n).Error; err != nil {
			return apperr.WrapInternal(err, "check user")
		}
		if n == 0 {
			return apperr.NotFound("user not found")
		}
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&followRow{})
		if res.Error != nil {
			return apperr.WrapInternal(res.Error, "unfollow")
		}
		if res.RowsAffected > 0 {
			following = false
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&followRow{FollowerID: followerID, FollowingID: followingID}).Error; err != nil {
			return apperr.WrapInternal(err, "follow")
		}
		following = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&followRow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	if err != nil {
		return false, apperr.WrapInternal(err, "check follow")
	}
	return n > 0, nil
}

func (s *Store) countFollows(ctx context.Context, column, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&followRow{}).Where(column+" = ?", userID).Count(&n).Error; err != nil {
		return 0, apperr.WrapInternal(err, "count follows")
	}
	return n, nil
}

func (s *Store) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return s.countFollows(ctx, "following_id", userID)
}

func (s *Store) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return s.countFollows(ctx, "follower_id", userID)
}

func (s *Store) listFollowUsers(ctx context.Context, joinOn, whereColumn, userID string) ([]*domain.User, error) {
	var rows []userRow
	err := s.db.WithContext(ctx).Model(&userRow{}).
		Select("users.*").
		Joins("JOIN follows f ON f."+joinOn+" = users.id").
		Where("f."+whereColumn+" = ?", userID).
		Order("f.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "list follows")
	}
	return usersFromRows(rows), nil
}

func (s *Store) ListFollowers(ctx context.Context, userID string) ([]*domain.User, error) {
	return s.listFollowUsers(ctx, "follower_id", "following_id", userID)
}

func (s *Store) ListFollowing(ctx context.Context, userID string) ([]*domain.User, error) {
	return s.listFollowUsers(ctx, "following_id", "follower_id", userID)
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(notificationToRow(n)).Error; err != nil {
		return apperr.WrapInternal(err, "create notification")
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, args storage.PaginationArgs) ([]*domain.Notification, error) {
	if args.Offset < 0 {
		return []*domain.Notification{}, nil
	}
	var rows []notificationRow
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(args.Offset)
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "list notifications")
	}
	out := make([]*domain.Notification, len(rows))
	for i := range rows {
		out[i] = notificationFromRow(&rows[i])
	}
	return out, nil
}

func (s *Store) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&notificationRow{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, apperr.WrapInternal(err, "count notifications")
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return apperr.WrapInternal(res.Error, "mark notification read")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		UpdateColumn("is_read", true).Error
	if err != nil {
		return apperr.WrapInternal(err, "mark all notifications read")
	}
	return nil
}

// === Session Methods ===

func (s *Store) TouchSession(ctx context.Context, userID, ip string, at time.Time) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "last_ip"}),
	}).Create(&sessionRow{UserID: userID, LastSeen: at, LastIP: ip}).Error
	if err != nil {
		return apperr.WrapInternal(err, "touch session")
	}
	return nil
}

func (s *Store) ListOnlineUsers(ctx context.Context, since time.Time, limit int) ([]*domain.OnlineUser, error) {
	var rows []struct {
		ID       string
		Username string
		Email    string
		Role     string
		LastSeen time.Time
		LastIP   string
	}
	q := s.db.WithContext(ctx).Table("user_sessions AS s").
		Select("u.id, u.username, u.email, u.role, s.last_seen, s.last_ip").
		Joins("JOIN users u ON u.id = s.user_id").
		Where("s.last_seen > ?", since).
		Order("s.last_seen DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, apperr.WrapInternal(err, "list online users")
	}
	out := make([]*domain.OnlineUser, len(rows))
	for i, r := range rows {
		out[i] = &domain.OnlineUser{
			ID:       r.ID,
			Username: r.Username,
			Email:    r.Email,
			Role:     domain.Role(r.Role),
			LastSeen: r.LastSeen,
			LastIP:   r.LastIP,
		}
	}
	return out, nil
}
