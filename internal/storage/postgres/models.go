package postgres

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/UkralStul/rubbhub/internal/domain"
)

// Строки таблиц. Доменные типы не несут gorm-тегов: у комментария
// положение в ветке задано вариантом, а в таблице это пара parent_id/reply_to.

type userRow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Title        string    `gorm:"type:varchar(64)"`
	Bio          string    `gorm:"type:varchar(512)"`
	Role         string    `gorm:"type:varchar(16);not null;default:user"`
	IsBanned     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}

func (userRow) TableName() string { return "users" }

type inviteCodeRow struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Code      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (inviteCodeRow) TableName() string { return "invite_codes" }

type entryRow struct {
	ID           string         `gorm:"type:varchar(32);primaryKey"`
	Title        string         `gorm:"type:varchar(255);not null"`
	AuthorID     string         `gorm:"type:varchar(36);not null;index"`
	AuthorName   string         `gorm:"type:varchar(64);not null"`
	Visibility   string         `gorm:"type:varchar(16);not null;index"`
	Domain       string         `gorm:"type:varchar(128)"`
	Major        string         `gorm:"type:varchar(128)"`
	WasteType    string         `gorm:"type:varchar(32)"`
	WasteSubType string         `gorm:"type:varchar(64)"`
	Cause        string         `gorm:"type:text"`
	Content      string         `gorm:"type:text"`
	Media        datatypes.JSON `gorm:"type:jsonb"`
	Sympathy     int            `gorm:"not null;default:0"`
	Tags         pq.StringArray `gorm:"type:text[]"`
	Views        int            `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index"`
}

func (entryRow) TableName() string { return "entries" }

type commentRow struct {
	ID         string    `gorm:"type:varchar(32);primaryKey"`
	EntryID    string    `gorm:"type:varchar(32);not null;index"`
	ParentID   *string   `gorm:"type:varchar(32);index"`
	AuthorID   string    `gorm:"type:varchar(36);not null"`
	AuthorName string    `gorm:"type:varchar(64);not null"`
	Content    string    `gorm:"type:varchar(2000);not null"`
	Likes      int       `gorm:"not null;default:0"`
	ReplyTo    *string   `gorm:"type:varchar(64)"`
	CreatedAt  time.Time `gorm:"not null;default:now();index"`
}

func (commentRow) TableName() string { return "comments" }

type entryLikeRow struct {
	EntryID   string    `gorm:"type:varchar(32);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (entryLikeRow) TableName() string { return "entry_likes" }

type commentLikeRow struct {
	CommentID string    `gorm:"type:varchar(32);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (commentLikeRow) TableName() string { return "comment_likes" }

type followRow struct {
	FollowerID  string    `gorm:"type:varchar(36);primaryKey"`
	FollowingID string    `gorm:"type:varchar(36);primaryKey;index"`
	CreatedAt   time.Time `gorm:"not null;default:now()"`
}

func (followRow) TableName() string { return "follows" }

type notificationRow struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	UserID       string    `gorm:"type:varchar(36);not null;index:idx_notifications_user_read"`
	Type         string    `gorm:"type:varchar(16);not null"`
	FromUserID   string    `gorm:"type:varchar(36);not null"`
	FromUsername string    `gorm:"type:varchar(64);not null"`
	EntryID      *string   `gorm:"type:varchar(32)"`
	EntryTitle   *string   `gorm:"type:varchar(255)"`
	CommentID    *string   `gorm:"type:varchar(32)"`
	IsRead       bool      `gorm:"not null;default:false;index:idx_notifications_user_read"`
	CreatedAt    time.Time `gorm:"not null;default:now();index"`
}

func (notificationRow) TableName() string { return "notifications" }

type sessionRow struct {
	UserID   string    `gorm:"type:varchar(36);primaryKey"`
	LastSeen time.Time `gorm:"not null;index"`
	LastIP   string    `gorm:"type:varchar(64)"`
}

func (sessionRow) TableName() string { return "user_sessions" }

// === Преобразования ===

func userFromRow(r *userRow) *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Username:     r.Username,
		Title:        r.Title,
		Bio:          r.Bio,
		Role:         domain.Role(r.Role),
		IsBanned:     r.IsBanned,
		CreatedAt:    r.CreatedAt,
	}
}

func userToRow(u *domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Username:     u.Username,
		Title:        u.Title,
		Bio:          u.Bio,
		Role:         string(u.Role),
		IsBanned:     u.IsBanned,
		CreatedAt:    u.CreatedAt,
	}
}

func entryToRow(e *domain.Entry) (*entryRow, error) {
	row := &entryRow{
		ID:           e.ID,
		Title:        e.Title,
		AuthorID:     e.AuthorID,
		AuthorName:   e.AuthorName,
		Visibility:   string(e.Visibility),
		Domain:       e.Domain,
		Major:        e.Major,
		WasteType:    string(e.WasteType),
		WasteSubType: e.WasteSubType,
		Cause:        e.Cause,
		Content:      e.Content,
		Sympathy:     e.Sympathy,
		Tags:         pq.StringArray(e.Tags),
		Views:        e.Views,
		CreatedAt:    e.CreatedAt,
	}
	if row.Tags == nil {
		row.Tags = pq.StringArray{}
	}
	if e.Media != nil {
		raw, err := json.Marshal(e.Media)
		if err != nil {
			return nil, err
		}
		row.Media = datatypes.JSON(raw)
	}
	return row, nil
}

func entryFromRow(r *entryRow) *domain.Entry {
	e := &domain.Entry{
		ID:           r.ID,
		Title:        r.Title,
		AuthorID:     r.AuthorID,
		AuthorName:   r.AuthorName,
		Visibility:   domain.Visibility(r.Visibility),
		Domain:       r.Domain,
		Major:        r.Major,
		WasteType:    domain.WasteType(r.WasteType),
		WasteSubType: r.WasteSubType,
		Cause:        r.Cause,
		Content:      r.Content,
		Sympathy:     r.Sympathy,
		Tags:         []string(r.Tags),
		Views:        r.Views,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.Media) > 0 {
		var m domain.Media
		// битый JSON в колонке отдаём как отсутствие вложений
		if err := json.Unmarshal(r.Media, &m); err == nil {
			e.Media = &m
		}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e
}

func commentToRow(c *domain.Comment) *commentRow {
	row := &commentRow{
		ID:         c.ID,
		EntryID:    c.EntryID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		Likes:      c.Likes,
		CreatedAt:  c.CreatedAt,
	}
	if c.Reply != nil {
		root, replyTo := c.Reply.RootID, c.Reply.ReplyTo
		row.ParentID = &root
		row.ReplyTo = &replyTo
	}
	return row
}

func commentFromRow(r *commentRow) *domain.Comment {
	c := &domain.Comment{
		ID:         r.ID,
		EntryID:    r.EntryID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Content:    r.Content,
		Likes:      r.Likes,
		CreatedAt:  r.CreatedAt,
	}
	if r.ParentID != nil {
		ref := &domain.ReplyRef{RootID: *r.ParentID}
		if r.ReplyTo != nil {
			ref.ReplyTo = *r.ReplyTo
		}
		c.Reply = ref
	}
	return c
}

func notificationToRow(n *domain.Notification) *notificationRow {
	return &notificationRow{
		ID:           n.ID,
		UserID:       n.RecipientID,
		Type:         string(n.Type),
		FromUserID:   n.ActorID,
		FromUsername: n.ActorUsername,
		EntryID:      n.EntryID,
		EntryTitle:   n.EntryTitle,
		CommentID:    n.CommentID,
		IsRead:       n.IsRead,
		CreatedAt:    n.CreatedAt,
	}
}

func notificationFromRow(r *notificationRow) *domain.Notification {
	return &domain.Notification{
		ID:            r.ID,
		RecipientID:   r.UserID,
		Type:          domain.NotificationType(r.Type),
		ActorID:       r.FromUserID,
		ActorUsername: r.FromUsername,
		EntryID:       r.EntryID,
		EntryTitle:    r.EntryTitle,
		CommentID:     r.CommentID,
		IsRead:        r.IsRead,
		CreatedAt:     r.CreatedAt,
	}
}
