package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type WasteType string

const (
	WasteRecyclable   WasteType = "recyclable"
	WasteUnrecyclable WasteType = "unrecyclable"
)

// Media - вложения поста: картинки или видео.
type Media struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// Entry представляет пост ("rubbish") в системе.
type Entry struct {
	ID           string
	Title        string
	AuthorID     string
	AuthorName   string // снимок имени на момент публикации
	Visibility   Visibility
	Domain       string
	Major        string
	WasteType    WasteType
	WasteSubType string
	Cause        string
	Content      string
	Media        *Media
	Sympathy     int
	Tags         []string
	Views        int
	CreatedAt    time.Time
}

// VisibleTo - пост виден публично или своему автору.
func (e *Entry) VisibleTo(viewerID string) bool {
	return e.Visibility == VisibilityPublic || (viewerID != "" && e.AuthorID == viewerID)
}

// ReplyRef задаёт положение ответа: он всегда висит прямо под корневым комментарием.
type ReplyRef struct {
	RootID  string
	ReplyTo string // имя автора комментария, на который отвечали
}

// Comment представляет комментарий к посту.
// Reply == nil у корневых комментариев.
type Comment struct {
	ID         string
	EntryID    string
	AuthorID   string
	AuthorName string
	Content    string
	Likes      int
	Reply      *ReplyRef
	CreatedAt  time.Time
}

func (c *Comment) IsRoot() bool { return c.Reply == nil }

// RootID возвращает id корня ветки, к которой относится комментарий.
func (c *Comment) RootID() string {
	if c.Reply == nil {
		return c.ID
	}
	return c.Reply.RootID
}

// ReplyTarget строит ссылку для ответа на target. Ответ на ответ
// переносится под корень, а replyTo указывает на автора target.
func ReplyTarget(target *Comment) *ReplyRef {
	return &ReplyRef{RootID: target.RootID(), ReplyTo: target.AuthorName}
}

type LikeKind string

const (
	LikeEntry   LikeKind = "entry"
	LikeComment LikeKind = "comment"
)

type NotificationType string

const (
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
)

// Notification - уведомление получателю о действии другого пользователя.
type Notification struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipientId"`
	Type          NotificationType `json:"type"`
	ActorID       string           `json:"actorId"`
	ActorUsername string           `json:"actorUsername"`
	EntryID       *string          `json:"entryId"`
	EntryTitle    *string          `json:"entryTitle"`
	CommentID     *string          `json:"commentId"`
	IsRead        bool             `json:"isRead"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// User объединяет учётную запись и публичный профиль.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username"`
	Title        string    `json:"title"`
	Bio          string    `json:"bio"`
	Role         Role      `json:"role"`
	IsBanned     bool      `json:"isBanned"`
	CreatedAt    time.Time `json:"joinedAt"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// OnlineUser - пользователь с отметкой последней активности.
type OnlineUser struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	LastSeen time.Time `json:"lastSeen"`
	LastIP   string    `json:"lastIp"`
}

// Identity - аутентифицированный пользователь запроса. nil означает гостя.
type Identity struct {
	UserID string
	Role   Role
}

func (i *Identity) IsAdmin() bool { return i != nil && i.Role == RoleAdmin }

// ID возвращает id пользователя или пустую строку для гостя.
func (i *Identity) ID() string {
	if i == nil {
		return ""
	}
	return i.UserID
}
