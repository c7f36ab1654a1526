package forum

import (
	"time"

	"github.com/UkralStul/rubbhub/internal/domain"
)

// CommentView - комментарий в том виде, в каком его ждёт клиент.
// ReplyTo равен nil у корней, Replies у ответов всегда пустой.
type CommentView struct {
	ID        string        `json:"id"`
	Author    string        `json:"author"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Likes     int           `json:"likes"`
	LikedBy   []string      `json:"likedBy"`
	ReplyTo   *string       `json:"replyTo"`
	Replies   []CommentView `json:"replies"`
}

type EntryView struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Author       string            `json:"author"`
	Timestamp    time.Time         `json:"timestamp"`
	Visibility   domain.Visibility `json:"visibility"`
	Domain       string            `json:"domain"`
	Major        string            `json:"major"`
	WasteType    domain.WasteType  `json:"wasteType"`
	WasteSubType string            `json:"wasteSubType"`
	Cause        string            `json:"cause"`
	Content      string            `json:"content"`
	Media        *domain.Media     `json:"media"`
	Sympathy     int               `json:"sympathy"`
	LikedBy      []string          `json:"likedBy"`
	Tags         []string          `json:"tags"`
	Views        int               `json:"views"`
	Comments     []CommentView     `json:"comments"`
}

// EntryPage - страница ленты. Limit дублирует PageSize для старых клиентов.
type EntryPage struct {
	Entries    []EntryView `json:"entries"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

type NotificationPage struct {
	Notifications []*domain.Notification `json:"notifications"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"pageSize"`
}

// Profile - публичная карточка пользователя.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Title          string    `json:"title"`
	Bio            string    `json:"bio"`
	JoinedAt       time.Time `json:"joinedAt"`
	FollowingCount int64     `json:"followingCount"`
	FollowersCount int64     `json:"followersCount"`
	EntriesCount   int64     `json:"entriesCount"`
	IsFollowing    bool      `json:"isFollowing"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func newEntryView(e *domain.Entry, likedBy []string, comments []CommentView) EntryView {
	if comments == nil {
		comments = []CommentView{}
	}
	return EntryView{
		ID:           e.ID,
		Title:        e.Title,
		Author:       e.AuthorName,
		Timestamp:    e.CreatedAt,
		Visibility:   e.Visibility,
		Domain:       e.Domain,
		Major:        e.Major,
		WasteType:    e.WasteType,
		WasteSubType: e.WasteSubType,
		Cause:        e.Cause,
		Content:      e.Content,
		Media:        e.Media,
		Sympathy:     e.Sympathy,
		LikedBy:      nonNil(likedBy),
		Tags:         nonNil(e.Tags),
		Views:        e.Views,
		Comments:     comments,
	}
}

func summaries(users []*domain.User) []UserSummary {
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = UserSummary{ID: u.ID, Username: u.Username, Title: u.Title}
	}
	return out
}
