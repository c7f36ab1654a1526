package forum

import (
	"sort"

	"github.com/UkralStul/rubbhub/internal/domain"
)

// BuildThread раскладывает плоский список комментариев в двухуровневое дерево:
// корни по времени создания, под каждым его ответы по времени создания.
// Ответы, чей корень не найден, отбрасываются.
func BuildThread(comments []*domain.Comment, likers map[string][]string) []CommentView {
	ordered := make([]*domain.Comment, len(comments))
	copy(ordered, comments)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var roots []*domain.Comment
	replies := make(map[string][]*domain.Comment)
	for _, c := range ordered {
		if c.IsRoot() {
			roots = append(roots, c)
			continue
		}
		replies[c.Reply.RootID] = append(replies[c.Reply.RootID], c)
	}

	thread := make([]CommentView, 0, len(roots))
	for _, root := range roots {
		view := commentView(root, likers)
		for _, r := range replies[root.ID] {
			view.Replies = append(view.Replies, commentView(r, likers))
		}
		thread = append(thread, view)
	}
	return thread
}

func commentView(c *domain.Comment, likers map[string][]string) CommentView {
	v := CommentView{
		ID:        c.ID,
		Author:    c.AuthorName,
		Content:   c.Content,
		Timestamp: c.CreatedAt,
		Likes:     c.Likes,
		LikedBy:   nonNil(likers[c.ID]),
		Replies:   []CommentView{},
	}
	if c.Reply != nil {
		replyTo := c.Reply.ReplyTo
		v.ReplyTo = &replyTo
	}
	return v
}
