package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
)

type entryRecord struct {
	entry domain.Entry
	seq   int64 // порядок вставки, разрешает равные CreatedAt
}

type session struct {
	lastSeen time.Time
	lastIP   string
}

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu sync.RWMutex

	users       map[string]*domain.User
	userByEmail map[string]string
	userByName  map[string]string
	invites     map[string]bool

	entries map[string]*entryRecord
	seq     int64

	comments        map[string]*domain.Comment
	commentsByEntry map[string][]string

	// map[targetID][]userID в порядке лайков
	likes map[domain.LikeKind]map[string][]string

	follows map[string]map[string]time.Time // map[followerID]map[followingID]since

	notifications []*domain.Notification
	sessions      map[string]session
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:           make(map[string]*domain.User),
		userByEmail:     make(map[string]string),
		userByName:      make(map[string]string),
		invites:         make(map[string]bool),
		entries:         make(map[string]*entryRecord),
		comments:        make(map[string]*domain.Comment),
		commentsByEntry: make(map[string][]string),
		likes: map[domain.LikeKind]map[string][]string{
			domain.LikeEntry:   make(map[string][]string),
			domain.LikeComment: make(map[string][]string),
		},
		follows:  make(map[string]map[string]time.Time),
		sessions: make(map[string]session),
	}
}

var _ storage.Storage = (*Store)(nil)

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.userByEmail[email]; ok {
		return nil, apperr.Conflict("email already registered")
	}
	if _, ok := s.userByName[user.Username]; ok {
		return nil, apperr.Conflict("username already taken")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	s.users[u.ID] = &u
	s.userByEmail[email] = u.ID
	s.userByName[u.Username] = u.ID
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userLocked(id)
}

func (s *Store) userLocked(id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return s.userLocked(id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userByName[username]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return s.userLocked(id)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, title, bio *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if title != nil {
		u.Title = *title
	}
	if bio != nil {
		u.Bio = *bio
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) SetBanned(ctx context.Context, id string, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.IsBanned = banned
	return nil
}

// === Invite Methods ===

func (s *Store) EnsureInviteCodes(ctx context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range codes {
		if _, ok := s.invites[c]; !ok {
			s.invites[c] = true
		}
	}
	return nil
}

func (s *Store) IsInviteCodeActive(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invites[code], nil
}

// === Entry Methods ===

func cloneEntry(e *domain.Entry) *domain.Entry {
	cp := *e
	if e.Tags != nil {
		cp.Tags = append([]string(nil), e.Tags...)
	}
	if e.Media != nil {
		m := *e.Media
		m.Items = append([]string(nil), e.Media.Items...)
		cp.Media = &m
	}
	return &cp
}

func (s *Store) CreateEntry(ctx context.Context, entry *domain.Entry) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; ok {
		return nil, apperr.Conflict("entry id already exists")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.entries[entry.ID] = &entryRecord{entry: *cloneEntry(entry), seq: s.seq}
	return entry, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	if !ok {
		return nil, apperr.NotFound("entry not found")
	}
	return cloneEntry(&rec.entry), nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[entry.ID]
	if !ok {
		return apperr.NotFound("entry not found")
	}
	// счётчики и авторство правкой не меняются
	updated := cloneEntry(entry)
	updated.AuthorID = rec.entry.AuthorID
	updated.AuthorName = rec.entry.AuthorName
	updated.Sympathy = rec.entry.Sympathy
	updated.Views = rec.entry.Views
	updated.CreatedAt = rec.entry.CreatedAt
	rec.entry = *updated
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return apperr.NotFound("entry not found")
	}
	for _, cid := range s.commentsByEntry[id] {
		delete(s.comments, cid)
		delete(s.likes[domain.LikeComment], cid)
	}
	delete(s.commentsByEntry, id)
	delete(s.likes[domain.LikeEntry], id)
	delete(s.entries, id)
	return nil
}

func (s *Store) filteredLocked(filter storage.EntryFilter) []*entryRecord {
	recs := make([]*entryRecord, 0, len(s.entries))
	for _, rec := range s.entries {
		if filter.AuthorID != "" && rec.entry.AuthorID != filter.AuthorID {
			continue
		}
		if !rec.entry.VisibleTo(filter.ViewerID) {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

func (s *Store) ListEntries(ctx context.Context, filter storage.EntryFilter, args storage.PaginationArgs) ([]*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.filteredLocked(filter)
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.After(b.entry.CreatedAt)
		}
		return a.seq > b.seq
	})

	start := args.Offset
	if start < 0 || start >= len(recs) {
		return []*domain.Entry{}, nil
	}
	end := len(recs)
	if args.Limit > 0 && start+args.Limit < end {
		end = start + args.Limit
	}
	out := make([]*domain.Entry, 0, end-start)
	for _, rec := range recs[start:end] {
		out = append(out, cloneEntry(&rec.entry))
	}
	return out, nil
}

func (s *Store) CountEntries(ctx context.Context, filter storage.EntryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filteredLocked(filter))), nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return 0, apperr.NotFound("entry not found")
	}
	rec.entry.Views++
	return rec.entry.Views, nil
}

// === Comment Methods ===

func cloneComment(c *domain.Comment) *domain.Comment {
	cp := *c
	if c.Reply != nil {
		r := *c.Reply
		cp.Reply = &r
	}
	return &cp
}

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[comment.EntryID]; !ok {
		return nil, apperr.NotFound("entry not found")
	}
	if comment.Reply != nil {
		root, ok := s.comments[comment.Reply.RootID]
		if !ok || !root.IsRoot() || root.EntryID != comment.EntryID {
			return nil, apperr.NotFound("parent comment not found")
		}
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	s.comments[comment.ID] = cloneComment(comment)
	s.commentsByEntry[comment.EntryID] = append(s.commentsByEntry[comment.EntryID], comment.ID)
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, apperr.NotFound("comment not found")
	}
	return cloneComment(c), nil
}

func (s *Store) GetCommentsByEntryIDs(ctx context.Context, entryIDs []string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Comment
	for _, eid := range entryIDs {
		for _, cid := range s.commentsByEntry[eid] {
			if c, ok := s.comments[cid]; ok {
				out = append(out, cloneComment(c))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return apperr.NotFound("comment not found")
	}
	doomed := map[string]bool{id: true}
	if c.IsRoot() {
		for _, cid := range s.commentsByEntry[c.EntryID] {
			if other := s.comments[cid]; other != nil && !other.IsRoot() && other.Reply.RootID == id {
				doomed[cid] = true
			}
		}
	}
	kept := s.commentsByEntry[c.EntryID][:0]
	for _, cid := range s.commentsByEntry[c.EntryID] {
		if doomed[cid] {
			delete(s.comments, cid)
			delete(s.likes[domain.LikeComment], cid)
			continue
		}
		kept = append(kept, cid)
	}
	s.commentsByEntry[c.EntryID] = kept
	return nil
}

// === Like Methods ===

func (s *Store) ToggleLike(ctx context.Context, kind domain.LikeKind, targetID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, err := s.counterLocked(kind, targetID)
	if err != nil {
		return false, err
	}

	likers := s.likes[kind][targetID]
	for i, uid := range likers {
		if uid == userID {
			s.likes[kind][targetID] = append(likers[:i:i], likers[i+1:]...)
			if *counter > 0 {
				*counter--
			}
			return false, nil
		}
	}
	s.likes[kind][targetID] = append(likers, userID)
	*counter++
	return true, nil
}

func (s *Store) counterLocked(kind domain.LikeKind, targetID string) (*int, error) {
	switch kind {
	case domain.LikeEntry:
		rec, ok := s.entries[targetID]
		if !ok {
			return nil, apperr.NotFound("entry not found")
		}
		return &rec.entry.Sympathy, nil
	case domain.LikeComment:
		c, ok := s.comments[targetID]
		if !ok {
			return nil, apperr.NotFound("comment not found")
		}
		return &c.Likes, nil
	default:
		return nil, apperr.Validation("unknown like kind")
	}
}

func (s *Store) GetLikers(ctx context.Context, kind domain.LikeKind, targetIDs []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string][]string, len(targetIDs))
	for _, id := range targetIDs {
		if likers := s.likes[kind][id]; len(likers) > 0 {
			results[id] = append([]string(nil), likers...)
		}
	}
	return results, nil
}

// === Follow Methods ===

func (s *Store) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followingID]; !ok {
		return false, apperr.NotFound("user not found")
	}
	set := s.follows[followerID]
	if _, ok := set[followingID]; ok {
		delete(set, followingID)
		return false, nil
	}
	if set == nil {
		set = make(map[string]time.Time)
		s.follows[followerID] = set
	}
	set[followingID] = time.Now().UTC()
	return true, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[followerID][followingID]
	return ok, nil
}

func (s *Store) CountFollowers(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, set := range s.follows {
		if _, ok := set[userID]; ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountFollowing(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.follows[userID])), nil
}

type followEdge struct {
	userID string
	since  time.Time
}

func (s *Store) usersByEdgesLocked(edges []followEdge) []*domain.User {
	sort.Slice(edges, func(i, j int) bool { return edges[i].since.After(edges[j].since) })
	users := make([]*domain.User, 0, len(edges))
	for _, e := range edges {
		if u, err := s.userLocked(e.userID); err == nil {
			users = append(users, u)
		}
	}
	return users
}

func (s *Store) ListFollowers(ctx context.Context, userID string) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var edges []followEdge
	for follower, set := range s.follows {
		if since, ok := set[userID]; ok {
			edges = append(edges, followEdge{userID: follower, since: since})
		}
	}
	return s.usersByEdgesLocked(edges), nil
}

func (s *Store) ListFollowing(ctx context.Context, userID string) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var edges []followEdge
	for following, since := range s.follows[userID] {
		edges = append(edges, followEdge{userID: following, since: since})
	}
	return s.usersByEdgesLocked(edges), nil
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, args storage.PaginationArgs) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// новые в конце среза, выдаём в обратном порядке
	var mine []*domain.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if n := s.notifications[i]; n.RecipientID == userID {
			cp := *n
			mine = append(mine, &cp)
		}
	}
	if args.Offset < 0 || args.Offset >= len(mine) {
		return []*domain.Notification{}, nil
	}
	end := len(mine)
	if args.Limit > 0 && args.Offset+args.Limit < end {
		end = args.Offset + args.Limit
	}
	return mine[args.Offset:end], nil
}

func (s *Store) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, item := range s.notifications {
		if item.RecipientID == userID && (!unreadOnly || !item.IsRead) {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.RecipientID == userID {
			n.IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.RecipientID == userID {
			n.IsRead = true
		}
	}
	return nil
}

// === Session Methods ===

func (s *Store) TouchSession(ctx context.Context, userID, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = session{lastSeen: at, lastIP: ip}
	return nil
}

func (s *Store) ListOnlineUsers(ctx context.Context, since time.Time, limit int) ([]*domain.OnlineUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.OnlineUser
	for uid, sess := range s.sessions {
		if !sess.lastSeen.After(since) {
			continue
		}
		u, ok := s.users[uid]
		if !ok {
			continue
		}
		out = append(out, &domain.OnlineUser{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Role:     u.Role,
			LastSeen: sess.lastSeen,
			LastIP:   sess.lastIP,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
