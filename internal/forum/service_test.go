package forum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gdataloader "github.com/graph-gophers/dataloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/rubbhub/internal/dataloader"
	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
	"github.com/UkralStul/rubbhub/internal/storage"
	"github.com/UkralStul/rubbhub/internal/storage/inmemory"
)

// recordingSink запоминает все доставленные уведомления.
type recordingSink struct {
	mu   sync.Mutex
	got  []*domain.Notification
	fail bool
}

func (s *recordingSink) Publish(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

type testEnv struct {
	store *inmemory.Store
	svc   *Service
	sink  *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	store := inmemory.New()
	sink := &recordingSink{}
	return &testEnv{store: store, svc: NewService(store, NewFanout(store, sink)), sink: sink}
}

// addUser создает пользователя, id совпадает с username для читаемости тестов.
func (env *testEnv) addUser(t *testing.T, name string, role domain.Role) *domain.Identity {
	_, err := env.store.CreateUser(context.Background(), &domain.User{
		ID: name, Email: name + "@rubbhub.test", Username: name, Role: role,
	})
	require.NoError(t, err)
	return &domain.Identity{UserID: name, Role: role}
}

func entryInput(title string, vis domain.Visibility) EntryInput {
	return EntryInput{
		Title:      title,
		Domain:     "Chemistry",
		WasteType:  domain.WasteRecyclable,
		Visibility: vis,
		Content:    "failed again",
		Tags:       []string{" crystals ", ""},
	}
}

func (env *testEnv) notifications(t *testing.T, userID string) []*domain.Notification {
	list, err := env.store.ListNotifications(context.Background(), userID, storage.PaginationArgs{})
	require.NoError(t, err)
	return list
}

func TestCreateEntry_Validation(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.addUser(t, "u1", domain.RoleUser)
	ctx := context.Background()

	_, err := env.svc.CreateEntry(ctx, u1, EntryInput{Title: "  ", Visibility: "secret"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	fields := apperr.FieldsOf(err)
	assert.Len(t, fields, 4) // title, visibility, domain, wasteType

	_, err = env.svc.CreateEntry(ctx, nil, entryInput("t", domain.VisibilityPublic))
	assert.True(t, apperr.IsUnauthorized(err))

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("Burnt flask", domain.VisibilityPublic))
	require.NoError(t, err)
	assert.Regexp(t, `^RUB\.\d{4}\.[A-F0-9]{4}$`, id)

	e, err := env.store.GetEntryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"crystals"}, e.Tags)
	assert.Equal(t, "u1", e.AuthorName)
}

func TestCreateEntry_RetriesOnIDCollision(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.addUser(t, "u1", domain.RoleUser)
	ctx := context.Background()

	ids := []string{"RUB.2026.AAAA", "RUB.2026.AAAA", "RUB.2026.BBBB"}
	env.svc.newID = func(int) string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := env.svc.CreateEntry(ctx, u1, entryInput("one", domain.VisibilityPublic))
	require.NoError(t, err)
	second, err := env.svc.CreateEntry(ctx, u1, entryInput("two", domain.VisibilityPublic))
	require.NoError(t, err)
	assert.Equal(t, "RUB.2026.AAAA", first)
	assert.Equal(t, "RUB.2026.BBBB", second)
}

// P2 и сценарий B: ответ на ответ встаёт под корень.
func TestAddComment_ReplyRepointing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "U1", domain.RoleUser)
	u2 := env.addUser(t, "U2", domain.RoleUser)
	u3 := env.addUser(t, "U3", domain.RoleUser)

	e1, err := env.svc.CreateEntry(ctx, u1, entryInput("E1", domain.VisibilityPublic))
	require.NoError(t, err)

	c1, err := env.svc.AddComment(ctx, u1, e1, "root", "")
	require.NoError(t, err)
	r1, err := env.svc.AddComment(ctx, u2, e1, "reply", c1)
	require.NoError(t, err)
	r2, err := env.svc.AddComment(ctx, u3, e1, "reply to reply", r1)
	require.NoError(t, err)

	stored, err := env.store.GetCommentByID(ctx, r2)
	require.NoError(t, err)
	require.NotNil(t, stored.Reply)
	assert.Equal(t, c1, stored.Reply.RootID)
	assert.Equal(t, "U2", stored.Reply.ReplyTo)

	first, err := env.store.GetCommentByID(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, "U1", first.Reply.ReplyTo)

	view, err := env.svc.GetEntry(ctx, nil, e1)
	require.NoError(t, err)
	require.Len(t, view.Comments, 1)
	root := view.Comments[0]
	assert.Equal(t, c1, root.ID)
	assert.Nil(t, root.ReplyTo)
	require.Len(t, root.Replies, 2)
	assert.Equal(t, r1, root.Replies[0].ID)
	assert.Equal(t, r2, root.Replies[1].ID)
	for _, reply := range root.Replies {
		assert.Empty(t, reply.Replies)
	}
}

func TestAddComment_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	pub, err := env.svc.CreateEntry(ctx, u1, entryInput("pub", domain.VisibilityPublic))
	require.NoError(t, err)
	other, err := env.svc.CreateEntry(ctx, u1, entryInput("other", domain.VisibilityPublic))
	require.NoError(t, err)
	priv, err := env.svc.CreateEntry(ctx, u1, entryInput("priv", domain.VisibilityPrivate))
	require.NoError(t, err)

	_, err = env.svc.AddComment(ctx, u2, pub, "   ", "")
	assert.True(t, apperr.IsValidation(err))

	_, err = env.svc.AddComment(ctx, u2, priv, "peek", "")
	assert.True(t, apperr.IsNotFound(err))

	_, err = env.svc.AddComment(ctx, u2, pub, "orphan", "missing")
	assert.True(t, apperr.IsNotFound(err))

	foreign, err := env.svc.AddComment(ctx, u2, other, "elsewhere", "")
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, u2, pub, "cross-entry", foreign)
	assert.True(t, apperr.IsNotFound(err))
}

// P3 и P4: двойное переключение возвращает счётчик к исходному значению.
func TestToggleEntryLike_Idempotence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	liked, err := env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)
	assert.False(t, liked)

	e, err := env.store.GetEntryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Sympathy)
}

func TestToggleEntryLike_ConcurrentCountersStayConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 21; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ToggleEntryLike(ctx, u2, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	e, err := env.store.GetEntryByID(ctx, id)
	require.NoError(t, err)
	likers, err := env.store.GetLikers(ctx, domain.LikeEntry, []string{id})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, e.Sympathy, 0)
	assert.Equal(t, len(likers[id]), e.Sympathy)
	assert.Equal(t, 1, e.Sympathy) // нечётное число переключений
}

func TestToggleCommentLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	cid, err := env.svc.AddComment(ctx, u1, id, "hi", "")
	require.NoError(t, err)

	liked, err := env.svc.ToggleCommentLike(ctx, u2, cid)
	require.NoError(t, err)
	assert.True(t, liked)

	view, err := env.svc.GetEntry(ctx, u2, id)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Comments[0].Likes)
	assert.Equal(t, []string{"u2"}, view.Comments[0].LikedBy)

	_, err = env.svc.ToggleCommentLike(ctx, u2, "missing")
	assert.True(t, apperr.IsNotFound(err))

	// лайк комментария не порождает уведомлений
	assert.Len(t, env.notifications(t, "u1"), 0)
}

// P5: ни одно действие над собой не создаёт уведомление.
func TestNoSelfNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	_, err = env.svc.ToggleEntryLike(ctx, u1, id)
	require.NoError(t, err)
	root, err := env.svc.AddComment(ctx, u1, id, "own comment", "")
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, u1, id, "own reply", root)
	require.NoError(t, err)
	_, err = env.svc.ToggleFollow(ctx, u1, "u1")
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "INVALID_OPERATION", apperr.CodeOf(err))

	assert.Empty(t, env.notifications(t, "u1"))
	assert.Empty(t, env.sink.got)
}

func TestFanoutRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.addUser(t, "author", domain.RoleUser)
	alice := env.addUser(t, "alice", domain.RoleUser)
	bob := env.addUser(t, "bob", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, author, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	root, err := env.svc.AddComment(ctx, alice, id, "root", "")
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, bob, id, "reply", root)
	require.NoError(t, err)

	authorInbox := env.notifications(t, "author")
	require.Len(t, authorInbox, 1, "entry author is not told about replies")
	assert.Equal(t, domain.NotificationComment, authorInbox[0].Type)
	assert.Equal(t, "alice", authorInbox[0].ActorUsername)
	assert.Equal(t, id, *authorInbox[0].EntryID)

	aliceInbox := env.notifications(t, "alice")
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, domain.NotificationReply, aliceInbox[0].Type)
	assert.Equal(t, "bob", aliceInbox[0].ActorID)
	require.NotNil(t, aliceInbox[0].CommentID)

	following, err := env.svc.ToggleFollow(ctx, bob, "alice")
	require.NoError(t, err)
	assert.True(t, following)
	aliceInbox = env.notifications(t, "alice")
	require.Len(t, aliceInbox, 2)
	assert.Equal(t, domain.NotificationFollow, aliceInbox[0].Type)
	assert.Nil(t, aliceInbox[0].EntryID)

	// отписка не уведомляет
	following, err = env.svc.ToggleFollow(ctx, bob, "alice")
	require.NoError(t, err)
	assert.False(t, following)
	assert.Len(t, env.notifications(t, "alice"), 2)

	assert.Len(t, env.sink.got, 3)
}

// failingNotifications ломает запись уведомлений, основная мутация должна пройти.
type failingNotifications struct {
	*inmemory.Store
}

func (failingNotifications) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return errors.New("disk full")
}

func TestFanoutFailureDoesNotFailMutation(t *testing.T) {
	store := inmemory.New()
	broken := failingNotifications{store}
	svc := NewService(broken, NewFanout(broken))
	ctx := context.Background()

	for _, name := range []string{"u1", "u2"} {
		_, err := store.CreateUser(ctx, &domain.User{ID: name, Email: name + "@x.io", Username: name})
		require.NoError(t, err)
	}
	u1 := &domain.Identity{UserID: "u1"}
	u2 := &domain.Identity{UserID: "u2"}

	id, err := svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	liked, err := svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)
	assert.True(t, liked)

	_, err = svc.AddComment(ctx, u2, id, "still works", "")
	require.NoError(t, err)
}

func TestSinkFailureKeepsNotification(t *testing.T) {
	env := newTestEnv(t)
	env.sink.fail = true
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)

	assert.Len(t, env.notifications(t, "u1"), 1)
}

// Ответ пользователю, которого нет, молча не уведомляет никого.
func TestReplyToUnknownUsernameSkipsNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)

	ghostRoot := &domain.Comment{ID: "ghost-root", EntryID: id, AuthorID: "gone", AuthorName: "ghost", Content: "boo"}
	_, err = env.store.CreateComment(ctx, ghostRoot)
	require.NoError(t, err)

	_, err = env.svc.AddComment(ctx, u2, id, "hello?", ghostRoot.ID)
	require.NoError(t, err)

	assert.Empty(t, env.notifications(t, "u1"))
	assert.Empty(t, env.sink.got)
}

// P6: чужой приватный пост неотличим от несуществующего.
func TestGetEntry_PrivateIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "owner", domain.RoleUser)
	other := env.addUser(t, "other", domain.RoleUser)
	admin := env.addUser(t, "admin", domain.RoleAdmin)

	id, err := env.svc.CreateEntry(ctx, owner, entryInput("secret", domain.VisibilityPrivate))
	require.NoError(t, err)

	_, missingErr := env.svc.GetEntry(ctx, nil, "RUB.2026.0000")
	require.Error(t, missingErr)

	for _, viewer := range []*domain.Identity{nil, other, admin} {
		_, err := env.svc.GetEntry(ctx, viewer, id)
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
		assert.Equal(t, apperr.Message(missingErr), apperr.Message(err))
	}

	view, err := env.svc.GetEntry(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "secret", view.Title)

	// ни лайк, ни комментарий, ни удаление не раскрывают пост
	_, err = env.svc.ToggleEntryLike(ctx, other, id)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(env.svc.DeleteEntry(ctx, admin, id)))
}

// Сценарий A: просмотры считают только не-авторов.
func TestGetEntry_ViewCounting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "U1", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E1", domain.VisibilityPublic))
	require.NoError(t, err)

	view, err := env.svc.GetEntry(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Views)

	view, err = env.svc.GetEntry(ctx, nil, id)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Views)

	view, err = env.svc.GetEntry(ctx, u1, id)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Views)
}

func TestGetEntry_ConcurrentViewsAreDistinct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.addUser(t, "author", domain.RoleUser)
	id, err := env.svc.CreateEntry(ctx, author, entryInput("E1", domain.VisibilityPublic))
	require.NoError(t, err)

	const readers = 10
	got := make([]int, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := env.svc.GetEntry(ctx, nil, id)
			assert.NoError(t, err)
			if view != nil {
				got[i] = view.Views
			}
		}(i)
	}
	wg.Wait()

	// каждый читатель видит своё значение счётчика
	want := make([]int, readers)
	for i := range want {
		want[i] = i + 1
	}
	assert.ElementsMatch(t, want, got)
}

// P7: total не зависит от окна страницы.
func TestListEntries_PaginationTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	for i := 0; i < 7; i++ {
		_, err := env.svc.CreateEntry(ctx, u1, entryInput("pub", domain.VisibilityPublic))
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := env.svc.CreateEntry(ctx, u1, entryInput("priv", domain.VisibilityPrivate))
		require.NoError(t, err)
	}

	cases := []struct {
		name       string
		viewer     *domain.Identity
		page, size int
		wantLen    int
		wantTotal  int64
		wantPages  int
		wantPage   int
		wantSize   int
	}{
		{"anonymous first page", nil, 1, 3, 3, 7, 3, 1, 3},
		{"anonymous last page", nil, 3, 3, 1, 7, 3, 3, 3},
		{"beyond the end", nil, 10, 3, 0, 7, 3, 10, 3},
		{"other user sees public only", u2, 1, 100, 7, 7, 1, 1, 100},
		{"owner sees private too", u1, 1, 0, 9, 9, 1, 1, DefaultPageSize},
		{"page below one", u1, -2, 4, 4, 9, 3, 1, 4},
		{"size clamped", u1, 1, 500, 9, 9, 1, 1, MaxPageSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := env.svc.ListEntries(ctx, tc.viewer, tc.page, tc.size)
			require.NoError(t, err)
			assert.Len(t, res.Entries, tc.wantLen)
			assert.Equal(t, tc.wantTotal, res.Total)
			assert.Equal(t, tc.wantPages, res.TotalPages)
			assert.Equal(t, tc.wantPage, res.Page)
			assert.Equal(t, tc.wantSize, res.PageSize)
			assert.NotNil(t, res.Entries)
		})
	}
}

func TestListEntries_HugePageIsPastTheEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("pub", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)

	var res *EntryPage
	require.NotPanics(t, func() {
		res, err = env.svc.ListEntries(ctx, nil, 1<<62, 100)
	})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.NotNil(t, res.Entries)
	assert.EqualValues(t, 1, res.Total)

	var notes *NotificationPage
	require.NotPanics(t, func() {
		notes, err = env.svc.ListNotifications(ctx, u1, 1<<62, 100)
	})
	require.NoError(t, err)
	assert.Empty(t, notes.Notifications)
	assert.EqualValues(t, 1, notes.Total)
}

// countingLikers считает запросы лайкнувших по виду цели.
type countingLikers struct {
	*inmemory.Store
	mu    sync.Mutex
	calls map[domain.LikeKind]int
}

func (s *countingLikers) GetLikers(ctx context.Context, kind domain.LikeKind, ids []string) (map[string][]string, error) {
	s.mu.Lock()
	s.calls[kind]++
	s.mu.Unlock()
	return s.Store.GetLikers(ctx, kind, ids)
}

func TestListEntries_LoadersBatchLikers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	for i := 0; i < 3; i++ {
		id, err := env.svc.CreateEntry(ctx, u1, entryInput("pub", domain.VisibilityPublic))
		require.NoError(t, err)
		_, err = env.svc.ToggleEntryLike(ctx, u2, id)
		require.NoError(t, err)
		cid, err := env.svc.AddComment(ctx, u2, id, "same here", "")
		require.NoError(t, err)
		_, err = env.svc.ToggleCommentLike(ctx, u1, cid)
		require.NoError(t, err)
	}

	counting := &countingLikers{Store: env.store, calls: map[domain.LikeKind]int{}}
	svc := NewService(counting, NewFanout(counting))

	loaded := dataloader.WithLoaders(ctx, dataloader.NewLoaders(counting, gdataloader.WithWait(50*time.Millisecond)))
	res, err := svc.ListEntries(loaded, nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	for _, e := range res.Entries {
		assert.Equal(t, []string{"u2"}, e.LikedBy)
		require.Len(t, e.Comments, 1)
		assert.Equal(t, []string{"u1"}, e.Comments[0].LikedBy)
	}
	assert.Equal(t, 1, counting.calls[domain.LikeEntry])
	assert.Equal(t, 1, counting.calls[domain.LikeComment])

	// без лоадеров каждый пост и комментарий идёт в хранилище отдельно
	counting.calls = map[domain.LikeKind]int{}
	_, err = svc.ListEntries(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, counting.calls[domain.LikeEntry])
	assert.Equal(t, 3, counting.calls[domain.LikeComment])
}

func TestListEntries_CarriesLikesAndThreads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, u2, id, "nice", "")
	require.NoError(t, err)

	res, err := env.svc.ListEntries(ctx, nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, []string{"u2"}, res.Entries[0].LikedBy)
	assert.Equal(t, 1, res.Entries[0].Sympathy)
	require.Len(t, res.Entries[0].Comments, 1)
	assert.Equal(t, "nice", res.Entries[0].Comments[0].Content)
}

func TestUpdateAndDeleteEntry_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "owner", domain.RoleUser)
	other := env.addUser(t, "other", domain.RoleUser)
	admin := env.addUser(t, "admin", domain.RoleAdmin)

	id, err := env.svc.CreateEntry(ctx, owner, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, other, id, "c", "")
	require.NoError(t, err)

	err = env.svc.UpdateEntry(ctx, other, id, entryInput("hijack", domain.VisibilityPublic))
	assert.True(t, apperr.IsForbidden(err))
	assert.True(t, apperr.IsForbidden(env.svc.DeleteEntry(ctx, other, id)))

	require.NoError(t, env.svc.UpdateEntry(ctx, owner, id, entryInput("edited", domain.VisibilityPublic)))
	e, err := env.store.GetEntryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited", e.Title)

	require.NoError(t, env.svc.DeleteEntry(ctx, admin, id))
	_, err = env.svc.GetEntry(ctx, owner, id)
	assert.True(t, apperr.IsNotFound(err))
	comments, err := env.store.GetCommentsByEntryIDs(ctx, []string{id})
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestDeleteComment_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "owner", domain.RoleUser)
	other := env.addUser(t, "other", domain.RoleUser)
	admin := env.addUser(t, "admin", domain.RoleAdmin)

	id, err := env.svc.CreateEntry(ctx, owner, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	root, err := env.svc.AddComment(ctx, owner, id, "root", "")
	require.NoError(t, err)
	_, err = env.svc.AddComment(ctx, other, id, "reply", root)
	require.NoError(t, err)

	assert.True(t, apperr.IsForbidden(env.svc.DeleteComment(ctx, other, root)))
	require.NoError(t, env.svc.DeleteComment(ctx, admin, root))

	view, err := env.svc.GetEntry(ctx, owner, id)
	require.NoError(t, err)
	assert.Empty(t, view.Comments)
}

func TestDeleteComment_PrivateEntryIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "owner", domain.RoleUser)
	admin := env.addUser(t, "admin", domain.RoleAdmin)

	id, err := env.svc.CreateEntry(ctx, owner, entryInput("secret", domain.VisibilityPrivate))
	require.NoError(t, err)
	cid, err := env.svc.AddComment(ctx, owner, id, "note to self", "")
	require.NoError(t, err)

	assert.True(t, apperr.IsNotFound(env.svc.DeleteComment(ctx, admin, cid)))
	require.NoError(t, env.svc.DeleteComment(ctx, owner, cid))
}

// Сценарий C: лайк, повторный лайк и счётчик непрочитанных.
func TestScenario_LikeNotificationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "U1", domain.RoleUser)
	u2 := env.addUser(t, "U2", domain.RoleUser)

	id, err := env.svc.CreateEntry(ctx, u1, entryInput("E1", domain.VisibilityPublic))
	require.NoError(t, err)

	_, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)
	_, err = env.svc.ToggleEntryLike(ctx, u2, id)
	require.NoError(t, err)

	e, err := env.store.GetEntryByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Sympathy)

	unread, err := env.svc.UnreadCount(ctx, u1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	page, err := env.svc.ListNotifications(ctx, u1, 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, domain.NotificationLike, page.Notifications[0].Type)
	assert.Equal(t, DefaultNotificationPageSize, page.PageSize)

	// чужое уведомление не отмечается
	assert.True(t, apperr.IsNotFound(env.svc.MarkRead(ctx, u2, page.Notifications[0].ID)))

	require.NoError(t, env.svc.MarkRead(ctx, u1, page.Notifications[0].ID))
	unread, err = env.svc.UnreadCount(ctx, u1)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

// renamingStore отдаёт пользователя под новым именем, как будто его переименовали.
type renamingStore struct {
	*inmemory.Store
	renamed map[string]string
}

func (s renamingStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Store.GetUserByID(ctx, id)
	if err == nil {
		if name, ok := s.renamed[id]; ok {
			u.Username = name
		}
	}
	return u, err
}

// Имена авторов - снимки на момент записи и не следуют за переименованием.
func TestAuthorNameIsSnapshot(t *testing.T) {
	store := renamingStore{Store: inmemory.New(), renamed: map[string]string{}}
	svc := NewService(store, nil)
	ctx := context.Background()
	_, err := store.CreateUser(ctx, &domain.User{ID: "u1", Email: "u1@x.io", Username: "old"})
	require.NoError(t, err)
	u1 := &domain.Identity{UserID: "u1"}

	id, err := svc.CreateEntry(ctx, u1, entryInput("E", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, u1, id, "c", "")
	require.NoError(t, err)

	store.renamed["u1"] = "new"

	view, err := svc.GetEntry(ctx, u1, id)
	require.NoError(t, err)
	assert.Equal(t, "old", view.Author)
	assert.Equal(t, "old", view.Comments[0].Author)
}

func TestProfileAndFollows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := env.addUser(t, "u1", domain.RoleUser)
	u2 := env.addUser(t, "u2", domain.RoleUser)

	_, err := env.svc.CreateEntry(ctx, u1, entryInput("pub", domain.VisibilityPublic))
	require.NoError(t, err)
	_, err = env.svc.CreateEntry(ctx, u1, entryInput("priv", domain.VisibilityPrivate))
	require.NoError(t, err)
	_, err = env.svc.ToggleFollow(ctx, u2, "u1")
	require.NoError(t, err)

	p, err := env.svc.Profile(ctx, u2, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.EntriesCount)
	assert.EqualValues(t, 1, p.FollowersCount)
	assert.True(t, p.IsFollowing)

	p, err = env.svc.Profile(ctx, u1, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.EntriesCount)
	assert.False(t, p.IsFollowing)

	own, err := env.svc.UserEntries(ctx, u1, "u1")
	require.NoError(t, err)
	assert.Len(t, own, 2)
	public, err := env.svc.UserEntries(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Len(t, public, 1)

	followers, err := env.svc.Followers(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []UserSummary{{ID: "u2", Username: "u2"}}, followers)
	following, err := env.svc.Following(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, following, 1)

	_, err = env.svc.Profile(ctx, nil, "nobody")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSetBanned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", domain.RoleAdmin)
	env.addUser(t, "root", domain.RoleAdmin)
	env.addUser(t, "troll", domain.RoleUser)

	assert.True(t, apperr.IsValidation(env.svc.SetBanned(ctx, admin, "admin", true)))
	assert.True(t, apperr.IsValidation(env.svc.SetBanned(ctx, admin, "root", true)))
	assert.True(t, apperr.IsNotFound(env.svc.SetBanned(ctx, admin, "ghost", true)))

	require.NoError(t, env.svc.SetBanned(ctx, admin, "troll", true))
	u, err := env.store.GetUserByID(ctx, "troll")
	require.NoError(t, err)
	assert.True(t, u.IsBanned)
}

func TestOnlineUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", domain.RoleUser)
	env.addUser(t, "u2", domain.RoleUser)

	now := env.svc.now().UTC()
	require.NoError(t, env.store.TouchSession(ctx, "u1", "1.2.3.4", now))
	require.NoError(t, env.store.TouchSession(ctx, "u2", "5.6.7.8", now.Add(-10*minutes(1))))

	online, err := env.svc.OnlineUsers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "u1", online[0].Username)

	online, err = env.svc.OnlineUsers(ctx, 15)
	require.NoError(t, err)
	assert.Len(t, online, 2)
}
