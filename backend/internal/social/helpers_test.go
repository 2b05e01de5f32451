package social

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
)

var errInjected = errors.New("injected store failure")

// spyStore counts calls against the wrapped store and fails the ones a test
// selects with failWhen. after runs once a get or put has returned from the
// wrapped store, before the caller sees the result.
type spyStore struct {
	docstore.Store

	mu       sync.Mutex
	writes   int
	gets     map[string]int
	failWhen func(op, collection, id string) bool
	after    func(op, collection, id string)
}

func newSpyStore() *spyStore {
	return &spyStore{Store: docstore.NewMemoryStore(), gets: make(map[string]int)}
}

func (s *spyStore) check(op, collection, id string, write bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if write {
		s.writes++
	}
	if op == "get" {
		s.gets[collection+"/"+id]++
	}
	if s.failWhen != nil && s.failWhen(op, collection, id) {
		return errInjected
	}
	return nil
}

func (s *spyStore) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	if err := s.check("get", collection, id, false); err != nil {
		return nil, err
	}
	doc, err := s.Store.Get(ctx, collection, id)
	s.runAfter("get", collection, id)
	return doc, err
}

func (s *spyStore) runAfter(op, collection, id string) {
	s.mu.Lock()
	hook := s.after
	s.mu.Unlock()
	if hook != nil {
		hook(op, collection, id)
	}
}

func (s *spyStore) Update(ctx context.Context, collection, id string, ops ...docstore.FieldOp) error {
	if err := s.check("update", collection, id, true); err != nil {
		return err
	}
	return s.Store.Update(ctx, collection, id, ops...)
}

func (s *spyStore) Add(ctx context.Context, collection string, data docstore.Doc) (string, error) {
	if err := s.check("add", collection, "", true); err != nil {
		return "", err
	}
	return s.Store.Add(ctx, collection, data)
}

func (s *spyStore) Put(ctx context.Context, collection, id string, data docstore.Doc) error {
	if err := s.check("put", collection, id, true); err != nil {
		return err
	}
	err := s.Store.Put(ctx, collection, id, data)
	s.runAfter("put", collection, id)
	return err
}

func (s *spyStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.check("delete", collection, id, true); err != nil {
		return err
	}
	return s.Store.Delete(ctx, collection, id)
}

func (s *spyStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	if err := s.check("query", q.Collection, "", false); err != nil {
		return nil, err
	}
	return s.Store.Query(ctx, q)
}

func (s *spyStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *spyStore) Gets(collection, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[collection+"/"+id]
}

func (s *spyStore) FailWhen(fn func(op, collection, id string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWhen = fn
}

func (s *spyStore) After(fn func(op, collection, id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = fn
}

func (s *spyStore) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = 0
	s.gets = make(map[string]int)
}

func newTestEngine(t *testing.T) (*Engine, *spyStore) {
	t.Helper()
	store := newSpyStore()
	e := New(Options{
		Store:                          store,
		OwnerLookupConcurrency:         4,
		DedupeInteractionNotifications: true,
		CascadeOnPrivacyChange:         true,
	})
	return e, store
}

func putAccount(t *testing.T, store docstore.Store, a model.Account) {
	t.Helper()
	if a.Username == "" {
		a.Username = a.ID
	}
	if a.SearchKeys == nil {
		a.SearchKeys = model.UsernameSearchKeys(a.Username)
	}
	for _, list := range []*[]string{&a.Followers, &a.Following, &a.PendingFollowRequests, &a.FollowedStyles} {
		if *list == nil {
			*list = []string{}
		}
	}
	doc, err := docstore.Encode(a)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), constants.CollectionAccounts, a.ID, doc))
}

func putPost(t *testing.T, store docstore.Store, p model.Post) {
	t.Helper()
	if p.ImageURL == "" {
		p.ImageURL = "https://img.example/" + p.ID + ".jpg"
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	p.IndexKeys()
	doc, err := docstore.Encode(p)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), constants.CollectionPosts, p.ID, doc))
}

func putBookmark(t *testing.T, store docstore.Store, b model.Bookmark) {
	t.Helper()
	if b.ID == "" {
		b.ID = model.BookmarkID(b.UserID, b.PostID)
	}
	doc, err := docstore.Encode(b)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), constants.CollectionBookmarks, b.ID, doc))
}

func putBoard(t *testing.T, store docstore.Store, b model.InspoBoard) {
	t.Helper()
	b.PostCount = len(b.Posts)
	doc, err := docstore.Encode(b)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), constants.CollectionInspoBoards, b.ID, doc))
}

func getAccount(t *testing.T, store docstore.Store, id string) *model.Account {
	t.Helper()
	a, err := records{store: store}.account(context.Background(), id)
	require.NoError(t, err)
	return a
}

func getBoard(t *testing.T, store docstore.Store, id string) *model.InspoBoard {
	t.Helper()
	b, err := records{store: store}.board(context.Background(), id)
	require.NoError(t, err)
	return b
}

func bookmarkExists(t *testing.T, store docstore.Store, viewerID, postID string) bool {
	t.Helper()
	ok, err := records{store: store}.exists(context.Background(), constants.CollectionBookmarks, model.BookmarkID(viewerID, postID))
	require.NoError(t, err)
	return ok
}

func notificationsOf(t *testing.T, store docstore.Store, m Match) []model.Notification {
	t.Helper()
	found, err := queryAll[model.Notification](context.Background(), records{store: store}, docstore.Query{
		Collection: constants.CollectionNotifications,
		Filters:    m.filters(),
	})
	require.NoError(t, err)
	return found
}

func postIDs(posts []model.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}
