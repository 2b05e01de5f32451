package social

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/model"
)

func TestCanView(t *testing.T) {
	private := &model.Account{ID: "b", IsPrivate: true, Followers: []string{"f"}}
	public := &model.Account{ID: "p"}

	assert.True(t, CanView("b", private), "owner")
	assert.True(t, CanView("f", private), "follower")
	assert.False(t, CanView("x", private), "stranger")
	assert.True(t, CanView("x", public))
	assert.False(t, CanView("x", nil))

	private.IsPrivate = false
	assert.True(t, CanView("x", private), "public again without edge changes")
}

func TestGate_FollowsPrivacyFlip(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	putAccount(t, store, model.Account{ID: "b", IsPrivate: true, Followers: []string{"f"}})

	for viewer, want := range map[string]bool{"b": true, "f": true, "x": false} {
		ok, err := e.Gate.CanView(ctx, viewer, "b")
		require.NoError(t, err)
		assert.Equal(t, want, ok, viewer)
	}

	_, err := e.Accounts.SetPrivacy(ctx, "b", false)
	require.NoError(t, err)
	for _, viewer := range []string{"b", "f", "x"} {
		ok, err := e.Gate.CanView(ctx, viewer, "b")
		require.NoError(t, err)
		assert.True(t, ok, viewer)
	}
	assert.Equal(t, []string{"f"}, getAccount(t, store, "b").Followers)
}

func TestFilter_MixedOwners(t *testing.T) {
	e, store := newTestEngine(t)
	putAccount(t, store, model.Account{ID: "viewer", Following: []string{"priv2"}})
	putAccount(t, store, model.Account{ID: "pub1"})
	putAccount(t, store, model.Account{ID: "priv1", IsPrivate: true})
	putAccount(t, store, model.Account{ID: "priv2", IsPrivate: true, Followers: []string{"viewer"}})

	batch := []model.Post{
		{ID: "1", UserID: "pub1"},
		{ID: "2", UserID: "priv1"},
		{ID: "3", UserID: "priv2"},
		{ID: "4", UserID: "viewer"},
		{ID: "5", UserID: "priv1"},
		{ID: "6", UserID: "pub1"},
	}

	got := e.Visibility.Filter(context.Background(), "viewer", SurfaceDiscovery, batch)
	assert.Equal(t, []string{"1", "3", "6"}, postIDs(got))

	got = e.Visibility.Filter(context.Background(), "viewer", SurfaceProfile, batch)
	assert.Equal(t, []string{"1", "3", "4", "6"}, postIDs(got))
}

func TestFilter_NeverLeaksRandomised(t *testing.T) {
	e, store := newTestEngine(t)
	rng := rand.New(rand.NewSource(7))

	accounts := make([]*model.Account, 12)
	for i := range accounts {
		accounts[i] = &model.Account{ID: fmt.Sprintf("u%02d", i), IsPrivate: rng.Intn(2) == 0}
	}
	for _, a := range accounts {
		for _, other := range accounts {
			if other != a && rng.Intn(3) == 0 {
				a.Followers = append(a.Followers, other.ID)
			}
		}
		putAccount(t, store, *a)
	}

	var batch []model.Post
	for i := 0; i < 80; i++ {
		batch = append(batch, model.Post{ID: fmt.Sprintf("p%03d", i), UserID: accounts[rng.Intn(len(accounts))].ID})
	}
	// Owners that do not exist are hidden.
	batch = append(batch, model.Post{ID: "orphan", UserID: "deleted"})

	byID := make(map[string]*model.Account)
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for _, viewer := range accounts {
		got := e.Visibility.Filter(context.Background(), viewer.ID, SurfaceDiscovery, batch)
		for _, p := range got {
			assert.NotEqual(t, viewer.ID, p.UserID)
			assert.True(t, CanView(viewer.ID, byID[p.UserID]), "%s saw %s", viewer.ID, p.ID)
		}
		want := 0
		for _, p := range batch {
			if p.UserID != viewer.ID && CanView(viewer.ID, byID[p.UserID]) {
				want++
			}
		}
		assert.Len(t, got, want, viewer.ID)
	}
}

func TestFilter_OneLookupPerOwner(t *testing.T) {
	e, store := newTestEngine(t)
	owners := []string{"o1", "o2", "o3"}
	for i, id := range owners {
		putAccount(t, store, model.Account{ID: id, IsPrivate: i%2 == 0, Followers: []string{"viewer"}})
	}
	putAccount(t, store, model.Account{ID: "viewer"})

	var batch []model.Post
	for i := 0; i < 30; i++ {
		batch = append(batch, model.Post{ID: fmt.Sprintf("p%02d", i), UserID: owners[i%len(owners)]})
	}
	batch = append(batch, model.Post{ID: "own", UserID: "viewer"})

	got := e.Visibility.Filter(context.Background(), "viewer", SurfaceDiscovery, batch)
	assert.Len(t, got, 30)
	assert.EqualValues(t, 3, e.Visibility.Lookups())
	for _, id := range owners {
		assert.Equal(t, 1, store.Gets(constants.CollectionAccounts, id), id)
	}
	assert.Equal(t, 0, store.Gets(constants.CollectionAccounts, "viewer"))
}

func TestFilter_PrivacyCacheSkipsPublicOwners(t *testing.T) {
	store := newSpyStore()
	f := NewVisibilityFilter(store, cache.NewMemoryPrivacyCache(time.Minute), 2, nil)
	putAccount(t, store, model.Account{ID: "pub"})
	putAccount(t, store, model.Account{ID: "priv", IsPrivate: true, Followers: []string{"viewer"}})
	batch := []model.Post{{ID: "1", UserID: "pub"}, {ID: "2", UserID: "priv"}}

	ctx := context.Background()
	assert.Len(t, f.Filter(ctx, "viewer", SurfaceDiscovery, batch), 2)
	assert.Len(t, f.Filter(ctx, "viewer", SurfaceDiscovery, batch), 2)

	assert.Equal(t, 1, store.Gets(constants.CollectionAccounts, "pub"))
	// Private owners still need their follower list.
	assert.Equal(t, 2, store.Gets(constants.CollectionAccounts, "priv"))
	assert.EqualValues(t, 3, f.Lookups())
}

func TestFilter_PrivacyFlipDuringLookupIsNotCached(t *testing.T) {
	store := newSpyStore()
	privacy := cache.NewMemoryPrivacyCache(time.Hour)
	e := New(Options{Store: store, PrivacyCache: privacy, OwnerLookupConcurrency: 2})
	putAccount(t, store, model.Account{ID: "owner"})
	putPost(t, store, model.Post{ID: "p1", UserID: "owner", CreatedAt: 1})
	ctx := context.Background()

	// The owner goes private after the filter has read the public record
	// but before it writes the flag back to the cache.
	var flipped atomic.Bool
	store.After(func(op, collection, id string) {
		if op == "get" && collection == constants.CollectionAccounts && id == "owner" && flipped.CompareAndSwap(false, true) {
			_, err := e.Accounts.SetPrivacy(ctx, "owner", true)
			assert.NoError(t, err)
		}
	})

	batch := []model.Post{{ID: "p1", UserID: "owner"}}
	assert.Len(t, e.Visibility.Filter(ctx, "stranger", SurfaceDiscovery, batch), 1)
	require.True(t, flipped.Load())

	_, ok := privacy.Get(ctx, "owner")
	assert.False(t, ok, "the pre-flip flag must not be cached")
	assert.Empty(t, e.Visibility.Filter(ctx, "stranger", SurfaceDiscovery, batch))
}

func TestFilter_FailsClosed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newSpyStore()
	f := NewVisibilityFilter(store, nil, 2, zap.New(core))
	putAccount(t, store, model.Account{ID: "pub"})
	putAccount(t, store, model.Account{ID: "flaky"})
	store.FailWhen(func(op, collection, id string) bool { return op == "get" && id == "flaky" })

	got := f.Filter(context.Background(), "viewer", SurfaceDiscovery, []model.Post{
		{ID: "1", UserID: "pub"},
		{ID: "2", UserID: "flaky"},
		{ID: "3", UserID: "flaky"},
	})
	assert.Equal(t, []string{"1"}, postIDs(got))

	entries := logs.FilterMessage("Owner lookup failed, hiding content").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "flaky", entries[0].ContextMap()["owner_id"])
}

func TestFilterGrouped_DropsEmptyGroups(t *testing.T) {
	e, store := newTestEngine(t)
	putAccount(t, store, model.Account{ID: "viewer"})
	putAccount(t, store, model.Account{ID: "pub"})
	putAccount(t, store, model.Account{ID: "priv", IsPrivate: true})

	groups := []PostGroup{
		{Key: "denim", Name: "Denim", PublicPostCount: 2, Posts: []model.Post{{ID: "1", UserID: "priv"}, {ID: "2", UserID: "priv"}}},
		{Key: "linen", Name: "Linen", PublicPostCount: 3, Posts: []model.Post{{ID: "3", UserID: "priv"}, {ID: "4", UserID: "pub"}, {ID: "5", UserID: "viewer"}}},
	}
	got := e.Visibility.FilterGrouped(context.Background(), "viewer", groups)
	require.Len(t, got, 1)
	assert.Equal(t, "linen", got[0].Key)
	assert.Equal(t, []string{"4"}, postIDs(got[0].Posts))
	assert.Equal(t, 1, got[0].PublicPostCount)
	assert.EqualValues(t, 2, e.Visibility.Lookups())
}

func TestFilterAccounts(t *testing.T) {
	e, _ := newTestEngine(t)
	accounts := []model.Account{
		{ID: "viewer", Username: "viewer"},
		{ID: "pub", Username: "pub"},
		{ID: "priv", Username: "priv", IsPrivate: true},
		{ID: "friend", Username: "friend", IsPrivate: true, Followers: []string{"viewer"}},
	}

	got := e.Visibility.FilterAccounts(context.Background(), "viewer", SurfaceDiscovery, accounts)
	require.Len(t, got, 3)
	locked := make(map[string]bool)
	for _, s := range got {
		locked[s.ID] = s.Locked
	}
	assert.Equal(t, map[string]bool{"pub": false, "priv": true, "friend": false}, locked)

	got = e.Visibility.FilterAccounts(context.Background(), "viewer", SurfaceProfile, accounts)
	assert.Len(t, got, 4)
}

func TestFilterSlice_Bookmarks(t *testing.T) {
	e, store := newTestEngine(t)
	putAccount(t, store, model.Account{ID: "priv", IsPrivate: true})
	putAccount(t, store, model.Account{ID: "pub"})

	v := e.Visibility.NewRequest("viewer")
	got := FilterSlice(context.Background(), v, SurfaceProfile, []model.Bookmark{
		{ID: "a", PostOwnerID: "priv"},
		{ID: "b", PostOwnerID: "pub"},
	}, func(b model.Bookmark) string { return b.PostOwnerID })
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	assert.True(t, v.CanSee(context.Background(), "pub"))
	assert.EqualValues(t, 2, e.Visibility.Lookups(), "verdicts are memoised per request")
}
