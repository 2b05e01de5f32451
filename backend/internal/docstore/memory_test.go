package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "accounts", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PutGetCarriesID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "accounts", "alice", Doc{"username": "alice", "followers": []string{}}))

	doc, err := s.Get(ctx, "accounts", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.ID())
	assert.Equal(t, "alice", doc["username"])
	assert.Equal(t, []any{}, doc["followers"])
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "accounts", "alice", Doc{"followers": []string{"bob"}}))

	doc, err := s.Get(ctx, "accounts", "alice")
	require.NoError(t, err)
	doc["followers"] = []any{"mallory"}

	again, err := s.Get(ctx, "accounts", "alice")
	require.NoError(t, err)
	assert.Equal(t, []any{"bob"}, again["followers"])
}

func TestMemoryStore_UpdateOps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "posts", "p1", Doc{"likedBy": []string{"a"}, "likeCount": 1}))

	require.NoError(t, s.Update(ctx, "posts", "p1",
		ArrayUnion("likedBy", "a", "b"),
		Increment("likeCount", 1),
		Set("caption", "fit check"),
	))

	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, doc["likedBy"])
	assert.Equal(t, float64(2), doc["likeCount"])
	assert.Equal(t, "fit check", doc["caption"])

	require.NoError(t, s.Update(ctx, "posts", "p1", ArrayRemove("likedBy", "a", "zzz"), Increment("likeCount", -1)))
	doc, err = s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, doc["likedBy"])
	assert.Equal(t, float64(1), doc["likeCount"])
}

func TestMemoryStore_UnionCreatesMissingField(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "styles", "y2k", Doc{"name": "Y2K"}))

	require.NoError(t, s.Update(ctx, "styles", "y2k", ArrayUnion("followers", "alice")))

	doc, err := s.Get(ctx, "styles", "y2k")
	require.NoError(t, err)
	assert.Equal(t, []any{"alice"}, doc["followers"])
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "accounts", "ghost", Set("isPrivate", true))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteMissingIsNotAnError(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Delete(context.Background(), "bookmarks", "nope"))
}

func TestMemoryStore_AddGeneratesID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Add(ctx, "notifications", Doc{"type": "follow"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := s.Get(ctx, "notifications", id)
	require.NoError(t, err)
	assert.Equal(t, "follow", doc["type"])
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "posts", "p1", Doc{"userId": "a", "styleKeys": []string{"y2k"}, "createdAt": 10}))
	require.NoError(t, s.Put(ctx, "posts", "p2", Doc{"userId": "b", "styleKeys": []string{"y2k", "goth"}, "createdAt": 30}))
	require.NoError(t, s.Put(ctx, "posts", "p3", Doc{"userId": "c", "styleKeys": []string{"goth"}, "createdAt": 20}))

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{
			name: "equality",
			q:    Query{Collection: "posts", Filters: []Filter{Eq("userId", "b")}},
			want: []string{"p2"},
		},
		{
			name: "array contains",
			q:    Query{Collection: "posts", Filters: []Filter{Contains("styleKeys", "goth")}},
			want: []string{"p2", "p3"},
		},
		{
			name: "in",
			q:    Query{Collection: "posts", Filters: []Filter{In("userId", []string{"a", "c"})}},
			want: []string{"p1", "p3"},
		},
		{
			name: "id in",
			q:    Query{Collection: "posts", Filters: []Filter{In(IDField, []string{"p3"})}},
			want: []string{"p3"},
		},
		{
			name: "combined filters",
			q:    Query{Collection: "posts", Filters: []Filter{Contains("styleKeys", "y2k"), Eq("userId", "a")}},
			want: []string{"p1"},
		},
		{
			name: "ordered with limit",
			q:    Query{Collection: "posts", OrderBy: &Order{Field: "createdAt", Desc: true}, Limit: 2},
			want: []string{"p2", "p3"},
		},
		{
			name: "unknown collection",
			q:    Query{Collection: "nothing"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, tt.q)
			require.NoError(t, err)
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Put(ctx, "accounts", "a", Doc{}), context.Canceled)
}

type record struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Followers []string `json:"followers"`
	Count     int      `json:"count"`
}

func TestEncodeDecode(t *testing.T) {
	doc, err := Encode(record{ID: "x", Name: "Y2K", Followers: []string{"a"}, Count: 2})
	require.NoError(t, err)
	_, hasID := doc[IDField]
	assert.False(t, hasID)

	doc[IDField] = "x"
	var out record
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, record{ID: "x", Name: "Y2K", Followers: []string{"a"}, Count: 2}, out)

	all, err := DecodeAll[record]([]Doc{doc})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
