package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/social"
	apperrors "lookbook/backend/pkg/errors"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	engine *social.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := social.New(social.Options{Store: docstore.NewMemoryStore(), CascadeOnPrivacyChange: true})
	return &testServer{t: t, router: NewRouter(engine, zap.NewNop(), false), engine: engine}
}

func (s *testServer) do(method, path, viewer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if viewer != "" {
		req.Header.Set(ViewerHeader, viewer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *testServer) signup(id string, private bool) {
	s.t.Helper()
	w, _ := s.do(http.MethodPost, "/api/accounts", "", gin.H{"id": id, "username": id, "isPrivate": private})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, "/api/feed", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", ViewerHeader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequiresViewer(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/api/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFollowRequestFlow(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice", false)
	s.signup("bobby", true)

	w, body := s.do(http.MethodPost, "/api/follow/bobby", "alice", gin.H{"state": "none"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "requested", body["state"])
	assert.Equal(t, false, body["isFollowing"])
	assert.Equal(t, true, body["hasRequestedFollow"])
	assert.Equal(t, "requested", body["action"])

	w, body = s.do(http.MethodGet, "/api/follow/bobby", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Requested", body["label"].(map[string]any)["text"])

	w, _ = s.do(http.MethodPost, "/api/requests/alice/accept", "bobby", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(http.MethodGet, "/api/follow/alice", "bobby", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Follow Back", body["label"].(map[string]any)["text"])

	w, body = s.do(http.MethodDelete, "/api/follow/bobby", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", body["state"])
	assert.Equal(t, "unfollowed", body["action"])

	// Accepting a request that no longer exists conflicts.
	w, _ = s.do(http.MethodPost, "/api/requests/alice/accept", "bobby", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTransition_BadInput(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice", false)

	w, _ := s.do(http.MethodPost, "/api/follow/alice", "alice", gin.H{"state": "none"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/api/follow/bobby", "alice", gin.H{"state": "blocked"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/follow/bobby", "alice", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := s.do(http.MethodPost, "/api/follow/ghost", "alice", gin.H{"state": "none"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "This content is no longer available.", body["error"])
}

func TestPostsAndPrivacy(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice", false)
	s.signup("carol", false)

	w, body := s.do(http.MethodPost, "/api/posts", "carol", gin.H{"imageUrl": "https://img.example/1.jpg", "styles": []string{"Minimal"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	postID := body["id"].(string)

	w, _ = s.do(http.MethodPost, "/api/posts/"+postID+"/bookmark", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(http.MethodGet, "/api/explore", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 1)

	w, _ = s.do(http.MethodPut, "/api/accounts/carol/privacy", "alice", gin.H{"isPrivate": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(http.MethodPut, "/api/accounts/carol/privacy", "carol", gin.H{"isPrivate": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, body["cleanup"].(map[string]any)["bookmarksRemoved"], 1)

	w, body = s.do(http.MethodGet, "/api/posts/"+postID, "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "This account is private. Follow them to see their posts.", body["error"])
	assert.Equal(t, false, body["retryable"])

	w, body = s.do(http.MethodGet, "/api/explore", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["posts"])

	w, body = s.do(http.MethodGet, "/api/search/users?q=car", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, true, users[0].(map[string]any)["locked"])

	w, _ = s.do(http.MethodGet, "/api/profiles/carol/posts", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBoardsAndComments(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice", false)
	s.signup("carol", false)
	_, body := s.do(http.MethodPost, "/api/posts", "carol", gin.H{"imageUrl": "https://img.example/1.jpg"})
	postID := body["id"].(string)

	w, body := s.do(http.MethodPost, "/api/boards", "alice", gin.H{"name": "Summer"})
	require.Equal(t, http.StatusCreated, w.Code)
	boardID := body["id"].(string)

	w, _ = s.do(http.MethodPost, "/api/boards/"+boardID+"/posts/"+postID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(http.MethodPost, "/api/boards/"+boardID+"/posts/"+postID, "carol", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPost, "/api/posts/"+postID+"/comments", "alice", gin.H{"text": "love it"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPost, "/api/posts/"+postID+"/like", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(http.MethodGet, "/api/posts/"+postID+"/state", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, true, body["bookmarked"])
	assert.EqualValues(t, 1, body["commentCount"])

	w, body = s.do(http.MethodGet, "/api/notifications", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["notifications"], 2)

	w, _ = s.do(http.MethodGet, "/api/notifications?limit=0", "carol", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(http.MethodGet, "/api/notifications?limit=1000000", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["notifications"], 2)
}

func TestNotificationLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", constants.DefaultNotificationPage, false},
		{"10", 10, false},
		{"1000000", constants.MaxNotificationPage, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := notificationLimit(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", apperrors.NewPrecondition("invalid input", "bad", social.ErrInvalidInput), http.StatusBadRequest},
		{"private", apperrors.NewPrecondition("private", "private", social.ErrPrivateContent), http.StatusForbidden},
		{"self follow", apperrors.NewPrecondition("self", "self", social.ErrSelfFollow), http.StatusConflict},
		{"not found", apperrors.NewAccountNotFound("x"), http.StatusNotFound},
		{"cancelled", apperrors.NewContextCancelled("get", context.Canceled), http.StatusRequestTimeout},
		{"partial", apperrors.NewPartialFailure("follow", "notify", []string{"add_following"}, apperrors.NewContextCancelled("x", context.Canceled)), http.StatusInternalServerError},
		{"store", apperrors.NewStoreOperationFailed("get", "posts", "p", errors.New("down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
