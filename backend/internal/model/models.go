package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Account is a user's profile record and the owner of posts.
// Followers, Following and PendingFollowRequests are the relationship edge sets;
// B ∈ A.Following ⇔ A ∈ B.Followers is kept best-effort, never atomically.
type Account struct {
	ID                    string   `json:"id"`
	Username              string   `json:"username"`
	DisplayName           string   `json:"displayName,omitempty"`
	AvatarURL             string   `json:"avatarUrl,omitempty"`
	IsPrivate             bool     `json:"isPrivate"`
	Followers             []string `json:"followers"`
	Following             []string `json:"following"`
	PendingFollowRequests []string `json:"pendingFollowRequests"`
	FollowedStyles        []string `json:"followedStyles"`
	SearchKeys            []string `json:"searchKeys,omitempty"`
	CreatedAt             int64    `json:"createdAt"`
}

// HasFollower reports whether id is in the account's followers.
func (a *Account) HasFollower(id string) bool { return slices.Contains(a.Followers, id) }

// IsFollowing reports whether the account follows id.
func (a *Account) IsFollowing(id string) bool { return slices.Contains(a.Following, id) }

// HasPendingRequestFrom reports whether id has an unresolved follow request.
func (a *Account) HasPendingRequestFrom(id string) bool {
	return slices.Contains(a.PendingFollowRequests, id)
}

// Summary is the public card shown in user lists.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		IsPrivate:   a.IsPrivate,
	}
}

// AccountSummary is an entry of a user list. Locked is set when the
// viewer cannot see the account's posts.
type AccountSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsPrivate   bool   `json:"isPrivate"`
	Locked      bool   `json:"locked"`
}

// Tag is a product tag placed on a post image. X and Y are relative (0..1).
type Tag struct {
	Name  string  `json:"name"`
	Brand string  `json:"brand,omitempty"`
	URL   string  `json:"url,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Post is an outfit photo owned by exactly one account.
// LikeCount is denormalised and may drift from len(LikedBy).
type Post struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	ImageURL     string   `json:"imageUrl"`
	Caption      string   `json:"caption,omitempty"`
	LikedBy      []string `json:"likedBy"`
	LikeCount    int      `json:"likeCount"`
	CommentCount int      `json:"commentCount"`
	Tags         []Tag    `json:"tags"`
	Styles       []string `json:"styles"`
	TagKeys      []string `json:"tagKeys,omitempty"`
	StyleKeys    []string `json:"styleKeys,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
}

// IsLikedBy reports whether id is in LikedBy.
func (p *Post) IsLikedBy(id string) bool { return slices.Contains(p.LikedBy, id) }

// Bookmark is a per-viewer snapshot of a post. PostOwnerID may be empty on
// records written before it was denormalised.
type Bookmark struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	PostID      string `json:"postId"`
	PostOwnerID string `json:"postOwnerId,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Caption     string `json:"caption,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// BookmarkID is the document id of viewerID's bookmark of postID.
func BookmarkID(viewerID, postID string) string {
	return viewerID + "_" + postID
}

// InspoBoard is a named, ordered collection of posts owned by one viewer.
type InspoBoard struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Name      string   `json:"name"`
	Posts     []string `json:"posts"`
	PostCount int      `json:"postCount"`
	CreatedAt int64    `json:"createdAt"`
}

// Notification is created as a side effect of a graph or interaction action.
type Notification struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	PostID      string `json:"postId,omitempty"`
	Text        string `json:"text,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
}

// Style is a followable style keyed by its lowercased name.
type Style struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Followers []string `json:"followers"`
}

// Comment is a comment left on a post.
type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Key normalises a free-text name (style, tag, username) for lookups.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Millis converts t to the unix-millisecond timestamps stored on records.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Errors

type ErrInvalidRecord struct {
	Kind   string
	Field  string
	Reason string
}

func (e ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid %s: %s - %s", e.Kind, e.Field, e.Reason)
}
