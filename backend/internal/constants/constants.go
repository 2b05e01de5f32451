package constants

// Collection names in the document store
const (
	CollectionAccounts      = "accounts"
	CollectionPosts         = "posts"
	CollectionBookmarks     = "bookmarks"
	CollectionInspoBoards   = "inspoBoards"
	CollectionNotifications = "notifications"
	CollectionStyles        = "styles"
	CollectionComments      = "comments"
)

// Notification kinds
const (
	NotificationFollow         = "follow"
	NotificationFollowRequest  = "follow_request"
	NotificationFollowAccepted = "follow_accepted"
	NotificationLike           = "like"
	NotificationComment        = "comment"
)

// Notification statuses
const (
	StatusPending  = "pending"
	StatusUnread   = "unread"
	StatusRead     = "read"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Store limits
const (
	// MaxInFilterValues mirrors the document store limit on "in" filters;
	// longer lists are queried in chunks.
	MaxInFilterValues = 30

	// MaxCommentLength caps comment text; notification excerpts are shorter.
	MaxCommentLength      = 2200
	NotificationTextLimit = 100

	// DefaultNotificationPage and MaxNotificationPage bound one page of the
	// notification list; larger limits are clamped.
	DefaultNotificationPage = 50
	MaxNotificationPage     = 200

	// MinUsernameLength is the shortest username accepted at signup.
	MinUsernameLength = 3
)

// Event subjects published for notification side effects
const (
	SubjectNotificationCreated = "notification.created"
	SubjectNotificationUpdated = "notification.updated"
	SubjectNotificationDeleted = "notification.deleted"
)
