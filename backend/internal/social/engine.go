// Package social is the social graph and content-visibility engine: follow
// edges and requests, the privacy gate, visibility filtering of every read
// surface, and cleanup of derived data when access is revoked.
//
// The document store offers no cross-record transactions. Every multi-record
// change is an ordered sequence of independent writes that may stop partway;
// see saga.go.
package social

import (
	"time"

	"go.uber.org/zap"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/events"
	"lookbook/backend/pkg/logger"
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Store        docstore.Store
	Publisher    events.Publisher   // nil publishes nothing
	PrivacyCache cache.PrivacyCache // nil always reads the store

	FeedCacheTTL           time.Duration
	FeedPageSize           int
	OwnerLookupConcurrency int

	DedupeInteractionNotifications bool
	CascadeOnPrivacyChange         bool

	Logger *zap.Logger
}

// Engine bundles the services sharing one store.
type Engine struct {
	Accounts      *AccountService
	Graph         *FollowGraph
	Gate          *Gate
	Visibility    *VisibilityFilter
	Consistency   *ConsistencyMaintainer
	Notifications *NotificationEmitter
	Interactions  *InteractionService
	Feeds         *FeedService
}

// New wires every service of the engine.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	if opts.FeedCacheTTL <= 0 {
		opts.FeedCacheTTL = 30 * time.Second
	}

	notifications := NewNotificationEmitter(opts.Store, opts.Publisher, log.Named("notifications"))
	consistency := NewConsistencyMaintainer(opts.Store, log.Named("consistency"))
	visibility := NewVisibilityFilter(opts.Store, opts.PrivacyCache, opts.OwnerLookupConcurrency, log.Named("visibility"))
	feeds := NewFeedService(opts.Store, visibility, opts.FeedCacheTTL, opts.FeedPageSize, log.Named("feed"))

	return &Engine{
		Accounts:      NewAccountService(opts.Store, opts.PrivacyCache, feeds, consistency, opts.CascadeOnPrivacyChange, log.Named("accounts")),
		Graph:         NewFollowGraph(opts.Store, notifications, consistency, feeds, log.Named("follow_graph")),
		Gate:          NewGate(opts.Store),
		Visibility:    visibility,
		Consistency:   consistency,
		Notifications: notifications,
		Interactions:  NewInteractionService(opts.Store, consistency, visibility, notifications, opts.DedupeInteractionNotifications, log.Named("interactions")),
		Feeds:         feeds,
	}
}
