package social

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	"lookbook/backend/pkg/logger"
)

// NewAccount is the signup input. An empty ID is generated.
type NewAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	IsPrivate   bool   `json:"isPrivate"`
}

// FeedPurger drops every cached feed.
type FeedPurger interface {
	Purge()
}

// AccountService creates accounts and flips their privacy.
type AccountService struct {
	records          records
	privacy          cache.PrivacyCache
	feeds            FeedPurger
	consistency      *ConsistencyMaintainer
	cascadeOnPrivate bool
	logger           *zap.Logger
	now              func() time.Time
}

// NewAccountService wires the account service. privacy and feeds may be nil.
func NewAccountService(store docstore.Store, privacy cache.PrivacyCache, feeds FeedPurger, consistency *ConsistencyMaintainer, cascadeOnPrivate bool, log *zap.Logger) *AccountService {
	return &AccountService{
		records:          records{store: store},
		privacy:          privacy,
		feeds:            feeds,
		consistency:      consistency,
		cascadeOnPrivate: cascadeOnPrivate,
		logger:           logger.OrDefault(log, "accounts"),
		now:              time.Now,
	}
}

// CreateAccount writes a new account with empty edge sets.
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccount) (*model.Account, error) {
	account := &model.Account{
		ID:                    in.ID,
		Username:              strings.TrimSpace(in.Username),
		DisplayName:           strings.TrimSpace(in.DisplayName),
		AvatarURL:             in.AvatarURL,
		IsPrivate:             in.IsPrivate,
		Followers:             []string{},
		Following:             []string{},
		PendingFollowRequests: []string{},
		FollowedStyles:        []string{},
		CreatedAt:             model.Millis(s.now()),
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if err := account.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	account.SearchKeys = model.UsernameSearchKeys(account.Username)

	taken, err := s.records.exists(ctx, constants.CollectionAccounts, account.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalid("This account already exists.")
	}
	same, err := s.records.query(ctx, docstore.Query{
		Collection: constants.CollectionAccounts,
		Filters:    []docstore.Filter{docstore.Eq("username", account.Username)},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(same) > 0 {
		return nil, invalid("That username is taken.")
	}

	if err := s.records.put(ctx, constants.CollectionAccounts, account.ID, account); err != nil {
		return nil, err
	}
	s.logger.Info("Account created",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username),
		zap.Bool("private", account.IsPrivate),
	)
	return account, nil
}

// GetAccount reads an account.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.records.account(ctx, id)
}

// SetPrivacy flips an account's visibility. Caches are always invalidated.
// Going private also removes saved copies of the account's posts held by
// non-followers, unless that cascade is disabled.
func (s *AccountService) SetPrivacy(ctx context.Context, id string, private bool) (*CascadeReport, error) {
	account, err := s.records.account(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.records.update(ctx, constants.CollectionAccounts, id, docstore.Set("isPrivate", private)); err != nil {
		return nil, err
	}
	if s.privacy != nil {
		s.privacy.MarkStale(ctx, id)
	}
	if s.feeds != nil {
		s.feeds.Purge()
	}

	s.logger.Info("Account privacy changed",
		zap.String("account_id", id),
		zap.Bool("was_private", account.IsPrivate),
		zap.Bool("private", private),
	)

	if !private || account.IsPrivate || !s.cascadeOnPrivate {
		return &CascadeReport{}, nil
	}
	return s.consistency.AfterPrivacyChange(ctx, id)
}
