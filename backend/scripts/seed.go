package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/docstore/mongostore"
	"lookbook/backend/internal/docstore/neo4jstore"
	"lookbook/backend/internal/model"
	"lookbook/backend/internal/social"
	"lookbook/backend/pkg/config"
	apperrors "lookbook/backend/pkg/errors"
	"lookbook/backend/pkg/logger"
)

type seedAccount struct {
	id, username, displayName string
	private                   bool
}

type seedPost struct {
	owner   string
	caption string
	styles  []string
	tags    []model.Tag
}

var accounts = []seedAccount{
	{"maya", "maya", "Maya Chen", false},
	{"jonas", "jonas", "Jonas Berg", true},
	{"ines", "ines", "Ines Duarte", false},
	{"theo", "theo", "Theo Laurent", true},
}

var posts = []seedPost{
	{"maya", "Linen on linen", []string{"Minimal", "Summer"}, []model.Tag{{Name: "Linen shirt", Brand: "Arket", X: 0.4, Y: 0.3}}},
	{"maya", "Rain day layers", []string{"Streetwear"}, []model.Tag{{Name: "Shell jacket", Brand: "Arcteryx", X: 0.5, Y: 0.4}}},
	{"jonas", "Thrifted tweed", []string{"Vintage"}, []model.Tag{{Name: "Tweed blazer", X: 0.5, Y: 0.35}}},
	{"ines", "Market run", []string{"Minimal", "Streetwear"}, []model.Tag{{Name: "Canvas tote", Brand: "Baggu", X: 0.6, Y: 0.7}}},
	{"theo", "Monochrome", []string{"Minimal"}, nil},
}

func main() {
	force := flag.Bool("force", false, "Seed even if the demo accounts already exist")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := connect(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect document store", zap.Error(err))
	}
	defer closeStore()

	engine := social.New(social.Options{
		Store:                          store,
		DedupeInteractionNotifications: true,
		CascadeOnPrivacyChange:         true,
		Logger:                         log,
	})

	if _, err := engine.Accounts.GetAccount(ctx, accounts[0].id); err == nil && !*force {
		log.Info("Demo accounts already exist, skipping (use -force to reseed)")
		os.Exit(0)
	} else if err != nil && !apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		log.Fatal("Failed to check existing accounts", zap.Error(err))
	}

	if err := seed(ctx, engine, log); err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}
	log.Info("Database seeding completed successfully")
}

func connect(ctx context.Context, cfg *config.Config) (docstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	case config.BackendNeo4j:
		s, err := neo4jstore.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("seeding needs a persistent backend, got %q", cfg.StoreBackend)
}

func seed(ctx context.Context, engine *social.Engine, log *zap.Logger) error {
	for _, a := range accounts {
		if _, err := engine.Accounts.CreateAccount(ctx, social.NewAccount{
			ID:          a.id,
			Username:    a.username,
			DisplayName: a.displayName,
			AvatarURL:   fmt.Sprintf("https://avatars.lookbook.dev/%s.jpg", a.id),
			IsPrivate:   a.private,
		}); err != nil {
			return fmt.Errorf("create account %s: %w", a.id, err)
		}
		log.Info("Created account", zap.String("account_id", a.id), zap.Bool("private", a.private))
	}

	postIDs := make(map[string][]string)
	for i, p := range posts {
		post, err := engine.Interactions.CreatePost(ctx, p.owner, social.NewPost{
			ImageURL: fmt.Sprintf("https://images.lookbook.dev/seed/%d.jpg", i+1),
			Caption:  p.caption,
			Tags:     p.tags,
			Styles:   p.styles,
		})
		if err != nil {
			return fmt.Errorf("create post for %s: %w", p.owner, err)
		}
		postIDs[p.owner] = append(postIDs[p.owner], post.ID)
	}

	// maya follows everyone: ines directly, jonas and theo by request.
	for _, target := range []string{"ines", "jonas", "theo"} {
		if _, err := engine.Graph.Transition(ctx, "maya", target, model.StateNone); err != nil {
			return fmt.Errorf("maya -> %s: %w", target, err)
		}
	}
	if err := engine.Graph.Accept(ctx, "jonas", "maya"); err != nil {
		return fmt.Errorf("jonas accepts maya: %w", err)
	}
	// theo's request stays pending.
	if _, err := engine.Graph.Transition(ctx, "ines", "maya", model.StateNone); err != nil {
		return fmt.Errorf("ines -> maya: %w", err)
	}

	for _, style := range []string{"Minimal", "Vintage"} {
		if err := engine.Graph.FollowStyle(ctx, "ines", style); err != nil {
			return fmt.Errorf("ines follows style %s: %w", style, err)
		}
	}

	if err := engine.Interactions.Like(ctx, "maya", postIDs["jonas"][0]); err != nil {
		return err
	}
	if _, err := engine.Interactions.Comment(ctx, "ines", postIDs["maya"][0], "Where is the shirt from?"); err != nil {
		return err
	}
	board, err := engine.Interactions.CreateBoard(ctx, "maya", "Autumn ideas")
	if err != nil {
		return err
	}
	if err := engine.Interactions.AddToBoard(ctx, "maya", board.ID, postIDs["jonas"][0]); err != nil {
		return err
	}
	if _, err := engine.Interactions.Bookmark(ctx, "ines", postIDs["maya"][1]); err != nil {
		return err
	}

	log.Info("Seeded demo graph",
		zap.Int("accounts", len(accounts)),
		zap.Int("posts", len(posts)),
		zap.String("board_id", board.ID),
	)
	return nil
}
