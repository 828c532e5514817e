package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/auth"
	"quizzz-service/internal/config"
	"quizzz-service/internal/domain"
	"quizzz-service/internal/infra/blob"
	"quizzz-service/internal/infra/logger"
	"quizzz-service/internal/infra/memory"
	"quizzz-service/internal/infra/postgres"
	infraredis "quizzz-service/internal/infra/redis"
	"quizzz-service/internal/infra/sqlite"
	transport "quizzz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Init(cfg.Log.Level)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, caches will fall back to the store", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	loader := app.NewDocumentQuizLoader(store)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	var (
		quizRepo interface {
			app.QuizRepository
			app.QuizCache
		}
		revoked auth.TokenStore
	)
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		revoked = infraredis.NewTokenStore(redisClient)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		revoked = memory.NewTokenStore()
	}

	covers, err := blob.NewFSStore(cfg.Storage.CoverDir, "/covers/")
	if err != nil {
		return fmt.Errorf("cover store: %w", err)
	}

	notices := memory.NewNoticeBoard()
	policy := app.DraftPolicy{
		DefaultQuestionType: domain.QuestionType(cfg.Quiz.DefaultQuestionType),
		OptionsPerQuestion:  cfg.Quiz.OptionsPerQuestion,
	}
	workspace := memory.NewDraftWorkspace(config.TTLDuration(cfg.Quiz.DraftIdle, memory.DefaultDraftIdle))
	authoring := app.NewAuthoringService(store, workspace, notices,
		app.WithDraftPolicy(policy),
		app.WithCoverStore(covers),
		app.WithQuizCache(quizRepo),
		app.WithLogger(log),
	)
	play := app.NewPlayService(quizRepo, store, notices)

	catalog := app.NewCatalog(store, domain.Filter{})
	go func() {
		if err := catalog.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("catalog live query stopped", "error", err)
		}
	}()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		log.Warn("auth.jwtSecret not set, using a random secret; sessions will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	identity := auth.NewProvider(store, tokens, revoked, auth.WithGuests(cfg.GuestsAllowed()))

	router := transport.NewRouter(transport.Deps{
		Authoring: authoring,
		Play:      play,
		Catalog:   catalog,
		Store:     store,
		Identity:  identity,
		Notices:   notices,
		Covers:    covers,
	}, transport.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Info("starting quiz service", "port", finalPort, "storage", cfg.StorageDriver())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// openStore builds the document store selected by config. Postgres is migrated first and
// followed for changes made by other instances.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (app.DocumentStore, func(), error) {
	switch driver := cfg.StorageDriver(); driver {
	case "memory":
		return memory.NewDocumentStore(), func() {}, nil
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.NewDocumentStore(pool)
		go func() {
			if err := store.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("postgres change listener stopped", "error", err)
			}
		}()
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
