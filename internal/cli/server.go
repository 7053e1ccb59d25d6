package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/config"
	"therapist-match-service/internal/infra/memory"
	"therapist-match-service/internal/infra/postgres"
	redisstore "therapist-match-service/internal/infra/redis"
	"therapist-match-service/internal/logging"
	transport "therapist-match-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the matching service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// deps holds the wired services and the connections to release on shutdown.
type deps struct {
	services transport.Services
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps wires Postgres and Redis when configured and falls back to in-memory
// stores otherwise. The in-memory setup is seeded with demo content.
func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}
	attemptTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	publishedTTL := config.TTLDuration(cfg.Quiz.PublishedTTL, 10*time.Minute)
	fanoutTimeout := config.TTLDuration(cfg.Tags.FanoutTimeout, 3*time.Second)

	var (
		quizzes    app.QuizRepository
		drafts     app.DraftRepository
		content    app.ContentRepository
		loader     memory.PublishedLoader
		tags       app.TagRepository
		therapists app.TherapistIndex
		seed       func(context.Context, transport.Services) error
	)
	if cfg.Postgres.URL != "" {
		db := postgres.OpenDB(cfg.Postgres.URL)
		d.closers = append(d.closers, func() { _ = db.Close() })
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)

		store := postgres.NewDraftStore(db)
		quizzes, drafts, content, loader = store, store, store, store
		tags = postgres.NewTagStore(pool)
		therapists = postgres.NewTherapistIndex(pool)
	} else {
		logger.Warn("postgres not configured, using in-memory stores with demo content")
		store := memory.NewQuizStore()
		index := memory.NewTherapistIndex()
		quizzes, drafts, content, loader = store, store, store, store
		tags = memory.NewTagStore()
		therapists = index
		seed = func(ctx context.Context, svc transport.Services) error {
			return seedDemo(ctx, svc, index)
		}
	}

	var (
		cache    app.PublishedCache
		journal  app.CascadeJournal
		attempts app.AttemptRepository
	)
	if redisClient != nil {
		cache = redisstore.NewPublishedCache(redisClient, loader, publishedTTL)
		journal = redisstore.NewCascadeJournal(redisClient)
		attempts = redisstore.NewAttemptStore(redisClient, attemptTTL)
	} else {
		cache = memory.NewPublishedCache(loader, publishedTTL)
		journal = memory.NewCascadeJournal()
		attempts = memory.NewAttemptStore()
	}

	matches := app.NewMatchService(cache, therapists, logger)
	d.services = transport.Services{
		Drafts:   app.NewDraftService(quizzes, drafts, cache, logger),
		Tags:     app.NewTagService(tags, therapists, content, cache, journal, fanoutTimeout, logger),
		Matches:  matches,
		Attempts: app.NewAttemptService(attempts, matches, logger),
	}
	if seed != nil {
		if err := seed(ctx, d.services); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	wired, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer wired.Close()

	if n, err := wired.services.Tags.ResumeCascades(ctx); err != nil {
		logger.Error("resume tag cascades", "err", err)
	} else if n > 0 {
		logger.Info("resumed tag cascades", "count", n)
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(wired.services, transport.RouterOptions{
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting therapist match service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
