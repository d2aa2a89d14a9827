package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quizgen-service/internal/app"
	"quizgen-service/internal/config"
	"quizgen-service/internal/domain"
	"quizgen-service/internal/infra/memory"
	pgstore "quizgen-service/internal/infra/postgres"
	rediscache "quizgen-service/internal/infra/redis"
	"quizgen-service/internal/infra/webhook"
	"quizgen-service/internal/logger"
	"quizgen-service/internal/normalize"
	transport "quizgen-service/internal/transport/http"
)

// documentStore is satisfied by both the in-memory and the Postgres store.
type documentStore interface {
	app.DraftStore
	app.ResultRecorder
	memory.QuestionSetLoader
	Results(ctx context.Context, quizID string) ([]domain.Result, error)
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
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
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var store documentStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewDocumentStore(pool)
		log.Info().Msg("using postgres document store")
	} else {
		store = memory.NewDocumentStore()
		log.Warn().Msg("postgres not configured, quizzes and results are kept in memory")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	attemptTTL := config.TTLDuration(cfg.Attempt.TTL, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	var questions app.QuestionSetRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		questions = rediscache.NewQuestionSetRepository(redisClient, store, quizTTL, log)
		sessions = rediscache.NewSessionStore(redisClient, attemptTTL)
	} else {
		questions = memory.NewQuestionSetRepository(store, quizTTL)
		sessions = memory.NewSessionStore()
	}

	if cfg.Generation.WebhookURL == "" {
		log.Warn().Msg("generation webhook url not configured, generation requests will fail")
	}
	client := webhook.New(webhook.Config{
		URL:          cfg.Generation.WebhookURL,
		Timeout:      config.TTLDuration(cfg.Generation.Timeout, 5*time.Minute),
		MaxErrorBody: cfg.Generation.MaxErrorBody,
	}, log)
	generator := app.NewGenerator(client, normalize.New(log), cfg.Generation.AllowedExtensions, log)

	monitor := app.NewMonitor()
	attempts := app.NewAttemptService(sessions, questions, store, monitor, log)
	drafts := app.NewDraftService(store, log)

	api := transport.NewAPI(generator, drafts, store, cfg.Generation.MaxUploadMB, log)
	router := transport.NewRouter(api, transport.NewWSHandler(attempts, log), transport.NewMonitorHandler(monitor, log))

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quizgen service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	return waitForShutdown(ctx, server, log)
}

func waitForShutdown(ctx context.Context, server *http.Server, log zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
