package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/config"
	"github.com/xxxsen/notebook/internal/db"
	"github.com/xxxsen/notebook/internal/filestore"
	"github.com/xxxsen/notebook/internal/handler"
	"github.com/xxxsen/notebook/internal/job"
	"github.com/xxxsen/notebook/internal/middleware"
	"github.com/xxxsen/notebook/internal/repo"
	"github.com/xxxsen/notebook/internal/schedule"
	"github.com/xxxsen/notebook/internal/service"
)

const (
	apiPrefix        = "/api/v1"
	ollamaProbeTTL   = 10 * time.Second
	jobRunTimeout    = 10 * time.Minute
	reindexBatchSize = 64

	embeddingCheckTimeout = 15 * time.Second
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notebook",
		Short: "notebook knowledge base backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run notebook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "recompute the embeddings of every note and source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runReindex(cmd.Context(), cfg, conn)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func workerConfig(cfg *config.Config, status *service.LLMStatusService) service.EmbedWorkerConfig {
	return service.EmbedWorkerConfig{
		Workers:   cfg.Embedding.Workers,
		QueueSize: cfg.Embedding.QueueSize,
		Disabled:  !status.EmbeddingsUsable(),
	}
}

// checkEmbeddingDimension refuses to start when the embedding model does not
// fit the vector columns. An unreachable provider only logs a warning.
func checkEmbeddingDimension(embedder *ai.Embedder, status *service.LLMStatusService) error {
	if !status.EmbeddingsUsable() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), embeddingCheckTimeout)
	defer cancel()
	err := embedder.CheckDimension(ctx)
	if errors.Is(err, ai.ErrDimensionMismatch) {
		return fmt.Errorf("embedding model does not fit the vector columns: %w", err)
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding dimension check skipped",
			zap.String("provider", embedder.Provider()), zap.Error(err))
	}
	return nil
}

func newLimiter(cfg *config.Config) (middleware.Limiter, error) {
	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	if window <= 0 {
		return nil, nil
	}
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(window), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return middleware.NewRedisLimiter(redis.NewClient(opts), window), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("embedding_provider", cfg.LLM.EmbeddingProvider()),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	noteRepo := repo.NewNoteRepo(conn)
	sourceRepo := repo.NewSourceRepo(conn)

	chat, err := ai.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}
	embedder := ai.NewEmbedderFromConfig(cfg.LLM, cfg.Embedding)
	speech := ai.NewSpeechFromConfig(cfg.TTS, cfg.LLM.OpenAI, time.Duration(cfg.LLM.Timeout)*time.Second)
	probe := ai.NewOllamaProbe(cfg.LLM.Ollama.BaseURL, ollamaProbeTTL)
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	limiter, err := newLimiter(cfg)
	if err != nil {
		return err
	}

	status := service.NewLLMStatusService(cfg.LLM, chat, probe)
	if err := checkEmbeddingDimension(embedder, status); err != nil {
		return err
	}
	worker := service.NewEmbedWorker(noteRepo, sourceRepo, embedder, workerConfig(cfg, status))
	defer worker.Close()
	contexts := service.NewContextService(noteRepo, sourceRepo, embedder)
	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	userService := service.NewUserService(userRepo)
	noteService := service.NewNoteService(noteRepo, contexts, worker)
	sourceService := service.NewSourceService(sourceRepo, store, contexts, worker, service.SourceCollaborators{})
	summaryService := service.NewSummaryService(chat)
	indexService := service.NewIndexService(noteRepo, sourceRepo, embedder, worker)

	deps := handler.RouterDeps{
		Auth:    handler.NewAuthHandler(authService),
		Users:   handler.NewUserHandler(userService),
		Notes:   handler.NewNoteHandler(noteService),
		Sources: handler.NewSourceHandler(sourceService),
		Generation: handler.NewGenerationHandler(
			sourceService,
			summaryService,
			service.NewSlidesService(chat),
			service.NewPodcastService(chat, speech),
			service.NewAudioService(summaryService, speech),
		),
		Chat:    handler.NewChatHandler(service.NewChatService(contexts, chat, status)),
		LLM:     handler.NewLLMHandler(status),
		Authn:   authService,
		Limiter: limiter,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler(jobRunTimeout)
	if err := scheduler.AddJob(job.NewEmbeddingResyncJob(indexService, status.EmbeddingsUsable, 0), cfg.Jobs.EmbeddingResync); err != nil {
		return fmt.Errorf("schedule embedding resync: %w", err)
	}
	staleAge := time.Duration(cfg.Jobs.StaleSourceMinutes) * time.Minute
	if err := scheduler.AddJob(job.NewSourceRecoveryJob(sourceService, staleAge), cfg.Jobs.SourceRecovery); err != nil {
		return fmt.Errorf("schedule source recovery: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if err := scheduler.RunNow("source_recovery"); err != nil {
		logutil.GetLogger(ctx).Warn("initial source recovery failed", zap.Error(err))
	}

	engine, err := webapi.NewEngine(
		apiPrefix,
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			group.GET("/metrics", gin.WrapH(promhttp.Handler()))
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(handler.GzipExcludedPaths(apiPrefix))),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runReindex(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	embedder := ai.NewEmbedderFromConfig(cfg.LLM, cfg.Embedding)
	index := service.NewIndexService(repo.NewNoteRepo(conn), repo.NewSourceRepo(conn), embedder, nil)
	start := time.Now()
	stats, err := index.Reindex(ctx, reindexBatchSize)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	logutil.GetLogger(ctx).Info("reindex finished",
		zap.String("provider", embedder.Provider()),
		zap.Int("notes", stats.Notes),
		zap.Int("sources", stats.Sources),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
