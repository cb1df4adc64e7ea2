// cmd/analyzer/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"positioning-analyzer/internal/common/auth"
	"positioning-analyzer/internal/common/config"
	"positioning-analyzer/internal/common/database"
	"positioning-analyzer/internal/common/genai"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/observability"
	"positioning-analyzer/internal/pipeline"
	"positioning-analyzer/internal/server"
	analyzegaps "positioning-analyzer/internal/stages/analyze-gaps"
	annotatepage "positioning-analyzer/internal/stages/annotate-page"
	buildevidence "positioning-analyzer/internal/stages/build-evidence"
	fetchcontent "positioning-analyzer/internal/stages/fetch-content"
	synthesizepositioning "positioning-analyzer/internal/stages/synthesize-positioning"
	"positioning-analyzer/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting analyzer...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry (content cache) ---
	var rds *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rds, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rds.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rds.Close()
	zapLog.Info("Redis connected successfully")

	st := store.New(pg.DB, log)
	if err := st.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	generator := genai.NewClient(&genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Model:       cfg.APIs.GenAI.Model,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
		Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
	}, log)

	runner := pipeline.NewRunner(pipeline.RunnerDeps{
		Sessions: st,
		Pages:    st,
		Results:  st,
		Fetcher: fetchcontent.NewHandler(
			fetchcontent.NewConfig(cfg.APIs.Scraper, cfg.Database.Redis.CacheTTL),
			rds.Client, log,
		),
		Annotator: annotatepage.NewHandler(
			annotatepage.NewConfig(config.GetStageConfig(cfg, "annotate-page")), generator, log,
		),
		Builder: buildevidence.NewHandler(
			buildevidence.NewConfig(config.GetStageConfig(cfg, "build-evidence")), generator, log,
		),
		Synthesizer: synthesizepositioning.NewHandler(
			synthesizepositioning.NewConfig(config.GetStageConfig(cfg, "synthesize-positioning")), generator, log,
		),
		GapAnalyzer: analyzegaps.NewHandler(
			analyzegaps.NewConfig(config.GetStageConfig(cfg, "analyze-gaps")), generator, log,
		),
		Observability: obs,
	}, log)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := pipeline.NewSweeper(st,
		config.GetDuration(cfg.Pipeline.SweepInterval),
		config.GetDuration(cfg.Pipeline.StaleAfter),
		log,
	)
	go sweeper.Run(sweepCtx)

	api := server.New(st, runner,
		auth.NewDBAuthenticator(pg.DB),
		pg.DB,
		cfg.Pipeline.MaxURLsPerSession,
		log,
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("Shutting down...")

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}

	// Let in-flight runs reach a terminal state before the process exits.
	runner.Wait()
	zapLog.Info("Shutdown complete")
}
