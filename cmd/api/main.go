package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justsurfingit/resale-lister/internal/config"
	"github.com/justsurfingit/resale-lister/internal/database"
	"github.com/justsurfingit/resale-lister/internal/handlers"
	"github.com/justsurfingit/resale-lister/internal/llm"
	"github.com/justsurfingit/resale-lister/internal/logger"
	"github.com/justsurfingit/resale-lister/internal/services"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "resale-lister:", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Configuration (.env is optional)
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database Connection
	db, err := database.Connect(cfg.DatabaseURL, log.Named("db"))
	if err != nil {
		return err
	}

	// 3. Initialize the LLM client for the configured provider
	var client llm.Client
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		client = llm.NewCompletionsClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, log.Named("llm"))
	default:
		client, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log.Named("llm"))
		if err != nil {
			return fmt.Errorf("init gemini client: %w", err)
		}
	}
	log.Info("llm client ready", zap.String("provider", client.Provider()))

	// 4. Initialize Core Services
	matcherService := services.NewMatcherService()
	itemService := services.NewItemService(db, matcherService, log.Named("items"))
	analysisService := services.NewAnalysisService(itemService, client, cfg.ProgressEvery, log.Named("analysis"))

	// 5. Start the stale analysis sweeper
	sweeper := services.NewSweeperService(itemService, cfg.StaleAfter, log.Named("sweeper"))
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer func() { <-sweeper.Stop().Done() }()

	// 6. Handlers & Router
	itemHandler := handlers.NewItemHandler(itemService, analysisService, cfg.MaxUploadMB<<20)
	router := handlers.NewRouter(itemHandler, handlers.RouterConfig{
		AllowAllOrigins:  cfg.AllowAllOrigins(),
		AllowOrigins:     cfg.CORSOrigins,
		AnalyzePerMinute: cfg.AnalyzeRatePerMin,
	}, log.Named("http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// 7. Graceful shutdown; open analysis streams get a chance to finish.
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
