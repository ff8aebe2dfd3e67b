package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/shimayu0701/copilot-navi/internal/api/handlers"
	"github.com/shimayu0701/copilot-navi/internal/cache"
	"github.com/shimayu0701/copilot-navi/internal/config"
	"github.com/shimayu0701/copilot-navi/internal/database"
	"github.com/shimayu0701/copilot-navi/internal/datastore"
	"github.com/shimayu0701/copilot-navi/internal/gemini"
	"github.com/shimayu0701/copilot-navi/internal/health"
	"github.com/shimayu0701/copilot-navi/internal/middleware"
	"github.com/shimayu0701/copilot-navi/internal/refresh"
	"github.com/shimayu0701/copilot-navi/internal/repository"
	"github.com/shimayu0701/copilot-navi/internal/scraper"
	"github.com/shimayu0701/copilot-navi/pkg/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()

	logger.Info("Starting Copilot model navigator...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateLLM(); err != nil {
		// Refreshes can still run with a key supplied per request.
		logger.WithError(err).Warn("LLM configuration incomplete, data updates need a key from the caller")
	}

	dbConfig := &database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	store := datastore.NewStore(cfg.Data.Dir, logger)

	// Fail fast when the shipped data documents are unusable.
	if _, err := store.LoadCatalog(); err != nil {
		logger.WithError(err).Fatal("Model catalog is not loadable")
	}
	if _, err := store.LoadChart(); err != nil {
		logger.WithError(err).Fatal("Survey chart is not loadable")
	}
	if _, err := store.LoadRules(); err != nil {
		logger.WithError(err).Fatal("Recommendation rules are not loadable")
	}

	scrapeTimeout := time.Duration(cfg.Scrape.TimeoutSeconds) * time.Second
	fetcher := scraper.NewFetcher(scrapeTimeout, logger)

	analyzerFactory := func(ctx context.Context, apiKey, modelID string) (refresh.Analyzer, error) {
		return gemini.NewClient(ctx, apiKey,
			gemini.WithModel(modelID),
			gemini.WithTemperature(cfg.LLM.Temperature),
			gemini.WithMaxTokens(cfg.LLM.MaxTokens),
			gemini.WithLogger(logger),
		)
	}
	updater := refresh.NewUpdater(store, repoManager.UpdateHistory, fetcher, analyzerFactory, logger)

	twoTier := cache.NewTwoTier(dbManager.Redis, logger)
	restClient := gemini.NewRESTClient(logger)
	tracker := gemini.NewRateLimitTracker(twoTier, cfg.LLM.Model, logger)
	checker := health.NewChecker(dbManager, store, logger)

	chartHandler := handlers.NewChartHandler(store, repoManager.Diagnosis, logger)
	historyHandler := handlers.NewHistoryHandler(repoManager.Diagnosis, logger)
	refreshHandler := handlers.NewRefreshHandler(updater, repoManager.UpdateHistory, cfg, logger)
	geminiHandler := handlers.NewGeminiHandler(restClient, tracker, store, cfg, logger)
	healthHandler := handlers.NewHealthHandler(checker)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())

	rateLimiter := middleware.NewRateLimiter(120)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", healthHandler.Check)

	api := router.Group("/api/v1")
	{
		chart := api.Group("/chart")
		{
			chart.GET("/questions", chartHandler.GetQuestions)
			chart.POST("/recommend", chartHandler.Recommend)
		}

		historyGroup := api.Group("/history")
		{
			historyGroup.GET("", historyHandler.List)
			historyGroup.GET("/:id", historyHandler.Get)
			historyGroup.POST("/:id/feedback", historyHandler.SubmitFeedback)
		}

		data := api.Group("/data")
		{
			data.GET("/config", refreshHandler.GetConfig)
			data.GET("/last-updated", refreshHandler.LastUpdated)
			data.POST("/refresh", refreshHandler.Refresh)
			data.GET("/refresh/status", refreshHandler.Status)
			data.GET("/refresh/history", refreshHandler.History)
		}

		geminiGroup := api.Group("/gemini")
		{
			geminiGroup.GET("/models", geminiHandler.ListModels)
			geminiGroup.GET("/rate-limits", geminiHandler.RateLimits)
			geminiGroup.POST("/verify-key", geminiHandler.VerifyKey)
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown was not clean")
	}

	logger.Info("Server stopped")
}
