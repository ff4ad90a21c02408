package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/analyzer"
	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/chat"
	"github.com/researchbot/researchbot/internal/config"
	"github.com/researchbot/researchbot/internal/health"
	"github.com/researchbot/researchbot/internal/httpapi"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/news"
	"github.com/researchbot/researchbot/internal/research"
	"github.com/researchbot/researchbot/internal/scrape"
	"github.com/researchbot/researchbot/internal/search"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	store, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, config.CacheTTL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer store.Close()

	generator := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.FastModel, logger)

	robots := scrape.NewRobotsGate(logger)
	fetcher := scrape.NewFetcher(robots, logger)
	scraper := scrape.NewEngine(fetcher, store, generator, cfg.LLM.FastModel, logger)

	searcher := search.New(cfg.Search.Endpoint, cfg.Search.APIKeys, fetcher, logger)
	aggregator := news.New(cfg.News, store, logger)
	queryAnalyzer := analyzer.New(store, generator, cfg.LLM.FastModel, logger)

	orchestrator := research.NewOrchestrator(queryAnalyzer, searcher, aggregator, scraper,
		generator, store, cfg.LLM.SynthesisModel, logger)

	manager := chat.NewManager(store, generator, cfg.LLM.FastModel, logger)
	chatEngine := chat.NewEngine(manager, queryAnalyzer, searcher, aggregator, scraper,
		orchestrator, generator, cfg.LLM.ChatModel, logger)

	// Admin mux: health and metrics, off the public port.
	healthManager := health.NewManager(logger)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := healthManager.RegisterChecker(health.NewRedisHealthChecker(redisClient, logger)); err != nil {
		logger.Fatal("Failed to register Redis health checker", zap.Error(err))
	}
	providerChecker := health.NewProviderConfigChecker(
		len(cfg.Search.APIKeys), cfg.News.APIKey != "", cfg.LLM.APIKey != "")
	if err := healthManager.RegisterChecker(providerChecker); err != nil {
		logger.Fatal("Failed to register provider config checker", zap.Error(err))
	}

	adminMux := http.NewServeMux()
	health.NewHTTPHandler(healthManager, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.AdminPort),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("Admin server listening", zap.Int("port", cfg.Server.AdminPort))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin server failed", zap.Error(err))
		}
	}()

	apiMux := http.NewServeMux()
	httpapi.NewHandler(orchestrator, searcher, scraper, aggregator, chatEngine, manager, logger).
		RegisterRoutes(apiMux)

	// Research and scrape requests can legitimately run for minutes.
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiMux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin server shutdown failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
