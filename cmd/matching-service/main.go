package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/trialscout/platform/pkg/common/config"
	"github.com/trialscout/platform/pkg/common/database"
	"github.com/trialscout/platform/pkg/common/httpclient"
	"github.com/trialscout/platform/pkg/common/kafka"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/common/middleware"
	"github.com/trialscout/platform/pkg/extraction"
	"github.com/trialscout/platform/pkg/matching"
	"github.com/trialscout/platform/pkg/ratelimit"
	"github.com/trialscout/platform/pkg/registry"
)

func main() {
	logger.Init("matching-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer database.ClosePostgres()

	repo := matching.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}

	redisClient := database.GetRedis()
	defer database.CloseRedis()

	limiter := ratelimit.New(cfg.RegistryRequestsPerMin, ratelimit.WithBurstLimit(cfg.RegistryBurstLimit))
	registryClient := registry.NewClient(cfg.RegistryBaseURL, limiter,
		registry.WithCache(registry.NewCache(redisClient, cfg.RegistryCacheTTL)),
		registry.WithRetryPolicy(cfg.RegistryMaxRetries, cfg.RegistryRetryBaseDelay),
		registry.WithHTTPClient(httpclient.New(cfg.RegistryRequestTimeout)),
	)

	rules, err := extraction.LoadRules(cfg.ConditionRulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load condition rules")
	}
	extractor, err := extraction.NewExtractor(rules)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to compile condition rules")
	}

	producer := kafka.NewProducer(cfg.MatchEventTopic)
	defer producer.Close()

	service := matching.NewService(registryClient, repo, extractor, producer)
	handler := matching.NewHandler(service, registryClient)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	var root http.Handler = router
	root = middleware.BodyLimit(cfg.MaxRequestBody)(root)
	root = middleware.RateLimit(ratelimit.New(cfg.InboundReqsPerMin))(root)
	root = middleware.CORS(root)
	root = middleware.Logging(root)
	root = middleware.Recovery(root)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.MatchingServicePort),
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.MatchingServicePort,
		}).Info("Matching Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Matching Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Matching Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
