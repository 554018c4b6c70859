package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/api/handlers"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/cache"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/engine"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/providers"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/websocket"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	logger.WithComponent("server").WithFields(logrus.Fields{
		"environment":     cfg.Env,
		"port":            cfg.Port,
		"simulation_runs": cfg.Engine.SimulationRuns,
	}).Info("Starting FPL rank optimizer")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis is optional; the result cache falls back to an in-memory map.
	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
		client := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.WithComponent("server").WithError(err).Warn("Redis unreachable, using in-memory cache")
			client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
		}
		cancel()
	}

	resultCache := cache.NewResultCache(redisClient, cfg.Engine.CacheTTL, log)

	// Live feed: fetch once at startup, then refresh on a schedule. A failed
	// initial fetch leaves the heuristic ownership path in place.
	feedClient := providers.NewFPLClient(cfg, log)
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := feedClient.Refresh(startupCtx); err != nil {
		logger.WithComponent("server").WithError(err).Warn("Initial feed fetch failed, continuing with heuristic ownership")
	}
	cancel()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.FeedRefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := feedClient.Refresh(ctx); err != nil {
			logger.WithComponent("server").WithError(err).Warn("Scheduled feed refresh failed")
		}
	}); err != nil {
		logger.WithComponent("server").Fatalf("Invalid feed refresh schedule %q: %v", cfg.FeedRefreshSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	analysisEngine := engine.NewAnalysisEngine(cfg.Engine, resultCache, wsHub, log)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	analysisHandler := handlers.NewAnalysisHandler(analysisEngine, feedClient, cfg, log)
	healthHandler := handlers.NewHealthHandler(redisClient, feedClient, log)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/analysis", analysisHandler.AnalyzeSquad)
		apiV1.POST("/transfers/plan", analysisHandler.PlanTransfers)
		apiV1.GET("/players/:id/simulation", analysisHandler.SimulatePlayer)
	}

	router.GET("/ws/analysis-progress/:request_id", wsHub.HandleWebSocket)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.WithComponent("server").WithField("port", cfg.Port).Info("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("server").Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithComponent("server").Info("Shutting down")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithComponent("server").Fatalf("Forced shutdown: %v", err)
	}
}
