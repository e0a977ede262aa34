package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/api"
	"github.com/ignite/warmup-engine/internal/config"
	"github.com/ignite/warmup-engine/internal/engagement"
	"github.com/ignite/warmup-engine/internal/jobs"
	"github.com/ignite/warmup-engine/internal/metrics"
	"github.com/ignite/warmup-engine/internal/pkg/distlock"
	"github.com/ignite/warmup-engine/internal/repository/postgres"
	"github.com/ignite/warmup-engine/internal/warmup"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var version = "dev" // set via -ldflags at build time

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Starting warmup engine server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unavailable, falling back to Postgres-only enforcement: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
			defer redisClient.Close()
		}
	}

	// Wire the engine
	warmupRepo := postgres.NewWarmupRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	eventRepo := postgres.NewEventRepo(db)

	aggregator := metrics.NewAggregator(eventRepo)
	controller := warmup.NewController(warmupRepo, aggregator)
	if redisClient != nil {
		controller.SetLimiter(warmup.NewSendLimiter(redisClient))
	}
	engagementSvc := engagement.NewService(contactRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runner *jobs.Runner
	if cfg.Jobs.Enabled {
		lock := distlock.New(redisClient, db, "warmup:jobs", 5*time.Minute)
		runner = jobs.NewRunner(controller, engagementSvc, lock, cfg.Warmup.ServerID, cfg.Jobs.Interval(), cfg.Jobs.RecalcHourUTC)
		if err := runner.Start(ctx); err != nil {
			log.Fatalf("Failed to start jobs runner: %v", err)
		}
	}

	health := api.NewHealthChecker(db, redisClient, version)
	server := api.NewServer(cfg.Server, controller, engagementSvc, eventRepo, health, cfg.Warmup.ServerID)

	addr := fmt.Sprintf("%s:%d", host, port)
	go func() {
		log.Printf("API listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	if runner != nil {
		runner.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
