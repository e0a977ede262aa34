package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/config"
	"github.com/ignite/warmup-engine/internal/engagement"
	"github.com/ignite/warmup-engine/internal/jobs"
	"github.com/ignite/warmup-engine/internal/metrics"
	"github.com/ignite/warmup-engine/internal/pkg/distlock"
	"github.com/ignite/warmup-engine/internal/repository/postgres"
	"github.com/ignite/warmup-engine/internal/warmup"

	_ "github.com/lib/pq"
)

// The worker runs only the periodic jobs loop. Deployments that run the
// server with jobs.enabled do not need it; split deployments disable jobs
// on the API replicas and run one worker instead.
func main() {
	log.Println("Starting warmup engine worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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
			log.Printf("Redis unavailable, using Postgres advisory lock: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

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

	lock := distlock.New(redisClient, db, "warmup:jobs", 5*time.Minute)
	runner := jobs.NewRunner(controller, engagementSvc, lock, cfg.Warmup.ServerID, cfg.Jobs.Interval(), cfg.Jobs.RecalcHourUTC)
	if err := runner.Start(ctx); err != nil {
		log.Fatalf("Failed to start jobs runner: %v", err)
	}
	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	runner.Stop()
	log.Println("Worker stopped")
}
