package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fluentive/campaigns/internal/api"
	"github.com/fluentive/campaigns/internal/config"
	"github.com/fluentive/campaigns/internal/dispatch"
	"github.com/fluentive/campaigns/internal/mailer"
	"github.com/fluentive/campaigns/internal/pkg/distlock"
	"github.com/fluentive/campaigns/internal/repository/postgres"
	"github.com/fluentive/campaigns/internal/scheduler"
	"github.com/fluentive/campaigns/internal/service/audience"
	"github.com/fluentive/campaigns/internal/service/campaign"
	"github.com/fluentive/campaigns/internal/service/contact"
	"github.com/fluentive/campaigns/internal/service/suppression"
	"github.com/fluentive/campaigns/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	log.Println("[Server] Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[Server] Redis unavailable, poller will use advisory locks: %v", err)
			redisClient = nil
		} else {
			log.Println("[Server] Connected to Redis")
		}
	}

	contactRepo := postgres.NewContactRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	sendRepo := postgres.NewSendRepo(db)

	suppressionSvc := suppression.NewService(suppressionRepo)
	contactSvc := contact.NewService(contactRepo, suppressionSvc)
	campaignSvc := campaign.NewService(campaignRepo)
	resolver := audience.NewResolver(contactRepo, suppressionRepo)

	transport, err := buildTransport(cfg.Mailer)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	log.Printf("[Server] Mail transport: %s", transport.Name())

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		BatchSize:        cfg.Dispatch.BatchSize,
		BatchPause:       cfg.Dispatch.BatchPause(),
		ConfirmThreshold: cfg.Dispatch.ConfirmThreshold,
		BaseURL:          cfg.Server.PublicBaseURL,
		FromName:         cfg.Mailer.FromName,
		FromAddr:         cfg.Mailer.FromAddr,
	}, campaignRepo, sendRepo, resolver, transport)

	trackingSvc := tracking.NewService(sendRepo, campaignRepo)
	trackingHandler := tracking.NewHandler(trackingSvc, contactSvc, cfg.Server.PublicBaseURL)

	var poller *scheduler.Poller
	if cfg.Scheduler.Enabled {
		locks := func(key string) distlock.Lock {
			return distlock.New(redisClient, db, key, cfg.Scheduler.LockTTL())
		}
		poller = scheduler.NewPoller(campaignRepo, dispatcher, campaignSvc, locks, cfg.Scheduler.Interval())
		poller.Start()
	}

	server := api.NewServer(api.Deps{
		Campaigns:      campaignSvc,
		Contacts:       contactSvc,
		Suppressions:   suppressionSvc,
		Audience:       resolver,
		Dispatcher:     dispatcher,
		Ledger:         sendRepo,
		Tracking:       trackingHandler,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("[Server] Shutting down")

	if poller != nil {
		poller.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[Server] Shutdown: %v", err)
	}
	log.Println("[Server] Stopped")
}

func buildTransport(cfg config.MailerConfig) (mailer.Transport, error) {
	switch cfg.Provider {
	case "ses":
		return mailer.NewSESTransport(context.Background(), cfg.Region, cfg.AccessKey, cfg.SecretKey)
	case "log", "":
		return mailer.LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown mailer provider %q", cfg.Provider)
	}
}
