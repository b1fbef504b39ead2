package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/shopfront/gateway"
	"github.com/example/shopfront/pkg/admin"
	"github.com/example/shopfront/pkg/auth"
	"github.com/example/shopfront/pkg/cart"
	"github.com/example/shopfront/pkg/catalog"
	"github.com/example/shopfront/pkg/checkout"
	"github.com/example/shopfront/pkg/config"
	"github.com/example/shopfront/pkg/discovery"
	"github.com/example/shopfront/pkg/grpc"
	"github.com/example/shopfront/pkg/images"
	"github.com/example/shopfront/pkg/logger"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/notify"
	"github.com/example/shopfront/pkg/repository"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting shop",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()),
		zap.String("database", cfg.Database.Driver))

	ctx := context.Background()

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	if cfg.Database.Seed {
		if err := seed(ctx, cfg, store, log); err != nil {
			log.Fatal("Failed to seed store", zap.Error(err))
		}
	}

	sessions, closeSessions := openSessions(ctx, cfg, log)
	defer closeSessions()

	audit, closeAudit := openAudit(ctx, cfg, log)
	defer closeAudit()

	mailer, err := notify.NewMailer(&cfg.Mail, log.Named("mailer"))
	if err != nil {
		log.Fatal("Failed to create mailer", zap.Error(err))
	}
	dispatcher, err := notify.NewDispatcher(mailer, cfg.Mail.Timeout, log.Named("notify"))
	if err != nil {
		log.Fatal("Failed to start notification dispatcher", zap.Error(err))
	}
	defer dispatcher.Close()

	imageStore, err := images.NewStore(&cfg.Upload)
	if err != nil {
		log.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	// Setup service discovery
	var sd *discovery.ServiceDiscovery
	if cfg.Etcd.Enabled() {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log.Named("discovery"))
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
			sd = nil
		}
	}

	gw, err := gateway.NewGateway(cfg, log.Named("http"), gateway.Services{
		Store:     store,
		Catalog:   catalog.NewService(store),
		Cart:      cart.NewService(store),
		Checkout:  checkout.NewService(store, dispatcher, audit, log.Named("checkout")),
		Admin:     admin.NewService(store, imageStore, dispatcher, audit, log.Named("admin")),
		Auth:      auth.NewService(store, log.Named("auth")),
		Sessions:  sessions,
		Discovery: sd,
	})
	if err != nil {
		log.Fatal("Failed to create gateway", zap.Error(err))
	}
	gw.SetupRoutes()

	// Start gateway in goroutine
	serveErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serveErr <- err
		}
	}()

	var health *grpc.HealthServer
	if cfg.GRPC.Port > 0 {
		health = grpc.NewHealthServer(&cfg.GRPC, cfg.Server.Name, log.Named("grpc"))
		health.SetServing(true)
		go func() {
			if err := health.Start(); err != nil {
				serveErr <- err
			}
		}()
	}

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if sd != nil {
		if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		} else {
			log.Info("Service registered in etcd", zap.String("address", instance.Addr()))
		}
	}

	log.Info("Shop started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Warn("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if health != nil {
		health.Stop()
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}

	log.Info("Shop stopped")
}

func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	return repository.OpenGorm(&cfg.Database, log)
}

func seed(ctx context.Context, cfg *config.Config, store repository.Store, log *zap.Logger) error {
	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}
	return repository.Seed(ctx, store, &models.User{
		Username:     cfg.Admin.Username,
		Email:        cfg.Admin.Email,
		PasswordHash: hash,
	}, log)
}

// openSessions prefers Redis and falls back to process memory when Redis is
// not configured or unreachable.
func openSessions(ctx context.Context, cfg *config.Config, log *zap.Logger) (auth.SessionStore, func()) {
	if cfg.Redis.Enabled() {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := redisRepo.Ping(pingCtx)
		if err == nil {
			log.Info("Redis connected successfully")
			return auth.NewRedisSessions(redisRepo, cfg.Session.TTL), func() { _ = redisRepo.Close() }
		}
		log.Warn("Redis connection failed, keeping sessions in memory", zap.Error(err))
		_ = redisRepo.Close()
	}
	return auth.NewMemorySessions(cfg.Session.TTL), func() {}
}

// openAudit prefers MongoDB and falls back to an in-process log.
func openAudit(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.AuditRecorder, func()) {
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = mongoRepo.Ping(pingCtx)
			cancel()
			if err == nil {
				log.Info("MongoDB connected successfully")
				return mongoRepo, func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = mongoRepo.Close(closeCtx)
				}
			}
			_ = mongoRepo.Close(ctx)
		}
		log.Warn("MongoDB connection failed, keeping audit logs in memory", zap.Error(err))
	}
	return repository.NewMemoryAudit(), func() {}
}
