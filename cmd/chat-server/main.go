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

	"github.com/Degefa-Gomora/evangadiForum1/internal/auth"
	"github.com/Degefa-Gomora/evangadiForum1/internal/cache"
	"github.com/Degefa-Gomora/evangadiForum1/internal/config"
	"github.com/Degefa-Gomora/evangadiForum1/internal/directory"
	"github.com/Degefa-Gomora/evangadiForum1/internal/handler"
	"github.com/Degefa-Gomora/evangadiForum1/internal/hub"
	"github.com/Degefa-Gomora/evangadiForum1/internal/kafka"
	"github.com/Degefa-Gomora/evangadiForum1/internal/presence"
	"github.com/Degefa-Gomora/evangadiForum1/internal/repository"
	"github.com/Degefa-Gomora/evangadiForum1/internal/service"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/database"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	l := log.L()

	repo, users, err := buildStore(cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialise message store")
	}
	defer repo.Close()

	var historyCache cache.HistoryCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisHistoryCache(cfg.Cache.Redis)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		historyCache = redisCache
		l.Info().Str("address", cfg.Cache.Redis.Address).Msg("history cache enabled")
	}

	var producer kafka.EventProducer = kafka.NopProducer{}
	if cfg.Kafka.Enabled {
		confluent, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		producer = confluent
		l.Info().Str("topic", cfg.Kafka.Topic).Msg("chat event feed enabled")
	}

	h := hub.NewHub(cfg.WebSocket)
	go h.Run()

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	tracker := presence.NewTracker()

	svc := service.NewChatService(h, repo, verifier, users, tracker, historyCache, producer, service.Config{
		HistoryPageSize:    cfg.Chat.HistoryPageSize,
		MaxAttachmentBytes: cfg.Chat.MaxAttachmentBytes,
		SweepInterval:      cfg.Presence.SweepInterval,
		InactivityTimeout:  cfg.Presence.InactivityTimeout,
		CacheTTL:           cfg.Cache.TTL,
	})
	if err := svc.Start(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer svc.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	wsHandler := handler.NewWebSocketHandler(h, svc, verifier, cfg.WebSocket, cfg.Chat)
	router.GET("/ws", wsHandler.Handle)

	httpHandler := handler.NewHTTPHandler(svc, users)
	httpHandler.RegisterRoutes(router, handler.JWTAuth(verifier))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		l.Info().Str("address", addr).Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("forced shutdown")
	}

	l.Info().Msg("server stopped")
}

// buildStore selects the persistence backend. The memory driver keeps
// everything in process for local development and tests.
func buildStore(cfg *config.Config) (repository.MessageRepository, directory.UserDirectory, error) {
	if cfg.Database.Driver == "memory" {
		return repository.NewMemoryMessageRepository(), &directory.StaticUserDirectory{}, nil
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	repo, err := repository.NewGormMessageRepository(db)
	if err != nil {
		return nil, nil, err
	}

	return repo, directory.NewGormUserDirectory(db), nil
}
