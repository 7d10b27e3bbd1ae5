package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-pregnancy-family/internal/infrastructure/jwt"
	redisinfra "github.com/go-pregnancy-family/internal/infrastructure/redis"
	s3infra "github.com/go-pregnancy-family/internal/infrastructure/s3"
	"github.com/go-pregnancy-family/internal/infrastructure/sns"
	transporthttp "github.com/go-pregnancy-family/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	if failed := dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables); failed > 0 {
		slog.Warn("some tables could not be created", "failed", failed)
	}
	store := dynamo.WithTimeout(dynamoClient, cfg.StoreTimeout)

	// Tokens cannot be issued without the signing keys.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	smsSender, err := sns.NewSender(cfg)
	if err != nil {
		log.Fatalf("sms sender: %v", err)
	}

	var codes transporthttp.CodeStore
	if cfg.CodeStore == config.CodeStoreRedis {
		codes = redisinfra.NewCodeStore(redisinfra.NewClient(cfg))
	} else {
		codes = dynamo.NewVerificationRepo(store, cfg.DynamoTables.VerificationCodes)
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(store, cfg.DynamoTables.Users, cfg.DynamoTables.UserPhones),
		SessionRepo:      dynamo.NewSessionRepo(store, cfg.DynamoTables.Sessions),
		FamilyRepo:       dynamo.NewFamilyRepo(store, cfg.DynamoTables),
		NotificationRepo: dynamo.NewNotificationRepo(store, cfg.DynamoTables.Notifications),
		CodeStore:        codes,
		SMSSender:        smsSender,
		Avatars:          s3infra.NewStore(s3infra.NewClient(cfg), cfg),
		JWTProvider:      jwtProvider,
	}

	router, stopRouter := transporthttp.NewRouter(cfg, transporthttp.NewServices(cfg, deps))
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "code_store", cfg.CodeStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	slog.Info("server stopped")
}
