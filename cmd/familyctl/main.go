// Command familyctl is the operator CLI: it creates the DynamoDB tables and
// enables or disables user accounts.
package main

import (
	"context"
	"log"
	"os"

	"github.com/go-pregnancy-family/internal/application/user"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/infrastructure/dynamo"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	if err := newRootCmd(loadRuntime).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime connects to DynamoDB using the environment configuration.
func loadRuntime() (*runtime, error) {
	cfg := config.Load()
	client := dynamo.NewClient(cfg)
	store := dynamo.WithTimeout(client, cfg.StoreTimeout)
	return &runtime{
		bootstrap: func(ctx context.Context) int {
			return dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		},
		users: user.NewService(user.ServiceDeps{
			UserRepo:    dynamo.NewUserRepo(store, cfg.DynamoTables.Users, cfg.DynamoTables.UserPhones),
			SessionRepo: dynamo.NewSessionRepo(store, cfg.DynamoTables.Sessions),
		}),
	}, nil
}
