package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"example.com/healthprofile/internal/auth"
	"example.com/healthprofile/internal/cli"
	"example.com/healthprofile/internal/config"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/persistence/sqlite"
)

// The CLI always acts as the single local owner.
var localOwner = domain.Owner{TenantID: "local", UserID: "me"}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	var logger *log.Logger
	if os.Getenv("HEALTHCTL_DEBUG") != "" {
		logger = log.New(os.Stderr, "[healthctl] ", log.LstdFlags)
	}

	app := &cli.App{
		Store:  store,
		Owner:  localOwner,
		Locale: cfg.DisplayLocale,
		Auth:   auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		Logger: logger,
	}
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
