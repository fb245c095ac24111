package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"versioned-notes/internal/config"
	"versioned-notes/internal/db"
	"versioned-notes/internal/logger"
)

var bootstrapLogger = logger.Bootstrap()

var rootCmd = &cobra.Command{
	Use:   "versioned-notes",
	Short: "Versioned notes API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [--seed]",
	Short: "Migrate the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetBool("seed")
		return runMigrate(cmd.Context(), seed)
	},
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "create the development admin account")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the application logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(bootstrapLogger)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runMigrate(ctx context.Context, seed bool) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(conn, log)

	if err := db.Migrate(conn, log); err != nil {
		return err
	}
	if seed {
		return db.SeedData(ctx, conn, log)
	}
	return nil
}
