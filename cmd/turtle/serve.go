package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/auth"
	"github.com/michaelbrown/turtle/internal/cache"
	"github.com/michaelbrown/turtle/internal/observability"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/server"
	"github.com/michaelbrown/turtle/internal/storage"
	"github.com/michaelbrown/turtle/internal/storage/sqlite"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the turtle web server",
	Long: `Start the turtle HTTP server with the REST API and the animation
WebSocket. API endpoints are under /api, metrics under /metrics.

Examples:
  turtle serve
  turtle serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	// Open storage
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	if cfg.Challenges.SeedFile != "" {
		seed, err := storage.LoadSeedFile(cfg.Challenges.SeedFile)
		if err != nil {
			return err
		}
		n, err := storage.ApplySeed(context.Background(), store, seed)
		if err != nil {
			return fmt.Errorf("seeding challenges: %w", err)
		}
		logger.Info("challenges seeded", "file", cfg.Challenges.SeedFile, "created", n)
	}

	runs, err := sandbox.NewManager(cfg.Sandbox.Policy(),
		sandbox.WithLogger(logger),
		sandbox.WithObserver(observability.ObserveScriptRun),
	)
	if err != nil {
		return fmt.Errorf("configuring sandbox: %w", err)
	}

	if cfg.Server.JWTSecret == "" {
		logger.Warn("server.jwt_secret is not set; sessions will not survive a restart")
	}
	sessions, err := auth.New(store, cfg.Server.JWTSecret, auth.WithSecureCookies(cfg.Server.SecureCookies))
	if err != nil {
		return err
	}

	renders := cache.New(cfg.Cache.RedisAddr, cache.WithTTL(cfg.Cache.TTL), cache.WithPrefix(cfg.Cache.Prefix))
	if r, ok := renders.(*cache.Redis); ok {
		defer r.Close()
	}

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, store, runs, sessions, renders, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
