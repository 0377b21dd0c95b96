package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gihan9a/patchstore/internal/config"
	"gihan9a/patchstore/internal/documents"
	"gihan9a/patchstore/internal/seed"
	"gihan9a/patchstore/internal/server"
	"gihan9a/patchstore/internal/tls"
	"gihan9a/patchstore/pkg/store"
)

var (
	configPath   string
	rootDir      string
	port         int
	historyLimit int
	forceInit    bool

	rootCmd = &cobra.Command{
		Use:   "patchstore",
		Short: "Serve JSON documents with undoable, patch-based edits",
		Long: `patchstore loads JSON documents from a directory and serves them over HTTP.
Every edit is recorded as JSON patches that can be undone and redone.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Load the documents and start the HTTP server",
		RunE:  runServe,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "Path to configuration file")

	serveCmd.Flags().StringVarP(&rootDir, "dir", "d", "", "Directory containing the JSON documents (overrides config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().IntVar(&historyLimit, "history-limit", 0, "Maximum number of undoable records (overrides config)")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd, configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	log.Printf("Generating default configuration file at %s", path)
	if err := config.SaveDefaultConfig(path); err != nil {
		return err
	}
	log.Printf("Configuration file generated successfully")
	return nil
}

// loadServeConfig reads the configuration file and applies flag overrides
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Printf("Config file %s not found, using default configuration", configPath)
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Server.RootDir = rootDir
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("history-limit") {
		cfg.History.Limit = historyLimit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// Set up the TLS certificate if needed
	if cfg.TLS.Enabled && cfg.TLS.GenerateCert {
		if err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hosts, logger); err != nil {
			return fmt.Errorf("failed to set up TLS certificate: %w", err)
		}
	}

	reg := store.NewRegistry()
	catalog := documents.NewCatalog(reg)
	sess := store.NewSession(reg, store.WithLogger(logger), store.WithHistoryLimit(cfg.History.Limit))

	loader := seed.NewLoader(cfg.Server.RootDir, cfg.Watch.Extension, catalog, sess, logger)
	n, err := loader.LoadAll()
	if err != nil {
		return err
	}
	log.Printf("Loaded %d documents from %s", n, cfg.Server.RootDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		go func() {
			if err := loader.Watch(ctx); err != nil {
				logger.Error("file watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg, sess, catalog, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// subscription streams only end when the server closes them
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if cfg.TLS.Enabled {
		log.Printf("patchstore running at https://localhost%s", httpServer.Addr)
		log.Printf("Using TLS certificate: %s", cfg.TLS.CertFile)
		err = httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		log.Printf("patchstore running at http://localhost%s", httpServer.Addr)
		err = httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
