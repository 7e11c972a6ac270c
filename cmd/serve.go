package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/handlers"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the view-in-room web server",
		Long: `Starts the roomview HTTP server.

The server exposes the rug catalog, the view-in-room endpoint used by the
storefront, in-memory visualization sessions with live progress events, and
a render endpoint for manual placement exports.`,
		Example: `  # Start server on default port 8888
  roomview serve

  # Start server on custom port with a catalog file
  CATALOG_PATH=rugs.parquet roomview serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configuration()
			if port != "" {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				slog.Warn("AI configuration incomplete; view-in-room requests will fail", "err", err)
			}

			cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.AssetsDir)
			if err != nil {
				return err
			}
			if missing := cat.MissingAssets(); len(missing) > 0 {
				slog.Warn("Rug images not found; sessions for these rugs will fail", "assets_dir", cfg.Catalog.AssetsDir, "rugs", missing)
			}
			svc, err := visualize.FromConfig(cfg)
			if err != nil {
				return err
			}

			// Background attempts outlive their request but not the server
			baseCtx, cancelAttempts := context.WithCancel(context.Background())
			defer cancelAttempts()

			handler := handlers.New(handlers.Options{
				Catalog:        cat,
				Visualizer:     svc,
				Fetcher:        ingest.NewFetcher(cfg.Pipeline.FetchTimeout.Duration),
				StageDelay:     cfg.Pipeline.StageDelay.Duration,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				StaticDir:      cfg.Server.StaticDir,
				BaseContext:    baseCtx,
			})

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Routes(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Roomview available", "addr", addr, "url", "http://localhost"+addr, "rugs", len(cat.All()))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				cancelAttempts()
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from PORT or 8888)")

	return cmd
}
