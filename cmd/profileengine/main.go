// Command profileengine runs the profile acquisition service: an HTTP
// API backed by a registry client, an embedded profile cache and a
// headless-browser scrape pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/socialproof/profile-engine/internal/acquire"
	"github.com/socialproof/profile-engine/internal/api"
	"github.com/socialproof/profile-engine/internal/archive"
	"github.com/socialproof/profile-engine/internal/clock/system"
	"github.com/socialproof/profile-engine/internal/config"
	"github.com/socialproof/profile-engine/internal/fetch"
	"github.com/socialproof/profile-engine/internal/logging"
	"github.com/socialproof/profile-engine/internal/metrics"
	"github.com/socialproof/profile-engine/internal/registry"
	"github.com/socialproof/profile-engine/internal/scrape"
	"github.com/socialproof/profile-engine/internal/session"
	"github.com/socialproof/profile-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "profileengine:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional; env vars with PROFILE_ prefix also apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := system.Clock{}

	profiles, err := store.Open(ctx, store.Config{
		Path: cfg.Cache.Path,
		TTL:  cfg.FreshnessTTL(),
	}, clk)
	if err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}
	defer profiles.Close()

	sessions, err := session.NewManager(session.Config{
		ExecPath:       cfg.Browser.ExecPath,
		UserAgent:      cfg.Source.UserAgent,
		MaxParallel:    cfg.Browser.MaxParallel,
		NavTimeout:     cfg.NavTimeout(),
		ReadyTimeout:   cfg.ReadyTimeout(),
		SourceQPS:      cfg.Browser.SourceQPS,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	}, logger)
	if err != nil {
		return fmt.Errorf("prepare browser sessions: %w", err)
	}
	defer sessions.Close()

	var probe *fetch.Probe
	if cfg.Probe.Enabled {
		probe = fetch.NewProbe(fetch.ProbeConfig{
			UserAgent: cfg.Source.UserAgent,
			Timeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		})
	}

	archiver, err := newArchiver(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("prepare snapshot archive: %w", err)
	}

	scraper := scrape.New(scrape.Config{
		SourceBaseURL: cfg.Source.BaseURL,
		ArchivePrefix: cfg.Archive.Prefix,
		ProbeEnabled:  cfg.Probe.Enabled,
	}, scrape.Sessions(sessions), probe, fetch.NewProfileDetector(), archiver, clk, logger)

	reg := registry.New(registry.Config{
		BaseURL: cfg.Registry.BaseURL,
		Timeout: time.Duration(cfg.Registry.TimeoutSeconds) * time.Second,
	})

	orchestrator := acquire.New(reg, profiles, scraper, clk, logger)
	server := api.NewServer(orchestrator, profiles, profiles, cfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("source", cfg.Source.BaseURL),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newArchiver selects the raw-snapshot provider from config. noop keeps
// the pipeline archive-free; local and gcs persist every scraped page
// for provenance.
func newArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.Provider, error) {
	switch cfg.Archive.Provider {
	case "local":
		return archive.NewLocal(cfg.Archive.LocalDir)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return archive.NewGCS(client, cfg.Archive.GCSBucket)
	default:
		logger.Info("snapshot archiving disabled")
		return archive.NoOp{}, nil
	}
}
