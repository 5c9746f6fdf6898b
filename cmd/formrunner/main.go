package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formrunner/internal/config"
	"github.com/goliatone/go-formrunner/internal/render"
	"github.com/goliatone/go-formrunner/internal/server"
	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("formrunner: build logger: %w", err)
	}
	defer logger.Sync()

	registry := form.NewRegistry()
	if cfg.FormsDir != "" {
		if err := seedForms(registry, cfg.FormsDir, logger); err != nil {
			return err
		}
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithWebhookClient(transport.NewWebhookClient(transport.WithWebhookLogger(logger))),
	}
	if cfg.NotifyURL != "" {
		opts = append(opts, server.WithNotifier(
			transport.NewNotifyClient(cfg.NotifyURL, transport.WithNotifyLogger(logger))))
	}
	if cfg.DatabaseURL != "" {
		queue, err := transport.NewPostgresQueue(context.Background(), cfg.DatabaseURL,
			transport.WithQueueLogger(logger))
		if err != nil {
			return err
		}
		defer queue.Close()
		opts = append(opts, server.WithQueue(queue))
	}
	if cfg.TemplatesDir != "" {
		engine, err := render.New(
			render.WithBaseDir(cfg.TemplatesDir),
			render.WithGlobalData(map[string]any{"serviceName": cfg.ServiceName}),
		)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithEngine(engine))
	}

	srv, err := server.New(cfg, registry, opts...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("formrunner: serve: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("formrunner: shutdown: %w", err)
		}
	}
	return nil
}

// seedForms publishes every JSON definition in the forms directory under its
// filename stem.
func seedForms(registry *form.Registry, dir string, logger *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("formrunner: read forms dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := definition.ParseFile(path)
		if err != nil {
			return fmt.Errorf("formrunner: load %q: %w", path, err)
		}
		model, err := form.New(def)
		if err != nil {
			return fmt.Errorf("formrunner: build %q: %w", path, err)
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		if _, err := registry.Publish(id, model); err != nil {
			return err
		}
		logger.Info("form loaded", zap.String("form", id), zap.String("path", path))
	}
	return nil
}
