// Package gametable parses command flags and composes the session sync
// service: storage, domain services, gateway, and HTTP transport.
package gametable

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mhersch/gametable/internal/approval/workflow"
	"github.com/mhersch/gametable/internal/broadcast"
	"github.com/mhersch/gametable/internal/character"
	"github.com/mhersch/gametable/internal/decision"
	"github.com/mhersch/gametable/internal/gateway"
	"github.com/mhersch/gametable/internal/membership"
	"github.com/mhersch/gametable/internal/notification"
	entrypoint "github.com/mhersch/gametable/internal/platform/cmd"
	"github.com/mhersch/gametable/internal/state"
	"github.com/mhersch/gametable/internal/storage/sqlite"
	"github.com/mhersch/gametable/internal/transport/httpapi"
)

// Config holds gametable command configuration.
type Config struct {
	HTTPAddr string `env:"GAMETABLE_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"GAMETABLE_DB_PATH"   envDefault:"gametable.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "gametable HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires the service and serves HTTP until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGametable, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close storage: %v", err)
			}
		}()

		members := membership.NewService(store, nil, nil)
		decisions := decision.NewService(store, nil, nil)
		characters := character.NewService(store, nil, nil)
		notifications := notification.NewService(store, nil, nil)
		notifier := notification.NewEmitter(notifications)
		reviews := workflow.NewService(store, store, notifier, nil)
		gw := gateway.NewService(state.NewRegistry(), members, decisions, reviews, broadcast.NewHub(), nil)

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewHandler(gw, characters, notifications),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("listening on %s", cfg.HTTPAddr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve gametable: %w", err)
		}
	})
}
