// Package server wires the relay: storage backend, services, realtime hub
// and the HTTP API, and runs them until the context is canceled.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/recochat/internal/logging"
	"github.com/dmitrijs2005/recochat/internal/server/config"
	"github.com/dmitrijs2005/recochat/internal/server/httpapi"
	"github.com/dmitrijs2005/recochat/internal/server/hub"
	"github.com/dmitrijs2005/recochat/internal/server/metrics"
	"github.com/dmitrijs2005/recochat/internal/server/services"
	"github.com/dmitrijs2005/recochat/internal/server/storage"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       storage.Storage
	metrics     *metrics.Metrics
	hub         *hub.Hub
	userService *services.UserService
	chatService *services.ChatService
}

// openStorage is a seam for tests.
var openStorage = func(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StoragePostgres:
		return storage.OpenPostgres(ctx, cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	store, err := openStorage(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	m := metrics.New()
	h := hub.New(services.NewMembership(store), logger, m)

	return &App{
		config:      c,
		logger:      logger,
		store:       store,
		metrics:     m,
		hub:         h,
		userService: services.NewUserService(store, c),
		chatService: services.NewChatService(store, h, logger),
	}, nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.ListenAddr, app.logger, app.userService, app.chatService,
		app.hub, app.metrics, app.config.AllowedOrigins)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is canceled or the HTTP server fails, then closes
// the storage backend.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "storage close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
