package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/recochat/internal/client/client"
	"github.com/dmitrijs2005/recochat/internal/client/config"
	"github.com/dmitrijs2005/recochat/internal/client/keystore"
	"github.com/dmitrijs2005/recochat/internal/client/realtime"
	"github.com/dmitrijs2005/recochat/internal/client/repositories/chats"
	"github.com/dmitrijs2005/recochat/internal/client/repositories/profile"
	"github.com/dmitrijs2005/recochat/internal/client/services"
	"github.com/dmitrijs2005/recochat/internal/client/session"
	"github.com/dmitrijs2005/recochat/internal/client/storage"
	"github.com/dmitrijs2005/recochat/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	api     client.Client
	rt      *realtime.Conn
	profile profile.Repository
	chats   chats.Repository
	out     io.Writer
	reader  *bufio.Reader

	mu          sync.Mutex
	Mode        Mode
	userID      string
	displayName string
	provisioner services.Provisioner
	session     *session.Session
	stopWatch   context.CancelFunc

	// live printing state of the open conversation
	live      bool
	lastShown string
}

// NewApp opens the local database and builds the client stack. Identity
// comes from cfg, falling back to the profile saved by a previous register.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := storage.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	prof := profile.NewSQLiteRepository(db)
	saved, err := profile.Load(ctx, prof)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	userID := firstNonEmpty(cfg.UserID, saved.UserID)
	token := firstNonEmpty(cfg.AccessToken, saved.AccessToken)
	name := firstNonEmpty(cfg.DisplayName, saved.DisplayName)

	api, err := client.NewHTTPClient(cfg.ServerURL, token, cfg.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		api:     api,
		rt:      realtime.NewConn(cfg.RealtimeURL, token, logger),
		profile: prof,
		chats:   chats.NewSQLiteRepository(db),
		out:     os.Stdout,
		reader:  bufio.NewReader(os.Stdin),
		Mode:    ModeOffline,
	}
	if userID != "" {
		a.bindUser(userID, name)
	}
	return a, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// bindUser (re)builds the services that depend on the user's identity.
func (a *App) bindUser(userID, name string) {
	if name == "" {
		name = userID
	}
	kx := services.NewKeyExchange(a.api, keystore.NewSQLiteStore(a.db), userID, a.logger)
	s := session.New(a.api, kx, a.rt, userID, name, a.logger)

	a.mu.Lock()
	old, stop := a.session, a.stopWatch
	a.userID = userID
	a.displayName = name
	a.provisioner = services.NewProvisioner(a.api, a.db, userID, a.logger)
	a.session = s
	a.lastShown = ""
	a.live = false
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if old != nil {
		_ = old.Close()
	}
	go a.watchSession(ctx, s)
}

func (a *App) isRegistered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID != ""
}

func (a *App) current() (*session.Session, services.Provisioner, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.provisioner, a.userID
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "connection mode changed", "mode", mode)
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := ""
	if a.displayName != "" {
		s = a.displayName + " "
	}
	s += string(a.Mode)
	if a.session != nil {
		if id := a.session.ChatID(); id != "" {
			s += " #" + id
		}
	}
	return fmt.Sprintf("(%s)", s)
}

// Run starts the connectivity watcher and the REPL on stdin. It blocks until
// the user exits or stdin ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("Welcome to recochat (type 'help' for commands)")
	a.checkOnline(ctx)
	if a.isRegistered() {
		a.ensureKeys(ctx)
	}
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// ensureKeys provisions an identity key pair when the device has none.
func (a *App) ensureKeys(ctx context.Context) {
	_, prov, _ := a.current()
	created, err := prov.EnsureProvisioned(ctx)
	if err != nil {
		a.logger.Warn(ctx, "identity key not provisioned", "error", err)
		printlnFn("Warning: this device has no usable identity key; run 'keygen' when online")
		return
	}
	if created {
		printlnFn("Generated a new identity key for this device")
	}
}

// StartOnlineStatusWatcher probes the relay every interval, tracks
// online/offline mode and keeps the realtime connection up.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.api.Ping(pctx)
	cancel()
	if err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)

	if !a.isRegistered() {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.rt.Connect(cctx); err != nil && !errors.Is(err, realtime.ErrAlreadyConnected) {
		a.logger.Warn(ctx, "realtime connect failed", "error", err)
	}
}

// watchSession prints messages appended to the open conversation.
func (a *App) watchSession(ctx context.Context, s *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.Updates():
			if !ok {
				return
			}
			a.printNew(s)
		}
	}
}

func (a *App) Close() {
	a.mu.Lock()
	s, stop := a.session, a.stopWatch
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if s != nil {
		_ = s.Close()
	}
	_ = a.rt.Close()
	_ = a.api.Close()
	_ = a.db.Close()
}
