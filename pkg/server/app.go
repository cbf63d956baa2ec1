package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/realtime"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/usecase"
	pkgcache "github.com/yybrother989/tesla-trading-agent-sub000/pkg/cache"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	store      domrepo.BarStore
	cache      pkgcache.Service
	bridge     *realtime.Bridge
	hub        *realtime.Hub
	scheduler  *usecase.Scheduler // nil when disabled
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.BarStore,
	cache pkgcache.Service,
	bridge *realtime.Bridge,
	hub *realtime.Hub,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		store:      store,
		cache:      cache,
		bridge:     bridge,
		hub:        hub,
		scheduler:  scheduler,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The bridge must be pumping before anything can publish to the bus.
	if err := a.bridge.Start(ctx); err != nil {
		a.l.Error("bridge start error", applogger.Error(err))
		return err
	}
	a.l.Info("realtime bridge started", applogger.String("bus", a.cfg.Bus.Type))

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			a.l.Error("scheduler start error", applogger.Error(err))
			return err
		}
		a.l.Info("scheduler started",
			applogger.Strings("symbols", a.cfg.Scheduler.Symbols),
			applogger.String("granularity", a.cfg.Scheduler.Granularity),
			applogger.Duration("interval", a.cfg.Scheduler.Interval),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops everything in reverse order: HTTP first so no new requests
// arrive, then the producers, then the fanout, then storage.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Closing the bridge also closes the bus underneath it.
	if err := a.bridge.Close(); err != nil {
		a.l.Warn("bridge close error", applogger.Error(err))
	}

	if err := a.hub.Close(); err != nil {
		a.l.Warn("hub close error", applogger.Error(err))
	}

	if err := a.cache.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}

	if err := a.store.Close(); err != nil {
		a.l.Warn("store close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return nil
}
