// Package app assembles the service: stores, platform client, tenant
// registry, dispatcher, monitor scheduler, and the gateway server.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"modwatch/internal/commands"
	"modwatch/internal/config"
	"modwatch/internal/control"
	"modwatch/internal/dispatch"
	"modwatch/internal/gateway"
	"modwatch/internal/menu"
	"modwatch/internal/monitor"
	"modwatch/internal/platform"
	"modwatch/internal/registry"
	"modwatch/internal/report"
	"modwatch/internal/store"
	"modwatch/pkg/interfaces"
)

const shutdownTimeout = 30 * time.Second

// Application owns every long-lived component and their lifecycle order.
type Application struct {
	cfg *config.Config

	settings   interfaces.SettingsStore
	state      interfaces.TenantStateStore
	registry   *registry.Registry
	menus      *menu.Registry
	dispatcher *dispatch.Dispatcher
	scheduler  *monitor.Scheduler
	server     *gateway.Server
}

// New builds the full component graph from cfg. Nothing is started yet.
func New(cfg *config.Config) (*Application, error) {
	settings, err := openSettings(cfg)
	if err != nil {
		return nil, err
	}

	state, err := openState(cfg)
	if err != nil {
		_ = settings.Close()
		return nil, err
	}

	client := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token,
		cfg.Platform.RequestsPerSec, cfg.Platform.Burst)

	reg := registry.New(settings, state, client)
	menus := menu.New(client, time.Duration(cfg.Menu.LifetimeSeconds)*time.Second)
	reporter := report.New(client)
	dispatcher := dispatch.New(cfg.Dispatcher.QueueSize, cfg.Dispatcher.Workers, reporter)

	scheduler := monitor.NewScheduler(reg, settings, client, control.DefaultRules(), monitor.SchedulerConfig{
		Period:          time.Duration(cfg.Monitor.PeriodSeconds) * time.Second,
		MinSamples:      cfg.Monitor.MinSamples,
		ForceFloorAfter: time.Duration(cfg.Monitor.ForceFloorSeconds) * time.Second,
		ApplyTimeout:    time.Duration(cfg.Monitor.ApplyTimeoutSeconds) * time.Second,
	})

	env := &commands.Env{
		Registry: reg,
		Settings: settings,
		Platform: client,
		Menus:    menus,
	}
	server := gateway.NewServer(cfg.ListenAddr(), gateway.NewHandler(env, dispatcher))

	return &Application{
		cfg:        cfg,
		settings:   settings,
		state:      state,
		registry:   reg,
		menus:      menus,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		server:     server,
	}, nil
}

func openSettings(cfg *config.Config) (interfaces.SettingsStore, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.Database.URL)
	default:
		return store.NewSQLiteStore(cfg.Database.Path)
	}
}

func openState(cfg *config.Config) (interfaces.TenantStateStore, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return store.NewRedisStateStore(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	default:
		return store.NewMemoryStateStore(), nil
	}
}

// Run starts every component and blocks until ctx is canceled or a worker
// reports an unrecoverable failure, then shuts down in order.
func (a *Application) Run(ctx context.Context) error {
	if err := a.settings.HealthCheck(ctx); err != nil {
		return fmt.Errorf("settings store unavailable: %w", err)
	}

	// Components get their own lifetime context so a canceled run context
	// still allows the ordered drain in shutdown.
	runCtx := context.Background()
	if err := a.dispatcher.Start(runCtx); err != nil {
		return err
	}
	if err := a.scheduler.Start(runCtx); err != nil {
		a.stopDispatcher()
		return err
	}
	if err := a.server.Start(); err != nil {
		a.stopScheduler()
		a.stopDispatcher()
		return err
	}
	log.Printf("service started: addr=%s db=%s cache=%s",
		a.cfg.ListenAddr(), a.cfg.Database.Driver, a.cfg.Cache.Backend)

	var cause error
	select {
	case <-ctx.Done():
		log.Println("shutdown requested")
	case err := <-a.dispatcher.Fatal():
		log.Printf("unrecoverable failure, shutting down: err=%v", err)
		cause = err
	}

	a.shutdown()
	return cause
}

// shutdown tears components down in dependency order: stop taking events,
// drain pending commands, stop the control loop, then release resources.
func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		log.Printf("gateway stop failed: err=%v", err)
	}
	a.stopDispatcher()
	a.stopScheduler()
	a.menus.Close()

	if err := a.state.Close(); err != nil {
		log.Printf("state store close failed: err=%v", err)
	}
	if err := a.settings.Close(); err != nil {
		log.Printf("settings store close failed: err=%v", err)
	}
	log.Println("service stopped")
}

func (a *Application) stopDispatcher() {
	if err := a.dispatcher.Stop(); err != nil {
		log.Printf("dispatcher stop failed: err=%v", err)
	}
}

func (a *Application) stopScheduler() {
	if err := a.scheduler.Stop(); err != nil {
		log.Printf("scheduler stop failed: err=%v", err)
	}
}
