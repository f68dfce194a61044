// Package daemon wires the debate engine together: store, registry,
// runner, gateway, and the retention job, with one lifecycle around
// them all.
package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/openagora/agora/internal/config"
	"github.com/openagora/agora/internal/logger"
	"github.com/openagora/agora/internal/observability"
	"github.com/openagora/agora/internal/retention"
	"github.com/openagora/agora/pkg/debate"
	"github.com/openagora/agora/pkg/gateway"
	"github.com/openagora/agora/pkg/llm"
	"github.com/openagora/agora/pkg/store"
)

// Daemon represents the Agora daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	store      *store.Store
	registry   *debate.Registry
	hub        *gateway.Hub
	runner     *debate.Runner
	controller *debate.Controller

	// Services
	gatewayServer *gateway.Server
	retentionJob  *retention.Job

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
	}

	if err := d.initializeCoreModules(); err != nil {
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}
	if err := d.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

// initializeCoreModules builds the debate core in dependency order.
func (d *Daemon) initializeCoreModules() error {
	zlog := d.logger.GetZerolog()

	st, err := store.New(store.Config{
		Path:   d.config.Database.Path,
		Logger: zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	d.store = st

	d.registry = debate.NewRegistry()
	d.hub = gateway.NewHub(zlog)

	creds := make([]llm.Credential, 0, len(d.config.AI.Profiles))
	for _, p := range d.config.AI.Profiles {
		creds = append(creds, llm.Credential{
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
	}

	d.runner = debate.NewRunner(debate.RunnerConfig{
		Store:    st,
		Hub:      d.hub,
		Opener:   llm.Factory{},
		Resolver: llm.NewStaticResolver(creds),
		Logger:   zlog,
	})

	d.controller = debate.NewController(debate.ControllerConfig{
		Registry: d.registry,
		Runner:   d.runner,
		Store:    st,
		Hub:      d.hub,
		Logger:   zlog,
	})

	// A debate without an audience pauses itself.
	d.hub.OnEmpty(d.controller.ReleaseOnDisconnect)

	return nil
}

// initializeServices builds the gateway and the retention job.
func (d *Daemon) initializeServices() error {
	srv, err := gateway.NewServer(gateway.Config{
		Port:         d.config.Gateway.Port,
		SharedSecret: d.config.Gateway.SharedSecret,
		Hub:          d.hub,
		Controller:   d.controller,
		Store:        d.store,
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = srv

	if d.config.Retention.Enabled {
		job, err := retention.New(retention.Config{
			Purger:   d.store,
			Schedule: d.config.Retention.Schedule,
			MaxAge:   d.config.Retention.MaxAge,
			Logger:   d.logger.GetZerolog(),
		})
		if err != nil {
			return fmt.Errorf("failed to create retention job: %w", err)
		}
		d.retentionJob = job
	}

	return nil
}

// Start starts all daemon services.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	if d.retentionJob != nil {
		if err := d.retentionJob.Start(); err != nil {
			return fmt.Errorf("failed to start retention job: %w", err)
		}
	}

	d.startTime = time.Now()
	d.running = true
	d.logger.Info().Msg("Daemon started")
	return nil
}

// Stop gracefully shuts down all services: running debates are paused
// at their next checkpoint before connections close.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.logger.Info().Msg("Shutting down daemon")

	d.registry.Shutdown()

	if d.retentionJob != nil {
		d.retentionJob.Stop()
	}

	if err := d.gatewayServer.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop gateway server")
	}

	if err := d.store.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close store")
	}

	d.running = false
	d.logger.Info().Dur("uptime", time.Since(d.startTime)).Msg("Daemon stopped")
	return nil
}

// Run starts the daemon and blocks until an interrupt arrives.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	d.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	return d.Stop()
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return 0
	}
	return time.Since(d.startTime)
}
