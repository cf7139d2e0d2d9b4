package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/beyonddemise/couchdb-idp-updater/internal/clock"
	"github.com/beyonddemise/couchdb-idp-updater/internal/couchdb"
	"github.com/beyonddemise/couchdb-idp-updater/internal/idp"
	"github.com/beyonddemise/couchdb-idp-updater/internal/updater"
)

const (
	defaultStartupDelay = 10 * time.Second
	defaultInterval     = 6 * time.Hour
)

// Reconciler drives the periodic key reconciliation: collect keys from all
// IdPs, then fan the distribution out across every configured CouchDB
// server. One full pass is a tick.
type Reconciler struct {
	collector   *idp.Collector
	distributor *updater.Distributor
	clients     []*couchdb.Client

	clock        clock.Clock
	interval     time.Duration
	startupDelay time.Duration
	logger       *slog.Logger

	ticker clock.Ticker
	ready  atomic.Bool

	// gate keeps ticks from overlapping: a tick that fires while the
	// previous one is still running is skipped, not queued
	gate sync.Mutex
}

// Config configures a Reconciler
type Config struct {
	// Collector assembles the desired key set each tick
	Collector *idp.Collector

	// Distributor pushes the key set onto cluster nodes
	Distributor *updater.Distributor

	// Clients are the configured CouchDB servers
	Clients []*couchdb.Client

	// Interval is the spacing between ticks
	Interval time.Duration

	// StartupDelay postpones the first tick after Start.
	// If zero, defaults to 10 seconds.
	StartupDelay time.Duration

	// Clock is used for all scheduling (defaults to system clock)
	Clock clock.Clock

	// Logger is the structured logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// New creates a reconciler
func New(cfg Config) *Reconciler {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystemClock()
	}
	if cfg.StartupDelay == 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		collector:    cfg.Collector,
		distributor:  cfg.Distributor,
		clients:      cfg.Clients,
		clock:        cfg.Clock,
		interval:     cfg.Interval,
		startupDelay: cfg.StartupDelay,
		logger:       logger,
	}
}

// Start schedules the periodic ticks: one after the startup delay, then one
// every interval. It returns immediately.
func (r *Reconciler) Start(ctx context.Context) error {
	go func() {
		r.clock.Sleep(r.startupDelay)
		r.ready.Store(true)
		r.runTick(ctx)
	}()

	r.ticker = r.clock.Ticker(r.interval)
	return r.ticker.Start(func(tickCtx context.Context) {
		// Stopping the ticker must not cut short a tick already running
		r.runTick(context.WithoutCancel(tickCtx))
	})
}

// Stop stops the periodic timer. An in-flight tick is left to finish;
// nothing is cancelled.
func (r *Reconciler) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
}

// Ready reports whether the startup delay has elapsed and the first tick
// has begun
func (r *Reconciler) Ready() bool {
	return r.ready.Load()
}

// runTick wraps RunTick with the single-flight gate
func (r *Reconciler) runTick(ctx context.Context) {
	if !r.gate.TryLock() {
		r.logger.Warn("previous tick still running, skipping this one")
		return
	}
	defer r.gate.Unlock()

	if err := r.RunTick(ctx); err != nil {
		r.logger.Error("tick failed", "error", err)
	}
}

// RunTick executes one reconciliation pass: collect the desired key set,
// then update every configured server's cluster. All server branches are
// awaited; their failures are aggregated, not short-circuited.
func (r *Reconciler) RunTick(ctx context.Context) error {
	tickID := uuid.NewString()
	started := r.clock.Now()
	logger := r.logger.With("tick", tickID)
	logger.Info("tick started", "servers", len(r.clients))

	desired, err := r.collector.Collect(ctx)
	if err != nil {
		return err
	}

	if len(desired) == 0 {
		logger.Info("tick completed as no-op, no keys to distribute")
		return nil
	}

	// A fresh counter per tick keeps the restart stagger bounded: the
	// first restarted node of any tick waits one delay slot, not the sum
	// of every slot handed out since process start.
	counter := updater.NewRestartCounter()

	var mu sync.Mutex
	var serverErrs []error

	var g errgroup.Group
	for _, client := range r.clients {
		g.Go(func() error {
			if err := r.distributor.UpdateCluster(ctx, client, desired, counter); err != nil {
				logger.Warn("server update failed",
					"server", client.BaseURL(), "error", err)
				mu.Lock()
				serverErrs = append(serverErrs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("tick completed",
		"keys", len(desired),
		"failed_servers", len(serverErrs),
		"duration", r.clock.Now().Sub(started),
	)

	return errors.Join(serverErrs...)
}
