package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/beyonddemise/couchdb-idp-updater/internal/clock"
	"github.com/beyonddemise/couchdb-idp-updater/internal/couchdb"
	"github.com/beyonddemise/couchdb-idp-updater/internal/status"
)

const defaultRestartDelay = 5 * time.Second

// RestartCounter serializes restart staggering across all node updates of
// one tick. The n-th node to finish its writes waits n times the stagger
// delay before its restart is posted.
type RestartCounter struct {
	n atomic.Int64
}

// NewRestartCounter creates a counter starting at zero
func NewRestartCounter() *RestartCounter {
	return &RestartCounter{}
}

// Next returns the next 1-indexed position
func (c *RestartCounter) Next() int64 {
	return c.n.Add(1)
}

// Distributor pushes a desired key set onto CouchDB nodes: per-node diff,
// PUT of changed keys, and a staggered restart when anything was written.
type Distributor struct {
	store        *status.Store
	observer     Observer
	clock        clock.Clock
	restartDelay time.Duration
	logger       *slog.Logger
}

// DistributorConfig configures a Distributor
type DistributorConfig struct {
	// Store receives a timestamp for every successful key write
	Store *status.Store

	// Observer receives distribution lifecycle events.
	// If nil, events are dropped.
	Observer Observer

	// Clock is used for the restart stagger delay (defaults to system clock)
	Clock clock.Clock

	// RestartDelay is the per-position stagger spacing.
	// If zero, defaults to 5 seconds.
	RestartDelay time.Duration

	// Logger is the structured logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// NewDistributor creates a new distributor
func NewDistributor(cfg DistributorConfig) *Distributor {
	if cfg.Observer == nil {
		cfg.Observer = NoOpObserver{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystemClock()
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		store:        cfg.Store,
		observer:     cfg.Observer,
		clock:        cfg.Clock,
		restartDelay: cfg.RestartDelay,
		logger:       logger,
	}
}

// UpdateNode reconciles one node's jwt_keys section with the desired set.
//
// The node's current config is read once, every changed or missing key is
// written, and a restart is scheduled iff at least one write succeeded.
// Keys present on the node but absent from the desired set are left alone.
// A failing write does not stop the remaining writes.
func (d *Distributor) UpdateNode(ctx context.Context, client *couchdb.Client, node string, desired map[string]string, counter *RestartCounter) error {
	server := client.BaseURL()

	current, err := client.JWTKeys(ctx, node)
	if err != nil {
		return err
	}

	var writeErrs []error
	written := 0
	changed := 0
	for _, keyID := range slices.Sorted(maps.Keys(desired)) {
		pem := desired[keyID]
		if current[keyID] == pem {
			continue
		}
		changed++

		url := client.KeyURL(node, keyID)
		if err := client.PutJWTKey(ctx, node, keyID, pem); err != nil {
			d.observer.KeyWriteFailed(url, err)
			writeErrs = append(writeErrs, err)
			continue
		}
		d.observer.KeyWritten(url)
		d.store.Record(url)
		written++
	}

	d.observer.NodeDiffed(server, node, len(desired), changed)

	if written > 0 {
		d.scheduleRestart(ctx, client, node, counter)
	}

	if len(writeErrs) > 0 {
		return fmt.Errorf("node %s on %s: %w", node, server, errors.Join(writeErrs...))
	}
	return nil
}

// scheduleRestart waits out the node's stagger slot and posts the restart.
// Restart failure is reported but never fails the update.
func (d *Distributor) scheduleRestart(ctx context.Context, client *couchdb.Client, node string, counter *RestartCounter) {
	delay := time.Duration(counter.Next()) * d.restartDelay
	d.observer.RestartScheduled(client.BaseURL(), node, delay)

	d.clock.Sleep(delay)

	if err := client.Restart(ctx, node); err != nil {
		d.observer.RestartFailed(client.BaseURL(), node, err)
		return
	}
	d.observer.RestartSent(client.BaseURL(), node)
}
