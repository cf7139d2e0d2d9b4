package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/beyonddemise/couchdb-idp-updater/internal/clock"
	"github.com/beyonddemise/couchdb-idp-updater/internal/couchdb"
	"github.com/beyonddemise/couchdb-idp-updater/internal/httpfixture"
	"github.com/beyonddemise/couchdb-idp-updater/internal/idp"
	"github.com/beyonddemise/couchdb-idp-updater/internal/probe"
	"github.com/beyonddemise/couchdb-idp-updater/internal/reconciler"
	"github.com/beyonddemise/couchdb-idp-updater/internal/server"
	"github.com/beyonddemise/couchdb-idp-updater/internal/status"
	"github.com/beyonddemise/couchdb-idp-updater/internal/updater"
)

// Provider constructs all application components from configuration.
// This is the main entry point for building a configured daemon instance.
type Provider struct {
	config *Config
	clock  clock.Clock
	logger *slog.Logger

	// Lazily constructed components (cached after first call)
	httpClient  *http.Client
	statusStore *status.Store
	clients     []*couchdb.Client
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		config: config,
		clock:  clock.NewSystemClock(),
		logger: logger,
	}
}

// SetClock overrides the clock used by all components built by this
// provider. Must be called before any component is built.
func (p *Provider) SetClock(clk clock.Clock) {
	p.clock = clk
}

// HTTPClient returns the shared HTTP client. With fixtures configured the
// client runs over the fixture transport and never touches the network.
func (p *Provider) HTTPClient() (*http.Client, error) {
	if p.httpClient != nil {
		return p.httpClient, nil
	}

	fixtureProvider, err := BuildHTTPFixtureProvider(p.config.Fixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP fixtures: %w", err)
	}

	if fixtureProvider != nil {
		p.logger.Info("hermetic mode: HTTP traffic served from fixtures",
			"fixtures", len(p.config.Fixtures))
		p.httpClient = httpfixture.NewTransport(httpfixture.TransportConfig{
			Provider: fixtureProvider,
			Strict:   true,
			Clock:    p.clock,
		}).Client()
		return p.httpClient, nil
	}

	p.httpClient = &http.Client{Timeout: 30 * time.Second}
	return p.httpClient, nil
}

// StatusStore returns the shared status store
func (p *Provider) StatusStore() *status.Store {
	if p.statusStore == nil {
		p.statusStore = status.NewStore(p.clock)
	}
	return p.statusStore
}

// Collector returns the key collector over all configured IdPs
func (p *Provider) Collector() (*idp.Collector, error) {
	client, err := p.HTTPClient()
	if err != nil {
		return nil, err
	}
	return idp.NewCollector(idp.CollectorConfig{
		IdPs:    p.config.IdPs,
		Fetcher: idp.NewFetcher(idp.FetcherConfig{HTTPClient: client}),
		Logger:  p.logger,
	}), nil
}

// CouchDBClients returns one client per configured server. Missing
// credentials are reported loudly but do not abort startup; the affected
// calls fail against the server instead.
func (p *Provider) CouchDBClients() ([]*couchdb.Client, error) {
	if p.clients != nil {
		return p.clients, nil
	}

	user, password, err := Credentials()
	if err != nil {
		p.logger.Warn("CouchDB calls will be unauthenticated", "error", err)
	}

	httpClient, err := p.HTTPClient()
	if err != nil {
		return nil, err
	}

	clients := make([]*couchdb.Client, 0, len(p.config.CouchDBServers))
	for _, baseURL := range p.config.CouchDBServers {
		client, err := couchdb.NewClient(couchdb.ClientConfig{
			BaseURL:    baseURL,
			User:       user,
			Password:   password,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", baseURL, err)
		}
		clients = append(clients, client)
	}
	p.clients = clients
	return clients, nil
}

// Reconciler assembles the full reconciliation pipeline
func (p *Provider) Reconciler() (*reconciler.Reconciler, error) {
	collector, err := p.Collector()
	if err != nil {
		return nil, err
	}
	clients, err := p.CouchDBClients()
	if err != nil {
		return nil, err
	}

	distributor := updater.NewDistributor(updater.DistributorConfig{
		Store:    p.StatusStore(),
		Observer: probe.NewLoggingObserver(p.logger),
		Clock:    p.clock,
		Logger:   p.logger,
	})

	return reconciler.New(reconciler.Config{
		Collector:   collector,
		Distributor: distributor,
		Clients:     clients,
		Interval:    time.Duration(p.config.UpdateIntervalSeconds) * time.Second,
		Clock:       p.clock,
		Logger:      p.logger,
	}), nil
}

// ServerConfig returns the HTTP server configuration
func (p *Provider) ServerConfig() server.Config {
	return server.Config{
		HTTPPort:  p.config.Server.HTTPPort,
		StaticDir: p.config.Server.StaticDir,
		Store:     p.StatusStore(),
		Logger:    p.logger,
	}
}
