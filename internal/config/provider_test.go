package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyonddemise/couchdb-idp-updater/internal/clock"
)

// TestProvider_HermeticReconciliation runs a full tick with every HTTP call
// served from configured fixtures: no network, no real IdP, no real CouchDB.
func TestProvider_HermeticReconciliation(t *testing.T) {
	t.Setenv("COUCHDB_USER", "admin")
	t.Setenv("COUCHDB_PWD", "secret")

	cfg := &Config{
		UpdateIntervalSeconds: 60,
		IdPs:                  []string{"http://idp/realms/r"},
		CouchDBServers:        []string{"http://db"},
		Server:                ServerConfig{HTTPPort: 8080, StaticDir: "static"},
		Fixtures: []FixtureConfig{
			{
				Type:   "idp",
				Issuer: "http://idp/realms/r",
				KeyID:  "hermetic-key",
			},
			{
				Type:    "couchdb",
				BaseURL: "http://db",
				Nodes:   []string{"node1@db"},
			},
		},
	}

	provider := NewProvider(cfg, nil)
	provider.SetClock(clock.NewFixtureClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))

	rec, err := provider.Reconciler()
	require.NoError(t, err)

	require.NoError(t, rec.RunTick(context.Background()))

	snap := provider.StatusStore().Snapshot()
	require.Len(t, snap, 1)
	assert.Contains(t, snap, "http://db/_node/node1@db/_config/jwt_keys/rsa:hermetic-key")
}

func TestProvider_UnknownFixtureType(t *testing.T) {
	cfg := &Config{
		Fixtures: []FixtureConfig{{Type: "carrier_pigeon"}},
	}

	provider := NewProvider(cfg, nil)
	_, err := provider.HTTPClient()
	require.Error(t, err)
}

func TestBuildHTTPFixtureProvider_EmptyMeansProduction(t *testing.T) {
	p, err := BuildHTTPFixtureProvider(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}
