package config

import (
	"errors"
	"os"
	"strings"
)

// ErrMissingCredentials is returned when neither COUCHDB_PWD nor its alias
// COUCHDB_PASSWORD is set alongside COUCHDB_USER.
var ErrMissingCredentials = errors.New("CouchDB credentials not configured")

// Config is the daemon configuration, read-only after load.
//
// The top-level keys keep the legacy names of the data/config.json format
// (`UpdateIntervalSeconds`, `IdPs`, `CouchDBservers`); unknown keys in the
// file are ignored.
type Config struct {
	// UpdateIntervalSeconds is the spacing between reconciliation ticks
	UpdateIntervalSeconds int `koanf:"UpdateIntervalSeconds"`

	// IdPs lists identity provider base URLs, no trailing slash
	IdPs []string `koanf:"IdPs"`

	// CouchDBServers lists CouchDB server base URLs, no trailing slash
	CouchDBServers []string `koanf:"CouchDBservers"`

	// Server configures the daemon's own HTTP surface
	Server ServerConfig `koanf:"server"`

	// Fixtures, when non-empty, runs every HTTP client over canned
	// responses instead of the network (hermetic mode)
	Fixtures []FixtureConfig `koanf:"http_fixtures"`
}

// ServerConfig configures the status/static HTTP listener
type ServerConfig struct {
	HTTPPort  int    `koanf:"http_port"`
	StaticDir string `koanf:"static_dir"`
}

// FixtureConfig describes one entry of the hermetic-mode fixture set
type FixtureConfig struct {
	// Type is "http_rule", "idp", or "couchdb"
	Type string `koanf:"type"`

	// http_rule fields
	Request  FixtureRequestConfig  `koanf:"request"`
	Response FixtureResponseConfig `koanf:"response"`

	// idp fields
	Issuer    string `koanf:"issuer"`
	KeyID     string `koanf:"key_id"`
	Algorithm string `koanf:"algorithm"`

	// couchdb fields
	BaseURL string   `koanf:"base_url"`
	Nodes   []string `koanf:"nodes"`
}

// FixtureRequestConfig matches requests for an http_rule fixture
type FixtureRequestConfig struct {
	Method  string            `koanf:"method"`
	URL     string            `koanf:"url"`
	URLType string            `koanf:"url_type"`
	Headers map[string]string `koanf:"headers"`
}

// FixtureResponseConfig is the canned response of an http_rule fixture
type FixtureResponseConfig struct {
	StatusCode int               `koanf:"status_code"`
	Headers    map[string]string `koanf:"headers"`
	Body       string            `koanf:"body"`
}

// Credentials resolves the CouchDB Basic-auth credentials from the process
// environment. COUCHDB_PWD is canonical; COUCHDB_PASSWORD is accepted as an
// alias when COUCHDB_PWD is unset. Without credentials every CouchDB call
// is rejected by the server, so callers should surface the error loudly but
// may keep running.
func Credentials() (user, password string, err error) {
	user = os.Getenv("COUCHDB_USER")
	password = os.Getenv("COUCHDB_PWD")
	if password == "" {
		password = os.Getenv("COUCHDB_PASSWORD")
	}
	if user == "" || password == "" {
		return user, password, ErrMissingCredentials
	}
	return user, password, nil
}

// normalize strips trailing slashes from the configured base URLs
func (c *Config) normalize() {
	for i, u := range c.IdPs {
		c.IdPs[i] = strings.TrimSuffix(u, "/")
	}
	for i, u := range c.CouchDBServers {
		c.CouchDBServers[i] = strings.TrimSuffix(u, "/")
	}
}
