package idp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/beyonddemise/couchdb-idp-updater/internal/keys"
)

// ErrNoKeys is returned when every configured IdP failed to contribute keys.
// It keeps a broken discovery setup from silently rewriting nothing.
var ErrNoKeys = errors.New("no keys retrieved from any identity provider")

// Collector fans JWKS fetching across all configured IdPs and assembles a
// unified key-id -> single-line PEM map.
type Collector struct {
	idps    []string
	fetcher *Fetcher
	logger  *slog.Logger
}

// CollectorConfig configures a Collector
type CollectorConfig struct {
	// IdPs is the ordered list of IdP base URLs (no trailing slash)
	IdPs []string

	// Fetcher resolves each IdP's JWKS document
	Fetcher *Fetcher

	// Logger is the structured logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// NewCollector creates a new key collector
func NewCollector(cfg CollectorConfig) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		idps:    cfg.IdPs,
		fetcher: cfg.Fetcher,
		logger:  logger,
	}
}

// Collect fetches every IdP's JWKS concurrently, waits for all branches, and
// merges the converted keys. A failing IdP contributes nothing and does not
// abort its siblings. With no IdPs configured the result is an empty map and
// no error; otherwise an empty merge fails with ErrNoKeys.
func (c *Collector) Collect(ctx context.Context) (map[string]string, error) {
	if len(c.idps) == 0 {
		c.logger.Info("no identity providers configured, nothing to collect")
		return map[string]string{}, nil
	}

	var mu sync.Mutex
	merged := make(map[string]string)

	var g errgroup.Group
	for _, baseURL := range c.idps {
		g.Go(func() error {
			jwks, err := c.fetcher.FetchJWKS(ctx, baseURL)
			if err != nil {
				c.logger.Warn("identity provider contributed no keys",
					"idp", baseURL, "error", err)
				return nil
			}

			converted := c.convertKeys(baseURL, jwks)

			mu.Lock()
			for id, pem := range converted {
				merged[id] = pem
			}
			mu.Unlock()
			return nil
		})
	}
	// Branches report via logs, never via errors; Wait is a pure join.
	_ = g.Wait()

	if len(merged) == 0 {
		return nil, ErrNoKeys
	}
	return merged, nil
}

// convertKeys runs the certificate conversion over one JWKS document.
// A bad key is skipped; its siblings are unaffected.
func (c *Collector) convertKeys(baseURL string, jwks *JWKS) map[string]string {
	out := make(map[string]string, len(jwks.Keys))
	for _, key := range jwks.Keys {
		id := KeyID(key.Kty, key.Kid)

		if len(key.X5C) == 0 {
			c.logger.Warn("skipping key without x5c certificate",
				"idp", baseURL, "key", id)
			continue
		}

		// Only the leaf certificate is considered; trailing chain
		// entries are ignored.
		pem, err := keys.PEMFromX5C(key.X5C[0], key.Alg)
		if err != nil {
			c.logger.Warn("skipping unusable key",
				"idp", baseURL, "key", id, "error", err)
			continue
		}
		out[id] = pem
	}
	return out
}

// KeyID builds the `<kty-lowercase>:<kid>` identifier for a JWK.
// An absent kty defaults to RSA.
func KeyID(kty, kid string) string {
	if kty == "" {
		kty = "RSA"
	}
	return strings.ToLower(kty) + ":" + kid
}
