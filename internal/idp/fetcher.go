package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMissingJWKSURI is returned when a discovery document carries no jwks_uri.
var ErrMissingJWKSURI = errors.New("discovery document has no jwks_uri")

const discoveryPath = "/.well-known/openid-configuration"

// Fetcher resolves an IdP's JWKS document via OIDC discovery.
type Fetcher struct {
	client *http.Client
}

// FetcherConfig configures a Fetcher
type FetcherConfig struct {
	// HTTPClient is an optional HTTP client for discovery and JWKS fetching.
	// If nil, http.DefaultClient is used.
	// This is useful for testing with fixtures or custom transports.
	HTTPClient *http.Client
}

// NewFetcher creates a new JWKS fetcher
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client}
}

// FetchJWKS resolves jwks_uri from the IdP's well-known configuration and
// downloads the key set. The base URL carries no trailing slash.
func (f *Fetcher) FetchJWKS(ctx context.Context, baseURL string) (*JWKS, error) {
	var discovery discoveryDocument
	if err := f.getJSON(ctx, baseURL+discoveryPath, &discovery); err != nil {
		return nil, fmt.Errorf("discovery failed for %s: %w", baseURL, err)
	}

	if discovery.JWKSURI == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingJWKSURI, baseURL)
	}

	var jwks JWKS
	if err := f.getJSON(ctx, discovery.JWKSURI, &jwks); err != nil {
		return nil, fmt.Errorf("JWKS fetch failed for %s: %w", discovery.JWKSURI, err)
	}

	return &jwks, nil
}

// getJSON issues a GET and decodes a 2xx JSON response into out
func (f *Fetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("response from %s is not valid JSON: %w", url, err)
	}
	return nil
}
