package couchdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to one CouchDB server with HTTP Basic auth.
//
// Only the administrative surface this daemon needs is covered: cluster
// membership, the per-node jwt_keys config section, and node restart.
type Client struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
}

// ClientConfig configures a Client
type ClientConfig struct {
	// BaseURL is the server base URL without a trailing slash
	BaseURL string

	// User and Password are sent as HTTP Basic credentials on every call.
	// When empty, requests go out unauthenticated and the server rejects
	// them with 401.
	User     string
	Password string

	// HTTPClient is an optional HTTP client.
	// If nil, http.DefaultClient is used.
	// This is useful for testing with fixtures or custom transports.
	HTTPClient *http.Client
}

// NewClient creates a client for one CouchDB server
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		user:     cfg.User,
		password: cfg.Password,
		client:   client,
	}, nil
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// membershipResponse mirrors the relevant part of GET /_membership
type membershipResponse struct {
	ClusterNodes []string `json:"cluster_nodes"`
}

// Membership returns the node ids of all cluster members
func (c *Client) Membership(ctx context.Context) ([]string, error) {
	var body membershipResponse
	if err := c.getJSON(ctx, c.baseURL+"/_membership", &body); err != nil {
		return nil, fmt.Errorf("membership lookup failed for %s: %w", c.baseURL, err)
	}
	return body.ClusterNodes, nil
}

// JWTKeys returns the node's current jwt_keys config section.
// An empty section decodes to an empty map.
func (c *Client) JWTKeys(ctx context.Context, node string) (map[string]string, error) {
	url := fmt.Sprintf("%s/_node/%s/_config/jwt_keys", c.baseURL, node)
	current := make(map[string]string)
	if err := c.getJSON(ctx, url, &current); err != nil {
		return nil, fmt.Errorf("jwt_keys read failed for node %s: %w", node, err)
	}
	return current, nil
}

// KeyURL returns the config URL a given key is written to
func (c *Client) KeyURL(node, keyID string) string {
	return fmt.Sprintf("%s/_node/%s/_config/jwt_keys/%s", c.baseURL, node, keyID)
}

// PutJWTKey writes one key's single-line PEM into the node's jwt_keys
// section. The body is the JSON-quoted PEM, so the literal \n sequences in
// the value are escaped once more on the wire.
func (c *Client) PutJWTKey(ctx context.Context, node, keyID, pem string) error {
	body, err := json.Marshal(pem)
	if err != nil {
		return fmt.Errorf("failed to encode PEM for key %s: %w", keyID, err)
	}

	url := c.KeyURL(node, keyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jwt_keys write failed for %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d writing %s", resp.StatusCode, url)
	}
	return nil
}

// Restart asks the node to restart. CouchDB requires a JSON content type on
// this POST even though the body is empty.
func (c *Client) Restart(ctx context.Context, node string) error {
	url := fmt.Sprintf("%s/_node/%s/_restart", c.baseURL, node)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("restart request failed for %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d restarting node %s", resp.StatusCode, node)
	}
	return nil
}

// getJSON issues an authenticated GET and decodes a 2xx JSON response
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("response from %s is not valid JSON: %w", url, err)
	}
	return nil
}

func (c *Client) authenticate(req *http.Request) {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}
