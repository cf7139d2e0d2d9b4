package httpfixture

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CouchDBFixture simulates one CouchDB server: cluster membership, per-node
// jwt_keys config sections, and node restarts. Node state is mutable, so a
// second reconciliation pass observes the writes of the first.
type CouchDBFixture struct {
	baseURL string
	user    string
	pwd     string

	mu       sync.Mutex
	nodeKeys map[string]map[string]string
	putURLs  []string
	restarts []string

	// Failure injection
	FailMembership bool
	FailReads      bool
	FailWrites     bool
	FailRestarts   bool
}

// CouchDBFixtureConfig configures a CouchDB fixture
type CouchDBFixtureConfig struct {
	// BaseURL is the simulated server's base URL (no trailing slash)
	BaseURL string

	// Nodes lists the cluster members
	Nodes []string

	// User/Password, when set, are required as Basic credentials;
	// requests without them get 401
	User     string
	Password string
}

// NewCouchDBFixture creates a fixture with empty jwt_keys sections
func NewCouchDBFixture(cfg CouchDBFixtureConfig) (*CouchDBFixture, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	nodeKeys := make(map[string]map[string]string, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		nodeKeys[node] = make(map[string]string)
	}

	return &CouchDBFixture{
		baseURL:  cfg.BaseURL,
		user:     cfg.User,
		pwd:      cfg.Password,
		nodeKeys: nodeKeys,
	}, nil
}

// SetNodeKey seeds a node's jwt_keys section
func (f *CouchDBFixture) SetNodeKey(node, keyID, pem string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodeKeys[node][keyID] = pem
}

// NodeKeys returns a copy of a node's current jwt_keys section
func (f *CouchDBFixture) NodeKeys(node string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.nodeKeys[node]))
	for k, v := range f.nodeKeys[node] {
		out[k] = v
	}
	return out
}

// PutURLs returns the URL of every key write that was applied, in arrival
// order; rejected writes are not recorded
func (f *CouchDBFixture) PutURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.putURLs))
	copy(out, f.putURLs)
	return out
}

// Restarts returns the restarted node ids in arrival order
func (f *CouchDBFixture) Restarts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.restarts))
	copy(out, f.restarts)
	return out
}

// GetFixture implements FixtureProvider
func (f *CouchDBFixture) GetFixture(req *http.Request) *Fixture {
	url := req.URL.String()
	if !strings.HasPrefix(url, f.baseURL+"/") {
		return nil
	}
	path := strings.TrimPrefix(url, f.baseURL)

	if f.user != "" {
		if user, pwd, ok := req.BasicAuth(); !ok || user != f.user || pwd != f.pwd {
			return &Fixture{StatusCode: http.StatusUnauthorized, Body: `{"error":"unauthorized"}`}
		}
	}

	switch {
	case req.Method == http.MethodGet && path == "/_membership":
		return f.membership()

	case req.Method == http.MethodGet && strings.HasSuffix(path, "/_config/jwt_keys"):
		return f.readKeys(nodeFromPath(path))

	case req.Method == http.MethodPut && strings.Contains(path, "/_config/jwt_keys/"):
		keyID := path[strings.LastIndex(path, "/")+1:]
		return f.writeKey(url, nodeFromPath(path), keyID, req.Body)

	case req.Method == http.MethodPost && strings.HasSuffix(path, "/_restart"):
		return f.restart(nodeFromPath(path))
	}

	return nil
}

// nodeFromPath extracts the node id from /_node/{node}/... paths
func nodeFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/_node/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}

func (f *CouchDBFixture) membership() *Fixture {
	if f.FailMembership {
		return &Fixture{StatusCode: http.StatusInternalServerError, Body: `{"error":"internal_server_error"}`}
	}

	f.mu.Lock()
	nodes := make([]string, 0, len(f.nodeKeys))
	for node := range f.nodeKeys {
		nodes = append(nodes, node)
	}
	f.mu.Unlock()

	body, _ := json.Marshal(map[string][]string{
		"all_nodes":     nodes,
		"cluster_nodes": nodes,
	})
	return &Fixture{StatusCode: http.StatusOK, Body: string(body)}
}

func (f *CouchDBFixture) readKeys(node string) *Fixture {
	if f.FailReads {
		return &Fixture{StatusCode: http.StatusInternalServerError, Body: `{"error":"internal_server_error"}`}
	}

	f.mu.Lock()
	keys, ok := f.nodeKeys[node]
	var body []byte
	if ok {
		body, _ = json.Marshal(keys)
	}
	f.mu.Unlock()

	if !ok {
		return &Fixture{StatusCode: http.StatusNotFound, Body: `{"error":"not_found"}`}
	}
	return &Fixture{StatusCode: http.StatusOK, Body: string(body)}
}

func (f *CouchDBFixture) writeKey(url, node, keyID string, body io.Reader) *Fixture {
	if f.FailWrites {
		return &Fixture{StatusCode: http.StatusInternalServerError, Body: `{"error":"internal_server_error"}`}
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return &Fixture{StatusCode: http.StatusBadRequest, Body: `{"error":"bad_request"}`}
	}

	// The wire body is a JSON string; the stored value is its decoding
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return &Fixture{StatusCode: http.StatusBadRequest, Body: `{"error":"bad_request","reason":"invalid UTF-8 JSON"}`}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	nodeSection, ok := f.nodeKeys[node]
	if !ok {
		return &Fixture{StatusCode: http.StatusNotFound, Body: `{"error":"not_found"}`}
	}

	previous := nodeSection[keyID]
	nodeSection[keyID] = value
	f.putURLs = append(f.putURLs, url)

	// CouchDB answers a config PUT with the previous value
	resp, _ := json.Marshal(previous)
	return &Fixture{StatusCode: http.StatusOK, Body: string(resp)}
}

func (f *CouchDBFixture) restart(node string) *Fixture {
	if f.FailRestarts {
		return &Fixture{StatusCode: http.StatusInternalServerError, Body: `{"error":"internal_server_error"}`}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodeKeys[node]; !ok {
		return &Fixture{StatusCode: http.StatusNotFound, Body: `{"error":"not_found"}`}
	}
	f.restarts = append(f.restarts, node)
	return &Fixture{StatusCode: http.StatusOK, Body: `{"ok":true}`}
}
