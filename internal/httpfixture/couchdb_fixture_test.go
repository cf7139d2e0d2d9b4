package httpfixture

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func newDBFixture(t *testing.T) *CouchDBFixture {
	t.Helper()
	fixture, err := NewCouchDBFixture(CouchDBFixtureConfig{
		BaseURL:  "http://db",
		Nodes:    []string{"node1@db", "node2@db"},
		User:     "admin",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewCouchDBFixture failed: %v", err)
	}
	return fixture
}

func TestCouchDBFixture_Membership(t *testing.T) {
	fixture := newDBFixture(t)

	req := httptest.NewRequest("GET", "http://db/_membership", nil)
	req.SetBasicAuth("admin", "secret")

	resp := fixture.GetFixture(req)
	if resp == nil || resp.StatusCode != 200 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var body map[string][]string
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("membership body is not JSON: %v", err)
	}
	if len(body["cluster_nodes"]) != 2 {
		t.Errorf("cluster_nodes = %v", body["cluster_nodes"])
	}
}

func TestCouchDBFixture_RejectsBadCredentials(t *testing.T) {
	fixture := newDBFixture(t)

	req := httptest.NewRequest("GET", "http://db/_membership", nil)
	req.SetBasicAuth("admin", "wrong")

	resp := fixture.GetFixture(req)
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("expected 401, got %+v", resp)
	}
}

func TestCouchDBFixture_WriteReadCycle(t *testing.T) {
	fixture := newDBFixture(t)

	put := httptest.NewRequest("PUT",
		"http://db/_node/node1@db/_config/jwt_keys/rsa:k1",
		strings.NewReader(`"pem-value"`))
	put.SetBasicAuth("admin", "secret")

	resp := fixture.GetFixture(put)
	if resp == nil || resp.StatusCode != 200 {
		t.Fatalf("unexpected PUT response: %+v", resp)
	}
	// CouchDB answers with the previous value, empty on first write
	if resp.Body != `""` {
		t.Errorf("PUT response body = %q, want \"\"", resp.Body)
	}

	if got := fixture.NodeKeys("node1@db")["rsa:k1"]; got != "pem-value" {
		t.Errorf("stored value = %q, want pem-value", got)
	}

	// Second write returns the previous value
	put = httptest.NewRequest("PUT",
		"http://db/_node/node1@db/_config/jwt_keys/rsa:k1",
		strings.NewReader(`"updated"`))
	put.SetBasicAuth("admin", "secret")
	resp = fixture.GetFixture(put)
	if resp.Body != `"pem-value"` {
		t.Errorf("PUT response body = %q, want previous value", resp.Body)
	}

	if len(fixture.PutURLs()) != 2 {
		t.Errorf("expected 2 recorded PUTs, got %d", len(fixture.PutURLs()))
	}
}

func TestCouchDBFixture_RestartUnknownNode(t *testing.T) {
	fixture := newDBFixture(t)

	req := httptest.NewRequest("POST", "http://db/_node/ghost@db/_restart", nil)
	req.SetBasicAuth("admin", "secret")

	resp := fixture.GetFixture(req)
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown node, got %+v", resp)
	}
	if len(fixture.Restarts()) != 0 {
		t.Errorf("unknown node must not be recorded as restarted")
	}
}

func TestCouchDBFixture_OtherHostIgnored(t *testing.T) {
	fixture := newDBFixture(t)

	req := httptest.NewRequest("GET", "http://elsewhere/_membership", nil)
	if resp := fixture.GetFixture(req); resp != nil {
		t.Errorf("expected nil for a different host, got %+v", resp)
	}
}
