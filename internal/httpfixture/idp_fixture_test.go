package httpfixture

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
)

func TestIdPFixture_ServesDiscoveryAndJWKS(t *testing.T) {
	fixture, err := NewIdPFixture(IdPFixtureConfig{
		Issuer: "http://idp/realms/r",
		KeyID:  "k1",
	})
	if err != nil {
		t.Fatalf("NewIdPFixture failed: %v", err)
	}

	// Discovery
	resp := fixture.GetFixture(httptest.NewRequest("GET", "http://idp/realms/r/.well-known/openid-configuration", nil))
	if resp == nil {
		t.Fatal("expected discovery fixture")
	}
	var discovery map[string]string
	if err := json.Unmarshal([]byte(resp.Body), &discovery); err != nil {
		t.Fatalf("discovery body is not JSON: %v", err)
	}
	jwksURI := discovery["jwks_uri"]
	if jwksURI == "" {
		t.Fatal("discovery body has no jwks_uri")
	}

	// JWKS at the advertised URI
	resp = fixture.GetFixture(httptest.NewRequest("GET", jwksURI, nil))
	if resp == nil {
		t.Fatal("expected JWKS fixture")
	}

	var jwks struct {
		Keys []struct {
			Kty string   `json:"kty"`
			Kid string   `json:"kid"`
			Alg string   `json:"alg"`
			X5C []string `json:"x5c"`
		} `json:"keys"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &jwks); err != nil {
		t.Fatalf("JWKS body is not JSON: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(jwks.Keys))
	}

	key := jwks.Keys[0]
	if key.Kty != "RSA" {
		t.Errorf("kty = %q, want RSA", key.Kty)
	}
	if key.Kid != "k1" {
		t.Errorf("kid = %q, want k1", key.Kid)
	}
	if key.Alg != "RS256" {
		t.Errorf("alg = %q, want RS256", key.Alg)
	}
	if len(key.X5C) != 1 {
		t.Errorf("expected 1 x5c entry, got %d", len(key.X5C))
	}
}

func TestIdPFixture_ECKey(t *testing.T) {
	fixture, err := NewIdPFixture(IdPFixtureConfig{
		Issuer:    "http://idp",
		KeyID:     "e1",
		Algorithm: jwa.ES256(),
	})
	if err != nil {
		t.Fatalf("NewIdPFixture failed: %v", err)
	}

	if fixture.KeyID() != "ec:e1" {
		t.Errorf("KeyID() = %q, want ec:e1", fixture.KeyID())
	}

	pem, err := fixture.ExpectedPEM()
	if err != nil {
		t.Fatalf("ExpectedPEM failed: %v", err)
	}
	if pem == "" {
		t.Error("expected non-empty PEM")
	}
}

func TestIdPFixture_UnmatchedRequests(t *testing.T) {
	fixture, err := NewIdPFixture(IdPFixtureConfig{Issuer: "http://idp"})
	if err != nil {
		t.Fatalf("NewIdPFixture failed: %v", err)
	}

	if f := fixture.GetFixture(httptest.NewRequest("GET", "http://other/certs", nil)); f != nil {
		t.Error("expected nil for a different host")
	}
	if f := fixture.GetFixture(httptest.NewRequest("POST", "http://idp/.well-known/openid-configuration", nil)); f != nil {
		t.Error("expected nil for non-GET")
	}
}
