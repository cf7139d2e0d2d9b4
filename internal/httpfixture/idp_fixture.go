package httpfixture

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/beyonddemise/couchdb-idp-updater/internal/keys"
)

// IdPFixture simulates an OpenID Connect identity provider: it generates a
// real key pair with a self-signed certificate and serves the discovery
// document and a JWKS whose key carries the certificate in x5c.
type IdPFixture struct {
	issuer    string
	jwksURL   string
	keyID     string
	algorithm jwa.SignatureAlgorithm

	publicKey    crypto.PublicKey
	certBase64   string
	jwksDocument string
}

// IdPFixtureConfig configures an IdP fixture
type IdPFixtureConfig struct {
	// Issuer is the IdP base URL (no trailing slash)
	Issuer string

	// KeyID is the key identifier (kid)
	// If empty, defaults to "test-key-1"
	KeyID string

	// Algorithm is the signing algorithm advertised for the key.
	// ES256, ES384 and ES512 get an EC pair on P-256, P-384 and P-521;
	// every other algorithm gets an RSA 2048 pair.
	// If zero value, defaults to RS256.
	Algorithm jwa.SignatureAlgorithm
}

// NewIdPFixture creates a new IdP fixture with a generated key pair
func NewIdPFixture(cfg IdPFixtureConfig) (*IdPFixture, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}

	keyID := cfg.KeyID
	if keyID == "" {
		keyID = "test-key-1"
	}

	algorithm := cfg.Algorithm
	if algorithm == jwa.EmptySignatureAlgorithm() {
		algorithm = jwa.RS256()
	}

	var priv crypto.Signer
	var err error
	switch algorithm.String() {
	case "ES256":
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		priv, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		priv, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	default:
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	certBase64, err := selfSignedCertBase64(priv)
	if err != nil {
		return nil, err
	}

	f := &IdPFixture{
		issuer:     cfg.Issuer,
		jwksURL:    cfg.Issuer + "/protocol/openid-connect/certs",
		keyID:      keyID,
		algorithm:  algorithm,
		publicKey:  priv.Public(),
		certBase64: certBase64,
	}

	doc, err := f.buildJWKS()
	if err != nil {
		return nil, err
	}
	f.jwksDocument = doc

	return f, nil
}

// selfSignedCertBase64 creates a throwaway self-signed certificate for the
// key and returns its DER as bare base64, the x5c representation
func selfSignedCertBase64(priv crypto.Signer) (string, error) {
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp-fixture"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return "", fmt.Errorf("failed to create certificate: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// buildJWKS renders the JWKS document. The key parameters come from jwx;
// the certificate chain is merged in on top.
func (f *IdPFixture) buildJWKS() (string, error) {
	key, err := jwk.Import(f.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to create JWK: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, f.keyID); err != nil {
		return "", fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, f.algorithm); err != nil {
		return "", fmt.Errorf("failed to set algorithm: %w", err)
	}

	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JWK: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("failed to rebuild JWK fields: %w", err)
	}
	fields["x5c"] = []string{f.certBase64}

	doc, err := json.Marshal(map[string]any{"keys": []any{fields}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal JWKS: %w", err)
	}
	return string(doc), nil
}

// Issuer returns the IdP base URL
func (f *IdPFixture) Issuer() string {
	return f.issuer
}

// KeyID returns the `<kty>:<kid>` identifier the collector derives for the
// fixture's key
func (f *IdPFixture) KeyID() string {
	if strings.HasPrefix(f.algorithm.String(), "ES") {
		return "ec:" + f.keyID
	}
	return "rsa:" + f.keyID
}

// ExpectedPEM returns the single-line PEM the converter produces for the
// fixture's public key
func (f *IdPFixture) ExpectedPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(f.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return keys.SingleLine(string(block)), nil
}

// GetFixture implements FixtureProvider: it answers the discovery and JWKS
// requests for this IdP and returns nil for everything else
func (f *IdPFixture) GetFixture(req *http.Request) *Fixture {
	if req.Method != http.MethodGet {
		return nil
	}

	switch req.URL.String() {
	case f.issuer + "/.well-known/openid-configuration":
		discovery, _ := json.Marshal(map[string]string{
			"issuer":   f.issuer,
			"jwks_uri": f.jwksURL,
		})
		return &Fixture{StatusCode: http.StatusOK, Body: string(discovery)}

	case f.jwksURL:
		return &Fixture{StatusCode: http.StatusOK, Body: f.jwksDocument}
	}

	return nil
}
