package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
)

// selfSignedX5C creates a self-signed certificate for the given key pair and
// returns it as a bare base64 DER string, the way it appears in a JWK x5c.
func selfSignedX5C(t *testing.T, priv any, pub any) string {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-idp"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	return base64.StdEncoding.EncodeToString(der)
}

// decodeSingleLinePEM expands the literal \n sequences and parses the result
func decodeSingleLinePEM(t *testing.T, singleLine string) any {
	t.Helper()

	block, _ := pem.Decode([]byte(MultiLine(singleLine)))
	if block == nil {
		t.Fatal("single-line PEM did not decode back into a PEM block")
	}
	if block.Type != "PUBLIC KEY" {
		t.Errorf("block type = %q, want PUBLIC KEY", block.Type)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse public key: %v", err)
	}
	return pub
}

func TestPEMFromX5C_RSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	x5c := selfSignedX5C(t, priv, &priv.PublicKey)

	singleLine, err := PEMFromX5C(x5c, "RS256")
	if err != nil {
		t.Fatalf("PEMFromX5C failed: %v", err)
	}

	if strings.Contains(singleLine, "\n") {
		t.Error("result contains raw newlines")
	}
	if !strings.Contains(singleLine, `\n`) {
		t.Error("result contains no literal backslash-n separators")
	}
	if !strings.HasPrefix(singleLine, `-----BEGIN PUBLIC KEY-----\n`) {
		t.Errorf("unexpected prefix: %q", singleLine[:40])
	}

	pub := decodeSingleLinePEM(t, singleLine)
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("decoded key is %T, want *rsa.PublicKey", pub)
	}
	if !rsaPub.Equal(&priv.PublicKey) {
		t.Error("round-tripped key does not match the original")
	}
}

func TestPEMFromX5C_ECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate EC key: %v", err)
	}
	x5c := selfSignedX5C(t, priv, &priv.PublicKey)

	singleLine, err := PEMFromX5C(x5c, "ES256")
	if err != nil {
		t.Fatalf("PEMFromX5C failed: %v", err)
	}

	pub := decodeSingleLinePEM(t, singleLine)
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("decoded key is %T, want *ecdsa.PublicKey", pub)
	}
	if !ecPub.Equal(&priv.PublicKey) {
		t.Error("round-tripped key does not match the original")
	}
}

func TestPEMFromX5C_UnsupportedAlgorithm(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	x5c := selfSignedX5C(t, priv, &priv.PublicKey)

	_, err = PEMFromX5C(x5c, "HS256")
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestPEMFromX5C_AlgorithmKeyTypeMismatch(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate EC key: %v", err)
	}
	x5c := selfSignedX5C(t, priv, &priv.PublicKey)

	if _, err := PEMFromX5C(x5c, "RS256"); err == nil {
		t.Error("expected error for RS algorithm over an EC certificate")
	}
}

func TestPEMFromX5C_GarbageInput(t *testing.T) {
	if _, err := PEMFromX5C("not base64 at all!!!", "RS256"); err == nil {
		t.Error("expected error for undecodable x5c entry")
	}

	// Valid base64, invalid DER
	bogus := base64.StdEncoding.EncodeToString([]byte("hello world"))
	if _, err := PEMFromX5C(bogus, "RS256"); err == nil {
		t.Error("expected error for non-certificate DER")
	}
}

func TestSingleLineMultiLineRoundTrip(t *testing.T) {
	text := "-----BEGIN PUBLIC KEY-----\nabc\ndef\n-----END PUBLIC KEY-----\n"
	if got := MultiLine(SingleLine(text)); got != text {
		t.Errorf("round trip = %q, want %q", got, text)
	}
}
