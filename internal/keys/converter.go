package keys

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedAlgorithm is returned for keys whose signature algorithm is
// neither in the RSA (RS*) nor the ECDSA (ES*) family.
var ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

const pemNewline = `\n`

// PEMFromX5C converts the first entry of a JWK x5c chain into a single-line
// PEM encoding of the certificate's public key.
//
// The entry is the base64 DER certificate as it appears in the JWKS. It is
// wrapped in CERTIFICATE delimiters, parsed as X.509, and the public key is
// re-encoded as a SubjectPublicKeyInfo PEM. Every newline in the result is
// replaced with the literal two-character sequence `\n`, because the value
// is stored as a JSON string in CouchDB's config endpoint.
//
// Chain entries beyond the first are ignored; callers pass only the leaf.
func PEMFromX5C(x5cEntry, alg string) (string, error) {
	block, _ := pem.Decode([]byte(wrapCertificate(x5cEntry)))
	if block == nil {
		return "", fmt.Errorf("x5c entry is not valid base64 certificate data")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse x5c certificate: %w", err)
	}

	var der []byte
	switch {
	case strings.HasPrefix(alg, "RS"):
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return "", fmt.Errorf("algorithm %s requires an RSA key, certificate holds %T", alg, cert.PublicKey)
		}
		der, err = x509.MarshalPKIXPublicKey(pub)

	case strings.HasPrefix(alg, "ES"):
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return "", fmt.Errorf("algorithm %s requires an EC key, certificate holds %T", alg, cert.PublicKey)
		}
		der, err = x509.MarshalPKIXPublicKey(pub)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}

	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "PUBLIC KEY", Bytes: der}); err != nil {
		return "", fmt.Errorf("failed to write public key PEM: %w", err)
	}

	return SingleLine(buf.String()), nil
}

// wrapCertificate adds PEM delimiters around a bare base64 certificate body
func wrapCertificate(b64 string) string {
	return "-----BEGIN CERTIFICATE-----\n" + b64 + "\n-----END CERTIFICATE-----"
}

// SingleLine replaces raw newlines with literal backslash-n sequences
func SingleLine(pemText string) string {
	return strings.ReplaceAll(pemText, "\n", pemNewline)
}

// MultiLine is the inverse of SingleLine
func MultiLine(singleLine string) string {
	return strings.ReplaceAll(singleLine, pemNewline, "\n")
}
