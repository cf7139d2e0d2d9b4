package config

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"

	"github.com/beyonddemise/couchdb-idp-updater/internal/httpfixture"
)

// BuildHTTPFixtureProvider creates a composite HTTP fixture provider from
// fixture configurations. Returns nil if no fixtures are configured
// (normal production mode).
func BuildHTTPFixtureProvider(fixtures []FixtureConfig) (httpfixture.FixtureProvider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	var providers []httpfixture.FixtureProvider
	var rules []httpfixture.HTTPFixtureRule

	for _, f := range fixtures {
		switch f.Type {
		case "http_rule":
			rules = append(rules, httpfixture.HTTPFixtureRule{
				Request: httpfixture.FixtureRequest{
					Method:  f.Request.Method,
					URL:     f.Request.URL,
					URLType: f.Request.URLType,
					Headers: f.Request.Headers,
				},
				Response: httpfixture.Fixture{
					StatusCode: f.Response.StatusCode,
					Headers:    f.Response.Headers,
					Body:       f.Response.Body,
				},
			})

		case "idp":
			if f.Issuer == "" {
				return nil, fmt.Errorf("idp fixture missing required field: issuer")
			}
			alg, err := signatureAlgorithm(f.Algorithm)
			if err != nil {
				return nil, fmt.Errorf("idp fixture %s: %w", f.Issuer, err)
			}
			idpFixture, err := httpfixture.NewIdPFixture(httpfixture.IdPFixtureConfig{
				Issuer:    f.Issuer,
				KeyID:     f.KeyID,
				Algorithm: alg,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create idp fixture %s: %w", f.Issuer, err)
			}
			providers = append(providers, idpFixture)

		case "couchdb":
			if f.BaseURL == "" {
				return nil, fmt.Errorf("couchdb fixture missing required field: base_url")
			}
			user, password, _ := Credentials()
			dbFixture, err := httpfixture.NewCouchDBFixture(httpfixture.CouchDBFixtureConfig{
				BaseURL:  f.BaseURL,
				Nodes:    f.Nodes,
				User:     user,
				Password: password,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create couchdb fixture %s: %w", f.BaseURL, err)
			}
			providers = append(providers, dbFixture)

		default:
			return nil, fmt.Errorf("unknown fixture type: %s (supported: http_rule, idp, couchdb)", f.Type)
		}
	}

	if len(rules) > 0 {
		providers = append(providers, httpfixture.NewRuleBasedProvider(rules))
	}

	return httpfixture.NewCompositeProvider(providers...), nil
}

// signatureAlgorithm resolves a configured algorithm name; empty means RS256
func signatureAlgorithm(name string) (jwa.SignatureAlgorithm, error) {
	switch name {
	case "", "RS256":
		return jwa.RS256(), nil
	case "RS384":
		return jwa.RS384(), nil
	case "RS512":
		return jwa.RS512(), nil
	case "ES256":
		return jwa.ES256(), nil
	case "ES384":
		return jwa.ES384(), nil
	case "ES512":
		return jwa.ES512(), nil
	default:
		return jwa.EmptySignatureAlgorithm(), fmt.Errorf("unsupported signature algorithm: %s", name)
	}
}
