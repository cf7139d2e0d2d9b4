package httpfixture

import (
	"net/http"
	"regexp"
)

// FixtureRequest describes the requests a rule matches
type FixtureRequest struct {
	// Method matches exactly; empty matches any method
	Method string

	// URL matches against the full request URL
	URL string

	// URLType is "exact" (default) or "pattern" (URL is a regexp)
	URLType string

	// Headers must all be present with the given values
	Headers map[string]string
}

// HTTPFixtureRule pairs a request matcher with its canned response
type HTTPFixtureRule struct {
	Request  FixtureRequest
	Response Fixture
}

// RuleBasedProvider serves fixtures from an ordered rule list.
// The first matching rule wins.
type RuleBasedProvider struct {
	rules []HTTPFixtureRule
}

// NewRuleBasedProvider creates a provider from rules
func NewRuleBasedProvider(rules []HTTPFixtureRule) *RuleBasedProvider {
	return &RuleBasedProvider{rules: rules}
}

// GetFixture implements FixtureProvider
func (p *RuleBasedProvider) GetFixture(req *http.Request) *Fixture {
	for i := range p.rules {
		rule := &p.rules[i]
		if matches(&rule.Request, req) {
			resp := rule.Response
			return &resp
		}
	}
	return nil
}

func matches(m *FixtureRequest, req *http.Request) bool {
	if m.Method != "" && m.Method != req.Method {
		return false
	}

	url := req.URL.String()
	if m.URLType == "pattern" {
		re, err := regexp.Compile("^" + m.URL + "$")
		if err != nil || !re.MatchString(url) {
			return false
		}
	} else if m.URL != url {
		return false
	}

	for k, v := range m.Headers {
		if req.Header.Get(k) != v {
			return false
		}
	}
	return true
}

// CompositeProvider tries a sequence of providers in order
type CompositeProvider struct {
	providers []FixtureProvider
}

// NewCompositeProvider creates a provider that consults each given provider
// in turn and returns the first fixture found
func NewCompositeProvider(providers ...FixtureProvider) *CompositeProvider {
	return &CompositeProvider{providers: providers}
}

// GetFixture implements FixtureProvider
func (p *CompositeProvider) GetFixture(req *http.Request) *Fixture {
	for _, provider := range p.providers {
		if fixture := provider.GetFixture(req); fixture != nil {
			return fixture
		}
	}
	return nil
}
