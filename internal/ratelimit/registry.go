package ratelimit

import (
	"fmt"
	"strings"
)

// endpointKey is "METHOD /path/pattern" with segments optionally wildcarded
// using "*" to match exactly one path segment.
type endpointKey struct {
	method  string
	pattern string
	rule    Rule
}

// Registry is a static, read-only-after-init mapping of endpoint patterns
// to rate-limit rules.
type Registry struct {
	entries []endpointKey
}

// NewRegistry validates every rule (positive max_tokens/refill_rate/cost,
// enforced by NewRule at construction time by callers) and builds a
// registry. Entries are collected by ranging over the rules map, so their
// order is not defined: when more than one pattern matches a request, which
// of those rules GetRuleForEndpoint returns is not defined.
func NewRegistry(rules map[string]Rule) (*Registry, error) {
	reg := &Registry{}
	for key, rule := range rules {
		method, pattern, err := splitEndpointKey(key)
		if err != nil {
			return nil, err
		}
		if rule.MaxTokens <= 0 || rule.RefillRate <= 0 || rule.Cost <= 0 {
			return nil, fmt.Errorf("rate limit rule for %q has non-positive max_tokens/refill_rate/cost", key)
		}
		reg.entries = append(reg.entries, endpointKey{method: method, pattern: pattern, rule: rule})
	}
	return reg, nil
}

func splitEndpointKey(key string) (method, pattern string, err error) {
	parts := strings.SplitN(key, " ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid endpoint key %q, expected \"METHOD /path\"", key)
	}
	return strings.ToUpper(parts[0]), parts[1], nil
}

// GetRuleForEndpoint returns the rule matching method+path, or false if no
// rule is registered for it. Wildcard segments ("*") match any single path
// segment.
func (r *Registry) GetRuleForEndpoint(method, path string) (Rule, bool) {
	method = strings.ToUpper(method)
	pathSegments := strings.Split(strings.Trim(path, "/"), "/")

	for _, e := range r.entries {
		if e.method != method {
			continue
		}
		if pathMatches(e.pattern, pathSegments) {
			return e.rule, true
		}
	}
	return Rule{}, false
}

func pathMatches(pattern string, pathSegments []string) bool {
	patternSegments := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(patternSegments) != len(pathSegments) {
		return false
	}
	for i, seg := range patternSegments {
		if seg == "*" {
			continue
		}
		if seg != pathSegments[i] {
			return false
		}
	}
	return true
}
