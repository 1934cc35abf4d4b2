package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, maxTokens int, refill float64, scope Scope, cost int) Rule {
	t.Helper()
	r, err := NewRule(maxTokens, refill, scope, cost, true)
	require.NoError(t, err)
	return r
}

func TestNewRule_RejectsNonPositive(t *testing.T) {
	_, err := NewRule(0, 1, ScopeIP, 1, true)
	assert.Error(t, err)

	_, err = NewRule(1, 0, ScopeIP, 1, true)
	assert.Error(t, err)

	_, err = NewRule(1, 1, ScopeIP, 0, true)
	assert.Error(t, err)
}

func TestSecondsPerToken(t *testing.T) {
	r := mustRule(t, 5, 5.0, ScopeIP, 1)
	assert.InDelta(t, 12.0, r.SecondsPerToken(), 0.0001)
}

func TestTTLSeconds(t *testing.T) {
	r := mustRule(t, 5, 5.0, ScopeIP, 1)
	assert.Equal(t, 120, r.TTLSeconds())
}

func TestRegistry_ExactMatch(t *testing.T) {
	reg, err := NewRegistry(map[string]Rule{
		"POST /providers/connections": mustRule(t, 5, 5.0, ScopeUser, 1),
	})
	require.NoError(t, err)

	rule, ok := reg.GetRuleForEndpoint("post", "/providers/connections")
	require.True(t, ok)
	assert.Equal(t, 5, rule.MaxTokens)
}

func TestRegistry_WildcardSegment(t *testing.T) {
	reg, err := NewRegistry(map[string]Rule{
		"POST /providers/*/sync": mustRule(t, 10, 10.0, ScopeUserProvider, 1),
	})
	require.NoError(t, err)

	rule, ok := reg.GetRuleForEndpoint("POST", "/providers/schwab/sync")
	require.True(t, ok)
	assert.Equal(t, 10, rule.MaxTokens)
}

func TestRegistry_NoMatch(t *testing.T) {
	reg, err := NewRegistry(map[string]Rule{
		"GET /accounts": mustRule(t, 100, 100.0, ScopeUser, 1),
	})
	require.NoError(t, err)

	_, ok := reg.GetRuleForEndpoint("GET", "/transactions")
	assert.False(t, ok)
}

func TestNewRegistry_RejectsMalformedKey(t *testing.T) {
	_, err := NewRegistry(map[string]Rule{
		"not-a-valid-key": mustRule(t, 1, 1.0, ScopeIP, 1),
	})
	assert.Error(t, err)
}
