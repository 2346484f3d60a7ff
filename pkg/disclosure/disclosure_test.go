package disclosure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/errorflow/pkg/domain"
)

func newDefaultPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(context.Background(), Options{})
	require.NoError(t, err)
	return p
}

func TestDefaultPolicyDecisions(t *testing.T) {
	p := newDefaultPolicy(t)

	tests := []struct {
		name   string
		input  Input
		allow  bool
		reason string
	}{
		{
			name:   "development on request",
			input:  Input{DebugRequested: true, Environment: "development", Category: domain.CategorySystem, Severity: domain.SeverityCritical, Code: 500},
			allow:  true,
			reason: "debug info disclosed on request",
		},
		{
			name:   "development without request",
			input:  Input{Environment: "development", Category: domain.CategoryValidation, Severity: domain.SeverityLow, Code: 400},
			allow:  false,
			reason: "debug info not requested",
		},
		{
			name:   "production on request",
			input:  Input{DebugRequested: true, Environment: "production", Category: domain.CategoryAuthorization, Severity: domain.SeverityHigh, Code: 401},
			allow:  false,
			reason: "debug info is never disclosed in production",
		},
		{
			name:   "production without request",
			input:  Input{Environment: "production", Category: domain.CategorySystem, Severity: domain.SeverityHigh, Code: 503},
			allow:  false,
			reason: "debug info not requested",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := p.Evaluate(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, decision.Allow)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestEvaluateIsCached(t *testing.T) {
	p := newDefaultPolicy(t)
	in := Input{DebugRequested: true, Environment: "staging"}

	first, err := p.Evaluate(context.Background(), in)
	require.NoError(t, err)
	second, err := p.Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	p.mu.RLock()
	defer p.mu.RUnlock()
	assert.Len(t, p.cache, 1)
}

func TestCustomModuleCanUseCategory(t *testing.T) {
	module := `package errorflow.disclosure

default decision := {"allow": false, "reason": "denied"}

decision := {"allow": true, "reason": "validation is safe to show"} if {
	input.debug_requested
	input.category == "validation"
}
`
	p, err := NewPolicy(context.Background(), Options{Module: module, ModuleName: "custom.rego"})
	require.NoError(t, err)

	decision, err := p.Evaluate(context.Background(), Input{DebugRequested: true, Environment: "production", Category: domain.CategoryValidation})
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	decision, err = p.Evaluate(context.Background(), Input{DebugRequested: true, Environment: "production", Category: domain.CategorySystem})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "denied", decision.Reason)
}

func TestUndefinedDecisionDenies(t *testing.T) {
	module := `package errorflow.disclosure

decision := {"allow": true, "reason": "only in lab"} if input.environment == "lab"
`
	p, err := NewPolicy(context.Background(), Options{Module: module})
	require.NoError(t, err)

	decision, err := p.Evaluate(context.Background(), Input{DebugRequested: true, Environment: "development"})
	require.NoError(t, err)
	assert.False(t, decision.Allow)
}

func TestMalformedDecisionIsAnError(t *testing.T) {
	module := `package errorflow.disclosure

decision := "yes"
`
	p, err := NewPolicy(context.Background(), Options{Module: module})
	require.NoError(t, err)

	_, err = p.Evaluate(context.Background(), Input{DebugRequested: true})
	assert.Error(t, err)
}

func TestInvalidModuleFailsToCompile(t *testing.T) {
	_, err := NewPolicy(context.Background(), Options{Module: "package broken\n\ndecision := {"})
	assert.Error(t, err)
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	require.NoError(t, os.WriteFile(path, []byte(DefaultModule()), 0o600))

	p, err := LoadPolicyFile(context.Background(), path)
	require.NoError(t, err)

	decision, err := p.Evaluate(context.Background(), Input{DebugRequested: true, Environment: "development"})
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	_, err = LoadPolicyFile(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}
