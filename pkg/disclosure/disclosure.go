// Package disclosure decides whether the debug projection of an error may be shown.
//
// The decision is a Rego policy evaluated with an embedded OPA instance. The
// built-in policy only discloses on explicit request and never in production;
// operators can replace it with their own module.
package disclosure

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/polisai/errorflow/pkg/domain"
)

//go:embed disclosure.rego
var defaultModule string

// DefaultQuery is the decision path evaluated by the built-in policy.
const DefaultQuery = "data.errorflow.disclosure.decision"

const defaultCacheCapacity = 1024

// Input describes one disclosure request.
type Input struct {
	DebugRequested bool
	Environment    string
	Category       domain.Category
	Severity       domain.Severity
	Code           int
}

// Decision is the policy outcome.
type Decision struct {
	Allow  bool   `json:"allowed"`
	Reason string `json:"reason"`
}

// Options control policy construction.
type Options struct {
	// Module is the Rego source. Empty selects the built-in module.
	Module string
	// ModuleName is used in compile errors. Defaults to "disclosure.rego".
	ModuleName string
	// Query is the decision path. Defaults to DefaultQuery.
	Query string
}

// Policy evaluates disclosure decisions. It is safe for concurrent use.
type Policy struct {
	query rego.PreparedEvalQuery

	mu    sync.RWMutex
	cache map[Input]Decision
}

// DefaultModule returns the built-in Rego module source.
func DefaultModule() string {
	return defaultModule
}

// NewPolicy compiles the module and prepares the decision query.
func NewPolicy(ctx context.Context, opts Options) (*Policy, error) {
	module := opts.Module
	if strings.TrimSpace(module) == "" {
		module = defaultModule
	}
	name := strings.TrimSpace(opts.ModuleName)
	if name == "" {
		name = "disclosure.rego"
	}
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		query = DefaultQuery
	}

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(name, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile disclosure policy %q: %w", name, err)
	}

	return &Policy{
		query: prepared,
		cache: make(map[Input]Decision),
	}, nil
}

// LoadPolicyFile compiles a Rego module from disk.
func LoadPolicyFile(ctx context.Context, path string) (*Policy, error) {
	//nolint:gosec // Policy path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read disclosure policy %s: %w", path, err)
	}
	return NewPolicy(ctx, Options{Module: string(data), ModuleName: path})
}

// Evaluate runs the policy for in. An undefined decision denies disclosure.
func (p *Policy) Evaluate(ctx context.Context, in Input) (Decision, error) {
	p.mu.RLock()
	cached, ok := p.cache[in]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	payload := map[string]any{
		"debug_requested": in.DebugRequested,
		"environment":     in.Environment,
		"category":        string(in.Category),
		"severity":        in.Severity.String(),
		"code":            in.Code,
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(payload))
	if err != nil {
		return Decision{}, fmt.Errorf("disclosure decision: %w", err)
	}

	decision := Decision{Allow: false, Reason: "no disclosure decision"}
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		decision, err = parseDecision(results[0].Expressions[0].Value)
		if err != nil {
			return Decision{}, err
		}
	}

	p.mu.Lock()
	if len(p.cache) >= defaultCacheCapacity {
		clear(p.cache)
	}
	p.cache[in] = decision
	p.mu.Unlock()

	return decision, nil
}

func parseDecision(value any) (Decision, error) {
	payload, ok := value.(map[string]any)
	if !ok {
		return Decision{}, fmt.Errorf("disclosure decision: unexpected result type %T", value)
	}
	allow, ok := payload["allow"].(bool)
	if !ok {
		return Decision{}, errors.New("disclosure decision: missing boolean \"allow\"")
	}
	reason, _ := payload["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}
