// Package testhelpers provides test utilities for building disclosure policies
// and generators from fixture data.
package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/polisai/errorflow/pkg/catalog"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/generator"
)

const fixtureDir = "internal/testhelpers/fixtures"

// Policy fixtures.
const (
	ValidationOnlyPolicy = "validation_only.rego"
	UndefinedPolicy      = "undefined.rego"
)

// NewDefaultPolicy compiles the built-in disclosure policy.
func NewDefaultPolicy(ctx context.Context, t testing.TB) *disclosure.Policy {
	t.Helper()

	policy, err := disclosure.NewPolicy(ctx, disclosure.Options{})
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return policy
}

// NewFixturePolicy compiles one of the Rego fixtures.
func NewFixturePolicy(ctx context.Context, t testing.TB, name string) *disclosure.Policy {
	t.Helper()

	// #nosec G304 - Test fixture path is controlled by test code
	module, err := os.ReadFile(FixturePath(t, name))
	if err != nil {
		t.Fatalf("failed to read rego fixture: %v", err)
	}

	policy, err := disclosure.NewPolicy(ctx, disclosure.Options{
		Module:     string(module),
		ModuleName: name,
	})
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return policy
}

// NewSeededGenerator builds a generator over the built-in catalog with a fixed seed.
func NewSeededGenerator(t testing.TB, seed uint64) *generator.Generator {
	t.Helper()

	gen, err := generator.New(catalog.Default(), generator.WithRandom(generator.NewSeededSource(seed)))
	if err != nil {
		t.Fatalf("generator.New failed: %v", err)
	}
	return gen
}

// FixturePath resolves a fixture file relative to the module root.
func FixturePath(t testing.TB, name string) string {
	t.Helper()

	path := filepath.Join(moduleRoot(), fixtureDir, name)
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("failed to resolve fixture path: %v", err)
	}
	return abs
}

var (
	cachedRoot string
	rootOnce   sync.Once
)

func moduleRoot() string {
	rootOnce.Do(func() {
		_, currentFile, _, ok := runtime.Caller(0)
		if !ok {
			panic("unable to determine caller for fixture helpers")
		}
		cachedRoot = filepath.Clean(filepath.Join(filepath.Dir(currentFile), "..", ".."))
	})
	return cachedRoot
}
