// Package generator stamps simulated AppErrors from a catalog.
//
// Generation is synchronous and side-effect free: no I/O, no logging and no state
// between calls. Randomness, time and identifiers are injected so tests can
// substitute deterministic sources.
package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polisai/errorflow/pkg/catalog"
	"github.com/polisai/errorflow/pkg/domain"
)

// RequestIDPrefix is the fixed literal every request ID starts with.
const RequestIDPrefix = "req_"

const (
	requestIDSuffixLen = 11
	base36             = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator produces AppErrors. It is safe for concurrent use when its
// RandomSource is.
type Generator struct {
	catalog *catalog.Catalog
	random  RandomSource
	now     func() time.Time
	newID   func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandom replaces the default process-wide random source.
func WithRandom(r RandomSource) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDFunc replaces the UUID-based error ID generator.
func WithIDFunc(newID func() string) Option {
	return func(g *Generator) {
		if newID != nil {
			g.newID = newID
		}
	}
}

// New creates a Generator over cat. The catalog invariants are checked here, once,
// so that generation itself has no failure mode for valid categories.
func New(cat *catalog.Catalog, opts ...Option) (*Generator, error) {
	if cat == nil {
		return nil, fmt.Errorf("generator requires a catalog")
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("generator catalog: %w", err)
	}

	g := &Generator{
		catalog: cat,
		random:  globalSource{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Catalog returns the catalog the generator draws from.
func (g *Generator) Catalog() *catalog.Catalog {
	return g.catalog
}

// Generate stamps one error of the given category. Categories outside the closed
// set are rejected with domain.ErrUnknownCategory.
func (g *Generator) Generate(category domain.Category) (domain.AppError, error) {
	if !category.Valid() {
		return domain.AppError{}, &domain.UnknownCategoryError{Value: string(category)}
	}
	return g.generate(category), nil
}

// GenerateNamed parses a category tag and generates an error for it.
func (g *Generator) GenerateNamed(name string) (domain.AppError, error) {
	category, err := domain.ParseCategory(name)
	if err != nil {
		return domain.AppError{}, err
	}
	return g.generate(category), nil
}

// GenerateRandom picks a category uniformly at random and generates an error for it.
func (g *Generator) GenerateRandom() domain.AppError {
	categories := domain.Categories()
	return g.generate(categories[g.random.IntN(len(categories))])
}

func (g *Generator) generate(category domain.Category) domain.AppError {
	templates := g.catalog.Templates(category)
	technical := g.catalog.TechnicalMessages(category)

	tmpl := templates[g.random.IntN(len(templates))]
	now := g.now()

	return tmpl.Stamp(g.newID(), domain.DebugInfo{
		TechnicalMessage: technical[g.random.IntN(len(technical))],
		Timestamp:        now,
		RequestID:        g.requestID(now),
		StackTrace:       g.catalog.StackTrace(category),
		Context:          g.catalog.RequestProfile().Context(category),
	})
}

// requestID composes the fixed prefix, the generation time in milliseconds and a
// random base-36 suffix.
func (g *Generator) requestID(now time.Time) string {
	var b strings.Builder
	b.Grow(len(RequestIDPrefix) + 14 + requestIDSuffixLen)
	b.WriteString(RequestIDPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	for range requestIDSuffixLen {
		b.WriteByte(base36[g.random.IntN(len(base36))])
	}
	return b.String()
}
