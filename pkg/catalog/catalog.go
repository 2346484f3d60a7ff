// Package catalog holds the static pools an error is stamped from: user-facing
// templates, debug-only technical messages and one synthetic stack trace per
// category.
//
// A Catalog is validated once when it is loaded and is read-only afterwards, so
// it is safe for concurrent use. Lookups return copies.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/polisai/errorflow/pkg/domain"
)

//go:embed catalog.yaml
var builtin []byte

// Catalog is an immutable set of error pools keyed by category.
type Catalog struct {
	pools      map[domain.Category]pool
	codeRanges []CodeRange
	profile    RequestProfile
}

type pool struct {
	scenario   Scenario
	templates  []domain.Template
	technical  []string
	stackTrace string
}

// Scenario describes a category for the explainer views.
type Scenario struct {
	Category    domain.Category `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Examples    []Example       `json:"examples"`
}

// Example is a representative HTTP status for a scenario.
type Example struct {
	Code        int    `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// CodeRange explains one HTTP status class (1xx..5xx).
type CodeRange struct {
	Range       string `yaml:"range" json:"range"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Example     string `yaml:"example" json:"example"`
	Rare        bool   `yaml:"rare,omitempty" json:"rare,omitempty"`
}

// RequestProfile is the simulated request metadata attached to every error.
// The IP is stored already masked; no real client address is ever reflected.
type RequestProfile struct {
	UserAgent string `yaml:"user_agent" json:"userAgent"`
	Method    string `yaml:"method" json:"method"`
	IP        string `yaml:"ip" json:"ip"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
}

// Context renders the profile for one category as a fresh map.
func (p RequestProfile) Context(c domain.Category) map[string]string {
	return map[string]string{
		"userAgent": p.UserAgent,
		"endpoint":  strings.ReplaceAll(p.Endpoint, "{category}", string(c)),
		"method":    p.Method,
		"ip":        p.IP,
	}
}

type document struct {
	Categories     map[string]categoryDocument `yaml:"categories"`
	RequestProfile RequestProfile              `yaml:"request_profile"`
	CodeRanges     []CodeRange                 `yaml:"code_ranges"`
}

type categoryDocument struct {
	Name              string            `yaml:"name"`
	Description       string            `yaml:"description"`
	Examples          []Example         `yaml:"examples"`
	Templates         []domain.Template `yaml:"templates"`
	TechnicalMessages []string          `yaml:"technical_messages"`
	StackTrace        string            `yaml:"stack_trace"`
}

var loadDefault = sync.OnceValue(func() *Catalog {
	c, err := Load(builtin)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog is invalid: %v", err))
	}
	return c
})

// Default returns the validated built-in catalog.
func Default() *Catalog {
	return loadDefault()
}

// Builtin returns a copy of the embedded catalog document.
func Builtin() []byte {
	return bytes.Clone(builtin)
}

// LoadFile reads and validates a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	//nolint:gosec // Catalog path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return c, nil
}

// Load parses a YAML catalog document and validates it.
func Load(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		pools:      make(map[domain.Category]pool, len(doc.Categories)),
		codeRanges: doc.CodeRanges,
		profile:    doc.RequestProfile,
	}

	seen := make(map[domain.Category]string, len(doc.Categories))
	for key, cd := range doc.Categories {
		category, err := domain.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("catalog category: %w", err)
		}
		if prev, dup := seen[category]; dup {
			return nil, fmt.Errorf("catalog keys %q and %q both name category %s: %w", prev, key, category, ErrDuplicateCategory)
		}
		seen[category] = key
		templates := slices.Clone(cd.Templates)
		for i := range templates {
			templates[i].Category = category
		}
		c.pools[category] = pool{
			scenario: Scenario{
				Category:    category,
				Name:        cd.Name,
				Description: cd.Description,
				Examples:    slices.Clone(cd.Examples),
			},
			templates:  templates,
			technical:  slices.Clone(cd.TechnicalMessages),
			stackTrace: strings.TrimSpace(cd.StackTrace),
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Templates returns the template pool for a category. A category outside the
// closed set yields an empty pool.
func (c *Catalog) Templates(category domain.Category) []domain.Template {
	return slices.Clone(c.pools[category].templates)
}

// TechnicalMessages returns the debug-only message pool for a category.
func (c *Catalog) TechnicalMessages(category domain.Category) []string {
	return slices.Clone(c.pools[category].technical)
}

// StackTrace returns the fixed synthetic stack trace for a category.
func (c *Catalog) StackTrace(category domain.Category) string {
	return c.pools[category].stackTrace
}

// Scenarios returns the per-category explainer entries in category order.
func (c *Catalog) Scenarios() []Scenario {
	out := make([]Scenario, 0, len(c.pools))
	for _, category := range domain.Categories() {
		p, ok := c.pools[category]
		if !ok {
			continue
		}
		s := p.scenario
		s.Examples = slices.Clone(s.Examples)
		out = append(out, s)
	}
	return out
}

// CodeRanges returns the HTTP status class explainer entries.
func (c *Catalog) CodeRanges() []CodeRange {
	return slices.Clone(c.codeRanges)
}

// RequestProfile returns the simulated request metadata.
func (c *Catalog) RequestProfile() RequestProfile {
	return c.profile
}

// Size returns the number of templates per category.
func (c *Catalog) Size() map[domain.Category]int {
	out := make(map[domain.Category]int, len(c.pools))
	for category, p := range c.pools {
		out[category] = len(p.templates)
	}
	return out
}
