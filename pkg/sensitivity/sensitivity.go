// Package sensitivity detects implementation-revealing content in text that is
// meant for end users: file paths, ports, connection strings, stack frames,
// exception names and similar technical vocabulary.
package sensitivity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule declares a detection rule.
type Rule struct {
	Name    string
	Pattern string
}

// Finding captures a single match.
type Finding struct {
	Rule  string
	Match string
	Start int
	End   int
}

// Report summarises the outcome of a scan.
type Report struct {
	Findings []Finding
}

// Clean reports whether the scan found nothing.
func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

// Rules returns the distinct rule names that matched, sorted.
func (r Report) Rules() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	var names []string
	for _, f := range r.Findings {
		if _, ok := seen[f.Rule]; ok {
			continue
		}
		seen[f.Rule] = struct{}{}
		names = append(names, f.Rule)
	}
	sort.Strings(names)
	return names
}

// Scanner applies rules to text. It is safe for concurrent use.
type Scanner struct {
	rules []compiledRule
}

type compiledRule struct {
	name string
	expr *regexp.Regexp
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "file_path", Pattern: `(?:[A-Za-z]:)?(?:[\\/][\w.\-]+){2,}`},
		{Name: "port_number", Pattern: `:\d{2,5}\b`},
		{Name: "connection_uri", Pattern: `\b[a-zA-Z][a-zA-Z0-9+.\-]*://`},
		{Name: "stack_frame", Pattern: `\bat [\w.$<>]+ ?\(`},
		{Name: "exception_name", Pattern: `\b[A-Z][A-Za-z]*(?:Error|Exception)\b`},
		{Name: "errno", Pattern: `\bE[A-Z]{4,}\b`},
		{Name: "technical_term", Pattern: `(?i)\b(?:tokens?|jwts?|stack|sql|regex|heap|null|undefined)\b`},
		{Name: "service_name", Pattern: `(?i)\b(?:postgres(?:ql)?|mysql|redis|mongo(?:db)?|database|db|[a-z0-9]+-service)\b`},
		{Name: "duration_ms", Pattern: `\b\d+\s?ms\b`},
		{Name: "ip_address", Pattern: `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.(?:\d{1,3}|x{3})\b`},
	}
}

// NewScanner compiles the supplied rules.
func NewScanner(rules []Rule) (*Scanner, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("sensitivity: rule name is required")
		}
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("sensitivity: pattern is required for rule %s", name)
		}
		expr, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("sensitivity: invalid pattern for rule %s: %w", name, err)
		}
		compiled = append(compiled, compiledRule{name: name, expr: expr})
	}
	return &Scanner{rules: compiled}, nil
}

var defaultScanner = mustNewScanner(DefaultRules())

// Default returns a scanner over DefaultRules.
func Default() *Scanner {
	return defaultScanner
}

func mustNewScanner(rules []Rule) *Scanner {
	s, err := NewScanner(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Scan applies every rule to text and returns the findings ordered by position.
func (s *Scanner) Scan(text string) Report {
	var findings []Finding
	for _, rule := range s.rules {
		for _, match := range rule.expr.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{
				Rule:  rule.name,
				Match: text[match[0]:match[1]],
				Start: match[0],
				End:   match[1],
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start == findings[j].Start {
			return findings[i].End < findings[j].End
		}
		return findings[i].Start < findings[j].Start
	})

	return Report{Findings: findings}
}
