package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/polisai/errorflow/pkg/domain"
	"github.com/polisai/errorflow/pkg/sensitivity"
)

// ErrSensitiveContent indicates a user-facing catalog field that reveals
// implementation details or overlaps with debug-only content.
var ErrSensitiveContent = errors.New("sensitive content in user-facing field")

// ErrInvalidTemplate indicates a template that is internally inconsistent.
var ErrInvalidTemplate = errors.New("invalid error template")

// ErrInvalidProfile indicates request profile data that is missing or would
// reflect a real client address.
var ErrInvalidProfile = errors.New("invalid request profile")

// ErrDuplicateCategory indicates two catalog keys naming the same category.
var ErrDuplicateCategory = errors.New("duplicate catalog category")

// maskedIP accepts IPv4 addresses whose last octet is masked as "xxx".
var maskedIP = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.xxx$`)

// ruleDebugOverlap is reported when a user-facing string and a debug string
// contain one another.
const ruleDebugOverlap = "debug_overlap"

// PoolError reports an empty pool for a category.
type PoolError struct {
	Category domain.Category
	Pool     string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("category %s: %s pool is empty", e.Category, e.Pool)
}

func (e *PoolError) Is(target error) bool {
	return target == domain.ErrEmptyPool
}

// LeakError reports a user-facing field that failed the sensitivity checks.
type LeakError struct {
	Category domain.Category
	Field    string
	Index    int
	Rule     string
	Match    string
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("category %s template %d: %s matches %s (%q)", e.Category, e.Index, e.Field, e.Rule, e.Match)
}

func (e *LeakError) Is(target error) bool {
	return target == ErrSensitiveContent
}

// Validate checks the catalog invariants: every category has templates,
// technical messages and a stack trace; templates agree with their category; no
// user-facing field reveals technical detail or shares text with debug content;
// and the request profile is complete with a masked IP.
func (c *Catalog) Validate() error {
	return c.validate(sensitivity.Default())
}

func (c *Catalog) validate(scanner *sensitivity.Scanner) error {
	var errs []error

	var debugStrings []string
	for _, category := range domain.Categories() {
		p := c.pools[category]
		debugStrings = append(debugStrings, p.technical...)
		if p.stackTrace != "" {
			debugStrings = append(debugStrings, p.stackTrace)
		}
	}

	for _, category := range domain.Categories() {
		p, ok := c.pools[category]
		if !ok || len(p.templates) == 0 {
			errs = append(errs, &PoolError{Category: category, Pool: "templates"})
		}
		if len(p.technical) == 0 {
			errs = append(errs, &PoolError{Category: category, Pool: "technical_messages"})
		}
		if p.stackTrace == "" {
			errs = append(errs, &PoolError{Category: category, Pool: "stack_trace"})
		}
		for i, msg := range p.technical {
			if strings.TrimSpace(msg) == "" {
				errs = append(errs, fmt.Errorf("category %s: technical message %d is blank: %w", category, i, domain.ErrEmptyPool))
			}
		}

		for i, tmpl := range p.templates {
			errs = append(errs, validateTemplate(category, i, tmpl)...)

			fields := []struct{ name, value string }{
				{"user_message", tmpl.UserMessage},
				{"suggested_action", tmpl.SuggestedAction},
			}
			for _, field := range fields {
				if field.value == "" {
					continue
				}
				if leak := checkField(scanner, debugStrings, field.value); leak != nil {
					leak.Category = category
					leak.Field = field.name
					leak.Index = i
					errs = append(errs, leak)
				}
			}
		}
	}

	errs = append(errs, validateProfile(c.profile)...)

	return errors.Join(errs...)
}

func validateProfile(p RequestProfile) []error {
	var errs []error
	for _, field := range []struct{ name, value string }{
		{"user_agent", p.UserAgent},
		{"method", p.Method},
		{"endpoint", p.Endpoint},
	} {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("request_profile: %s is required: %w", field.name, ErrInvalidProfile))
		}
	}
	if !maskedIP.MatchString(p.IP) {
		errs = append(errs, fmt.Errorf("request_profile: ip %q must be an IPv4 address with the last octet masked as xxx: %w", p.IP, ErrInvalidProfile))
	}
	return errs
}

func validateTemplate(category domain.Category, index int, tmpl domain.Template) []error {
	var errs []error
	if strings.TrimSpace(tmpl.UserMessage) == "" {
		errs = append(errs, fmt.Errorf("category %s template %d: user_message is required: %w", category, index, ErrInvalidTemplate))
	}
	if !tmpl.Severity.Valid() {
		errs = append(errs, fmt.Errorf("category %s template %d: severity %d: %w", category, index, int(tmpl.Severity), ErrInvalidTemplate))
	}
	owner, ok := domain.CategoryForStatus(tmpl.Code)
	if !ok || owner != category {
		errs = append(errs, fmt.Errorf("category %s template %d: status %d does not belong to this category: %w", category, index, tmpl.Code, ErrInvalidTemplate))
	}
	return errs
}

func checkField(scanner *sensitivity.Scanner, debugStrings []string, value string) *LeakError {
	if report := scanner.Scan(value); !report.Clean() {
		f := report.Findings[0]
		return &LeakError{Rule: f.Rule, Match: f.Match}
	}
	for _, d := range debugStrings {
		if d == "" {
			continue
		}
		if strings.Contains(d, value) || strings.Contains(value, d) {
			return &LeakError{Rule: ruleDebugOverlap, Match: d}
		}
	}
	return nil
}
