package domain

import (
	"fmt"
	"strings"
)

// Category classifies a simulated failure. The set is closed.
type Category string

const (
	// CategoryValidation covers client input errors (4xx except 401/403).
	CategoryValidation Category = "validation"
	// CategoryAuthorization covers authentication and permission errors (401/403).
	CategoryAuthorization Category = "authorization"
	// CategorySystem covers server-side failures (5xx).
	CategorySystem Category = "system"
)

var categories = [...]Category{CategoryValidation, CategoryAuthorization, CategorySystem}

// Categories returns the closed category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// ParseCategory converts a tag into a Category. Surrounding whitespace and case are
// ignored; anything outside the closed set is rejected, never defaulted.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &UnknownCategoryError{Value: s}
	}
	return c, nil
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryValidation, CategoryAuthorization, CategorySystem:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Icon returns the short glyph shown next to errors of this category.
func (c Category) Icon() string {
	switch c {
	case CategoryValidation:
		return "📝"
	case CategoryAuthorization:
		return "🔐"
	case CategorySystem:
		return "⚙️"
	}
	panic(fmt.Sprintf("domain: Icon called with unknown category %q", string(c)))
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, &UnknownCategoryError{Value: string(c)}
	}
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CategoryForStatus maps an HTTP status code onto the category that owns it.
func CategoryForStatus(code int) (Category, bool) {
	switch {
	case code == 401 || code == 403:
		return CategoryAuthorization, true
	case code >= 400 && code < 500:
		return CategoryValidation, true
	case code >= 500 && code < 600:
		return CategorySystem, true
	}
	return "", false
}
