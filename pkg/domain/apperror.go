package domain

import (
	"maps"
	"time"
)

// Template is a catalog-defined error definition from which runtime errors are
// stamped. Templates are created once when the catalog loads and never mutated.
type Template struct {
	Code            int      `yaml:"code" json:"code"`
	Category        Category `yaml:"-" json:"category"`
	Severity        Severity `yaml:"severity" json:"severity"`
	UserMessage     string   `yaml:"user_message" json:"userMessage"`
	SuggestedAction string   `yaml:"suggested_action,omitempty" json:"suggestedAction,omitempty"`
	DocsURL         string   `yaml:"docs_url,omitempty" json:"docsUrl,omitempty"`
}

// AppError is one simulated failure. It is built by a single generator call and
// never mutated afterwards; hold it by value and use Clone when handing out copies.
type AppError struct {
	ID              string    `json:"id"`
	Code            int       `json:"code"`
	Category        Category  `json:"category"`
	Severity        Severity  `json:"severity"`
	UserMessage     string    `json:"userMessage"`
	SuggestedAction string    `json:"suggestedAction,omitempty"`
	DocsURL         string    `json:"docsUrl,omitempty"`
	DebugInfo       DebugInfo `json:"debugInfo"`
}

// DebugInfo is the sensitive projection of an AppError. It reveals implementation
// details and must only be rendered behind an explicit disclosure.
type DebugInfo struct {
	TechnicalMessage string            `json:"technicalMessage"`
	Timestamp        time.Time         `json:"timestamp"`
	RequestID        string            `json:"requestId"`
	StackTrace       string            `json:"stackTrace,omitempty"`
	Context          map[string]string `json:"context,omitempty"`
}

// PublicError is the projection of an AppError that is safe to render
// unconditionally.
type PublicError struct {
	ID              string   `json:"id"`
	Code            int      `json:"code"`
	Category        Category `json:"category"`
	Severity        Severity `json:"severity"`
	UserMessage     string   `json:"userMessage"`
	SuggestedAction string   `json:"suggestedAction,omitempty"`
	DocsURL         string   `json:"docsUrl,omitempty"`
}

// Stamp copies the template fields into a new AppError with the given identity
// and debug block.
func (t Template) Stamp(id string, debug DebugInfo) AppError {
	return AppError{
		ID:              id,
		Code:            t.Code,
		Category:        t.Category,
		Severity:        t.Severity,
		UserMessage:     t.UserMessage,
		SuggestedAction: t.SuggestedAction,
		DocsURL:         t.DocsURL,
		DebugInfo:       debug,
	}
}

// Public returns the user-facing projection.
func (e AppError) Public() PublicError {
	return PublicError{
		ID:              e.ID,
		Code:            e.Code,
		Category:        e.Category,
		Severity:        e.Severity,
		UserMessage:     e.UserMessage,
		SuggestedAction: e.SuggestedAction,
		DocsURL:         e.DocsURL,
	}
}

// Clone returns a deep copy so callers cannot alter a stored error through the
// shared context map.
func (e AppError) Clone() AppError {
	out := e
	if e.DebugInfo.Context != nil {
		out.DebugInfo.Context = maps.Clone(e.DebugInfo.Context)
	}
	return out
}
