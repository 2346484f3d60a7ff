package domain

import (
	"fmt"
	"strings"
)

// Severity ranks an error for display emphasis. It has no behavioural effect.
// Values are ordered: SeverityLow < SeverityMedium < SeverityHigh < SeverityCritical.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Emphasis is the display tier a severity maps onto.
type Emphasis string

const (
	// EmphasisCaution is used for low and medium severities.
	EmphasisCaution Emphasis = "caution"
	// EmphasisAlarm is used for high and critical severities.
	EmphasisAlarm Emphasis = "alarm"
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// ParseSeverity converts a name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, &UnknownSeverityError{Value: s}
}

// Valid reports whether s belongs to the closed set.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Emphasis maps the severity onto its display tier.
func (s Severity) Emphasis() Emphasis {
	switch s {
	case SeverityLow, SeverityMedium:
		return EmphasisCaution
	case SeverityHigh, SeverityCritical:
		return EmphasisAlarm
	}
	panic(fmt.Sprintf("domain: Emphasis called with unknown severity %d", int(s)))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, &UnknownSeverityError{Value: fmt.Sprint(int(s))}
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
