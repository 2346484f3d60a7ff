// Package domain defines the core types of the error demo: categories, severities,
// catalog templates and the AppError entity stamped from them.
//
// This package has ZERO dependencies outside the Go standard library. Every type
// here is:
//
// - Independent of infrastructure (no HTTP, no storage, no telemetry)
// - Immutable once constructed (templates are configuration, errors are snapshots)
// - Testable in isolation without mocks
//
// The central rule is the split between the two projections of an AppError:
//
//	PublicError   safe to render unconditionally (user message, suggested action)
//	DebugInfo     implementation details, rendered only behind explicit disclosure
//
// Nothing in DebugInfo is ever copied into a user-facing field. The catalog package
// enforces this over its static data at load time.
package domain
