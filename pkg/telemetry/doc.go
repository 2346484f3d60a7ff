// Package telemetry wires OpenTelemetry tracing and metrics plus a Prometheus
// registry for the errorflow service.
//
// Only the public identity of a simulated error (id, category, severity, code)
// is ever attached to spans or metrics. Debug information stays out of telemetry.
package telemetry
