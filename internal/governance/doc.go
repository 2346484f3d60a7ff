// Package governance holds runtime safety controls for the errorflow API. It
// currently provides per-route token bucket rate limiting.
package governance
