package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/errorflow/internal/governance"
	"github.com/polisai/errorflow/pkg/catalog"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/domain"
	"github.com/polisai/errorflow/pkg/telemetry"
)

const maxRequestBody = 4 << 10

// routeGenerate keys the rate limiter bucket for POST /api/errors.
const routeGenerate = "errors.create"

// Error codes returned in domain.ErrorResponse.
const (
	CodeUnknownCategory  = "UNKNOWN_CATEGORY"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeRequestCancelled = "REQUEST_CANCELLED"
	CodeRateLimited      = "RATE_LIMITED"
)

type createRequest struct {
	Category string `json:"category"`
}

// ErrorView is the JSON rendering of one AppError. DebugInfo is present only when
// the disclosure policy allowed it.
type ErrorView struct {
	domain.PublicError
	Icon       string              `json:"icon"`
	Emphasis   domain.Emphasis     `json:"emphasis"`
	Disclosure disclosure.Decision `json:"disclosure"`
	DebugInfo  *domain.DebugInfo   `json:"debugInfo,omitempty"`
}

// HistoryView lists stored errors, newest first.
type HistoryView struct {
	Errors   []ErrorView `json:"errors"`
	Count    int         `json:"count"`
	Capacity int         `json:"capacity"`
}

// CatalogView explains the categories and HTTP status classes.
type CatalogView struct {
	Scenarios  []ScenarioView      `json:"scenarios"`
	CodeRanges []catalog.CodeRange `json:"codeRanges"`
}

// ScenarioView is a catalog scenario with its display icon.
type ScenarioView struct {
	catalog.Scenario
	Icon string `json:"icon"`
}

func (s *Server) handleCreateError(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	name := r.URL.Query().Get("category")
	var req createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(ctx, w, http.StatusBadRequest, CodeInvalidRequest, "Request body must be a JSON object with an optional \"category\" field")
		return
	}
	if req.Category != "" {
		name = req.Category
	}

	// Empty means random.
	var category domain.Category
	if name != "" {
		var err error
		category, err = domain.ParseCategory(name)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, CodeUnknownCategory, "Unknown error category "+strconv.Quote(name))
			return
		}
	}

	if !s.limiter.Allow(routeGenerate) {
		if stats, ok := s.limiter.Stats(routeGenerate); ok {
			governance.WriteRateLimitHeaders(w, stats)
		}
		s.metrics.RecordRateLimited()
		writeError(ctx, w, http.StatusTooManyRequests, CodeRateLimited, "Too many errors requested, slow down and try again shortly")
		return
	}

	if err := sleepContext(ctx, s.latency); err != nil {
		writeError(ctx, w, http.StatusServiceUnavailable, CodeRequestCancelled, "Request was cancelled before an error was generated")
		return
	}

	ctx, span := s.tracer.Start(ctx, "errorflow.generate")
	defer span.End()

	var appErr domain.AppError
	if category == "" {
		appErr = s.generator.GenerateRandom()
	} else {
		var err error
		appErr, err = s.generator.Generate(category)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, CodeUnknownCategory, "Unknown error category "+strconv.Quote(name))
			return
		}
	}

	if s.history.Add(appErr) {
		s.logger.Logger().DebugContext(ctx, "History full, oldest error evicted", "capacity", s.history.Capacity())
	}
	s.metrics.SetHistoryEntries(s.history.Len())

	telemetry.AnnotateError(span, appErr)
	view := s.view(ctx, appErr, debugRequested(r))

	s.metrics.RecordGenerated(appErr)
	telemetry.RecordGenerated(ctx, appErr, time.Since(start))
	s.logger.LogGenerated(ctx, appErr, view.DebugInfo != nil)

	writeJSON(ctx, w, http.StatusCreated, view)
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	debug := debugRequested(r)

	entries := s.history.List()
	views := make([]ErrorView, 0, len(entries))
	for _, e := range entries {
		views = append(views, s.view(ctx, e, debug))
	}

	writeJSON(ctx, w, http.StatusOK, HistoryView{
		Errors:   views,
		Count:    len(views),
		Capacity: s.history.Capacity(),
	})
}

func (s *Server) handleClearErrors(w http.ResponseWriter, r *http.Request) {
	s.history.Clear()
	s.metrics.SetHistoryEntries(0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetError(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	e, ok := s.history.Get(id)
	if !ok {
		writeError(ctx, w, http.StatusNotFound, CodeNotFound, "No error with id "+strconv.Quote(id)+" in history")
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.view(ctx, e, debugRequested(r)))
}

func (s *Server) handleLatestError(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	e, ok := s.history.Latest()
	if !ok {
		writeError(ctx, w, http.StatusNotFound, CodeNotFound, "History is empty")
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.view(ctx, e, debugRequested(r)))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.generator.Catalog()

	scenarios := cat.Scenarios()
	views := make([]ScenarioView, 0, len(scenarios))
	for _, sc := range scenarios {
		views = append(views, ScenarioView{Scenario: sc, Icon: sc.Category.Icon()})
	}

	writeJSON(r.Context(), w, http.StatusOK, CatalogView{
		Scenarios:  views,
		CodeRanges: cat.CodeRanges(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// view renders e, consulting the disclosure policy. Policy failures deny disclosure.
func (s *Server) view(ctx context.Context, e domain.AppError, requested bool) ErrorView {
	decision, err := s.policy.Evaluate(ctx, disclosure.Input{
		DebugRequested: requested,
		Environment:    s.environment,
		Category:       e.Category,
		Severity:       e.Severity,
		Code:           e.Code,
	})
	if err != nil {
		s.logger.Logger().ErrorContext(ctx, "Disclosure policy evaluation failed", "error", err)
		decision = disclosure.Decision{Allow: false, Reason: "disclosure policy unavailable"}
	}

	if requested {
		s.metrics.RecordDisclosure(decision.Allow)
		telemetry.RecordDisclosureDecision(ctx, decision.Allow)
		telemetry.RecordDisclosure(trace.SpanFromContext(ctx), decision)
	}

	return NewErrorView(e, decision)
}

// NewErrorView renders e for display. Debug information is attached only when
// decision allows it.
func NewErrorView(e domain.AppError, decision disclosure.Decision) ErrorView {
	view := ErrorView{
		PublicError: e.Public(),
		Icon:        e.Category.Icon(),
		Emphasis:    e.Severity.Emphasis(),
		Disclosure:  decision,
	}
	if decision.Allow {
		debug := e.Clone().DebugInfo
		view.DebugInfo = &debug
	}
	return view
}

func debugRequested(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("debug"))
	return err == nil && v
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
