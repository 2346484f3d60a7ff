package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/polisai/errorflow/pkg/domain"
	"github.com/polisai/errorflow/pkg/logging"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes a domain.ErrorResponse carrying the current trace ID.
func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	writeJSON(ctx, w, status, domain.ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: logging.TraceID(ctx),
	})
}
