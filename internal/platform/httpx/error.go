// Package httpx carries the flat JSON error envelope used by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/casalink/api/internal/platform/requestctx"
)

// Error is the envelope written for failed requests. Code is the
// machine-readable discriminator clients switch on; the request and trace IDs
// are filled from the context when absent.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
}

// NewError builds an envelope. A zero status falls back to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clip(code, 80),
		Message: clip(message, 512),
		Status:  status,
	}
}

// WriteError renders the envelope as JSON. The payload stays flat: the code
// sits under "error" so clients never unwrap nested objects.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if id := pick(err.RequestID, middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := pick(err.TraceID, requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pick(explicit, fromContext string, limit int) string {
	if explicit != "" {
		return clip(explicit, limit)
	}
	return clip(fromContext, limit)
}

// clip strips line breaks and caps length so client-supplied text cannot
// distort the envelope or downstream log lines.
func clip(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
