package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorFlatEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("not_found", "contract not found", http.StatusNotFound))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if payload["error"] != "not_found" || payload["message"] != "contract not found" {
		t.Fatalf("unexpected envelope %v", payload)
	}
	if payload["status"] != float64(http.StatusNotFound) {
		t.Fatalf("unexpected status field %v", payload["status"])
	}
	if payload["request_id"] != "req-42" {
		t.Fatalf("expected request id from context, got %v", payload["request_id"])
	}
}

func TestNewErrorClipsUnsafeText(t *testing.T) {
	err := NewError("validation_error", "line one\r\nline two", 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected zero status to default to 500, got %d", err.Status)
	}
	if strings.ContainsAny(err.Message, "\r\n") {
		t.Fatalf("expected line breaks stripped, got %q", err.Message)
	}

	long := NewError(strings.Repeat("x", 200), "m", http.StatusBadRequest)
	if len(long.Code) != 80 {
		t.Fatalf("expected code capped at 80 chars, got %d", len(long.Code))
	}
}
