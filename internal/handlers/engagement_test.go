package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/casalink/api/internal/platform/auth"
	"github.com/casalink/api/internal/services"
)

type stubEngagementService struct {
	shortlistFn  func(ctx context.Context, householdID, profileID string) (services.EngagementCheck, error)
	requestFn    func(ctx context.Context, householdID, househelpID string) (services.EngagementCheck, error)
	conversionFn func(ctx context.Context, requestID string) (services.EngagementCheck, error)
}

func (s *stubEngagementService) CheckShortlistAddition(ctx context.Context, householdID, profileID string) (services.EngagementCheck, error) {
	if s.shortlistFn != nil {
		return s.shortlistFn(ctx, householdID, profileID)
	}
	return services.EngagementCheck{Allowed: true}, nil
}

func (s *stubEngagementService) CheckRequestCreation(ctx context.Context, householdID, househelpID string) (services.EngagementCheck, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, householdID, househelpID)
	}
	return services.EngagementCheck{Allowed: true}, nil
}

func (s *stubEngagementService) CheckContractConversion(ctx context.Context, requestID string) (services.EngagementCheck, error) {
	if s.conversionFn != nil {
		return s.conversionFn(ctx, requestID)
	}
	return services.EngagementCheck{Allowed: true}, nil
}

var _ services.EngagementService = (*stubEngagementService)(nil)

func serveEngagement(svc services.EngagementService, req *http.Request) *httptest.ResponseRecorder {
	handler := NewEngagementHandlers(svc)
	router := chi.NewRouter()
	router.Route("/", handler.Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestEngagementHandlersChecksForPair(t *testing.T) {
	svc := &stubEngagementService{
		shortlistFn: func(ctx context.Context, householdID, profileID string) (services.EngagementCheck, error) {
			if householdID != "hh-1" || profileID != "hp-1" {
				t.Fatalf("unexpected pair %s/%s", householdID, profileID)
			}
			return services.EngagementCheck{Allowed: false, Reason: "profile_locked"}, nil
		},
		requestFn: func(ctx context.Context, householdID, househelpID string) (services.EngagementCheck, error) {
			return services.EngagementCheck{Allowed: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/checks?household_id=hh-1&househelp_id=hp-1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveEngagement(svc, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	shortlist, ok := payload["shortlist_addition"].(map[string]any)
	if !ok {
		t.Fatalf("expected shortlist_addition block, got %v", payload)
	}
	if shortlist["allowed"] != false || shortlist["reason"] != "profile_locked" {
		t.Fatalf("unexpected shortlist check %v", shortlist)
	}
	request, ok := payload["request_creation"].(map[string]any)
	if !ok || request["allowed"] != true {
		t.Fatalf("unexpected request check %v", payload["request_creation"])
	}
	if _, present := payload["contract_conversion"]; present {
		t.Fatalf("did not expect conversion check without request_id")
	}
}

func TestEngagementHandlersChecksForRequest(t *testing.T) {
	svc := &stubEngagementService{
		conversionFn: func(ctx context.Context, requestID string) (services.EngagementCheck, error) {
			if requestID != "hrq_1" {
				t.Fatalf("unexpected request id %s", requestID)
			}
			return services.EngagementCheck{Allowed: false, Reason: "request_not_accepted"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/checks?request_id=hrq_1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveEngagement(svc, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	conversion, ok := payload["contract_conversion"].(map[string]any)
	if !ok {
		t.Fatalf("expected contract_conversion block, got %v", payload)
	}
	if conversion["reason"] != "request_not_accepted" {
		t.Fatalf("unexpected conversion check %v", conversion)
	}
}

func TestEngagementHandlersChecksRequireParameters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/checks?household_id=hh-1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveEngagement(&stubEngagementService{}, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestEngagementHandlersChecksRequireAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/checks?request_id=hrq_1", nil)

	rr := serveEngagement(&stubEngagementService{}, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
