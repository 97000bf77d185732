package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casalink/api/internal/platform/auth"
)

func TestNewRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected %s to return 200, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if payload["error"] != "route_not_found" {
		t.Fatalf("unexpected code %v", payload["error"])
	}
}

func TestNewRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/shortlist", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestNewRouterMountsConfiguredGroups(t *testing.T) {
	shortlist := NewShortlistHandlers(&stubShortlistService{}, 0)
	requests := NewHireRequestHandlers(&stubHireRequestService{}, 0)
	contracts := NewContractHandlers(&stubContractService{})
	engagement := NewEngagementHandlers(&stubEngagementService{})
	internal := NewInternalHandlers(&stubShortlistService{}, 50)

	identityMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), householdIdentity("hh-1"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	router := NewRouter(
		WithShortlistRoutes(shortlist.Routes),
		WithHireRequestRoutes(requests.Routes),
		WithContractRoutes(contracts.Routes),
		WithContractConversionRoute(contracts.FromRequestRoute),
		WithEngagementRoutes(engagement.Routes),
		WithInternalRoutes(internal.Routes),
		WithAuthenticatedMiddlewares(identityMW),
	)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/me/shortlist", http.StatusOK},
		{http.MethodGet, "/api/v1/hire-requests", http.StatusOK},
		{http.MethodGet, "/api/v1/contracts", http.StatusOK},
		{http.MethodGet, "/api/v1/engagement/checks?request_id=hrq_1", http.StatusOK},
		{http.MethodPost, "/api/v1/internal/shortlist:sweep", http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("expected %s %s to return %d, got %d", tc.method, tc.path, tc.status, rr.Code)
		}
	}
}

func TestNewRouterAppliesInternalMiddlewares(t *testing.T) {
	internal := NewInternalHandlers(&stubShortlistService{}, 50)

	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithInternalRoutes(internal.Routes),
		WithInternalMiddlewares(guard),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/shortlist:sweep", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected guarded request to return 401, got %d", rr.Code)
	}

	authed := httptest.NewRequest(http.MethodPost, "/api/v1/internal/shortlist:sweep", nil)
	authed.Header.Set("Authorization", "Bearer token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authed)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected authorised request to return 200, got %d", rr.Code)
	}
}

func TestNewRouterCustomHealthHandlers(t *testing.T) {
	custom := NewHealthHandlers(WithHealthSystemService(&stubSystemService{}))

	router := NewRouter(WithHealthHandlers(custom))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
