package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/platform/auth"
	"github.com/casalink/api/internal/services"
)

type stubShortlistService struct {
	addEntryFn    func(ctx context.Context, cmd services.ShortlistAddCommand) (services.ShortlistEntry, error)
	removeEntryFn func(ctx context.Context, cmd services.ShortlistRemoveCommand) error
	listEntriesFn func(ctx context.Context, householdID string, pager services.Pagination) (domain.CursorPage[services.ShortlistEntry], error)
	lockProfileFn func(ctx context.Context, cmd services.ProfileLockCommand) (services.ProfileLock, error)
	unlockFn      func(ctx context.Context, cmd services.ProfileUnlockCommand) error
	lockStatusFn  func(ctx context.Context, householdID, profileID string) (services.LockStatus, error)
	sweepFn       func(ctx context.Context, limit int) ([]services.ProfileLock, error)
}

func (s *stubShortlistService) AddEntry(ctx context.Context, cmd services.ShortlistAddCommand) (services.ShortlistEntry, error) {
	if s.addEntryFn != nil {
		return s.addEntryFn(ctx, cmd)
	}
	return services.ShortlistEntry{HouseholdID: cmd.HouseholdID, ProfileID: cmd.ProfileID}, nil
}

func (s *stubShortlistService) RemoveEntry(ctx context.Context, cmd services.ShortlistRemoveCommand) error {
	if s.removeEntryFn != nil {
		return s.removeEntryFn(ctx, cmd)
	}
	return nil
}

func (s *stubShortlistService) ListEntries(ctx context.Context, householdID string, pager services.Pagination) (domain.CursorPage[services.ShortlistEntry], error) {
	if s.listEntriesFn != nil {
		return s.listEntriesFn(ctx, householdID, pager)
	}
	return domain.CursorPage[services.ShortlistEntry]{}, nil
}

func (s *stubShortlistService) LockProfile(ctx context.Context, cmd services.ProfileLockCommand) (services.ProfileLock, error) {
	if s.lockProfileFn != nil {
		return s.lockProfileFn(ctx, cmd)
	}
	return services.ProfileLock{ProfileID: cmd.ProfileID, HouseholdID: cmd.HouseholdID}, nil
}

func (s *stubShortlistService) UnlockProfile(ctx context.Context, cmd services.ProfileUnlockCommand) error {
	if s.unlockFn != nil {
		return s.unlockFn(ctx, cmd)
	}
	return nil
}

func (s *stubShortlistService) LockStatus(ctx context.Context, householdID, profileID string) (services.LockStatus, error) {
	if s.lockStatusFn != nil {
		return s.lockStatusFn(ctx, householdID, profileID)
	}
	return services.LockStatus{}, nil
}

func (s *stubShortlistService) SweepExpiredLocks(ctx context.Context, limit int) ([]services.ProfileLock, error) {
	if s.sweepFn != nil {
		return s.sweepFn(ctx, limit)
	}
	return nil, nil
}

var _ services.ShortlistService = (*stubShortlistService)(nil)

func householdIdentity(uid string) *auth.Identity {
	return &auth.Identity{UID: uid, Roles: []string{"household"}}
}

func serveShortlist(handler *ShortlistHandlers, req *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Route("/", handler.Routes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestShortlistHandlersListEntries(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &stubShortlistService{
		listEntriesFn: func(ctx context.Context, householdID string, pager services.Pagination) (domain.CursorPage[services.ShortlistEntry], error) {
			if householdID != "hh-1" {
				t.Fatalf("unexpected household id %s", householdID)
			}
			if pager.PageSize != 25 {
				t.Fatalf("expected page size 25, got %d", pager.PageSize)
			}
			return domain.CursorPage[services.ShortlistEntry]{
				Items:         []services.ShortlistEntry{{HouseholdID: householdID, ProfileID: "hp-1", CreatedAt: createdAt}},
				NextPageToken: "tok-1",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/?page_size=25", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", payload["items"])
	}
	if payload["next_page_token"] != "tok-1" {
		t.Fatalf("unexpected page token %v", payload["next_page_token"])
	}
}

func TestShortlistHandlersAddEntry(t *testing.T) {
	var captured services.ShortlistAddCommand
	svc := &stubShortlistService{
		addEntryFn: func(ctx context.Context, cmd services.ShortlistAddCommand) (services.ShortlistEntry, error) {
			captured = cmd
			return services.ShortlistEntry{HouseholdID: cmd.HouseholdID, ProfileID: cmd.ProfileID}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/hp-7", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.HouseholdID != "hh-1" || captured.ProfileID != "hp-7" {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestShortlistHandlersAddEntryRequiresHouseholdRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/hp-7", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "hp-1", Roles: []string{"househelp"}}))

	rr := serveShortlist(NewShortlistHandlers(&stubShortlistService{}, 0), req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestShortlistHandlersRejectsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rr := serveShortlist(NewShortlistHandlers(&stubShortlistService{}, 0), req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestShortlistHandlersRemoveEntry(t *testing.T) {
	var captured services.ShortlistRemoveCommand
	svc := &stubShortlistService{
		removeEntryFn: func(ctx context.Context, cmd services.ShortlistRemoveCommand) error {
			captured = cmd
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/hp-7", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.ProfileID != "hp-7" {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestShortlistHandlersLockStatus(t *testing.T) {
	expires := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	svc := &stubShortlistService{
		lockStatusFn: func(ctx context.Context, householdID, profileID string) (services.LockStatus, error) {
			return services.LockStatus{Unlocked: true, UnlockedByMe: true, ExpiresAt: &expires}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/hp-7/status", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload["unlocked"] != true || payload["unlocked_by_me"] != true {
		t.Fatalf("unexpected status payload %v", payload)
	}
	if payload["expires_at"] != expires.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected expires_at %v", payload["expires_at"])
	}
}

func TestShortlistHandlersLockStatusNoGrant(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/hp-7/status", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(&stubShortlistService{}, 0), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload["unlocked"] != false || payload["unlocked_by_me"] != false {
		t.Fatalf("expected no grant, got %v", payload)
	}
}

func TestShortlistHandlersLockProfile(t *testing.T) {
	var captured services.ProfileLockCommand
	expires := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	svc := &stubShortlistService{
		lockProfileFn: func(ctx context.Context, cmd services.ProfileLockCommand) (services.ProfileLock, error) {
			captured = cmd
			return services.ProfileLock{ProfileID: cmd.ProfileID, HouseholdID: cmd.HouseholdID, ExpiresAt: expires}, nil
		},
	}

	body := []byte(`{"payment_intent_id":"pi_123","duration_days":5}`)
	req := httptest.NewRequest(http.MethodPost, "/hp-7/unlock", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.PaymentRef != "pi_123" {
		t.Fatalf("unexpected payment ref %s", captured.PaymentRef)
	}
	if captured.Duration != 5*24*time.Hour {
		t.Fatalf("unexpected duration %s", captured.Duration)
	}
}

func TestShortlistHandlersLockProfileRateLimited(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := newActorThrottle(1, time.Minute, func() time.Time { return now })
	if !limiter.Allow("hh-1") {
		t.Fatalf("expected first attempt to pass")
	}

	body := []byte(`{"payment_intent_id":"pi_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/hp-7/unlock", bytes.NewReader(body))
	req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

	rr := serveShortlist(&ShortlistHandlers{shortlists: &stubShortlistService{}, limiter: limiter}, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
}

func TestShortlistHandlersErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"payment":        {err: services.ErrUnlockPaymentRequired, status: http.StatusPaymentRequired, code: "payment_unverified"},
		"locked":         {err: services.ErrProfileLocked, status: http.StatusConflict, code: "profile_locked"},
		"already_locked": {err: services.ErrProfileAlreadyLocked, status: http.StatusConflict, code: "already_locked"},
		"not_found":      {err: services.ErrShortlistNotFound, status: http.StatusNotFound, code: "not_found"},
		"invalid":        {err: services.ErrShortlistInvalidInput, status: http.StatusBadRequest, code: "validation_error"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubShortlistService{
				lockProfileFn: func(ctx context.Context, cmd services.ProfileLockCommand) (services.ProfileLock, error) {
					return services.ProfileLock{}, tc.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/hp-7/unlock", bytes.NewReader([]byte(`{}`)))
			req = req.WithContext(auth.WithIdentity(req.Context(), householdIdentity("hh-1")))

			rr := serveShortlist(NewShortlistHandlers(svc, 0), req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}

			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("expected JSON error body: %v", err)
			}
			if payload["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, payload["error"])
			}
		})
	}
}
