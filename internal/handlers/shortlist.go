package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/casalink/api/internal/platform/httpx"
	"github.com/casalink/api/internal/services"
)

// ShortlistHandlers exposes the household shortlist and profile lock endpoints.
type ShortlistHandlers struct {
	shortlists services.ShortlistService
	limiter    rateLimiter
}

// NewShortlistHandlers constructs handlers for the /me/shortlist group.
// lockAttemptsPerMinute throttles lock purchases per household; zero disables
// the throttle.
func NewShortlistHandlers(shortlists services.ShortlistService, lockAttemptsPerMinute int) *ShortlistHandlers {
	return &ShortlistHandlers{
		shortlists: shortlists,
		limiter:    newActorThrottle(lockAttemptsPerMinute, time.Minute, time.Now),
	}
}

// Routes registers the shortlist endpoints on the provided router.
func (h *ShortlistHandlers) Routes(r chi.Router) {
	r.Get("/", h.listEntries)
	r.Put("/{profileID}", h.addEntry)
	r.Delete("/{profileID}", h.removeEntry)
	r.Get("/{profileID}/status", h.lockStatus)
	r.Post("/{profileID}/unlock", h.lockProfile)
}

type shortlistEntryPayload struct {
	ProfileID string `json:"profile_id"`
	CreatedAt string `json:"created_at"`
}

type shortlistPagePayload struct {
	Items         []shortlistEntryPayload `json:"items"`
	NextPageToken string                  `json:"next_page_token,omitempty"`
}

type lockStatusPayload struct {
	Unlocked     bool   `json:"unlocked"`
	UnlockedByMe bool   `json:"unlocked_by_me"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

type profileLockPayload struct {
	ProfileID string `json:"profile_id"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

type unlockRequestPayload struct {
	PaymentIntentID string `json:"payment_intent_id"`
	DurationDays    int    `json:"duration_days"`
}

func (h *ShortlistHandlers) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	page, err := h.shortlists.ListEntries(ctx, actor.ID, parsePagination(r))
	if err != nil {
		writeShortlistError(ctx, w, err)
		return
	}

	payload := shortlistPagePayload{
		Items:         make([]shortlistEntryPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Items {
		payload.Items = append(payload.Items, shortlistEntryPayload{
			ProfileID: entry.ProfileID,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ShortlistHandlers) addEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	profileID := strings.TrimSpace(chi.URLParam(r, "profileID"))
	if profileID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "profile id is required", http.StatusBadRequest))
		return
	}

	entry, err := h.shortlists.AddEntry(ctx, services.ShortlistAddCommand{
		HouseholdID: actor.ID,
		ProfileID:   profileID,
	})
	if err != nil {
		writeShortlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, shortlistEntryPayload{
		ProfileID: entry.ProfileID,
		CreatedAt: formatTime(entry.CreatedAt),
	})
}

func (h *ShortlistHandlers) removeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	profileID := strings.TrimSpace(chi.URLParam(r, "profileID"))
	if profileID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "profile id is required", http.StatusBadRequest))
		return
	}

	err := h.shortlists.RemoveEntry(ctx, services.ShortlistRemoveCommand{
		HouseholdID: actor.ID,
		ProfileID:   profileID,
	})
	if err != nil {
		writeShortlistError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ShortlistHandlers) lockStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	profileID := strings.TrimSpace(chi.URLParam(r, "profileID"))
	if profileID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "profile id is required", http.StatusBadRequest))
		return
	}

	status, err := h.shortlists.LockStatus(ctx, actor.ID, profileID)
	if err != nil {
		writeShortlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, lockStatusPayload{
		Unlocked:     status.Unlocked,
		UnlockedByMe: status.UnlockedByMe,
		ExpiresAt:    formatTimePtr(status.ExpiresAt),
	})
}

func (h *ShortlistHandlers) lockProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(actor.ID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many lock attempts", http.StatusTooManyRequests))
		return
	}

	profileID := strings.TrimSpace(chi.URLParam(r, "profileID"))
	if profileID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "profile id is required", http.StatusBadRequest))
		return
	}

	var body unlockRequestPayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}
	if body.DurationDays < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "duration_days must not be negative", http.StatusBadRequest))
		return
	}

	lock, err := h.shortlists.LockProfile(ctx, services.ProfileLockCommand{
		HouseholdID: actor.ID,
		ProfileID:   profileID,
		Duration:    time.Duration(body.DurationDays) * 24 * time.Hour,
		PaymentRef:  strings.TrimSpace(body.PaymentIntentID),
	})
	if err != nil {
		writeShortlistError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileLockPayload{
		ProfileID: lock.ProfileID,
		ExpiresAt: formatTime(lock.ExpiresAt),
		CreatedAt: formatTime(lock.CreatedAt),
	})
}

func writeShortlistError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrShortlistInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid shortlist request", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrProfileLocked):
		httpx.WriteError(ctx, w, httpx.NewError("profile_locked", "profile is locked by another household", http.StatusConflict))
		return
	case errors.Is(err, services.ErrProfileAlreadyLocked):
		httpx.WriteError(ctx, w, httpx.NewError("already_locked", "profile lock is held by another household", http.StatusConflict))
		return
	case errors.Is(err, services.ErrShortlistNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "shortlist entry not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrUnlockPaymentRequired):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unverified", "unlock payment could not be verified", http.StatusPaymentRequired))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("shortlist_error", err.Error(), http.StatusInternalServerError))
}
