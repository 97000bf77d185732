package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/casalink/api/internal/platform/httpx"
	"github.com/casalink/api/internal/services"
)

// InternalHandlers exposes operator endpoints guarded by OIDC service tokens.
type InternalHandlers struct {
	shortlists services.ShortlistService
	batchSize  int
}

// NewInternalHandlers constructs handlers for the /internal group.
func NewInternalHandlers(shortlists services.ShortlistService, batchSize int) *InternalHandlers {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &InternalHandlers{shortlists: shortlists, batchSize: batchSize}
}

// Routes registers the internal endpoints on the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	r.Post("/shortlist:sweep", h.sweepLocks)
}

type sweepResultPayload struct {
	Reclaimed int                  `json:"reclaimed"`
	Locks     []profileLockPayload `json:"locks"`
}

func (h *InternalHandlers) sweepLocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shortlists == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shortlist_service_unavailable", "shortlist service is unavailable", http.StatusServiceUnavailable))
		return
	}

	reclaimed, err := h.shortlists.SweepExpiredLocks(ctx, h.batchSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("sweep_failed", err.Error(), http.StatusInternalServerError))
		return
	}

	payload := sweepResultPayload{
		Reclaimed: len(reclaimed),
		Locks:     make([]profileLockPayload, 0, len(reclaimed)),
	}
	for _, lock := range reclaimed {
		payload.Locks = append(payload.Locks, profileLockPayload{
			ProfileID: lock.ProfileID,
			ExpiresAt: formatTime(lock.ExpiresAt),
			CreatedAt: formatTime(lock.CreatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}
