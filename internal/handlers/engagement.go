package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/casalink/api/internal/platform/httpx"
	"github.com/casalink/api/internal/services"
)

// EngagementHandlers exposes the advisory pre-flight checks.
type EngagementHandlers struct {
	engagement services.EngagementService
}

// NewEngagementHandlers constructs handlers for the /engagement group.
func NewEngagementHandlers(engagement services.EngagementService) *EngagementHandlers {
	return &EngagementHandlers{engagement: engagement}
}

// Routes registers the engagement endpoints on the provided router.
func (h *EngagementHandlers) Routes(r chi.Router) {
	r.Get("/checks", h.checks)
}

type checkPayload struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type checksPayload struct {
	ShortlistAddition  *checkPayload `json:"shortlist_addition,omitempty"`
	RequestCreation    *checkPayload `json:"request_creation,omitempty"`
	ContractConversion *checkPayload `json:"contract_conversion,omitempty"`
}

// checks answers the advisory questions for the identifiers supplied in the
// query string. Answers reflect a point-in-time read; mutations re-validate.
func (h *EngagementHandlers) checks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.engagement == nil {
		httpx.WriteError(ctx, w, httpx.NewError("engagement_service_unavailable", "engagement service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireActor(ctx, w); !ok {
		return
	}

	householdID := strings.TrimSpace(r.URL.Query().Get("household_id"))
	househelpID := strings.TrimSpace(r.URL.Query().Get("househelp_id"))
	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))

	if (householdID == "" || househelpID == "") && requestID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "household_id and househelp_id, or request_id, are required", http.StatusBadRequest))
		return
	}

	payload := checksPayload{}

	if householdID != "" && househelpID != "" {
		shortlist, err := h.engagement.CheckShortlistAddition(ctx, householdID, househelpID)
		if err != nil {
			writeEngagementError(ctx, w, err)
			return
		}
		payload.ShortlistAddition = &checkPayload{Allowed: shortlist.Allowed, Reason: shortlist.Reason}

		request, err := h.engagement.CheckRequestCreation(ctx, householdID, househelpID)
		if err != nil {
			writeEngagementError(ctx, w, err)
			return
		}
		payload.RequestCreation = &checkPayload{Allowed: request.Allowed, Reason: request.Reason}
	}

	if requestID != "" {
		conversion, err := h.engagement.CheckContractConversion(ctx, requestID)
		if err != nil {
			writeEngagementError(ctx, w, err)
			return
		}
		payload.ContractConversion = &checkPayload{Allowed: conversion.Allowed, Reason: conversion.Reason}
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func writeEngagementError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrEngagementInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid engagement check", http.StatusBadRequest))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("engagement_error", err.Error(), http.StatusInternalServerError))
}
