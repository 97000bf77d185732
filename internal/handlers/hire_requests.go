package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/platform/httpx"
	"github.com/casalink/api/internal/services"
)

// HireRequestHandlers exposes the hire request lifecycle endpoints.
type HireRequestHandlers struct {
	requests services.HireRequestService
	limiter  rateLimiter
}

// NewHireRequestHandlers constructs handlers for the /hire-requests group.
// createsPerMinute throttles request creation per household; zero disables the
// throttle.
func NewHireRequestHandlers(requests services.HireRequestService, createsPerMinute int) *HireRequestHandlers {
	return &HireRequestHandlers{
		requests: requests,
		limiter:  newActorThrottle(createsPerMinute, time.Minute, time.Now),
	}
}

// Routes registers the hire request endpoints on the provided router.
func (h *HireRequestHandlers) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{requestID}", h.get)
	r.Post("/{requestID}:accept", h.accept)
	r.Post("/{requestID}:decline", h.decline)
	r.Post("/{requestID}:withdraw", h.withdraw)
	r.Post("/{requestID}:counter", h.counter)
}

type scheduleSlotPayload struct {
	Morning   bool `json:"morning"`
	Afternoon bool `json:"afternoon"`
	Evening   bool `json:"evening"`
}

type createHireRequestPayload struct {
	HousehelpID         string                         `json:"househelp_id"`
	JobType             string                         `json:"job_type"`
	SalaryOffered       int64                          `json:"salary_offered"`
	SalaryFrequency     string                         `json:"salary_frequency"`
	StartDate           string                         `json:"start_date,omitempty"`
	Schedule            map[string]scheduleSlotPayload `json:"schedule"`
	SpecialRequirements string                         `json:"special_requirements,omitempty"`
	TermsAccepted       bool                           `json:"terms_accepted"`
}

type declinePayload struct {
	Reason string `json:"reason"`
}

type counterPayload struct {
	SalaryOffered int64                          `json:"salary_offered"`
	Schedule      map[string]scheduleSlotPayload `json:"schedule,omitempty"`
}

type negotiationPayload struct {
	ID            string                         `json:"id"`
	ProposedBy    string                         `json:"proposed_by"`
	SalaryOffered int64                          `json:"salary_offered,omitempty"`
	Schedule      map[string]scheduleSlotPayload `json:"schedule,omitempty"`
	CreatedAt     string                         `json:"created_at"`
}

type hireRequestPayload struct {
	ID                  string                         `json:"id"`
	HouseholdID         string                         `json:"household_id"`
	HousehelpID         string                         `json:"househelp_id"`
	JobType             string                         `json:"job_type"`
	SalaryOffered       int64                          `json:"salary_offered"`
	SalaryFrequency     string                         `json:"salary_frequency"`
	StartDate           string                         `json:"start_date,omitempty"`
	Schedule            map[string]scheduleSlotPayload `json:"schedule,omitempty"`
	SpecialRequirements string                         `json:"special_requirements,omitempty"`
	Status              string                         `json:"status"`
	DeclineReason       string                         `json:"decline_reason,omitempty"`
	ContractID          string                         `json:"contract_id,omitempty"`
	Negotiations        []negotiationPayload           `json:"negotiations,omitempty"`
	ExpiresAt           string                         `json:"expires_at"`
	CreatedAt           string                         `json:"created_at"`
	UpdatedAt           string                         `json:"updated_at"`
}

type hireRequestPagePayload struct {
	Items         []hireRequestPayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

func scheduleFromPayload(in map[string]scheduleSlotPayload) services.WorkSchedule {
	if len(in) == 0 {
		return nil
	}
	out := make(services.WorkSchedule, len(in))
	for day, slots := range in {
		out[day] = domain.DaySlots{
			Morning:   slots.Morning,
			Afternoon: slots.Afternoon,
			Evening:   slots.Evening,
		}
	}
	return out
}

func scheduleToPayload(in services.WorkSchedule) map[string]scheduleSlotPayload {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]scheduleSlotPayload, len(in))
	for day, slots := range in {
		out[day] = scheduleSlotPayload{
			Morning:   slots.Morning,
			Afternoon: slots.Afternoon,
			Evening:   slots.Evening,
		}
	}
	return out
}

func buildHireRequestPayload(request services.HireRequest) hireRequestPayload {
	payload := hireRequestPayload{
		ID:                  request.ID,
		HouseholdID:         request.HouseholdID,
		HousehelpID:         request.HousehelpID,
		JobType:             string(request.JobType),
		SalaryOffered:       request.SalaryOffered,
		SalaryFrequency:     string(request.SalaryFrequency),
		StartDate:           formatTimePtr(request.StartDate),
		Schedule:            scheduleToPayload(request.Schedule),
		SpecialRequirements: request.SpecialRequirements,
		Status:              string(request.Status),
		DeclineReason:       request.DeclineReason,
		ContractID:          request.ContractID,
		ExpiresAt:           formatTime(request.ExpiresAt),
		CreatedAt:           formatTime(request.CreatedAt),
		UpdatedAt:           formatTime(request.UpdatedAt),
	}
	for _, negotiation := range request.Negotiations {
		payload.Negotiations = append(payload.Negotiations, negotiationPayload{
			ID:            negotiation.ID,
			ProposedBy:    string(negotiation.ProposedBy),
			SalaryOffered: negotiation.SalaryOffered,
			Schedule:      scheduleToPayload(negotiation.Schedule),
			CreatedAt:     formatTime(negotiation.CreatedAt),
		})
	}
	return payload
}

func (h *HireRequestHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(actor.ID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many hire requests", http.StatusTooManyRequests))
		return
	}

	var body createHireRequestPayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}

	cmd := services.CreateHireRequestCommand{
		HouseholdID:         actor.ID,
		HousehelpID:         strings.TrimSpace(body.HousehelpID),
		JobType:             body.JobType,
		SalaryOffered:       body.SalaryOffered,
		SalaryFrequency:     body.SalaryFrequency,
		Schedule:            scheduleFromPayload(body.Schedule),
		SpecialRequirements: body.SpecialRequirements,
		TermsAccepted:       body.TermsAccepted,
	}
	if raw := strings.TrimSpace(body.StartDate); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("validation_error", "start_date must be RFC 3339", http.StatusBadRequest))
			return
		}
		cmd.StartDate = &start
	}

	created, err := h.requests.CreateRequest(ctx, cmd)
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildHireRequestPayload(created))
}

func (h *HireRequestHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	page, err := h.requests.ListRequests(ctx, actor, parsePagination(r))
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}

	payload := hireRequestPagePayload{
		Items:         make([]hireRequestPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, request := range page.Items {
		payload.Items = append(payload.Items, buildHireRequestPayload(request))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *HireRequestHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	request, err := h.requests.GetRequest(ctx, actor, chi.URLParam(r, "requestID"))
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHireRequestPayload(request))
}

func (h *HireRequestHandlers) accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	accepted, err := h.requests.Accept(ctx, services.AcceptHireRequestCommand{
		Actor:     actor,
		RequestID: chi.URLParam(r, "requestID"),
	})
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHireRequestPayload(accepted))
}

func (h *HireRequestHandlers) decline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var body declinePayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}

	declined, err := h.requests.Decline(ctx, services.DeclineHireRequestCommand{
		Actor:     actor,
		RequestID: chi.URLParam(r, "requestID"),
		Reason:    body.Reason,
	})
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHireRequestPayload(declined))
}

func (h *HireRequestHandlers) withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	withdrawn, err := h.requests.Withdraw(ctx, services.WithdrawHireRequestCommand{
		Actor:     actor,
		RequestID: chi.URLParam(r, "requestID"),
	})
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHireRequestPayload(withdrawn))
}

func (h *HireRequestHandlers) counter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hire_request_service_unavailable", "hire request service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var body counterPayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}

	countered, err := h.requests.Counter(ctx, services.CounterOfferCommand{
		Actor:         actor,
		RequestID:     chi.URLParam(r, "requestID"),
		SalaryOffered: body.SalaryOffered,
		Schedule:      scheduleFromPayload(body.Schedule),
	})
	if err != nil {
		writeHireRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildHireRequestPayload(countered))
}

func writeHireRequestError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrHireRequestInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid hire request", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrHireRequestDuplicate):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_request", "an open request or active contract already exists for this pair", http.StatusConflict))
		return
	case errors.Is(err, services.ErrHireRequestNotYourTurn):
		httpx.WriteError(ctx, w, httpx.NewError("not_your_turn", "waiting for the other party to respond", http.StatusConflict))
		return
	case errors.Is(err, services.ErrHireRequestInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "request does not allow this transition", http.StatusConflict))
		return
	case errors.Is(err, services.ErrHireRequestNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "hire request not found", http.StatusNotFound))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("hire_request_error", err.Error(), http.StatusInternalServerError))
}
