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

// ContractHandlers exposes the contract lifecycle endpoints.
type ContractHandlers struct {
	contracts services.ContractService
}

// NewContractHandlers constructs handlers for the /contracts group.
func NewContractHandlers(contracts services.ContractService) *ContractHandlers {
	return &ContractHandlers{contracts: contracts}
}

// Routes registers the contract endpoints on the provided router.
func (h *ContractHandlers) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{contractID}", h.get)
	r.Post("/{contractID}:complete", h.complete)
	r.Post("/{contractID}:terminate", h.terminate)
}

// FromRequestRoute registers the conversion endpoint, which lives beside the
// /contracts group rather than inside it.
func (h *ContractHandlers) FromRequestRoute(r chi.Router) {
	r.Post("/contracts:from-request", h.createFromRequest)
}

type createContractPayload struct {
	HireRequestID string `json:"hire_request_id"`
	StartDate     string `json:"start_date,omitempty"`
}

type terminatePayload struct {
	Reason string `json:"reason"`
}

type contractPayload struct {
	ID                string                         `json:"id"`
	HireRequestID     string                         `json:"hire_request_id"`
	HouseholdID       string                         `json:"household_id"`
	HousehelpID       string                         `json:"househelp_id"`
	Salary            int64                          `json:"salary"`
	SalaryFrequency   string                         `json:"salary_frequency"`
	JobType           string                         `json:"job_type"`
	Schedule          map[string]scheduleSlotPayload `json:"schedule,omitempty"`
	StartDate         string                         `json:"start_date"`
	EndDate           string                         `json:"end_date,omitempty"`
	Status            string                         `json:"status"`
	TerminationReason string                         `json:"termination_reason,omitempty"`
	CreatedAt         string                         `json:"created_at"`
	UpdatedAt         string                         `json:"updated_at"`
}

type contractPagePayload struct {
	Items         []contractPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func buildContractPayload(contract services.HireContract) contractPayload {
	return contractPayload{
		ID:                contract.ID,
		HireRequestID:     contract.HireRequestID,
		HouseholdID:       contract.HouseholdID,
		HousehelpID:       contract.HousehelpID,
		Salary:            contract.Salary,
		SalaryFrequency:   string(contract.SalaryFrequency),
		JobType:           string(contract.JobType),
		Schedule:          scheduleToPayload(contract.Schedule),
		StartDate:         formatTime(contract.StartDate),
		EndDate:           formatTimePtr(contract.EndDate),
		Status:            string(contract.Status),
		TerminationReason: contract.TerminationReason,
		CreatedAt:         formatTime(contract.CreatedAt),
		UpdatedAt:         formatTime(contract.UpdatedAt),
	}
}

func (h *ContractHandlers) createFromRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contracts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contract_service_unavailable", "contract service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireHousehold(ctx, w)
	if !ok {
		return
	}

	var body createContractPayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}

	cmd := services.CreateContractCommand{
		HouseholdID: actor.ID,
		RequestID:   strings.TrimSpace(body.HireRequestID),
	}
	if raw := strings.TrimSpace(body.StartDate); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("validation_error", "start_date must be RFC 3339", http.StatusBadRequest))
			return
		}
		cmd.StartDate = start
	}

	created, err := h.contracts.CreateFromRequest(ctx, cmd)
	if err != nil {
		writeContractError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildContractPayload(created))
}

func (h *ContractHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contracts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contract_service_unavailable", "contract service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	page, err := h.contracts.ListContracts(ctx, actor, parsePagination(r))
	if err != nil {
		writeContractError(ctx, w, err)
		return
	}

	payload := contractPagePayload{
		Items:         make([]contractPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, contract := range page.Items {
		payload.Items = append(payload.Items, buildContractPayload(contract))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ContractHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contracts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contract_service_unavailable", "contract service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	contract, err := h.contracts.GetContract(ctx, actor, chi.URLParam(r, "contractID"))
	if err != nil {
		writeContractError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildContractPayload(contract))
}

func (h *ContractHandlers) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contracts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contract_service_unavailable", "contract service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	completed, err := h.contracts.Complete(ctx, services.CompleteContractCommand{
		Actor:      actor,
		ContractID: chi.URLParam(r, "contractID"),
	})
	if err != nil {
		writeContractError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildContractPayload(completed))
}

func (h *ContractHandlers) terminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.contracts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contract_service_unavailable", "contract service is unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(ctx, w)
	if !ok {
		return
	}

	var body terminatePayload
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid request body", http.StatusBadRequest))
		return
	}

	terminated, err := h.contracts.Terminate(ctx, services.TerminateContractCommand{
		Actor:      actor,
		ContractID: chi.URLParam(r, "contractID"),
		Reason:     body.Reason,
	})
	if err != nil {
		writeContractError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildContractPayload(terminated))
}

func writeContractError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrContractInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", "invalid contract request", http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrContractInvalidSource):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "request cannot be converted into a contract", http.StatusConflict))
		return
	case errors.Is(err, services.ErrContractDuplicateActive):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_active_contract", "an active contract already exists for this pair", http.StatusConflict))
		return
	case errors.Is(err, services.ErrContractInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "contract does not allow this transition", http.StatusConflict))
		return
	case errors.Is(err, services.ErrContractNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "contract not found", http.StatusNotFound))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("contract_error", err.Error(), http.StatusInternalServerError))
}
