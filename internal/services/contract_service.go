package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/repositories"
)

const (
	eventContractCreated    = "contract.created"
	eventContractCompleted  = "contract.completed"
	eventContractTerminated = "contract.terminated"
)

var (
	// ErrContractInvalidInput signals the caller provided invalid arguments.
	ErrContractInvalidInput = errors.New("contract: invalid input")
	// ErrContractInvalidSource indicates the source request is missing or not accepted.
	ErrContractInvalidSource = errors.New("contract: source request not convertible")
	// ErrContractDuplicateActive indicates the pair or request already carries a contract.
	ErrContractDuplicateActive = errors.New("contract: active contract already exists")
	// ErrContractNotFound indicates the contract does not exist or the actor is not a party to it.
	ErrContractNotFound = errors.New("contract: not found")
	// ErrContractInvalidState indicates the contract does not admit the attempted transition.
	ErrContractInvalidState = errors.New("contract: invalid state")
)

// ContractServiceDeps bundles the collaborators required to construct a contract service.
type ContractServiceDeps struct {
	Contracts   repositories.ContractRepository
	Requests    repositories.HireRequestRepository
	Shortlists  repositories.ShortlistRepository
	Events      EngagementEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type contractService struct {
	contracts  repositories.ContractRepository
	requests   repositories.HireRequestRepository
	shortlists repositories.ShortlistRepository
	events     EngagementEventPublisher
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

var _ ContractService = (*contractService)(nil)

// NewContractService wires dependencies into a concrete ContractService implementation.
func NewContractService(deps ContractServiceDeps) (ContractService, error) {
	if deps.Contracts == nil {
		return nil, errors.New("contract service: contract repository is required")
	}
	if deps.Requests == nil {
		return nil, errors.New("contract service: request repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &contractService{
		contracts:  deps.Contracts,
		requests:   deps.Requests,
		shortlists: deps.Shortlists,
		events:     deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *contractService) CreateFromRequest(ctx context.Context, cmd CreateContractCommand) (HireContract, error) {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	requestID := strings.TrimSpace(cmd.RequestID)
	if householdID == "" || requestID == "" {
		return HireContract{}, fmt.Errorf("%w: household and request IDs are required", ErrContractInvalidInput)
	}

	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		var repoErr *repositories.HireRequestError
		if errors.As(err, &repoErr) && repoErr.Code == repositories.HireRequestErrorNotFound {
			return HireContract{}, fmt.Errorf("%w: request %s not found", ErrContractInvalidSource, requestID)
		}
		return HireContract{}, err
	}
	if request.HouseholdID != householdID {
		return HireContract{}, fmt.Errorf("%w: request %s", ErrContractNotFound, requestID)
	}
	if request.Status != domain.HireRequestAccepted {
		return HireContract{}, fmt.Errorf("%w: request is %s", ErrContractInvalidSource, request.Status)
	}
	if request.ContractID != "" {
		return HireContract{}, fmt.Errorf("%w: request already converted", ErrContractDuplicateActive)
	}

	now := s.clock()
	startDate := cmd.StartDate.UTC()
	if cmd.StartDate.IsZero() {
		if request.StartDate != nil {
			startDate = request.StartDate.UTC()
		} else {
			startDate = now
		}
	}

	salary, schedule := request.CurrentTerms()
	contract := domain.HireContract{
		ID:              "ctr_" + s.newID(),
		HireRequestID:   request.ID,
		HouseholdID:     request.HouseholdID,
		HousehelpID:     request.HousehelpID,
		Salary:          salary,
		SalaryFrequency: request.SalaryFrequency,
		JobType:         request.JobType,
		Schedule:        schedule.Clone(),
		StartDate:       startDate,
		Status:          domain.ContractActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.contracts.Create(ctx, repositories.ContractCreateRequest{Contract: contract, Now: now})
	if err != nil {
		return HireContract{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventContractCreated,
		HouseholdID: created.HouseholdID,
		HousehelpID: created.HousehelpID,
		RequestID:   created.HireRequestID,
		ContractID:  created.ID,
	})
	return created, nil
}

func (s *contractService) GetContract(ctx context.Context, actor Actor, contractID string) (HireContract, error) {
	contract, _, err := s.loadForParty(ctx, actor, contractID)
	return contract, err
}

func (s *contractService) ListContracts(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[HireContract], error) {
	if actor.IsZero() {
		return domain.CursorPage[HireContract]{}, fmt.Errorf("%w: actor is required", ErrContractInvalidInput)
	}

	page, err := s.contracts.ListByParty(ctx, actor.Role, actor.ID, pager)
	if err != nil {
		return domain.CursorPage[HireContract]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *contractService) Complete(ctx context.Context, cmd CompleteContractCommand) (HireContract, error) {
	contract, _, err := s.loadForParty(ctx, cmd.Actor, cmd.ContractID)
	if err != nil {
		return HireContract{}, err
	}
	if contract.Status != domain.ContractActive {
		return HireContract{}, fmt.Errorf("%w: cannot complete a %s contract", ErrContractInvalidState, contract.Status)
	}

	now := s.clock()
	contract.Status = domain.ContractCompleted
	contract.EndDate = &now
	contract.UpdatedAt = now

	updated, err := s.contracts.Update(ctx, contract)
	if err != nil {
		return HireContract{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventContractCompleted,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.HireRequestID,
		ContractID:  updated.ID,
	})
	return updated, nil
}

func (s *contractService) Terminate(ctx context.Context, cmd TerminateContractCommand) (HireContract, error) {
	reason := sanitizeFreeText(cmd.Reason)
	if reason == "" {
		return HireContract{}, fmt.Errorf("%w: a termination reason is required", ErrContractInvalidInput)
	}

	contract, _, err := s.loadForParty(ctx, cmd.Actor, cmd.ContractID)
	if err != nil {
		return HireContract{}, err
	}
	if contract.Status != domain.ContractActive {
		return HireContract{}, fmt.Errorf("%w: cannot terminate a %s contract", ErrContractInvalidState, contract.Status)
	}

	now := s.clock()
	contract.Status = domain.ContractTerminated
	contract.TerminationReason = reason
	contract.EndDate = &now
	contract.UpdatedAt = now

	updated, err := s.contracts.Update(ctx, contract)
	if err != nil {
		return HireContract{}, s.mapRepositoryError(err)
	}

	s.releaseTerminationLock(ctx, updated)

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventContractTerminated,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.HireRequestID,
		ContractID:  updated.ID,
	})
	return updated, nil
}

// loadForParty fetches the contract and resolves the actor's side of it. A
// contract the actor is not a party to is reported as not found so that
// existence does not leak across accounts.
func (s *contractService) loadForParty(ctx context.Context, actor Actor, contractID string) (HireContract, ActorRole, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return HireContract{}, "", fmt.Errorf("%w: contract ID is required", ErrContractInvalidInput)
	}
	if actor.IsZero() {
		return HireContract{}, "", fmt.Errorf("%w: actor is required", ErrContractInvalidInput)
	}

	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return HireContract{}, "", s.mapRepositoryError(err)
	}

	role, ok := contract.PartyRole(actor)
	if !ok {
		return HireContract{}, "", fmt.Errorf("%w: %s", ErrContractNotFound, contractID)
	}
	return contract, role, nil
}

// releaseTerminationLock clears the household's exclusivity on the profile once
// the engagement ends early. The termination already committed, so a failed
// release is logged only.
func (s *contractService) releaseTerminationLock(ctx context.Context, contract HireContract) {
	if s.shortlists == nil {
		return
	}
	released, err := s.shortlists.ReleaseLock(ctx, contract.HousehelpID, contract.HouseholdID)
	if err != nil {
		s.logger(ctx, "contract.terminate.unlock_failed", map[string]any{
			"contractId":  contract.ID,
			"householdId": contract.HouseholdID,
			"profileId":   contract.HousehelpID,
			"error":       err.Error(),
		})
		return
	}
	if released {
		s.publishEvent(ctx, EngagementEvent{
			Type:        eventShortlistUnlocked,
			HouseholdID: contract.HouseholdID,
			ProfileID:   contract.HousehelpID,
		})
	}
}

func (s *contractService) publishEvent(ctx context.Context, event EngagementEvent) {
	if s.events == nil {
		return
	}
	event.ID = "evt_" + s.newID()
	event.OccurredAt = s.clock()
	if _, err := s.events.PublishEngagementEvent(ctx, event); err != nil {
		s.logger(ctx, "contract.event.publish_failed", map[string]any{
			"eventType": event.Type,
			"error":     err.Error(),
		})
	}
}

func (s *contractService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr *repositories.ContractError
	if errors.As(err, &repoErr) {
		switch repoErr.Code {
		case repositories.ContractErrorNotFound:
			return fmt.Errorf("%w: %s", ErrContractNotFound, repoErr.Message)
		case repositories.ContractErrorInvalidSource:
			return fmt.Errorf("%w: %s", ErrContractInvalidSource, repoErr.Message)
		case repositories.ContractErrorDuplicateActive:
			return fmt.Errorf("%w: %s", ErrContractDuplicateActive, repoErr.Message)
		case repositories.ContractErrorVersionConflict:
			return fmt.Errorf("%w: contract was modified concurrently", ErrContractInvalidState)
		}
	}
	return err
}
