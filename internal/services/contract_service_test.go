package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/repositories"
)

type stubContractRepo struct {
	createFn func(ctx context.Context, req repositories.ContractCreateRequest) (domain.HireContract, error)
	getFn    func(ctx context.Context, contractID string) (domain.HireContract, error)
	updateFn func(ctx context.Context, contract domain.HireContract) (domain.HireContract, error)
	listFn   func(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireContract], error)
}

func (s *stubContractRepo) Create(ctx context.Context, req repositories.ContractCreateRequest) (domain.HireContract, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return req.Contract, nil
}

func (s *stubContractRepo) Get(ctx context.Context, contractID string) (domain.HireContract, error) {
	if s.getFn != nil {
		return s.getFn(ctx, contractID)
	}
	return domain.HireContract{}, repositories.NewContractError(repositories.ContractErrorNotFound, "contract not found", nil)
}

func (s *stubContractRepo) Update(ctx context.Context, contract domain.HireContract) (domain.HireContract, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, contract)
	}
	contract.Version++
	return contract, nil
}

func (s *stubContractRepo) ListByParty(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireContract], error) {
	if s.listFn != nil {
		return s.listFn(ctx, role, actorID, pager)
	}
	return domain.CursorPage[domain.HireContract]{}, nil
}

func acceptedRequest(now time.Time) domain.HireRequest {
	request := openRequest(now)
	request.Status = domain.HireRequestAccepted
	return request
}

func activeContract(now time.Time) domain.HireContract {
	return domain.HireContract{
		ID:              "ctr_1",
		HireRequestID:   "hrq_1",
		HouseholdID:     "hh-1",
		HousehelpID:     "hp-1",
		Salary:          1500000,
		SalaryFrequency: domain.SalaryMonthly,
		JobType:         domain.JobTypeLiveIn,
		Schedule:        WorkSchedule{"monday": {Morning: true}},
		StartDate:       now,
		Status:          domain.ContractActive,
		Version:         1,
		CreatedAt:       now.Add(-time.Hour),
		UpdatedAt:       now.Add(-time.Hour),
	}
}

func newContractServiceForTest(t *testing.T, deps ContractServiceDeps) ContractService {
	t.Helper()
	svc, err := NewContractService(deps)
	if err != nil {
		t.Fatalf("new contract service: %v", err)
	}
	return svc
}

func TestContractCreateFromRequestCopiesNegotiatedTerms(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	request := acceptedRequest(now)
	request.Negotiations = []domain.Negotiation{
		{
			ID:            "ngo_1",
			ProposedBy:    domain.RoleHousehelp,
			SalaryOffered: 1800000,
			Schedule:      WorkSchedule{"tuesday": {Afternoon: true}},
			CreatedAt:     now.Add(-30 * time.Minute),
		},
	}

	requests := &stubHireRequestRepo{
		getFn: func(context.Context, string) (domain.HireRequest, error) {
			return request, nil
		},
	}
	var created domain.HireContract
	contracts := &stubContractRepo{
		createFn: func(_ context.Context, req repositories.ContractCreateRequest) (domain.HireContract, error) {
			created = req.Contract
			return req.Contract, nil
		},
	}
	events := &captureEngagementEvents{}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts:   contracts,
		Requests:    requests,
		Events:      events,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "testid" },
	})

	contract, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{
		HouseholdID: "hh-1",
		RequestID:   "hrq_1",
	})
	if err != nil {
		t.Fatalf("create from request: %v", err)
	}
	if contract.ID != "ctr_testid" {
		t.Fatalf("unexpected contract ID %s", contract.ID)
	}
	if created.Salary != 1800000 {
		t.Fatalf("expected negotiated salary, got %d", created.Salary)
	}
	if _, ok := created.Schedule["tuesday"]; !ok {
		t.Fatalf("expected negotiated schedule, got %v", created.Schedule)
	}
	if contract.Status != domain.ContractActive {
		t.Fatalf("expected active status, got %s", contract.Status)
	}
	if len(events.events) != 1 || events.events[0].Type != "contract.created" {
		t.Fatalf("expected contract.created event, got %+v", events.events)
	}
	if events.events[0].ContractID != contract.ID || events.events[0].RequestID != "hrq_1" {
		t.Fatalf("event missing identifiers: %+v", events.events[0])
	}
}

func TestContractCreateFromRequestRejectsUnacceptedSource(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	requests := &stubHireRequestRepo{
		getFn: func(context.Context, string) (domain.HireRequest, error) {
			return openRequest(now), nil
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: &stubContractRepo{},
		Requests:  requests,
		Clock:     func() time.Time { return now },
	})

	_, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{HouseholdID: "hh-1", RequestID: "hrq_1"})
	if !errors.Is(err, ErrContractInvalidSource) {
		t.Fatalf("expected ErrContractInvalidSource, got %v", err)
	}
}

func TestContractCreateFromRequestMissingSource(t *testing.T) {
	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: &stubContractRepo{},
		Requests:  &stubHireRequestRepo{},
	})

	_, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{HouseholdID: "hh-1", RequestID: "hrq_missing"})
	if !errors.Is(err, ErrContractInvalidSource) {
		t.Fatalf("expected ErrContractInvalidSource, got %v", err)
	}
}

func TestContractCreateFromRequestForeignHousehold(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	requests := &stubHireRequestRepo{
		getFn: func(context.Context, string) (domain.HireRequest, error) {
			return acceptedRequest(now), nil
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: &stubContractRepo{},
		Requests:  requests,
		Clock:     func() time.Time { return now },
	})

	_, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{HouseholdID: "hh-9", RequestID: "hrq_1"})
	if !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func TestContractCreateFromRequestAlreadyConverted(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	request := acceptedRequest(now)
	request.ContractID = "ctr_existing"
	requests := &stubHireRequestRepo{
		getFn: func(context.Context, string) (domain.HireRequest, error) {
			return request, nil
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: &stubContractRepo{},
		Requests:  requests,
		Clock:     func() time.Time { return now },
	})

	_, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{HouseholdID: "hh-1", RequestID: "hrq_1"})
	if !errors.Is(err, ErrContractDuplicateActive) {
		t.Fatalf("expected ErrContractDuplicateActive, got %v", err)
	}
}

func TestContractCreateMapsDuplicateActivePair(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	requests := &stubHireRequestRepo{
		getFn: func(context.Context, string) (domain.HireRequest, error) {
			return acceptedRequest(now), nil
		},
	}
	contracts := &stubContractRepo{
		createFn: func(context.Context, repositories.ContractCreateRequest) (domain.HireContract, error) {
			return domain.HireContract{}, repositories.NewContractError(repositories.ContractErrorDuplicateActive, "active contract exists", nil)
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: contracts,
		Requests:  requests,
		Clock:     func() time.Time { return now },
	})

	_, err := svc.CreateFromRequest(context.Background(), CreateContractCommand{HouseholdID: "hh-1", RequestID: "hrq_1"})
	if !errors.Is(err, ErrContractDuplicateActive) {
		t.Fatalf("expected ErrContractDuplicateActive, got %v", err)
	}
}

func TestContractCompleteSetsEndDate(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	contracts := &stubContractRepo{
		getFn: func(context.Context, string) (domain.HireContract, error) {
			return activeContract(now), nil
		},
	}
	events := &captureEngagementEvents{}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts:   contracts,
		Requests:    &stubHireRequestRepo{},
		Events:      events,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "testid" },
	})

	completed, err := svc.Complete(context.Background(), CompleteContractCommand{
		Actor:      Actor{ID: "hp-1", Role: domain.RoleHousehelp},
		ContractID: "ctr_1",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.ContractCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}
	if completed.EndDate == nil || !completed.EndDate.Equal(now) {
		t.Fatalf("expected end date %v, got %v", now, completed.EndDate)
	}
	if len(events.events) != 1 || events.events[0].Type != "contract.completed" {
		t.Fatalf("expected contract.completed event, got %+v", events.events)
	}
}

func TestContractCompleteRejectsTerminalStatus(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	contract := activeContract(now)
	contract.Status = domain.ContractCompleted
	contracts := &stubContractRepo{
		getFn: func(context.Context, string) (domain.HireContract, error) {
			return contract, nil
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: contracts,
		Requests:  &stubHireRequestRepo{},
		Clock:     func() time.Time { return now },
	})

	_, err := svc.Complete(context.Background(), CompleteContractCommand{
		Actor:      Actor{ID: "hh-1", Role: domain.RoleHousehold},
		ContractID: "ctr_1",
	})
	if !errors.Is(err, ErrContractInvalidState) {
		t.Fatalf("expected ErrContractInvalidState, got %v", err)
	}
}

func TestContractTerminateRequiresReason(t *testing.T) {
	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: &stubContractRepo{},
		Requests:  &stubHireRequestRepo{},
	})

	_, err := svc.Terminate(context.Background(), TerminateContractCommand{
		Actor:      Actor{ID: "hh-1", Role: domain.RoleHousehold},
		ContractID: "ctr_1",
	})
	if !errors.Is(err, ErrContractInvalidInput) {
		t.Fatalf("expected ErrContractInvalidInput, got %v", err)
	}
}

func TestContractTerminateReleasesLock(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	contracts := &stubContractRepo{
		getFn: func(context.Context, string) (domain.HireContract, error) {
			return activeContract(now), nil
		},
	}
	var releasedProfile string
	shortlists := &stubShortlistRepo{
		releaseLockFn: func(_ context.Context, profileID, householdID string) (bool, error) {
			releasedProfile = profileID
			if householdID != "hh-1" {
				t.Fatalf("expected release for hh-1, got %s", householdID)
			}
			return true, nil
		},
	}
	events := &captureEngagementEvents{}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts:   contracts,
		Requests:    &stubHireRequestRepo{},
		Shortlists:  shortlists,
		Events:      events,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "testid" },
	})

	terminated, err := svc.Terminate(context.Background(), TerminateContractCommand{
		Actor:      Actor{ID: "hh-1", Role: domain.RoleHousehold},
		ContractID: "ctr_1",
		Reason:     "relocating abroad",
	})
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.Status != domain.ContractTerminated {
		t.Fatalf("expected terminated status, got %s", terminated.Status)
	}
	if terminated.TerminationReason != "relocating abroad" {
		t.Fatalf("unexpected reason %q", terminated.TerminationReason)
	}
	if releasedProfile != "hp-1" {
		t.Fatalf("expected lock release for hp-1, got %q", releasedProfile)
	}
	if len(events.events) != 2 {
		t.Fatalf("expected unlock and terminate events, got %+v", events.events)
	}
	if events.events[0].Type != "shortlist.unlocked" || events.events[1].Type != "contract.terminated" {
		t.Fatalf("unexpected event order: %s, %s", events.events[0].Type, events.events[1].Type)
	}
}

func TestContractTerminateSurvivesUnlockFailure(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	contracts := &stubContractRepo{
		getFn: func(context.Context, string) (domain.HireContract, error) {
			return activeContract(now), nil
		},
	}
	shortlists := &stubShortlistRepo{
		releaseLockFn: func(context.Context, string, string) (bool, error) {
			return false, errors.New("firestore unavailable")
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts:  contracts,
		Requests:   &stubHireRequestRepo{},
		Shortlists: shortlists,
		Clock:      func() time.Time { return now },
	})

	terminated, err := svc.Terminate(context.Background(), TerminateContractCommand{
		Actor:      Actor{ID: "hp-1", Role: domain.RoleHousehelp},
		ContractID: "ctr_1",
		Reason:     "unsafe working conditions",
	})
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if terminated.Status != domain.ContractTerminated {
		t.Fatalf("expected terminated status, got %s", terminated.Status)
	}
}

func TestContractGetHidesFromNonParties(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	contracts := &stubContractRepo{
		getFn: func(context.Context, string) (domain.HireContract, error) {
			return activeContract(now), nil
		},
	}

	svc := newContractServiceForTest(t, ContractServiceDeps{
		Contracts: contracts,
		Requests:  &stubHireRequestRepo{},
	})

	_, err := svc.GetContract(context.Background(), Actor{ID: "hh-9", Role: domain.RoleHousehold}, "ctr_1")
	if !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}
