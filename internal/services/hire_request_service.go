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
	eventHireRequestCreated   = "hire_request.created"
	eventHireRequestAccepted  = "hire_request.accepted"
	eventHireRequestDeclined  = "hire_request.declined"
	eventHireRequestCountered = "hire_request.countered"
	eventHireRequestWithdrawn = "hire_request.withdrawn"
	eventHireRequestExpired   = "hire_request.expired"
)

var (
	// ErrHireRequestInvalidInput signals the caller provided invalid arguments.
	ErrHireRequestInvalidInput = errors.New("hire request: invalid input")
	// ErrHireRequestDuplicate indicates the pair already has an open request or an active contract.
	ErrHireRequestDuplicate = errors.New("hire request: duplicate engagement")
	// ErrHireRequestNotFound indicates the request does not exist or the actor is not a party to it.
	ErrHireRequestNotFound = errors.New("hire request: not found")
	// ErrHireRequestInvalidState indicates the request does not admit the attempted transition.
	ErrHireRequestInvalidState = errors.New("hire request: invalid state")
	// ErrHireRequestNotYourTurn indicates the actor made the most recent proposal and must wait.
	ErrHireRequestNotYourTurn = errors.New("hire request: not your turn")
)

// HireRequestServiceDeps bundles the collaborators required to construct a hire request service.
type HireRequestServiceDeps struct {
	Requests    repositories.HireRequestRepository
	Shortlists  repositories.ShortlistRepository
	Events      EngagementEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)

	// ResponseTTL bounds how long an open request waits for a response.
	ResponseTTL time.Duration
	// LockDuration sizes the profile lock granted to the household on acceptance.
	LockDuration time.Duration
}

type hireRequestService struct {
	requests   repositories.HireRequestRepository
	shortlists repositories.ShortlistRepository
	events     EngagementEventPublisher
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)

	responseTTL  time.Duration
	lockDuration time.Duration
}

var _ HireRequestService = (*hireRequestService)(nil)

// NewHireRequestService wires dependencies into a concrete HireRequestService implementation.
func NewHireRequestService(deps HireRequestServiceDeps) (HireRequestService, error) {
	if deps.Requests == nil {
		return nil, errors.New("hire request service: request repository is required")
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

	responseTTL := deps.ResponseTTL
	if responseTTL <= 0 {
		responseTTL = 72 * time.Hour
	}
	lockDuration := deps.LockDuration
	if lockDuration <= 0 {
		lockDuration = 72 * time.Hour
	}

	return &hireRequestService{
		requests:   deps.Requests,
		shortlists: deps.Shortlists,
		events:     deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:        idGen,
		logger:       logger,
		responseTTL:  responseTTL,
		lockDuration: lockDuration,
	}, nil
}

func (s *hireRequestService) CreateRequest(ctx context.Context, cmd CreateHireRequestCommand) (HireRequest, error) {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	househelpID := strings.TrimSpace(cmd.HousehelpID)
	if householdID == "" || househelpID == "" {
		return HireRequest{}, fmt.Errorf("%w: household and househelp IDs are required", ErrHireRequestInvalidInput)
	}
	if householdID == househelpID {
		return HireRequest{}, fmt.Errorf("%w: household and househelp must differ", ErrHireRequestInvalidInput)
	}
	if !cmd.TermsAccepted {
		return HireRequest{}, fmt.Errorf("%w: terms must be accepted", ErrHireRequestInvalidInput)
	}
	if cmd.SalaryOffered <= 0 {
		return HireRequest{}, fmt.Errorf("%w: salary must be positive", ErrHireRequestInvalidInput)
	}

	jobType, ok := domain.ParseJobType(cmd.JobType)
	if !ok {
		return HireRequest{}, fmt.Errorf("%w: unknown job type %q", ErrHireRequestInvalidInput, cmd.JobType)
	}
	frequency, ok := domain.ParseSalaryFrequency(cmd.SalaryFrequency)
	if !ok {
		return HireRequest{}, fmt.Errorf("%w: unknown salary frequency %q", ErrHireRequestInvalidInput, cmd.SalaryFrequency)
	}
	schedule, ok := domain.NormalizeWorkSchedule(cmd.Schedule)
	if !ok {
		return HireRequest{}, fmt.Errorf("%w: schedule contains unknown weekdays", ErrHireRequestInvalidInput)
	}
	if len(schedule) == 0 {
		return HireRequest{}, fmt.Errorf("%w: schedule must cover at least one time slot", ErrHireRequestInvalidInput)
	}

	now := s.clock()
	expiresAt := now.Add(s.responseTTL)

	var startDate *time.Time
	if cmd.StartDate != nil {
		start := cmd.StartDate.UTC()
		if start.Before(now) {
			return HireRequest{}, fmt.Errorf("%w: start date is in the past", ErrHireRequestInvalidInput)
		}
		startDate = &start
		// An unanswered offer is moot once its start date arrives.
		if start.Before(expiresAt) {
			expiresAt = start
		}
	}

	request := domain.HireRequest{
		ID:                  "hrq_" + s.newID(),
		HouseholdID:         householdID,
		HousehelpID:         househelpID,
		JobType:             jobType,
		SalaryOffered:       cmd.SalaryOffered,
		SalaryFrequency:     frequency,
		StartDate:           startDate,
		Schedule:            schedule,
		SpecialRequirements: sanitizeFreeText(cmd.SpecialRequirements),
		TermsAccepted:       true,
		Status:              domain.HireRequestPending,
		ExpiresAt:           expiresAt,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	created, err := s.requests.Create(ctx, request)
	if err != nil {
		return HireRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestCreated,
		HouseholdID: created.HouseholdID,
		HousehelpID: created.HousehelpID,
		RequestID:   created.ID,
		ExpiresAt:   &created.ExpiresAt,
	})
	return created, nil
}

func (s *hireRequestService) GetRequest(ctx context.Context, actor Actor, requestID string) (HireRequest, error) {
	request, _, err := s.loadForParty(ctx, actor, requestID)
	if err != nil {
		return HireRequest{}, err
	}
	return s.expireIfDue(ctx, request), nil
}

func (s *hireRequestService) ListRequests(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[HireRequest], error) {
	if actor.IsZero() {
		return domain.CursorPage[HireRequest]{}, fmt.Errorf("%w: actor is required", ErrHireRequestInvalidInput)
	}

	page, err := s.requests.ListByParty(ctx, actor.Role, actor.ID, pager)
	if err != nil {
		return domain.CursorPage[HireRequest]{}, s.mapRepositoryError(err)
	}

	// Listings render expiry without persisting it; the next targeted read or
	// mutation makes the terminal status durable.
	now := s.clock()
	for i, request := range page.Items {
		if request.DueToExpire(now) {
			page.Items[i].Status = domain.HireRequestExpired
		}
	}
	return page, nil
}

func (s *hireRequestService) Accept(ctx context.Context, cmd AcceptHireRequestCommand) (HireRequest, error) {
	request, _, err := s.loadForParty(ctx, cmd.Actor, cmd.RequestID)
	if err != nil {
		return HireRequest{}, err
	}

	request = s.expireIfDue(ctx, request)
	if !request.Status.Open() {
		return HireRequest{}, fmt.Errorf("%w: cannot accept a %s request", ErrHireRequestInvalidState, request.Status)
	}

	now := s.clock()
	request.Status = domain.HireRequestAccepted
	request.UpdatedAt = now

	updated, err := s.requests.Update(ctx, request)
	if err != nil {
		return HireRequest{}, s.mapRepositoryError(err)
	}

	s.grantAcceptanceLock(ctx, updated, now)

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestAccepted,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.ID,
	})
	return updated, nil
}

func (s *hireRequestService) Decline(ctx context.Context, cmd DeclineHireRequestCommand) (HireRequest, error) {
	reason := sanitizeFreeText(cmd.Reason)
	if reason == "" {
		return HireRequest{}, fmt.Errorf("%w: a decline reason is required", ErrHireRequestInvalidInput)
	}

	request, _, err := s.loadForParty(ctx, cmd.Actor, cmd.RequestID)
	if err != nil {
		return HireRequest{}, err
	}

	request = s.expireIfDue(ctx, request)
	if !request.Status.Open() {
		return HireRequest{}, fmt.Errorf("%w: cannot decline a %s request", ErrHireRequestInvalidState, request.Status)
	}

	request.Status = domain.HireRequestDeclined
	request.DeclineReason = reason
	request.UpdatedAt = s.clock()

	updated, err := s.requests.Update(ctx, request)
	if err != nil {
		return HireRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestDeclined,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.ID,
	})
	return updated, nil
}

func (s *hireRequestService) Counter(ctx context.Context, cmd CounterOfferCommand) (HireRequest, error) {
	schedule, ok := domain.NormalizeWorkSchedule(cmd.Schedule)
	if !ok {
		return HireRequest{}, fmt.Errorf("%w: schedule contains unknown weekdays", ErrHireRequestInvalidInput)
	}
	if cmd.SalaryOffered < 0 {
		return HireRequest{}, fmt.Errorf("%w: salary must not be negative", ErrHireRequestInvalidInput)
	}
	if cmd.SalaryOffered == 0 && len(schedule) == 0 {
		return HireRequest{}, fmt.Errorf("%w: a counter-offer must change the salary or the schedule", ErrHireRequestInvalidInput)
	}

	request, role, err := s.loadForParty(ctx, cmd.Actor, cmd.RequestID)
	if err != nil {
		return HireRequest{}, err
	}

	request = s.expireIfDue(ctx, request)
	if !request.Status.Open() {
		return HireRequest{}, fmt.Errorf("%w: cannot counter a %s request", ErrHireRequestInvalidState, request.Status)
	}
	if request.LastProposer() == role {
		return HireRequest{}, fmt.Errorf("%w: waiting for the other party to respond", ErrHireRequestNotYourTurn)
	}

	now := s.clock()
	request.Negotiations = append(request.Negotiations, domain.Negotiation{
		ID:            "ngo_" + s.newID(),
		ProposedBy:    role,
		SalaryOffered: cmd.SalaryOffered,
		Schedule:      schedule,
		CreatedAt:     now,
	})
	request.Status = domain.HireRequestNegotiating
	request.UpdatedAt = now

	updated, err := s.requests.Update(ctx, request)
	if err != nil {
		return HireRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestCountered,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.ID,
	})
	return updated, nil
}

func (s *hireRequestService) Withdraw(ctx context.Context, cmd WithdrawHireRequestCommand) (HireRequest, error) {
	request, role, err := s.loadForParty(ctx, cmd.Actor, cmd.RequestID)
	if err != nil {
		return HireRequest{}, err
	}
	if role != domain.RoleHousehold {
		return HireRequest{}, fmt.Errorf("%w: only the household may withdraw", ErrHireRequestInvalidState)
	}

	request = s.expireIfDue(ctx, request)
	if !request.Status.Open() {
		return HireRequest{}, fmt.Errorf("%w: cannot withdraw a %s request", ErrHireRequestInvalidState, request.Status)
	}

	request.Status = domain.HireRequestWithdrawn
	request.UpdatedAt = s.clock()

	updated, err := s.requests.Update(ctx, request)
	if err != nil {
		return HireRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestWithdrawn,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.ID,
	})
	return updated, nil
}

// loadForParty fetches the request and resolves the actor's side of it. A
// request the actor is not a party to is reported as not found so that
// existence does not leak across accounts.
func (s *hireRequestService) loadForParty(ctx context.Context, actor Actor, requestID string) (HireRequest, ActorRole, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return HireRequest{}, "", fmt.Errorf("%w: request ID is required", ErrHireRequestInvalidInput)
	}
	if actor.IsZero() {
		return HireRequest{}, "", fmt.Errorf("%w: actor is required", ErrHireRequestInvalidInput)
	}

	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return HireRequest{}, "", s.mapRepositoryError(err)
	}

	role, ok := request.PartyRole(actor)
	if !ok {
		return HireRequest{}, "", fmt.Errorf("%w: %s", ErrHireRequestNotFound, requestID)
	}
	return request, role, nil
}

// expireIfDue persists the expired status for an open request whose window has
// passed. Persistence failures degrade to a view-only expiry so reads keep working.
func (s *hireRequestService) expireIfDue(ctx context.Context, request HireRequest) HireRequest {
	now := s.clock()
	if !request.DueToExpire(now) {
		return request
	}

	request.Status = domain.HireRequestExpired
	request.UpdatedAt = now

	updated, err := s.requests.Update(ctx, request)
	if err != nil {
		s.logger(ctx, "hire_request.expiry.persist_failed", map[string]any{
			"requestId": request.ID,
			"error":     err.Error(),
		})
		return request
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventHireRequestExpired,
		HouseholdID: updated.HouseholdID,
		HousehelpID: updated.HousehelpID,
		RequestID:   updated.ID,
	})
	return updated
}

// grantAcceptanceLock hands the household the profile lock its accepted request
// implies. The accept already committed, so a failed grant is logged only.
func (s *hireRequestService) grantAcceptanceLock(ctx context.Context, request HireRequest, now time.Time) {
	if s.shortlists == nil {
		return
	}
	_, err := s.shortlists.AcquireLock(ctx, repositories.LockAcquireRequest{
		ProfileID:   request.HousehelpID,
		HouseholdID: request.HouseholdID,
		ExpiresAt:   now.Add(s.lockDuration),
		Now:         now,
	})
	if err != nil {
		s.logger(ctx, "hire_request.accept.lock_grant_failed", map[string]any{
			"requestId":   request.ID,
			"householdId": request.HouseholdID,
			"profileId":   request.HousehelpID,
			"error":       err.Error(),
		})
	}
}

func (s *hireRequestService) publishEvent(ctx context.Context, event EngagementEvent) {
	if s.events == nil {
		return
	}
	event.ID = "evt_" + s.newID()
	event.OccurredAt = s.clock()
	if _, err := s.events.PublishEngagementEvent(ctx, event); err != nil {
		s.logger(ctx, "hire_request.event.publish_failed", map[string]any{
			"eventType": event.Type,
			"error":     err.Error(),
		})
	}
}

func (s *hireRequestService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr *repositories.HireRequestError
	if errors.As(err, &repoErr) {
		switch repoErr.Code {
		case repositories.HireRequestErrorNotFound:
			return fmt.Errorf("%w: %s", ErrHireRequestNotFound, repoErr.Message)
		case repositories.HireRequestErrorDuplicate:
			return fmt.Errorf("%w: %s", ErrHireRequestDuplicate, repoErr.Message)
		case repositories.HireRequestErrorVersionConflict:
			return fmt.Errorf("%w: request was modified concurrently", ErrHireRequestInvalidState)
		case repositories.HireRequestErrorStalePair:
			return fmt.Errorf("%w: request was superseded for this pair", ErrHireRequestInvalidState)
		}
	}
	return err
}
