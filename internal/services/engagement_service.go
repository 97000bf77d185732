package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/casalink/api/internal/domain"
	"github.com/casalink/api/internal/repositories"
)

// Reason codes returned by the advisory engagement checks.
const (
	CheckReasonProfileLocked      = "profile_locked"
	CheckReasonOpenRequest        = "open_request_exists"
	CheckReasonActiveContract     = "active_contract_exists"
	CheckReasonRequestNotFound    = "request_not_found"
	CheckReasonRequestNotAccepted = "request_not_accepted"
	CheckReasonAlreadyConverted   = "already_converted"
)

// ErrEngagementInvalidInput signals the caller provided invalid arguments.
var ErrEngagementInvalidInput = errors.New("engagement: invalid input")

// EngagementServiceDeps bundles the collaborators required to construct an engagement service.
type EngagementServiceDeps struct {
	Pairs      repositories.EngagementPairRepository
	Shortlists repositories.ShortlistRepository
	Requests   repositories.HireRequestRepository
	Clock      func() time.Time
}

type engagementService struct {
	pairs      repositories.EngagementPairRepository
	shortlists repositories.ShortlistRepository
	requests   repositories.HireRequestRepository
	clock      func() time.Time
}

var _ EngagementService = (*engagementService)(nil)

// NewEngagementService wires dependencies into a concrete EngagementService implementation.
//
// The answers are advisory point-in-time reads. The transactional guards in
// the repositories remain authoritative; a passing check can still lose the
// subsequent race.
func NewEngagementService(deps EngagementServiceDeps) (EngagementService, error) {
	if deps.Pairs == nil {
		return nil, errors.New("engagement service: pair repository is required")
	}
	if deps.Shortlists == nil {
		return nil, errors.New("engagement service: shortlist repository is required")
	}
	if deps.Requests == nil {
		return nil, errors.New("engagement service: request repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &engagementService{
		pairs:      deps.Pairs,
		shortlists: deps.Shortlists,
		requests:   deps.Requests,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *engagementService) CheckShortlistAddition(ctx context.Context, householdID, profileID string) (EngagementCheck, error) {
	householdID = strings.TrimSpace(householdID)
	profileID = strings.TrimSpace(profileID)
	if householdID == "" || profileID == "" {
		return EngagementCheck{}, fmt.Errorf("%w: household and profile IDs are required", ErrEngagementInvalidInput)
	}

	lock, err := s.shortlists.GetLock(ctx, profileID)
	if err != nil {
		var repoErr *repositories.ShortlistError
		if errors.As(err, &repoErr) && repoErr.Code == repositories.ShortlistErrorLockNotFound {
			return EngagementCheck{Allowed: true}, nil
		}
		return EngagementCheck{}, err
	}

	if lock.Live(s.clock()) && lock.HouseholdID != householdID {
		return EngagementCheck{Allowed: false, Reason: CheckReasonProfileLocked}, nil
	}
	return EngagementCheck{Allowed: true}, nil
}

func (s *engagementService) CheckRequestCreation(ctx context.Context, householdID, househelpID string) (EngagementCheck, error) {
	householdID = strings.TrimSpace(householdID)
	househelpID = strings.TrimSpace(househelpID)
	if householdID == "" || househelpID == "" {
		return EngagementCheck{}, fmt.Errorf("%w: household and househelp IDs are required", ErrEngagementInvalidInput)
	}

	pair, err := s.pairs.Get(ctx, householdID, househelpID)
	if err != nil {
		return EngagementCheck{}, err
	}

	switch {
	case pair.OpenRequestID != "":
		return EngagementCheck{Allowed: false, Reason: CheckReasonOpenRequest}, nil
	case pair.ActiveContractID != "":
		return EngagementCheck{Allowed: false, Reason: CheckReasonActiveContract}, nil
	default:
		return EngagementCheck{Allowed: true}, nil
	}
}

func (s *engagementService) CheckContractConversion(ctx context.Context, requestID string) (EngagementCheck, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return EngagementCheck{}, fmt.Errorf("%w: request ID is required", ErrEngagementInvalidInput)
	}

	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		var repoErr *repositories.HireRequestError
		if errors.As(err, &repoErr) && repoErr.Code == repositories.HireRequestErrorNotFound {
			return EngagementCheck{Allowed: false, Reason: CheckReasonRequestNotFound}, nil
		}
		return EngagementCheck{}, err
	}

	switch {
	case request.ContractID != "":
		return EngagementCheck{Allowed: false, Reason: CheckReasonAlreadyConverted}, nil
	case request.Status != domain.HireRequestAccepted:
		return EngagementCheck{Allowed: false, Reason: CheckReasonRequestNotAccepted}, nil
	}

	pair, err := s.pairs.Get(ctx, request.HouseholdID, request.HousehelpID)
	if err != nil {
		return EngagementCheck{}, err
	}
	if pair.ActiveContractID != "" {
		return EngagementCheck{Allowed: false, Reason: CheckReasonActiveContract}, nil
	}
	return EngagementCheck{Allowed: true}, nil
}
