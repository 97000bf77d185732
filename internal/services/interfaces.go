package services

import (
	"context"
	"time"

	domain "github.com/casalink/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination        = domain.Pagination
	Actor             = domain.Actor
	ActorRole         = domain.ActorRole
	ShortlistEntry    = domain.ShortlistEntry
	ProfileLock       = domain.ProfileLock
	LockStatus        = domain.LockStatus
	HireRequest       = domain.HireRequest
	HireRequestStatus = domain.HireRequestStatus
	Negotiation       = domain.Negotiation
	WorkSchedule      = domain.WorkSchedule
	HireContract      = domain.HireContract
	ContractStatus    = domain.ContractStatus
	EngagementPair    = domain.EngagementPair
	EngagementCheck   = domain.EngagementCheck
	SystemHealthCheck = domain.SystemHealthCheck
)

// Role constants mirrored from the domain package for call-site convenience.
const (
	RoleHousehold = domain.RoleHousehold
	RoleHousehelp = domain.RoleHousehelp
)

// ParseActorRole normalises a role string, returning false for unknown values.
func ParseActorRole(value string) (ActorRole, bool) {
	return domain.ParseActorRole(value)
}

// ShortlistService manages household shortlists and time-boxed profile locks.
type ShortlistService interface {
	AddEntry(ctx context.Context, cmd ShortlistAddCommand) (ShortlistEntry, error)
	RemoveEntry(ctx context.Context, cmd ShortlistRemoveCommand) error
	ListEntries(ctx context.Context, householdID string, pager Pagination) (domain.CursorPage[ShortlistEntry], error)
	LockProfile(ctx context.Context, cmd ProfileLockCommand) (ProfileLock, error)
	UnlockProfile(ctx context.Context, cmd ProfileUnlockCommand) error
	LockStatus(ctx context.Context, householdID, profileID string) (LockStatus, error)
	SweepExpiredLocks(ctx context.Context, limit int) ([]ProfileLock, error)
}

// HireRequestService runs the offer lifecycle from creation through acceptance,
// decline, counter-offers, withdrawal, and expiry.
type HireRequestService interface {
	CreateRequest(ctx context.Context, cmd CreateHireRequestCommand) (HireRequest, error)
	GetRequest(ctx context.Context, actor Actor, requestID string) (HireRequest, error)
	ListRequests(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[HireRequest], error)
	Accept(ctx context.Context, cmd AcceptHireRequestCommand) (HireRequest, error)
	Decline(ctx context.Context, cmd DeclineHireRequestCommand) (HireRequest, error)
	Counter(ctx context.Context, cmd CounterOfferCommand) (HireRequest, error)
	Withdraw(ctx context.Context, cmd WithdrawHireRequestCommand) (HireRequest, error)
}

// ContractService converts accepted requests into contracts and closes them out.
type ContractService interface {
	CreateFromRequest(ctx context.Context, cmd CreateContractCommand) (HireContract, error)
	GetContract(ctx context.Context, actor Actor, contractID string) (HireContract, error)
	ListContracts(ctx context.Context, actor Actor, pager Pagination) (domain.CursorPage[HireContract], error)
	Complete(ctx context.Context, cmd CompleteContractCommand) (HireContract, error)
	Terminate(ctx context.Context, cmd TerminateContractCommand) (HireContract, error)
}

// EngagementService answers advisory cross-module questions. Answers reflect a
// point-in-time read; the transactional guards in the repositories remain the
// source of truth.
type EngagementService interface {
	CheckShortlistAddition(ctx context.Context, householdID, profileID string) (EngagementCheck, error)
	CheckRequestCreation(ctx context.Context, householdID, househelpID string) (EngagementCheck, error)
	CheckContractConversion(ctx context.Context, requestID string) (EngagementCheck, error)
}

// SystemService aggregates utility endpoints (health checks, build metadata).
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// EngagementEvent is the message published for every lifecycle transition.
type EngagementEvent struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	HouseholdID string     `json:"householdId"`
	HousehelpID string     `json:"househelpId,omitempty"`
	ProfileID   string     `json:"profileId,omitempty"`
	RequestID   string     `json:"requestId,omitempty"`
	ContractID  string     `json:"contractId,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// EngagementEventPublisher accepts lifecycle notifications for downstream processing.
type EngagementEventPublisher interface {
	PublishEngagementEvent(ctx context.Context, event EngagementEvent) (string, error)
}

// UnlockPaymentVerifier confirms that a lock fee payment settled before a lock
// is granted.
type UnlockPaymentVerifier interface {
	VerifyUnlockPayment(ctx context.Context, cmd UnlockPaymentCommand) error
}

// UnlockPaymentCommand identifies the payment backing a profile lock.
type UnlockPaymentCommand struct {
	HouseholdID string
	ProfileID   string
	PaymentRef  string
}

// ShortlistAddCommand adds a profile to a household's shortlist.
type ShortlistAddCommand struct {
	HouseholdID string
	ProfileID   string
}

// ShortlistRemoveCommand removes a profile from a household's shortlist.
type ShortlistRemoveCommand struct {
	HouseholdID string
	ProfileID   string
}

// ProfileLockCommand requests exclusive negotiation rights on a profile.
// Duration falls back to the service default when zero.
type ProfileLockCommand struct {
	HouseholdID string
	ProfileID   string
	Duration    time.Duration
	PaymentRef  string
}

// ProfileUnlockCommand releases a lock held by the household.
type ProfileUnlockCommand struct {
	HouseholdID string
	ProfileID   string
}

// CreateHireRequestCommand opens an offer from a household to a househelp.
type CreateHireRequestCommand struct {
	HouseholdID         string
	HousehelpID         string
	JobType             string
	SalaryOffered       int64
	SalaryFrequency     string
	StartDate           *time.Time
	Schedule            WorkSchedule
	SpecialRequirements string
	TermsAccepted       bool
}

// AcceptHireRequestCommand accepts the current terms of an open request.
type AcceptHireRequestCommand struct {
	Actor     Actor
	RequestID string
}

// DeclineHireRequestCommand declines an open request with an optional reason.
type DeclineHireRequestCommand struct {
	Actor     Actor
	RequestID string
	Reason    string
}

// CounterOfferCommand proposes revised terms on an open request.
type CounterOfferCommand struct {
	Actor         Actor
	RequestID     string
	SalaryOffered int64
	Schedule      WorkSchedule
}

// WithdrawHireRequestCommand retracts an open request. Only the originating
// household may withdraw.
type WithdrawHireRequestCommand struct {
	Actor     Actor
	RequestID string
}

// CreateContractCommand converts an accepted request into an active contract.
type CreateContractCommand struct {
	HouseholdID string
	RequestID   string
	StartDate   time.Time
}

// CompleteContractCommand closes an active contract amicably.
type CompleteContractCommand struct {
	Actor      Actor
	ContractID string
}

// TerminateContractCommand ends an active contract early.
type TerminateContractCommand struct {
	Actor      Actor
	ContractID string
	Reason     string
}
