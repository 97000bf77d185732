package domain

import (
	"strings"
	"time"
)

// Pagination carries cursor-based paging inputs shared by list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ActorRole identifies which side of an engagement performed an action.
type ActorRole string

const (
	RoleHousehold ActorRole = "household"
	RoleHousehelp ActorRole = "househelp"
)

// Actor is the authenticated principal threaded into every mutating call.
type Actor struct {
	ID   string
	Role ActorRole
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return strings.TrimSpace(a.ID) == "" || a.Role == ""
}

// ParseActorRole normalises a role string, returning false for unknown values.
func ParseActorRole(value string) (ActorRole, bool) {
	switch ActorRole(strings.ToLower(strings.TrimSpace(value))) {
	case RoleHousehold:
		return RoleHousehold, true
	case RoleHousehelp:
		return RoleHousehelp, true
	default:
		return "", false
	}
}

// Other returns the opposite side of the engagement.
func (r ActorRole) Other() ActorRole {
	if r == RoleHousehold {
		return RoleHousehelp
	}
	return RoleHousehold
}

// JobType enumerates the employment arrangements a household can propose.
type JobType string

const (
	JobTypeLiveIn    JobType = "live_in"
	JobTypeDayWorker JobType = "day_worker"
	JobTypePartTime  JobType = "part_time"
	JobTypeFullTime  JobType = "full_time"
)

// ParseJobType normalises a job type string, returning false for unknown values.
func ParseJobType(value string) (JobType, bool) {
	switch JobType(strings.ToLower(strings.TrimSpace(value))) {
	case JobTypeLiveIn:
		return JobTypeLiveIn, true
	case JobTypeDayWorker:
		return JobTypeDayWorker, true
	case JobTypePartTime:
		return JobTypePartTime, true
	case JobTypeFullTime:
		return JobTypeFullTime, true
	default:
		return "", false
	}
}

// SalaryFrequency enumerates how often the offered salary is paid.
type SalaryFrequency string

const (
	SalaryDaily   SalaryFrequency = "daily"
	SalaryWeekly  SalaryFrequency = "weekly"
	SalaryMonthly SalaryFrequency = "monthly"
	SalaryYearly  SalaryFrequency = "yearly"
)

// ParseSalaryFrequency normalises a frequency string, returning false for unknown values.
func ParseSalaryFrequency(value string) (SalaryFrequency, bool) {
	switch SalaryFrequency(strings.ToLower(strings.TrimSpace(value))) {
	case SalaryDaily:
		return SalaryDaily, true
	case SalaryWeekly:
		return SalaryWeekly, true
	case SalaryMonthly:
		return SalaryMonthly, true
	case SalaryYearly:
		return SalaryYearly, true
	default:
		return "", false
	}
}

// ShortlistEntry records a household's saved interest in a househelp profile.
// The profile identifier equals the househelp's identifier.
type ShortlistEntry struct {
	HouseholdID string
	ProfileID   string
	CreatedAt   time.Time
}

// ProfileLock is the single authoritative exclusivity grant on a profile.
// At most one unexpired lock exists per profile; acquisition is a transactional
// compare-and-set in the persistence layer.
type ProfileLock struct {
	ProfileID   string
	HouseholdID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Live reports whether the lock is held and unexpired at the given instant.
func (l ProfileLock) Live(now time.Time) bool {
	return l.HouseholdID != "" && now.Before(l.ExpiresAt)
}

// LockStatus is the view a household gets of a profile's exclusivity state.
// Unlocked reports a live paid grant on the profile; UnlockedByMe narrows it
// to a grant held by the requesting household.
type LockStatus struct {
	Unlocked     bool
	UnlockedByMe bool
	ExpiresAt    *time.Time
}

// HireRequestStatus enumerates the hire-request state machine.
type HireRequestStatus string

const (
	HireRequestPending     HireRequestStatus = "pending"
	HireRequestNegotiating HireRequestStatus = "negotiating"
	HireRequestAccepted    HireRequestStatus = "accepted"
	HireRequestDeclined    HireRequestStatus = "declined"
	HireRequestWithdrawn   HireRequestStatus = "withdrawn"
	HireRequestExpired     HireRequestStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s HireRequestStatus) Terminal() bool {
	switch s {
	case HireRequestAccepted, HireRequestDeclined, HireRequestWithdrawn, HireRequestExpired:
		return true
	default:
		return false
	}
}

// Open reports whether the request is still in play.
func (s HireRequestStatus) Open() bool {
	return s == HireRequestPending || s == HireRequestNegotiating
}

// Negotiation is one entry in the append-only counter-offer log of a hire request.
type Negotiation struct {
	ID            string
	ProposedBy    ActorRole
	SalaryOffered int64
	Schedule      WorkSchedule
	CreatedAt     time.Time
}

// HireRequest is an offer from a household to a househelp proposing employment terms.
type HireRequest struct {
	ID                  string
	HouseholdID         string
	HousehelpID         string
	JobType             JobType
	SalaryOffered       int64
	SalaryFrequency     SalaryFrequency
	StartDate           *time.Time
	Schedule            WorkSchedule
	SpecialRequirements string
	TermsAccepted       bool
	Status              HireRequestStatus
	DeclineReason       string
	ContractID          string
	Negotiations        []Negotiation
	ExpiresAt           time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LastProposer returns who made the most recent proposal. The original request
// counts as a household proposal when no counter-offers exist.
func (r HireRequest) LastProposer() ActorRole {
	if len(r.Negotiations) == 0 {
		return RoleHousehold
	}
	return r.Negotiations[len(r.Negotiations)-1].ProposedBy
}

// CurrentTerms resolves the salary and schedule in effect after negotiation.
func (r HireRequest) CurrentTerms() (salary int64, schedule WorkSchedule) {
	salary = r.SalaryOffered
	schedule = r.Schedule
	for _, n := range r.Negotiations {
		if n.SalaryOffered > 0 {
			salary = n.SalaryOffered
		}
		if len(n.Schedule) > 0 {
			schedule = n.Schedule
		}
	}
	return salary, schedule
}

// PartyRole resolves which side of the request the actor is on, or false when
// the actor is not a party to it.
func (r HireRequest) PartyRole(actor Actor) (ActorRole, bool) {
	switch {
	case actor.Role == RoleHousehold && actor.ID == r.HouseholdID:
		return RoleHousehold, true
	case actor.Role == RoleHousehelp && actor.ID == r.HousehelpID:
		return RoleHousehelp, true
	default:
		return "", false
	}
}

// DueToExpire reports whether an open request has passed its expiry instant.
func (r HireRequest) DueToExpire(now time.Time) bool {
	return r.Status.Open() && !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ContractStatus enumerates the contract lifecycle.
type ContractStatus string

const (
	ContractActive     ContractStatus = "active"
	ContractCompleted  ContractStatus = "completed"
	ContractTerminated ContractStatus = "terminated"
)

// Terminal reports whether the contract admits no further transitions.
func (s ContractStatus) Terminal() bool {
	return s == ContractCompleted || s == ContractTerminated
}

// HireContract is the binding record created once a hire request is accepted.
type HireContract struct {
	ID                string
	HireRequestID     string
	HouseholdID       string
	HousehelpID       string
	Salary            int64
	SalaryFrequency   SalaryFrequency
	JobType           JobType
	Schedule          WorkSchedule
	StartDate         time.Time
	EndDate           *time.Time
	Status            ContractStatus
	TerminationReason string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PartyRole resolves which side of the contract the actor is on, or false when
// the actor is not a party to it.
func (c HireContract) PartyRole(actor Actor) (ActorRole, bool) {
	switch {
	case actor.Role == RoleHousehold && actor.ID == c.HouseholdID:
		return RoleHousehold, true
	case actor.Role == RoleHousehelp && actor.ID == c.HousehelpID:
		return RoleHousehelp, true
	default:
		return "", false
	}
}

// EngagementPair is the per-(household, househelp) uniqueness marker document.
// Request and contract transactions read and update it so that at most one open
// request and one active contract can exist per pair.
type EngagementPair struct {
	HouseholdID      string
	HousehelpID      string
	OpenRequestID    string
	ActiveContractID string
	UpdatedAt        time.Time
}

// PairKey builds the canonical identifier for a (household, househelp) pair.
func PairKey(householdID, househelpID string) string {
	return strings.TrimSpace(householdID) + "__" + strings.TrimSpace(househelpID)
}

// EngagementCheck is the coordinator's advisory answer to a pre-flight question.
type EngagementCheck struct {
	Allowed bool
	Reason  string
}
