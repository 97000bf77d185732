package repositories

import (
	"context"
	"time"

	domain "github.com/casalink/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Shortlists() ShortlistRepository
	HireRequests() HireRequestRepository
	Contracts() ContractRepository
	Pairs() EngagementPairRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ShortlistCreateRequest carries the inputs for an insert-if-absent shortlist entry.
// Now is the caller's clock reading; lock liveness is evaluated against it inside
// the same critical section that performs the write.
type ShortlistCreateRequest struct {
	Entry domain.ShortlistEntry
	Now   time.Time
}

// LockAcquireRequest carries the inputs for the compare-and-set lock acquisition.
type LockAcquireRequest struct {
	ProfileID   string
	HouseholdID string
	ExpiresAt   time.Time
	Now         time.Time
}

// ShortlistRepository persists shortlist entries and the per-profile lock documents.
//
// Lock acquisition must be linearizable: when two households race for the same
// unlocked profile, exactly one Create/Acquire succeeds and the loser observes a
// conflict. Expired locks are treated as absent by every operation.
type ShortlistRepository interface {
	// CreateEntry inserts the entry unless it already exists. The boolean reports
	// whether a new entry was written; re-adding an existing entry is not an error.
	// Fails with ShortlistErrorProfileLocked when another household holds a live lock.
	CreateEntry(ctx context.Context, req ShortlistCreateRequest) (domain.ShortlistEntry, bool, error)
	GetEntry(ctx context.Context, householdID, profileID string) (domain.ShortlistEntry, error)
	DeleteEntry(ctx context.Context, householdID, profileID string) error
	ListEntries(ctx context.Context, householdID string, pager domain.Pagination) (domain.CursorPage[domain.ShortlistEntry], error)

	// AcquireLock performs the authoritative compare-and-set on the profile lock.
	// A live lock held by the same household is extended; a live lock held by a
	// different household fails with ShortlistErrorLockHeld.
	AcquireLock(ctx context.Context, req LockAcquireRequest) (domain.ProfileLock, error)
	// ReleaseLock clears the lock when held by the given household. The boolean
	// reports whether a lock was actually released.
	ReleaseLock(ctx context.Context, profileID, householdID string) (bool, error)
	GetLock(ctx context.Context, profileID string) (domain.ProfileLock, error)
	// SweepExpiredLocks reclaims up to limit expired locks and returns them.
	SweepExpiredLocks(ctx context.Context, now time.Time, limit int) ([]domain.ProfileLock, error)
}

// HireRequestRepository persists hire requests and maintains the per-pair
// open-request marker transactionally.
type HireRequestRepository interface {
	// Create inserts the request and claims the pair's open-request slot in one
	// transaction. Fails with HireRequestErrorDuplicate when the pair already has
	// an open request or an active contract.
	Create(ctx context.Context, request domain.HireRequest) (domain.HireRequest, error)
	Get(ctx context.Context, requestID string) (domain.HireRequest, error)
	// Update applies the mutated aggregate guarded by request.Version. When the
	// update carries a transition into a terminal status the pair's open-request
	// marker is cleared in the same transaction, and the transaction asserts the
	// marker still names this request (sibling-acceptance guard).
	Update(ctx context.Context, request domain.HireRequest) (domain.HireRequest, error)
	ListByParty(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireRequest], error)
}

// ContractCreateRequest carries the inputs for converting an accepted hire
// request into a contract.
type ContractCreateRequest struct {
	Contract domain.HireContract
	Now      time.Time
}

// ContractRepository persists contracts and maintains the per-pair
// active-contract marker transactionally.
type ContractRepository interface {
	// Create inserts the contract, stamps the source request with the contract ID,
	// sets the pair's active-contract marker, and clears its open-request marker,
	// all in one transaction. Fails with ContractErrorDuplicateActive when the
	// pair already has an active contract or the request is already contracted,
	// and ContractErrorInvalidSource when the request is not accepted.
	Create(ctx context.Context, req ContractCreateRequest) (domain.HireContract, error)
	Get(ctx context.Context, contractID string) (domain.HireContract, error)
	// Update applies the mutated aggregate guarded by contract.Version; a
	// transition into a terminal status clears the pair's active-contract marker
	// in the same transaction.
	Update(ctx context.Context, contract domain.HireContract) (domain.HireContract, error)
	ListByParty(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireContract], error)
}

// EngagementPairRepository reads the per-pair uniqueness markers. Mutations go
// through the request/contract repositories; the coordinator only needs reads.
type EngagementPairRepository interface {
	// Get returns the pair marker, or a zero-valued pair when none exists yet.
	Get(ctx context.Context, householdID, househelpID string) (domain.EngagementPair, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Check(ctx context.Context) (map[string]domain.SystemHealthCheck, error)
}
