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
	eventShortlistLocked   = "shortlist.locked"
	eventShortlistUnlocked = "shortlist.unlocked"
)

var (
	// ErrShortlistInvalidInput signals the caller provided invalid arguments.
	ErrShortlistInvalidInput = errors.New("shortlist: invalid input")
	// ErrShortlistNotFound indicates the entry does not exist for the caller.
	ErrShortlistNotFound = errors.New("shortlist: entry not found")
	// ErrProfileLocked indicates another household holds an unexpired lock on the profile.
	ErrProfileLocked = errors.New("shortlist: profile locked by another household")
	// ErrProfileAlreadyLocked indicates the compare-and-set lost to a live lock held elsewhere.
	ErrProfileAlreadyLocked = errors.New("shortlist: profile already locked")
	// ErrUnlockPaymentRequired indicates the lock fee payment could not be verified.
	ErrUnlockPaymentRequired = errors.New("shortlist: unlock payment unverified")
)

// ShortlistServiceDeps bundles the collaborators required to construct a shortlist service.
type ShortlistServiceDeps struct {
	Shortlists  repositories.ShortlistRepository
	Events      EngagementEventPublisher
	Payments    UnlockPaymentVerifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)

	// LockDuration is the default lock window; LockMaxDuration caps caller-supplied durations.
	LockDuration    time.Duration
	LockMaxDuration time.Duration
	// RequirePayment gates lock acquisition on a verified unlock fee.
	RequirePayment bool
}

type shortlistService struct {
	repo     repositories.ShortlistRepository
	events   EngagementEventPublisher
	payments UnlockPaymentVerifier
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)

	lockDuration    time.Duration
	lockMaxDuration time.Duration
	requirePayment  bool
}

var _ ShortlistService = (*shortlistService)(nil)

// NewShortlistService wires dependencies into a concrete ShortlistService implementation.
func NewShortlistService(deps ShortlistServiceDeps) (ShortlistService, error) {
	if deps.Shortlists == nil {
		return nil, errors.New("shortlist service: shortlist repository is required")
	}
	if deps.RequirePayment && deps.Payments == nil {
		return nil, errors.New("shortlist service: payment verifier is required when payment is enforced")
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

	lockDuration := deps.LockDuration
	if lockDuration <= 0 {
		lockDuration = 72 * time.Hour
	}
	lockMax := deps.LockMaxDuration
	if lockMax < lockDuration {
		lockMax = lockDuration
	}

	return &shortlistService{
		repo:     deps.Shortlists,
		events:   deps.Events,
		payments: deps.Payments,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:           idGen,
		logger:          logger,
		lockDuration:    lockDuration,
		lockMaxDuration: lockMax,
		requirePayment:  deps.RequirePayment,
	}, nil
}

func (s *shortlistService) AddEntry(ctx context.Context, cmd ShortlistAddCommand) (ShortlistEntry, error) {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	profileID := strings.TrimSpace(cmd.ProfileID)
	if householdID == "" || profileID == "" {
		return ShortlistEntry{}, fmt.Errorf("%w: household and profile IDs are required", ErrShortlistInvalidInput)
	}

	entry, _, err := s.repo.CreateEntry(ctx, repositories.ShortlistCreateRequest{
		Entry: domain.ShortlistEntry{HouseholdID: householdID, ProfileID: profileID},
		Now:   s.clock(),
	})
	if err != nil {
		return ShortlistEntry{}, s.mapRepositoryError(err)
	}
	return entry, nil
}

func (s *shortlistService) RemoveEntry(ctx context.Context, cmd ShortlistRemoveCommand) error {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	profileID := strings.TrimSpace(cmd.ProfileID)
	if householdID == "" || profileID == "" {
		return fmt.Errorf("%w: household and profile IDs are required", ErrShortlistInvalidInput)
	}

	if err := s.repo.DeleteEntry(ctx, householdID, profileID); err != nil {
		return s.mapRepositoryError(err)
	}

	// A lock cannot outlive the entry it was purchased against.
	released, err := s.repo.ReleaseLock(ctx, profileID, householdID)
	if err != nil {
		s.logger(ctx, "shortlist.unlock.failed", map[string]any{
			"householdId": householdID,
			"profileId":   profileID,
			"error":       err.Error(),
		})
		return nil
	}
	if released {
		s.publishEvent(ctx, EngagementEvent{
			Type:        eventShortlistUnlocked,
			HouseholdID: householdID,
			ProfileID:   profileID,
		})
	}
	return nil
}

func (s *shortlistService) ListEntries(ctx context.Context, householdID string, pager Pagination) (domain.CursorPage[ShortlistEntry], error) {
	householdID = strings.TrimSpace(householdID)
	if householdID == "" {
		return domain.CursorPage[ShortlistEntry]{}, fmt.Errorf("%w: household ID is required", ErrShortlistInvalidInput)
	}

	page, err := s.repo.ListEntries(ctx, householdID, pager)
	if err != nil {
		return domain.CursorPage[ShortlistEntry]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *shortlistService) LockProfile(ctx context.Context, cmd ProfileLockCommand) (ProfileLock, error) {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	profileID := strings.TrimSpace(cmd.ProfileID)
	if householdID == "" || profileID == "" {
		return ProfileLock{}, fmt.Errorf("%w: household and profile IDs are required", ErrShortlistInvalidInput)
	}

	duration := cmd.Duration
	if duration <= 0 {
		duration = s.lockDuration
	}
	if duration > s.lockMaxDuration {
		duration = s.lockMaxDuration
	}

	// Locking requires the profile to be on the caller's shortlist first.
	if _, err := s.repo.GetEntry(ctx, householdID, profileID); err != nil {
		return ProfileLock{}, s.mapRepositoryError(err)
	}

	if s.requirePayment {
		err := s.payments.VerifyUnlockPayment(ctx, UnlockPaymentCommand{
			HouseholdID: householdID,
			ProfileID:   profileID,
			PaymentRef:  cmd.PaymentRef,
		})
		if err != nil {
			return ProfileLock{}, fmt.Errorf("%w: %v", ErrUnlockPaymentRequired, err)
		}
	}

	now := s.clock()
	lock, err := s.repo.AcquireLock(ctx, repositories.LockAcquireRequest{
		ProfileID:   profileID,
		HouseholdID: householdID,
		ExpiresAt:   now.Add(duration),
		Now:         now,
	})
	if err != nil {
		return ProfileLock{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventShortlistLocked,
		HouseholdID: householdID,
		ProfileID:   profileID,
		ExpiresAt:   &lock.ExpiresAt,
	})
	return lock, nil
}

func (s *shortlistService) UnlockProfile(ctx context.Context, cmd ProfileUnlockCommand) error {
	householdID := strings.TrimSpace(cmd.HouseholdID)
	profileID := strings.TrimSpace(cmd.ProfileID)
	if householdID == "" || profileID == "" {
		return fmt.Errorf("%w: household and profile IDs are required", ErrShortlistInvalidInput)
	}

	released, err := s.repo.ReleaseLock(ctx, profileID, householdID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if !released {
		return fmt.Errorf("%w: no lock held on profile %s", ErrShortlistNotFound, profileID)
	}

	s.publishEvent(ctx, EngagementEvent{
		Type:        eventShortlistUnlocked,
		HouseholdID: householdID,
		ProfileID:   profileID,
	})
	return nil
}

func (s *shortlistService) LockStatus(ctx context.Context, householdID, profileID string) (LockStatus, error) {
	householdID = strings.TrimSpace(householdID)
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return LockStatus{}, fmt.Errorf("%w: profile ID is required", ErrShortlistInvalidInput)
	}

	lock, err := s.repo.GetLock(ctx, profileID)
	if err != nil {
		var repoErr *repositories.ShortlistError
		if errors.As(err, &repoErr) && repoErr.Code == repositories.ShortlistErrorLockNotFound {
			return LockStatus{}, nil
		}
		return LockStatus{}, s.mapRepositoryError(err)
	}

	// Unlocked reports a live exclusivity grant on the profile; absent or
	// expired locks read as not unlocked.
	now := s.clock()
	if !lock.Live(now) {
		return LockStatus{}, nil
	}
	return LockStatus{
		Unlocked:     true,
		UnlockedByMe: lock.HouseholdID == householdID,
		ExpiresAt:    &lock.ExpiresAt,
	}, nil
}

func (s *shortlistService) SweepExpiredLocks(ctx context.Context, limit int) ([]ProfileLock, error) {
	reclaimed, err := s.repo.SweepExpiredLocks(ctx, s.clock(), limit)
	if err != nil {
		return reclaimed, s.mapRepositoryError(err)
	}

	for _, lock := range reclaimed {
		s.publishEvent(ctx, EngagementEvent{
			Type:        eventShortlistUnlocked,
			HouseholdID: lock.HouseholdID,
			ProfileID:   lock.ProfileID,
		})
	}
	return reclaimed, nil
}

func (s *shortlistService) publishEvent(ctx context.Context, event EngagementEvent) {
	if s.events == nil {
		return
	}
	event.ID = "evt_" + s.newID()
	event.OccurredAt = s.clock()
	if _, err := s.events.PublishEngagementEvent(ctx, event); err != nil {
		s.logger(ctx, "shortlist.event.publish_failed", map[string]any{
			"eventType": event.Type,
			"error":     err.Error(),
		})
	}
}

func (s *shortlistService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr *repositories.ShortlistError
	if errors.As(err, &repoErr) {
		switch repoErr.Code {
		case repositories.ShortlistErrorEntryNotFound, repositories.ShortlistErrorLockNotFound:
			return fmt.Errorf("%w: %s", ErrShortlistNotFound, repoErr.Message)
		case repositories.ShortlistErrorProfileLocked:
			return fmt.Errorf("%w: %s", ErrProfileLocked, repoErr.Message)
		case repositories.ShortlistErrorLockHeld:
			return fmt.Errorf("%w: %s", ErrProfileAlreadyLocked, repoErr.Message)
		}
	}
	return err
}
