package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/casalink/api/internal/domain"
	pfirestore "github.com/casalink/api/internal/platform/firestore"
	"github.com/casalink/api/internal/platform/pagination"
	"github.com/casalink/api/internal/repositories"
)

// ShortlistRepository stores shortlist entries keyed by the household/profile
// pair and profile lock documents keyed by profile ID. The lock document is
// the authoritative record for exclusivity; all reads treat expired locks as
// absent.
type ShortlistRepository struct {
	provider *pfirestore.Provider
}

// NewShortlistRepository constructs a Firestore-backed shortlist repository.
func NewShortlistRepository(provider *pfirestore.Provider) (*ShortlistRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	return &ShortlistRepository{provider: provider}, nil
}

func shortlistDocID(householdID, profileID string) string {
	return strings.TrimSpace(householdID) + "__" + strings.TrimSpace(profileID)
}

// CreateEntry inserts the entry unless it already exists, rejecting profiles
// locked by another household inside the same transaction.
func (r *ShortlistRepository) CreateEntry(ctx context.Context, req repositories.ShortlistCreateRequest) (domain.ShortlistEntry, bool, error) {
	householdID := strings.TrimSpace(req.Entry.HouseholdID)
	profileID := strings.TrimSpace(req.Entry.ProfileID)
	if householdID == "" || profileID == "" {
		return domain.ShortlistEntry{}, false, repositories.NewShortlistError(repositories.ShortlistErrorUnknown, "household and profile IDs are required", nil)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ShortlistEntry{}, false, err
	}

	entryRef := client.Collection(shortlistCollection).Doc(shortlistDocID(householdID, profileID))
	lockRef := client.Collection(profileLockCollection).Doc(profileID)

	var (
		entry   domain.ShortlistEntry
		created bool
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		lockSnap, err := tx.Get(lockRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return pfirestore.WrapError("shortlist.create", err)
		}
		if err == nil {
			var lockDoc profileLockDocument
			if err := lockSnap.DataTo(&lockDoc); err != nil {
				return pfirestore.WrapError("shortlist.create", err)
			}
			lock := lockDoc.toDomain(profileID)
			if lock.Live(req.Now) && lock.HouseholdID != householdID {
				return repositories.NewShortlistError(repositories.ShortlistErrorProfileLocked,
					fmt.Sprintf("profile %s is locked by another household", profileID), nil)
			}
		}

		entrySnap, err := tx.Get(entryRef)
		if err == nil {
			var doc shortlistDocument
			if err := entrySnap.DataTo(&doc); err != nil {
				return pfirestore.WrapError("shortlist.create", err)
			}
			entry = doc.toDomain()
			return nil
		}
		if status.Code(err) != codes.NotFound {
			return pfirestore.WrapError("shortlist.create", err)
		}

		doc := shortlistDocument{
			HouseholdID: householdID,
			ProfileID:   profileID,
			CreatedAt:   req.Now.UTC(),
		}
		if err := tx.Create(entryRef, doc); err != nil {
			return pfirestore.WrapError("shortlist.create", err)
		}
		entry = doc.toDomain()
		created = true
		return nil
	})
	if err != nil {
		return domain.ShortlistEntry{}, false, err
	}
	return entry, created, nil
}

// GetEntry fetches a single shortlist entry.
func (r *ShortlistRepository) GetEntry(ctx context.Context, householdID, profileID string) (domain.ShortlistEntry, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ShortlistEntry{}, err
	}

	snap, err := client.Collection(shortlistCollection).Doc(shortlistDocID(householdID, profileID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ShortlistEntry{}, repositories.NewShortlistError(repositories.ShortlistErrorEntryNotFound,
				fmt.Sprintf("profile %s is not on the shortlist", profileID), err)
		}
		return domain.ShortlistEntry{}, pfirestore.WrapError("shortlist.get", err)
	}
	var doc shortlistDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ShortlistEntry{}, pfirestore.WrapError("shortlist.get", err)
	}
	return doc.toDomain(), nil
}

// DeleteEntry removes a shortlist entry. Missing entries fail with
// ShortlistErrorEntryNotFound; the associated lock is untouched.
func (r *ShortlistRepository) DeleteEntry(ctx context.Context, householdID, profileID string) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	entryRef := client.Collection(shortlistCollection).Doc(shortlistDocID(householdID, profileID))
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(entryRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewShortlistError(repositories.ShortlistErrorEntryNotFound,
					fmt.Sprintf("profile %s is not on the shortlist", profileID), err)
			}
			return pfirestore.WrapError("shortlist.delete", err)
		}
		if err := tx.Delete(entryRef); err != nil {
			return pfirestore.WrapError("shortlist.delete", err)
		}
		return nil
	})
}

// ListEntries pages through a household's shortlist, newest first.
func (r *ShortlistRepository) ListEntries(ctx context.Context, householdID string, pager domain.Pagination) (domain.CursorPage[domain.ShortlistEntry], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.ShortlistEntry]{}, err
	}

	limit := pagination.ClampPageSize(pager.PageSize)
	query := client.Collection(shortlistCollection).
		Query.
		Where("householdId", "==", strings.TrimSpace(householdID)).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		ts, docID, err := decodePageToken(token)
		if err != nil {
			return domain.CursorPage[domain.ShortlistEntry]{}, repositories.NewShortlistError(repositories.ShortlistErrorUnknown, "invalid page token", err)
		}
		query = query.StartAfter(ts, docID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	page := domain.CursorPage[domain.ShortlistEntry]{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.ShortlistEntry]{}, pfirestore.WrapError("shortlist.list", err)
		}
		var doc shortlistDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.ShortlistEntry]{}, pfirestore.WrapError("shortlist.list", err)
		}
		if len(page.Items) == limit {
			page.NextPageToken = encodePageToken(page.Items[limit-1].CreatedAt, shortlistDocID(householdID, page.Items[limit-1].ProfileID))
			break
		}
		page.Items = append(page.Items, doc.toDomain())
	}
	return page, nil
}

// AcquireLock performs the compare-and-set against the profile lock document.
func (r *ShortlistRepository) AcquireLock(ctx context.Context, req repositories.LockAcquireRequest) (domain.ProfileLock, error) {
	profileID := strings.TrimSpace(req.ProfileID)
	householdID := strings.TrimSpace(req.HouseholdID)
	if profileID == "" || householdID == "" {
		return domain.ProfileLock{}, repositories.NewShortlistError(repositories.ShortlistErrorUnknown, "household and profile IDs are required", nil)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ProfileLock{}, err
	}

	lockRef := client.Collection(profileLockCollection).Doc(profileID)
	var acquired domain.ProfileLock
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		createdAt := req.Now.UTC()

		snap, err := tx.Get(lockRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return pfirestore.WrapError("shortlist.lock", err)
		}
		if err == nil {
			var doc profileLockDocument
			if err := snap.DataTo(&doc); err != nil {
				return pfirestore.WrapError("shortlist.lock", err)
			}
			current := doc.toDomain(profileID)
			if current.Live(req.Now) {
				if current.HouseholdID != householdID {
					return repositories.NewShortlistError(repositories.ShortlistErrorLockHeld,
						fmt.Sprintf("profile %s is locked by another household", profileID), nil)
				}
				// Extending our own live lock keeps its original acquisition time.
				createdAt = current.CreatedAt
			}
		}

		doc := profileLockDocument{
			HouseholdID: householdID,
			ExpiresAt:   req.ExpiresAt.UTC(),
			CreatedAt:   createdAt,
		}
		if err := tx.Set(lockRef, doc); err != nil {
			return pfirestore.WrapError("shortlist.lock", err)
		}
		acquired = doc.toDomain(profileID)
		return nil
	})
	if err != nil {
		return domain.ProfileLock{}, err
	}
	return acquired, nil
}

// ReleaseLock deletes the lock document when held by the given household.
func (r *ShortlistRepository) ReleaseLock(ctx context.Context, profileID, householdID string) (bool, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return false, err
	}

	lockRef := client.Collection(profileLockCollection).Doc(strings.TrimSpace(profileID))
	released := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		released = false

		snap, err := tx.Get(lockRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return pfirestore.WrapError("shortlist.unlock", err)
		}
		var doc profileLockDocument
		if err := snap.DataTo(&doc); err != nil {
			return pfirestore.WrapError("shortlist.unlock", err)
		}
		if doc.HouseholdID != strings.TrimSpace(householdID) {
			return nil
		}
		if err := tx.Delete(lockRef); err != nil {
			return pfirestore.WrapError("shortlist.unlock", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// GetLock reads the lock document without applying liveness; callers evaluate
// expiry against their own clock.
func (r *ShortlistRepository) GetLock(ctx context.Context, profileID string) (domain.ProfileLock, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ProfileLock{}, err
	}

	snap, err := client.Collection(profileLockCollection).Doc(strings.TrimSpace(profileID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ProfileLock{}, repositories.NewShortlistError(repositories.ShortlistErrorLockNotFound,
				fmt.Sprintf("profile %s has no lock", profileID), err)
		}
		return domain.ProfileLock{}, pfirestore.WrapError("shortlist.lock.get", err)
	}
	var doc profileLockDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ProfileLock{}, pfirestore.WrapError("shortlist.lock.get", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// SweepExpiredLocks reclaims expired lock documents. Each candidate is
// re-verified inside its own transaction so a lock refreshed between the query
// and the delete survives.
func (r *ShortlistRepository) SweepExpiredLocks(ctx context.Context, now time.Time, limit int) ([]domain.ProfileLock, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = pagination.MaxPageSize
	}

	iter := client.Collection(profileLockCollection).
		Query.
		Where("expiresAt", "<=", now.UTC()).
		OrderBy("expiresAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var candidates []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("shortlist.sweep", err)
		}
		candidates = append(candidates, snap.Ref)
	}

	var reclaimed []domain.ProfileLock
	for _, ref := range candidates {
		ref := ref
		var deleted *domain.ProfileLock
		err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			deleted = nil

			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return nil
				}
				return pfirestore.WrapError("shortlist.sweep", err)
			}
			var doc profileLockDocument
			if err := snap.DataTo(&doc); err != nil {
				return pfirestore.WrapError("shortlist.sweep", err)
			}
			lock := doc.toDomain(ref.ID)
			if lock.Live(now) {
				return nil
			}
			if err := tx.Delete(ref); err != nil {
				return pfirestore.WrapError("shortlist.sweep", err)
			}
			deleted = &lock
			return nil
		})
		if err != nil {
			return reclaimed, err
		}
		if deleted != nil {
			reclaimed = append(reclaimed, *deleted)
		}
	}
	return reclaimed, nil
}
