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

// HireRequestRepository stores hire request aggregates and maintains the
// per-pair open-request marker inside the same transactions that mutate the
// request. The marker is what makes "at most one open request per pair" hold
// under concurrent writers.
type HireRequestRepository struct {
	provider *pfirestore.Provider
}

// NewHireRequestRepository constructs a Firestore-backed hire request repository.
func NewHireRequestRepository(provider *pfirestore.Provider) (*HireRequestRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	return &HireRequestRepository{provider: provider}, nil
}

func readPair(tx *firestore.Transaction, ref *firestore.DocumentRef) (pairDocument, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return pairDocument{}, nil
		}
		return pairDocument{}, err
	}
	var doc pairDocument
	if err := snap.DataTo(&doc); err != nil {
		return pairDocument{}, err
	}
	return doc, nil
}

// Create inserts the request and claims the pair's open-request slot.
func (r *HireRequestRepository) Create(ctx context.Context, request domain.HireRequest) (domain.HireRequest, error) {
	if strings.TrimSpace(request.ID) == "" {
		return domain.HireRequest{}, repositories.NewHireRequestError(repositories.HireRequestErrorUnknown, "request ID is required", nil)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireRequest{}, err
	}

	reqRef := client.Collection(hireRequestCollection).Doc(request.ID)
	pairRef := client.Collection(pairCollection).Doc(domain.PairKey(request.HouseholdID, request.HousehelpID))

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		pair, err := readPair(tx, pairRef)
		if err != nil {
			return pfirestore.WrapError("hire_request.create", err)
		}
		if pair.OpenRequestID != "" {
			return repositories.NewHireRequestError(repositories.HireRequestErrorDuplicate,
				fmt.Sprintf("pair already has open request %s", pair.OpenRequestID), nil)
		}
		if pair.ActiveContractID != "" {
			return repositories.NewHireRequestError(repositories.HireRequestErrorDuplicate,
				fmt.Sprintf("pair already has active contract %s", pair.ActiveContractID), nil)
		}

		if err := tx.Create(reqRef, hireRequestToDocument(request)); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewHireRequestError(repositories.HireRequestErrorDuplicate,
					fmt.Sprintf("hire request %s already exists", request.ID), err)
			}
			return pfirestore.WrapError("hire_request.create", err)
		}

		pair.HouseholdID = strings.TrimSpace(request.HouseholdID)
		pair.HousehelpID = strings.TrimSpace(request.HousehelpID)
		pair.OpenRequestID = request.ID
		pair.UpdatedAt = request.CreatedAt.UTC()
		if err := tx.Set(pairRef, pair); err != nil {
			return pfirestore.WrapError("hire_request.create", err)
		}
		return nil
	})
	if err != nil {
		return domain.HireRequest{}, err
	}
	return request, nil
}

// Get fetches a hire request by ID.
func (r *HireRequestRepository) Get(ctx context.Context, requestID string) (domain.HireRequest, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireRequest{}, err
	}

	snap, err := client.Collection(hireRequestCollection).Doc(strings.TrimSpace(requestID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.HireRequest{}, repositories.NewHireRequestError(repositories.HireRequestErrorNotFound,
				fmt.Sprintf("hire request %s not found", requestID), err)
		}
		return domain.HireRequest{}, pfirestore.WrapError("hire_request.get", err)
	}
	var doc hireRequestDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.HireRequest{}, pfirestore.WrapError("hire_request.get", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Update applies the mutated aggregate guarded by request.Version. A
// transition into a terminal status clears the pair's open-request marker in
// the same transaction. An acceptance additionally asserts the marker still
// names this request, so a request that lost its slot cannot be accepted.
func (r *HireRequestRepository) Update(ctx context.Context, request domain.HireRequest) (domain.HireRequest, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireRequest{}, err
	}

	reqRef := client.Collection(hireRequestCollection).Doc(request.ID)
	pairRef := client.Collection(pairCollection).Doc(domain.PairKey(request.HouseholdID, request.HousehelpID))

	var updated domain.HireRequest
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(reqRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewHireRequestError(repositories.HireRequestErrorNotFound,
					fmt.Sprintf("hire request %s not found", request.ID), err)
			}
			return pfirestore.WrapError("hire_request.update", err)
		}
		var stored hireRequestDocument
		if err := snap.DataTo(&stored); err != nil {
			return pfirestore.WrapError("hire_request.update", err)
		}
		if stored.Version != request.Version {
			return repositories.NewHireRequestError(repositories.HireRequestErrorVersionConflict,
				fmt.Sprintf("hire request %s was modified concurrently", request.ID), nil)
		}

		closing := request.Status.Terminal() && domain.HireRequestStatus(stored.Status).Open()

		var pair pairDocument
		if closing {
			pair, err = readPair(tx, pairRef)
			if err != nil {
				return pfirestore.WrapError("hire_request.update", err)
			}
			if request.Status == domain.HireRequestAccepted && pair.OpenRequestID != request.ID {
				return repositories.NewHireRequestError(repositories.HireRequestErrorStalePair,
					fmt.Sprintf("hire request %s no longer holds the open slot", request.ID), nil)
			}
		}

		updated = request
		updated.Version = stored.Version + 1
		if err := tx.Set(reqRef, hireRequestToDocument(updated)); err != nil {
			return pfirestore.WrapError("hire_request.update", err)
		}

		if closing && pair.OpenRequestID == request.ID {
			pair.OpenRequestID = ""
			pair.UpdatedAt = updated.UpdatedAt.UTC()
			if err := tx.Set(pairRef, pair); err != nil {
				return pfirestore.WrapError("hire_request.update", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.HireRequest{}, err
	}
	return updated, nil
}

// ListByParty pages a party's hire requests, newest first.
func (r *HireRequestRepository) ListByParty(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireRequest], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.HireRequest]{}, err
	}

	field := "householdId"
	if role == domain.RoleHousehelp {
		field = "househelpId"
	}

	limit := pagination.ClampPageSize(pager.PageSize)
	query := client.Collection(hireRequestCollection).
		Query.
		Where(field, "==", strings.TrimSpace(actorID)).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		ts, docID, err := decodePageToken(token)
		if err != nil {
			return domain.CursorPage[domain.HireRequest]{}, repositories.NewHireRequestError(repositories.HireRequestErrorUnknown, "invalid page token", err)
		}
		query = query.StartAfter(ts, docID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	page := domain.CursorPage[domain.HireRequest]{}
	var lastAt time.Time
	var lastID string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.HireRequest]{}, pfirestore.WrapError("hire_request.list", err)
		}
		if len(page.Items) == limit {
			page.NextPageToken = encodePageToken(lastAt, lastID)
			break
		}
		var doc hireRequestDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.HireRequest]{}, pfirestore.WrapError("hire_request.list", err)
		}
		page.Items = append(page.Items, doc.toDomain(snap.Ref.ID))
		lastAt = doc.CreatedAt
		lastID = snap.Ref.ID
	}
	return page, nil
}
