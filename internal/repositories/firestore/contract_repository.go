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

// ContractRepository stores contract aggregates. Creation verifies the source
// request and claims the pair's active-contract marker in one transaction, so
// double conversion of the same accepted request loses deterministically.
type ContractRepository struct {
	provider *pfirestore.Provider
}

// NewContractRepository constructs a Firestore-backed contract repository.
func NewContractRepository(provider *pfirestore.Provider) (*ContractRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	return &ContractRepository{provider: provider}, nil
}

// Create converts an accepted hire request into a contract.
func (r *ContractRepository) Create(ctx context.Context, req repositories.ContractCreateRequest) (domain.HireContract, error) {
	contract := req.Contract
	if strings.TrimSpace(contract.ID) == "" || strings.TrimSpace(contract.HireRequestID) == "" {
		return domain.HireContract{}, repositories.NewContractError(repositories.ContractErrorUnknown, "contract and request IDs are required", nil)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireContract{}, err
	}

	contractRef := client.Collection(contractCollection).Doc(contract.ID)
	requestRef := client.Collection(hireRequestCollection).Doc(contract.HireRequestID)
	pairRef := client.Collection(pairCollection).Doc(domain.PairKey(contract.HouseholdID, contract.HousehelpID))

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		reqSnap, err := tx.Get(requestRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewContractError(repositories.ContractErrorInvalidSource,
					fmt.Sprintf("hire request %s not found", contract.HireRequestID), err)
			}
			return pfirestore.WrapError("contract.create", err)
		}
		var stored hireRequestDocument
		if err := reqSnap.DataTo(&stored); err != nil {
			return pfirestore.WrapError("contract.create", err)
		}
		if domain.HireRequestStatus(stored.Status) != domain.HireRequestAccepted {
			return repositories.NewContractError(repositories.ContractErrorInvalidSource,
				fmt.Sprintf("hire request %s is %s, not accepted", contract.HireRequestID, stored.Status), nil)
		}
		if stored.ContractID != "" {
			return repositories.NewContractError(repositories.ContractErrorDuplicateActive,
				fmt.Sprintf("hire request %s already produced contract %s", contract.HireRequestID, stored.ContractID), nil)
		}

		pair, err := readPair(tx, pairRef)
		if err != nil {
			return pfirestore.WrapError("contract.create", err)
		}
		if pair.ActiveContractID != "" {
			return repositories.NewContractError(repositories.ContractErrorDuplicateActive,
				fmt.Sprintf("pair already has active contract %s", pair.ActiveContractID), nil)
		}

		if err := tx.Create(contractRef, contractToDocument(contract)); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewContractError(repositories.ContractErrorDuplicateActive,
					fmt.Sprintf("contract %s already exists", contract.ID), err)
			}
			return pfirestore.WrapError("contract.create", err)
		}

		stored.ContractID = contract.ID
		stored.UpdatedAt = req.Now.UTC()
		stored.Version++
		if err := tx.Set(requestRef, stored); err != nil {
			return pfirestore.WrapError("contract.create", err)
		}

		pair.HouseholdID = strings.TrimSpace(contract.HouseholdID)
		pair.HousehelpID = strings.TrimSpace(contract.HousehelpID)
		pair.ActiveContractID = contract.ID
		if pair.OpenRequestID == contract.HireRequestID {
			pair.OpenRequestID = ""
		}
		pair.UpdatedAt = req.Now.UTC()
		if err := tx.Set(pairRef, pair); err != nil {
			return pfirestore.WrapError("contract.create", err)
		}
		return nil
	})
	if err != nil {
		return domain.HireContract{}, err
	}
	return contract, nil
}

// Get fetches a contract by ID.
func (r *ContractRepository) Get(ctx context.Context, contractID string) (domain.HireContract, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireContract{}, err
	}

	snap, err := client.Collection(contractCollection).Doc(strings.TrimSpace(contractID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.HireContract{}, repositories.NewContractError(repositories.ContractErrorNotFound,
				fmt.Sprintf("contract %s not found", contractID), err)
		}
		return domain.HireContract{}, pfirestore.WrapError("contract.get", err)
	}
	var doc contractDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.HireContract{}, pfirestore.WrapError("contract.get", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Update applies the mutated aggregate guarded by contract.Version. A
// transition out of active clears the pair's active-contract marker when it
// names this contract.
func (r *ContractRepository) Update(ctx context.Context, contract domain.HireContract) (domain.HireContract, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.HireContract{}, err
	}

	contractRef := client.Collection(contractCollection).Doc(contract.ID)
	pairRef := client.Collection(pairCollection).Doc(domain.PairKey(contract.HouseholdID, contract.HousehelpID))

	var updated domain.HireContract
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(contractRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewContractError(repositories.ContractErrorNotFound,
					fmt.Sprintf("contract %s not found", contract.ID), err)
			}
			return pfirestore.WrapError("contract.update", err)
		}
		var stored contractDocument
		if err := snap.DataTo(&stored); err != nil {
			return pfirestore.WrapError("contract.update", err)
		}
		if stored.Version != contract.Version {
			return repositories.NewContractError(repositories.ContractErrorVersionConflict,
				fmt.Sprintf("contract %s was modified concurrently", contract.ID), nil)
		}

		closing := contract.Status.Terminal() && domain.ContractStatus(stored.Status) == domain.ContractActive

		var pair pairDocument
		if closing {
			pair, err = readPair(tx, pairRef)
			if err != nil {
				return pfirestore.WrapError("contract.update", err)
			}
		}

		updated = contract
		updated.Version = stored.Version + 1
		if err := tx.Set(contractRef, contractToDocument(updated)); err != nil {
			return pfirestore.WrapError("contract.update", err)
		}

		if closing && pair.ActiveContractID == contract.ID {
			pair.ActiveContractID = ""
			pair.UpdatedAt = updated.UpdatedAt.UTC()
			if err := tx.Set(pairRef, pair); err != nil {
				return pfirestore.WrapError("contract.update", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.HireContract{}, err
	}
	return updated, nil
}

// ListByParty pages a party's contracts, newest first.
func (r *ContractRepository) ListByParty(ctx context.Context, role domain.ActorRole, actorID string, pager domain.Pagination) (domain.CursorPage[domain.HireContract], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.HireContract]{}, err
	}

	field := "householdId"
	if role == domain.RoleHousehelp {
		field = "househelpId"
	}

	limit := pagination.ClampPageSize(pager.PageSize)
	query := client.Collection(contractCollection).
		Query.
		Where(field, "==", strings.TrimSpace(actorID)).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(limit + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		ts, docID, err := decodePageToken(token)
		if err != nil {
			return domain.CursorPage[domain.HireContract]{}, repositories.NewContractError(repositories.ContractErrorUnknown, "invalid page token", err)
		}
		query = query.StartAfter(ts, docID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	page := domain.CursorPage[domain.HireContract]{}
	var lastAt time.Time
	var lastID string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.HireContract]{}, pfirestore.WrapError("contract.list", err)
		}
		if len(page.Items) == limit {
			page.NextPageToken = encodePageToken(lastAt, lastID)
			break
		}
		var doc contractDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.HireContract]{}, pfirestore.WrapError("contract.list", err)
		}
		page.Items = append(page.Items, doc.toDomain(snap.Ref.ID))
		lastAt = doc.CreatedAt
		lastID = snap.Ref.ID
	}
	return page, nil
}
