package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/casalink/api/internal/domain"
	pfirestore "github.com/casalink/api/internal/platform/firestore"
)

// EngagementPairRepository reads per-pair uniqueness markers. Writes happen
// inside the hire request and contract transactions; this read path backs the
// advisory coordinator checks.
type EngagementPairRepository struct {
	provider *pfirestore.Provider
}

// NewEngagementPairRepository constructs a Firestore-backed pair repository.
func NewEngagementPairRepository(provider *pfirestore.Provider) (*EngagementPairRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	return &EngagementPairRepository{provider: provider}, nil
}

// Get returns the pair marker, or a zero-valued pair when none exists.
func (r *EngagementPairRepository) Get(ctx context.Context, householdID, househelpID string) (domain.EngagementPair, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.EngagementPair{}, err
	}

	snap, err := client.Collection(pairCollection).Doc(domain.PairKey(householdID, househelpID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.EngagementPair{}, nil
		}
		return domain.EngagementPair{}, pfirestore.WrapError("pair.get", err)
	}
	var doc pairDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.EngagementPair{}, pfirestore.WrapError("pair.get", err)
	}
	return doc.toDomain(), nil
}
