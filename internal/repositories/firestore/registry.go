package firestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/casalink/api/internal/repositories"
	pfirestore "github.com/casalink/api/internal/platform/firestore"
)

// Registry wires the Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	shortlists *ShortlistRepository
	requests   *HireRequestRepository
	contracts  *ContractRepository
	pairs      *EngagementPairRepository
	health     repositories.HealthRepository
}

// NewRegistry constructs all repositories over a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}

	shortlists, err := NewShortlistRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("shortlist repository: %w", err)
	}
	requests, err := NewHireRequestRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("hire request repository: %w", err)
	}
	contracts, err := NewContractRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("contract repository: %w", err)
	}
	pairs, err := NewEngagementPairRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("pair repository: %w", err)
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				// A single-document read is the cheapest end-to-end probe.
				_, err = client.Collection(pairCollection).Doc("healthcheck").Get(ctx)
				if err != nil && !isNotFoundErr(err) {
					return err
				}
				return nil
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("health repository: %w", err)
	}

	return &Registry{
		provider:   provider,
		shortlists: shortlists,
		requests:   requests,
		contracts:  contracts,
		pairs:      pairs,
		health:     health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Shortlists returns the shortlist repository.
func (r *Registry) Shortlists() repositories.ShortlistRepository { return r.shortlists }

// HireRequests returns the hire request repository.
func (r *Registry) HireRequests() repositories.HireRequestRepository { return r.requests }

// Contracts returns the contract repository.
func (r *Registry) Contracts() repositories.ContractRepository { return r.contracts }

// Pairs returns the engagement pair repository.
func (r *Registry) Pairs() repositories.EngagementPairRepository { return r.pairs }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }
