package contracts

import (
	"context"

	metering "certificate-engine/internal/metering/domain"
)

// Repository loads issuance contracts.
type Repository interface {
	// ListCovering returns all contracts for the metering point whose
	// [start, end) window contains the given instant, newest creation first.
	ListCovering(ctx context.Context, gsrn metering.GSRN, at int64) ([]IssuanceContract, error)
}

// Resolver selects the authoritative contract for a metering point at a
// given instant. When a point has been re-onboarded and windows overlap,
// the newest contract by creation instant determines ownership and
// technology; older overlapping contracts are ignored.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a resolver.
func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	return &Resolver{repo: repo}, nil
}

// Resolve returns the zero-or-one authoritative contract covering the
// instant. nil means no contract authorizes issuance at that time.
func (r *Resolver) Resolve(ctx context.Context, gsrn metering.GSRN, at int64) (*IssuanceContract, error) {
	matches, err := r.repo.ListCovering(ctx, gsrn, at)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	newest := matches[0]
	for _, candidate := range matches[1:] {
		if candidate.CreatedAt.After(newest.CreatedAt) {
			newest = candidate
		}
	}
	return &newest, nil
}

// ActiveCovering returns every contract covering the instant, newest
// creation first. Overlapping actives only exist in pathological data; the
// issuance pipeline processes each independently.
func (r *Resolver) ActiveCovering(ctx context.Context, gsrn metering.GSRN, at int64) ([]IssuanceContract, error) {
	return r.repo.ListCovering(ctx, gsrn, at)
}
