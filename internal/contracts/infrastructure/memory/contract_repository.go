package memory

import (
	"context"
	"sort"
	"sync"

	contracts "certificate-engine/internal/contracts/domain"
	metering "certificate-engine/internal/metering/domain"
)

// ContractRepository is an in-memory contract repository for tests and
// local development.
type ContractRepository struct {
	mu   sync.RWMutex
	data []contracts.IssuanceContract
}

// NewContractRepository constructs a repository.
func NewContractRepository() *ContractRepository {
	return &ContractRepository{}
}

// Add stores a contract.
func (r *ContractRepository) Add(contract contracts.IssuanceContract) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.data = append(r.data, contract)
	r.mu.Unlock()
	return nil
}

// ListCovering returns contracts covering the instant, newest creation first.
func (r *ContractRepository) ListCovering(_ context.Context, gsrn metering.GSRN, at int64) ([]contracts.IssuanceContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []contracts.IssuanceContract
	for _, contract := range r.data {
		if contract.GSRN == gsrn && contract.Covers(at) {
			result = append(result, contract)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
