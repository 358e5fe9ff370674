package contracts

import "errors"

var (
	// ErrMissingOrganization is returned when a contract has no owning organization.
	ErrMissingOrganization = errors.New("contracts: missing organization id")
	// ErrInvertedWindow is returned when a contract ends before it starts.
	ErrInvertedWindow = errors.New("contracts: end before start")
	// ErrNilRepository is returned when a resolver is built without a repository.
	ErrNilRepository = errors.New("contracts: nil repository")
)
