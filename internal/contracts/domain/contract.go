package contracts

import (
	"time"

	metering "certificate-engine/internal/metering/domain"
)

// IssuanceContract authorizes certificate creation for one metering point
// over a time range. Contracts are created by an external onboarding workflow
// and are read-only to this service.
type IssuanceContract struct {
	ID             string
	GSRN           metering.GSRN
	PointType      metering.PointType
	OrganizationID string
	GridArea       string
	// Technology is set for production points only.
	Technology *metering.Technology
	StartAt    time.Time
	// EndAt is nil for open-ended contracts.
	EndAt     *time.Time
	CreatedAt time.Time
}

// Covers reports whether the contract's [start, end) window contains the
// given instant (unix seconds).
func (c IssuanceContract) Covers(at int64) bool {
	if at < c.StartAt.Unix() {
		return false
	}
	if c.EndAt != nil && at >= c.EndAt.Unix() {
		return false
	}
	return true
}

// Active reports whether the contract is open-ended or ends in the future.
func (c IssuanceContract) Active(now time.Time) bool {
	return c.EndAt == nil || c.EndAt.After(now)
}

// Validate checks structural invariants at load time.
func (c IssuanceContract) Validate() error {
	if c.GSRN == "" {
		return metering.ErrInvalidGSRN
	}
	if !c.PointType.Valid() {
		return metering.ErrUnknownPointType
	}
	if c.OrganizationID == "" {
		return ErrMissingOrganization
	}
	if c.EndAt != nil && c.EndAt.Before(c.StartAt) {
		return ErrInvertedWindow
	}
	return nil
}
