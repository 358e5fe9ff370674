package application

import (
	certificate "certificate-engine/internal/certificates/domain"
	contracts "certificate-engine/internal/contracts/domain"
	metering "certificate-engine/internal/metering/domain"
)

// DropReason explains why a measurement did not produce a certificate.
type DropReason string

const (
	DropNoContract             DropReason = "no_contract"
	DropPointTypeMismatch      DropReason = "point_type_mismatch"
	DropBeforeContractStart    DropReason = "before_contract_start"
	DropAfterContractEnd       DropReason = "after_contract_end"
	DropNonPositiveQuantity    DropReason = "non_positive_quantity"
	DropQualityNotMeasured     DropReason = "quality_not_measured"
	DropPeriodNotRepresentable DropReason = "period_not_representable"
)

// EligibleReading checks the contract-independent conditions of a reading.
// Estimated, calculated and revised readings never issue certificates; a
// later measured reading for the same period arrives as a new, independent
// event.
func EligibleReading(m metering.Measurement) (DropReason, bool) {
	if m.Quantity <= 0 {
		return DropNonPositiveQuantity, false
	}
	if m.Quality != metering.QualityMeasured {
		return DropQualityNotMeasured, false
	}
	if _, ok := certificate.Position(m.PeriodStart); !ok {
		return DropPeriodNotRepresentable, false
	}
	return "", true
}

// EligibleUnderContract checks one reading against one covering contract.
// The entire measurement period must fall inside the contract window and the
// contract must authorize the requested certificate kind.
func EligibleUnderContract(contract contracts.IssuanceContract, m metering.Measurement, pointType metering.PointType) (DropReason, bool) {
	if contract.PointType != pointType {
		return DropPointTypeMismatch, false
	}
	if m.PeriodStart < contract.StartAt.Unix() {
		return DropBeforeContractStart, false
	}
	if contract.EndAt != nil && m.PeriodEnd > contract.EndAt.Unix() {
		return DropAfterContractEnd, false
	}
	return "", true
}
