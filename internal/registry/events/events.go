package events

import (
	"time"

	"github.com/google/uuid"
)

// RegistryIssued is the external registry's asynchronous confirmation that a
// certificate was durably issued on the ledger.
type RegistryIssued struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RegistryRejected is the external registry's asynchronous rejection.
type RegistryRejected struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}
