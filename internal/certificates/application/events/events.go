package events

import (
	"time"

	"github.com/google/uuid"
)

// CertificateCreated is published after the issuance pipeline persisted a new
// certificate and asked the registry for the on-ledger proof.
type CertificateCreated struct {
	CertificateID  uuid.UUID `json:"certificate_id"`
	PointType      string    `json:"point_type"`
	GSRN           string    `json:"gsrn"`
	GridArea       string    `json:"grid_area"`
	PeriodStart    int64     `json:"period_start"`
	PeriodEnd      int64     `json:"period_end"`
	OrganizationID string    `json:"organization_id"`
	Quantity       int64     `json:"quantity"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// CertificateIssued is published once the registry confirmed issuance.
type CertificateIssued struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	Owner         string    `json:"owner"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CertificateRejected is published once the registry rejected issuance.
type CertificateRejected struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}
