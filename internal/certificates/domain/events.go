package certificate

import (
	"github.com/google/uuid"

	metering "certificate-engine/internal/metering/domain"
)

// Event is one element of a certificate's append-only stream. The four
// shapes below are the only implementations; apply folds them exhaustively
// so live transitions and replay share one code path.
type Event interface {
	// Name is the stable stream discriminator for the event shape.
	Name() string
	isEvent()
}

// Event stream discriminators.
const (
	EventNameCreated     = "certificate.created"
	EventNameIssued      = "certificate.issued"
	EventNameRejected    = "certificate.rejected"
	EventNameTransferred = "certificate.transferred"
)

// Created establishes the certificate's identity and immutable fields.
type Created struct {
	ID             uuid.UUID            `json:"id"`
	PointType      metering.PointType   `json:"point_type"`
	GSRN           string               `json:"gsrn"`
	GridArea       string               `json:"grid_area"`
	PeriodStart    int64                `json:"period_start"`
	PeriodEnd      int64                `json:"period_end"`
	Technology     *metering.Technology `json:"technology,omitempty"`
	OrganizationID string               `json:"organization_id"`
	Quantity       int64                `json:"quantity"`
}

// Issued records the registry-confirmed (or locally intended) issuance.
type Issued struct{}

// Rejected records the registry's rejection with a free-text reason.
type Rejected struct {
	Reason string `json:"reason"`
}

// Transferred records a change of owner on an issued certificate.
type Transferred struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (Created) Name() string     { return EventNameCreated }
func (Issued) Name() string      { return EventNameIssued }
func (Rejected) Name() string    { return EventNameRejected }
func (Transferred) Name() string { return EventNameTransferred }

func (Created) isEvent()     {}
func (Issued) isEvent()      {}
func (Rejected) isEvent()    {}
func (Transferred) isEvent() {}
