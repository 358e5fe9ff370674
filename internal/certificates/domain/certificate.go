package certificate

import (
	"github.com/google/uuid"

	metering "certificate-engine/internal/metering/domain"
)

// Status is the lifecycle state of a certificate.
type Status string

const (
	// StatusCreated means locally created, awaiting the registry's answer.
	StatusCreated Status = "created"
	// StatusIssued means the certificate is issued. Transfers keep this status.
	StatusIssued Status = "issued"
	// StatusRejected is terminal.
	StatusRejected Status = "rejected"
)

// Certificate is the event-sourced aggregate for one granular certificate.
// It is a value: transitions return a new value together with the event that
// produced it, and the same apply fold rebuilds state on replay. State is
// never mutated except by applying events.
type Certificate struct {
	id              uuid.UUID
	pointType       metering.PointType
	gsrn            string
	gridArea        string
	periodStart     int64
	periodEnd       int64
	technology      *metering.Technology
	organizationID  string
	quantity        int64
	owner           string
	status          Status
	rejectionReason string
	version         int
}

// NewArgs carries the immutable fields established at creation.
type NewArgs struct {
	ID             uuid.UUID
	PointType      metering.PointType
	GSRN           metering.GSRN
	GridArea       string
	PeriodStart    int64
	PeriodEnd      int64
	Technology     *metering.Technology
	OrganizationID string
	Quantity       int64
}

// New creates a certificate with a single Created event applied. The owner
// starts as the metering point's owning organization; version becomes 1.
func New(args NewArgs) (Certificate, Event, error) {
	if args.ID == uuid.Nil {
		return Certificate{}, nil, invalidOperation("missing certificate id")
	}
	if !args.PointType.Valid() {
		return Certificate{}, nil, invalidOperation("invalid point type %q", args.PointType)
	}
	if args.GSRN == "" {
		return Certificate{}, nil, invalidOperation("missing gsrn")
	}
	if args.PeriodEnd <= args.PeriodStart {
		return Certificate{}, nil, invalidOperation("period end must be after period start")
	}
	if args.Quantity <= 0 {
		return Certificate{}, nil, invalidOperation("quantity must be positive")
	}
	if args.OrganizationID == "" {
		return Certificate{}, nil, invalidOperation("missing organization id")
	}

	event := Created{
		ID:             args.ID,
		PointType:      args.PointType,
		GSRN:           string(args.GSRN),
		GridArea:       args.GridArea,
		PeriodStart:    args.PeriodStart,
		PeriodEnd:      args.PeriodEnd,
		Technology:     args.Technology,
		OrganizationID: args.OrganizationID,
		Quantity:       args.Quantity,
	}
	next, err := apply(Certificate{}, event)
	if err != nil {
		return Certificate{}, nil, err
	}
	return next, event, nil
}

// Issue marks the certificate issued. Locally this records intent; the
// registry's asynchronous confirmation is the authoritative answer.
func (c Certificate) Issue() (Certificate, Event, error) {
	if c.status != StatusCreated {
		return Certificate{}, nil, invalidOperation("cannot issue when already %s", c.status)
	}
	event := Issued{}
	next, err := apply(c, event)
	if err != nil {
		return Certificate{}, nil, err
	}
	return next, event, nil
}

// Reject marks the certificate rejected with the registry's reason.
func (c Certificate) Reject(reason string) (Certificate, Event, error) {
	if c.status != StatusCreated {
		return Certificate{}, nil, invalidOperation("cannot reject when already %s", c.status)
	}
	event := Rejected{Reason: reason}
	next, err := apply(c, event)
	if err != nil {
		return Certificate{}, nil, err
	}
	return next, event, nil
}

// Transfer moves ownership of an issued certificate. A transferred
// certificate stays issued and may be transferred again.
func (c Certificate) Transfer(from, to string) (Certificate, Event, error) {
	if from == to {
		return Certificate{}, nil, invalidOperation("cannot transfer to same owner")
	}
	if c.status != StatusIssued {
		return Certificate{}, nil, invalidOperation("transfer only allowed on issued certificates")
	}
	if to == c.owner {
		return Certificate{}, nil, invalidOperation("cannot transfer to current owner")
	}
	if from != c.owner {
		return Certificate{}, nil, invalidOperation("can only transfer from current owner")
	}
	event := Transferred{From: from, To: to}
	next, err := apply(c, event)
	if err != nil {
		return Certificate{}, nil, err
	}
	return next, event, nil
}

// apply folds one event into the state. Both live transitions and replay go
// through this function, so they cannot diverge. The version increases by
// exactly one per event.
func apply(c Certificate, event Event) (Certificate, error) {
	switch e := event.(type) {
	case Created:
		if c.version != 0 {
			return Certificate{}, ErrCorruptStream
		}
		c.id = e.ID
		c.pointType = e.PointType
		c.gsrn = e.GSRN
		c.gridArea = e.GridArea
		c.periodStart = e.PeriodStart
		c.periodEnd = e.PeriodEnd
		c.technology = e.Technology
		c.organizationID = e.OrganizationID
		c.quantity = e.Quantity
		c.owner = e.OrganizationID
		c.status = StatusCreated
	case Issued:
		if c.version == 0 {
			return Certificate{}, ErrCorruptStream
		}
		c.status = StatusIssued
	case Rejected:
		if c.version == 0 {
			return Certificate{}, ErrCorruptStream
		}
		c.status = StatusRejected
		c.rejectionReason = e.Reason
	case Transferred:
		if c.version == 0 {
			return Certificate{}, ErrCorruptStream
		}
		c.owner = e.To
	default:
		return Certificate{}, ErrUnknownEvent
	}
	c.version++
	return c, nil
}

// Replay rebuilds a certificate from its ordered event stream. The stream
// must begin with a Created event.
func Replay(events []Event) (Certificate, error) {
	if len(events) == 0 {
		return Certificate{}, ErrNotFound
	}
	if _, ok := events[0].(Created); !ok {
		return Certificate{}, ErrCorruptStream
	}
	state := Certificate{}
	for _, event := range events {
		next, err := apply(state, event)
		if err != nil {
			return Certificate{}, err
		}
		state = next
	}
	return state, nil
}

// ID returns the aggregate identity.
func (c Certificate) ID() uuid.UUID { return c.id }

// PointType returns whether this is a production or consumption certificate.
func (c Certificate) PointType() metering.PointType { return c.pointType }

// GSRN returns the metering point identifier.
func (c Certificate) GSRN() string { return c.gsrn }

// GridArea returns the grid area.
func (c Certificate) GridArea() string { return c.gridArea }

// PeriodStart returns the period start in unix seconds.
func (c Certificate) PeriodStart() int64 { return c.periodStart }

// PeriodEnd returns the period end in unix seconds.
func (c Certificate) PeriodEnd() int64 { return c.periodEnd }

// Technology returns the production technology, nil for consumption.
func (c Certificate) Technology() *metering.Technology { return c.technology }

// OrganizationID returns the owning organization at creation.
func (c Certificate) OrganizationID() string { return c.organizationID }

// Quantity returns the certified energy quantity.
func (c Certificate) Quantity() int64 { return c.quantity }

// Owner returns the current owner; meaningful once issued.
func (c Certificate) Owner() string { return c.owner }

// Status returns the lifecycle state.
func (c Certificate) Status() Status { return c.status }

// RejectionReason returns the recorded reason, empty unless rejected.
func (c Certificate) RejectionReason() string { return c.rejectionReason }

// Version returns the number of events applied.
func (c Certificate) Version() int { return c.version }
