package events

import (
	"time"

	metering "certificate-engine/internal/metering/domain"
)

// MeasurementReceived is the integration event delivered for every reported
// reading. The transport is at-least-once; consumers are deduplicated by the
// eventing processed store.
type MeasurementReceived struct {
	GSRN        string           `json:"gsrn"`
	PeriodStart int64            `json:"period_start"`
	PeriodEnd   int64            `json:"period_end"`
	Quantity    int64            `json:"quantity"`
	Quality     metering.Quality `json:"quality"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// Measurement converts the event payload to the domain reading.
func (e MeasurementReceived) Measurement() metering.Measurement {
	return metering.Measurement{
		GSRN:        metering.GSRN(e.GSRN),
		PeriodStart: e.PeriodStart,
		PeriodEnd:   e.PeriodEnd,
		Quantity:    e.Quantity,
		Quality:     e.Quality,
	}
}
