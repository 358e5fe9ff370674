package metering

// Quality is the quality flag reported with a metered reading.
type Quality string

const (
	QualityMeasured   Quality = "measured"
	QualityEstimated  Quality = "estimated"
	QualityCalculated Quality = "calculated"
	QualityRevised    Quality = "revised"
)

// Valid reports whether the quality flag is known.
func (q Quality) Valid() bool {
	switch q {
	case QualityMeasured, QualityEstimated, QualityCalculated, QualityRevised:
		return true
	}
	return false
}

// Measurement is one externally reported reading for a metering point.
// Period instants are unix seconds. Measurements are not persisted here;
// they arrive over an at-least-once transport and may be redelivered.
type Measurement struct {
	GSRN        GSRN
	PeriodStart int64
	PeriodEnd   int64
	Quantity    int64
	Quality     Quality
}

// Validate checks the structural invariants of a reading.
func (m Measurement) Validate() error {
	if m.GSRN == "" {
		return ErrInvalidGSRN
	}
	if m.PeriodEnd <= m.PeriodStart {
		return ErrInvalidPeriod
	}
	if !m.Quality.Valid() {
		return ErrUnknownQuality
	}
	return nil
}
