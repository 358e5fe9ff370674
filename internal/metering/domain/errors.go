package metering

import "errors"

var (
	// ErrInvalidGSRN is returned when a metering point identifier is malformed.
	ErrInvalidGSRN = errors.New("metering: invalid gsrn")
	// ErrInvalidPeriod is returned when a measurement period is empty or inverted.
	ErrInvalidPeriod = errors.New("metering: period end must be after period start")
	// ErrUnknownQuality is returned for an unrecognised quality flag.
	ErrUnknownQuality = errors.New("metering: unknown quality")
	// ErrUnknownPointType is returned for an unrecognised point type discriminator.
	ErrUnknownPointType = errors.New("metering: unknown point type")
)
