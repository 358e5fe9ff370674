package metering

import "fmt"

// PointType classifies a metering point by energy direction.
type PointType string

const (
	PointTypeProduction  PointType = "production"
	PointTypeConsumption PointType = "consumption"
)

// ParsePointType validates a point type discriminator from the wire.
func ParsePointType(s string) (PointType, error) {
	switch PointType(s) {
	case PointTypeProduction:
		return PointTypeProduction, nil
	case PointTypeConsumption:
		return PointTypeConsumption, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPointType, s)
	}
}

// Valid reports whether the point type is a known discriminator.
func (t PointType) Valid() bool {
	return t == PointTypeProduction || t == PointTypeConsumption
}

// GSRN is the fixed-format metering point identifier (18 digits).
type GSRN string

const gsrnLength = 18

// ParseGSRN validates the identifier format.
func ParseGSRN(s string) (GSRN, error) {
	if len(s) != gsrnLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidGSRN, s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidGSRN, s)
		}
	}
	return GSRN(s), nil
}

func (g GSRN) String() string { return string(g) }

// Technology describes the production device behind a metering point.
// Consumption points carry no technology.
type Technology struct {
	FuelCode string `json:"fuel_code"`
	TechCode string `json:"tech_code"`
}
