package enums

import "fmt"

// CalculationKind maps to the calculation_kind enum in Postgres.
type CalculationKind string

const (
	CalculationKindFixed             CalculationKind = "fixed"
	CalculationKindPercentage        CalculationKind = "percentage"
	CalculationKindProgressiveHourly CalculationKind = "progressive_hourly"
)

var validCalculationKinds = []CalculationKind{
	CalculationKindFixed,
	CalculationKindPercentage,
	CalculationKindProgressiveHourly,
}

// IsValid reports whether the value matches the canonical calculation kind enum.
func (k CalculationKind) IsValid() bool {
	for _, candidate := range validCalculationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCalculationKind converts raw input into CalculationKind.
func ParseCalculationKind(value string) (CalculationKind, error) {
	for _, candidate := range validCalculationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid calculation kind %q", value)
}

// BaseAmountKind selects which order amount a percentage fine is computed from.
type BaseAmountKind string

const (
	BaseAmountWriterCompensation BaseAmountKind = "writer_compensation"
	BaseAmountOrderTotal         BaseAmountKind = "order_total"
)

var validBaseAmountKinds = []BaseAmountKind{
	BaseAmountWriterCompensation,
	BaseAmountOrderTotal,
}

// IsValid reports whether the value matches the canonical base amount enum.
func (k BaseAmountKind) IsValid() bool {
	for _, candidate := range validBaseAmountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseBaseAmountKind converts raw input into BaseAmountKind.
func ParseBaseAmountKind(value string) (BaseAmountKind, error) {
	for _, candidate := range validBaseAmountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid base amount kind %q", value)
}

// LatenessMode maps to the lateness_mode enum in Postgres.
type LatenessMode string

const (
	// LatenessModeCumulative sums every hour bucket reached so far.
	LatenessModeCumulative LatenessMode = "cumulative"
	// LatenessModeProgressive charges only the bucket the current hour falls in.
	LatenessModeProgressive LatenessMode = "progressive"
)

var validLatenessModes = []LatenessMode{
	LatenessModeCumulative,
	LatenessModeProgressive,
}

// IsValid reports whether the value matches the canonical lateness mode enum.
func (m LatenessMode) IsValid() bool {
	for _, candidate := range validLatenessModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseLatenessMode converts raw input into LatenessMode.
func ParseLatenessMode(value string) (LatenessMode, error) {
	for _, candidate := range validLatenessModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lateness mode %q", value)
}
