package enums

import "fmt"

// FineStatus maps to the fine_status enum in Postgres.
type FineStatus string

const (
	FineStatusIssued    FineStatus = "issued"
	FineStatusDisputed  FineStatus = "disputed"
	FineStatusEscalated FineStatus = "escalated"
	FineStatusResolved  FineStatus = "resolved"
	FineStatusWaived    FineStatus = "waived"
	FineStatusVoided    FineStatus = "voided"
)

var validFineStatuses = []FineStatus{
	FineStatusIssued,
	FineStatusDisputed,
	FineStatusEscalated,
	FineStatusResolved,
	FineStatusWaived,
	FineStatusVoided,
}

// String implements fmt.Stringer.
func (s FineStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FineStatus.
func (s FineStatus) IsValid() bool {
	for _, candidate := range validFineStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a fine in this status can never transition again.
func (s FineStatus) IsTerminal() bool {
	switch s {
	case FineStatusResolved, FineStatusWaived, FineStatusVoided:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the fine still counts against the order for the
// purposes of the one-open-fine-per-type guard.
func (s FineStatus) IsOpen() bool {
	switch s {
	case FineStatusIssued, FineStatusDisputed, FineStatusEscalated:
		return true
	default:
		return false
	}
}

// IsWaivable reports whether an admin waive action is allowed from this status.
func (s FineStatus) IsWaivable() bool {
	return s.IsOpen()
}

// IsDisputable reports whether a reviewer may still decide an appeal raised
// against a fine in this status.
func (s FineStatus) IsDisputable() bool {
	switch s {
	case FineStatusDisputed, FineStatusEscalated:
		return true
	default:
		return false
	}
}

// ParseFineStatus converts raw input into a FineStatus.
func ParseFineStatus(value string) (FineStatus, error) {
	for _, candidate := range validFineStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fine status %q", value)
}
