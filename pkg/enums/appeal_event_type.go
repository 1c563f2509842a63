package enums

import "fmt"

// AppealEventType maps to the appeal_event_type enum in Postgres.
type AppealEventType string

const (
	AppealEventTypeComment      AppealEventType = "comment"
	AppealEventTypeEvidence     AppealEventType = "evidence"
	AppealEventTypeStatusChange AppealEventType = "status_change"
)

var validAppealEventTypes = []AppealEventType{
	AppealEventTypeComment,
	AppealEventTypeEvidence,
	AppealEventTypeStatusChange,
}

// IsValid reports whether the value matches the canonical appeal event enum.
func (t AppealEventType) IsValid() bool {
	for _, candidate := range validAppealEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAppealEventType converts raw input into AppealEventType.
func ParseAppealEventType(value string) (AppealEventType, error) {
	for _, candidate := range validAppealEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appeal event type %q", value)
}
