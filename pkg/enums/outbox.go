package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateFine           OutboxAggregateType = "fine"
	AggregateFineAppeal     OutboxAggregateType = "fine_appeal"
	AggregateFineTypeConfig OutboxAggregateType = "fine_type_config"
	AggregateOrder          OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateFine,
	AggregateFineAppeal,
	AggregateFineTypeConfig,
	AggregateOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventFineIssued            OutboxEventType = "fine_issued"
	EventFineWaived            OutboxEventType = "fine_waived"
	EventFineVoided            OutboxEventType = "fine_voided"
	EventFineResolved          OutboxEventType = "fine_resolved"
	EventFineDisputed          OutboxEventType = "fine_disputed"
	EventAppealReviewed        OutboxEventType = "appeal_reviewed"
	EventAppealEscalated       OutboxEventType = "appeal_escalated"
	EventAppealCommentAdded    OutboxEventType = "appeal_comment_added"
	EventAppealEvidenceAdded   OutboxEventType = "appeal_evidence_added"
	EventFinePolicyCreated     OutboxEventType = "fine_policy_created"
	EventFinePolicyUpdated     OutboxEventType = "fine_policy_updated"
	EventFinePolicyDeactivated OutboxEventType = "fine_policy_deactivated"
	EventCompensationAdjusted  OutboxEventType = "compensation_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventFineIssued,
	EventFineWaived,
	EventFineVoided,
	EventFineResolved,
	EventFineDisputed,
	EventAppealReviewed,
	EventAppealEscalated,
	EventAppealCommentAdded,
	EventAppealEvidenceAdded,
	EventFinePolicyCreated,
	EventFinePolicyUpdated,
	EventFinePolicyDeactivated,
	EventCompensationAdjusted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
