package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

// AppealEvent is one entry in an appeal's ordered timeline: a comment, an
// evidence upload, or a recorded status change. Evidence rows carry file
// metadata only; blob storage is external.
type AppealEvent struct {
	ID       uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AppealID uuid.UUID             `gorm:"column:appeal_id;type:uuid;not null"`
	ActorID  uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	Type     enums.AppealEventType `gorm:"column:type;type:appeal_event_type;not null"`
	Message  string                `gorm:"column:message"`
	Metadata json.RawMessage       `gorm:"column:metadata;type:jsonb"`

	FileRef     *string `gorm:"column:file_ref"`
	Description *string `gorm:"column:description"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
