package models

import (
	"time"

	"github.com/google/uuid"
)

// FineAppeal is the single writer-initiated challenge a fine may receive.
// The unique index on FineID enforces the one-appeal-per-fine invariant at
// the storage layer; services enforce it again inside their transaction.
type FineAppeal struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FineID     uuid.UUID `gorm:"column:fine_id;type:uuid;not null;uniqueIndex:ux_fine_appeals_fine_id"`
	Reason     string    `gorm:"column:reason;not null"`
	AppealedBy uuid.UUID `gorm:"column:appealed_by;type:uuid;not null"`

	ReviewedBy      *uuid.UUID `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at"`
	Accepted        *bool      `gorm:"column:accepted"`
	ResolutionNotes *string    `gorm:"column:resolution_notes"`

	Escalated   bool       `gorm:"column:escalated;not null;default:false"`
	EscalatedAt *time.Time `gorm:"column:escalated_at"`
	EscalatedTo *uuid.UUID `gorm:"column:escalated_to;type:uuid"`

	Events []AppealEvent `gorm:"foreignKey:AppealID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
