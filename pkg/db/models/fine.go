package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

// Fine is a monetary penalty attached to an order. Amount is always positive;
// signedness lives in the compensation adjustments it triggers.
type Fine struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	WebsiteID    *uuid.UUID       `gorm:"column:website_id;type:uuid"`
	FineTypeCode string           `gorm:"column:fine_type_code;not null"`
	PolicyID     *uuid.UUID       `gorm:"column:policy_id;type:uuid"`
	Amount       decimal.Decimal  `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency     enums.Currency   `gorm:"column:currency;type:text;not null;default:'USD'"`
	Reason       string           `gorm:"column:reason;not null"`
	Status       enums.FineStatus `gorm:"column:status;type:fine_status;not null;default:'issued'"`
	IssuedBy     uuid.UUID        `gorm:"column:issued_by;type:uuid;not null"`
	ImposedAt    time.Time        `gorm:"column:imposed_at;not null"`

	Resolved       bool       `gorm:"column:resolved;not null;default:false"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	ResolvedReason *string    `gorm:"column:resolved_reason"`

	WaivedBy     *uuid.UUID `gorm:"column:waived_by;type:uuid"`
	WaivedAt     *time.Time `gorm:"column:waived_at"`
	WaiverReason *string    `gorm:"column:waiver_reason"`

	Appeal *FineAppeal `gorm:"foreignKey:FineID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
