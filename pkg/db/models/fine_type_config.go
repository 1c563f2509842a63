package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

// FineTypeConfig is the admin-defined rule describing how to compute a fine
// for a given code. A config with no WebsiteID applies globally; a
// tenant-scoped config overrides it. Configs are never hard-deleted, only
// deactivated.
type FineTypeConfig struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string     `gorm:"column:code;not null;index:ix_fine_type_configs_code"`
	WebsiteID *uuid.UUID `gorm:"column:website_id;type:uuid"`

	CalculationKind enums.CalculationKind `gorm:"column:calculation_kind;type:calculation_kind;not null"`

	FixedAmount    *decimal.Decimal      `gorm:"column:fixed_amount;type:numeric(12,2)"`
	Percentage     *decimal.Decimal      `gorm:"column:percentage;type:numeric(6,2)"`
	BaseAmountKind *enums.BaseAmountKind `gorm:"column:base_amount_kind;type:base_amount_kind"`

	MinAmount *decimal.Decimal `gorm:"column:min_amount;type:numeric(12,2)"`
	MaxAmount *decimal.Decimal `gorm:"column:max_amount;type:numeric(12,2)"`

	Active    bool       `gorm:"column:active;not null;default:true"`
	StartDate time.Time  `gorm:"column:start_date;not null"`
	EndDate   *time.Time `gorm:"column:end_date"`

	// System configs freeze code and calculation kind after creation.
	System bool `gorm:"column:system;not null;default:false"`

	LatenessRule *LatenessFineRule `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
