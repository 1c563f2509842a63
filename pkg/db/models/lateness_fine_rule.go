package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

// LatenessFineRule holds the per-hour percentage schedule for a
// progressive-hourly fine type config. All rates are percentages of the
// configured base amount.
type LatenessFineRule struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConfigID uuid.UUID `gorm:"column:config_id;type:uuid;not null;uniqueIndex:ux_lateness_rules_config_id"`

	HourOnePercent        decimal.Decimal `gorm:"column:hour_one_percent;type:numeric(6,2);not null"`
	HourTwoPercent        decimal.Decimal `gorm:"column:hour_two_percent;type:numeric(6,2);not null"`
	HourThreePercent      decimal.Decimal `gorm:"column:hour_three_percent;type:numeric(6,2);not null"`
	SubsequentHourPercent decimal.Decimal `gorm:"column:subsequent_hour_percent;type:numeric(6,2);not null"`
	DailyPercent          decimal.Decimal `gorm:"column:daily_percent;type:numeric(6,2);not null"`

	CalculationMode enums.LatenessMode `gorm:"column:calculation_mode;type:lateness_mode;not null;default:'cumulative'"`

	MaxFinePercent *decimal.Decimal `gorm:"column:max_fine_percent;type:numeric(6,2)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
