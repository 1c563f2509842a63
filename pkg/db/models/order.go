package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/enums"
)

// Order is the engine's snapshot of an order aggregate. The host system owns
// order lifecycle; the fine engine reads its economics and is the sole writer
// of WriterCompensation.
type Order struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebsiteID          *uuid.UUID      `gorm:"column:website_id;type:uuid"`
	WriterID           *uuid.UUID      `gorm:"column:writer_id;type:uuid"`
	OrderNumber        int64           `gorm:"column:order_number;not null"`
	Currency           enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalPrice         decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	WriterCompensation decimal.Decimal `gorm:"column:writer_compensation;type:numeric(12,2);not null"`
	Deadline           time.Time       `gorm:"column:deadline;not null"`
	SubmittedAt        *time.Time      `gorm:"column:submitted_at"`
	Fines              []Fine          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
