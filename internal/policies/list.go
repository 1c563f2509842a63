package policies

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgpagination "github.com/quillmarket/fines-backend/pkg/pagination"
)

type ListParams struct {
	Code       string
	WebsiteID  *uuid.UUID
	ActiveOnly bool
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID              uuid.UUID                 `json:"id"`
	Code            string                    `json:"code"`
	WebsiteID       *uuid.UUID                `json:"website_id"`
	CalculationKind enums.CalculationKind     `json:"calculation_kind"`
	FixedAmount     *decimal.Decimal          `json:"fixed_amount"`
	Percentage      *decimal.Decimal          `json:"percentage"`
	BaseAmountKind  *enums.BaseAmountKind     `json:"base_amount_kind"`
	MinAmount       *decimal.Decimal          `json:"min_amount"`
	MaxAmount       *decimal.Decimal          `json:"max_amount"`
	Active          bool                      `json:"active"`
	StartDate       time.Time                 `json:"start_date"`
	EndDate         *time.Time                `json:"end_date"`
	System          bool                      `json:"system"`
	LatenessRule    *models.LatenessFineRule  `json:"lateness_rule,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

type listQuery struct {
	code       string
	websiteID  *uuid.UUID
	activeOnly bool
	limit      int
	cursor     *pkgpagination.Cursor
}

func toListItem(m models.FineTypeConfig) ListItem {
	return ListItem{
		ID:              m.ID,
		Code:            m.Code,
		WebsiteID:       m.WebsiteID,
		CalculationKind: m.CalculationKind,
		FixedAmount:     m.FixedAmount,
		Percentage:      m.Percentage,
		BaseAmountKind:  m.BaseAmountKind,
		MinAmount:       m.MinAmount,
		MaxAmount:       m.MaxAmount,
		Active:          m.Active,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		System:          m.System,
		LatenessRule:    m.LatenessRule,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
