package fines

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgpagination "github.com/quillmarket/fines-backend/pkg/pagination"
)

type ListParams struct {
	OrderID   *uuid.UUID
	WebsiteID *uuid.UUID
	Status    *enums.FineStatus
	Code      string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID           uuid.UUID        `json:"id"`
	OrderID      uuid.UUID        `json:"order_id"`
	WebsiteID    *uuid.UUID       `json:"website_id"`
	FineTypeCode string           `json:"fine_type_code"`
	PolicyID     *uuid.UUID       `json:"policy_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Currency     enums.Currency   `json:"currency"`
	Reason       string           `json:"reason"`
	Status       enums.FineStatus `json:"status"`
	IssuedBy     uuid.UUID        `json:"issued_by"`
	ImposedAt    time.Time        `json:"imposed_at"`
	Resolved     bool             `json:"resolved"`
	ResolvedAt   *time.Time       `json:"resolved_at"`
	WaivedBy     *uuid.UUID       `json:"waived_by"`
	WaivedAt     *time.Time       `json:"waived_at"`
	CreatedAt    time.Time        `json:"created_at"`
}

type listQuery struct {
	orderID   *uuid.UUID
	websiteID *uuid.UUID
	status    *enums.FineStatus
	code      string
	limit     int
	cursor    *pkgpagination.Cursor
}

func toListItem(m models.Fine) ListItem {
	return ListItem{
		ID:           m.ID,
		OrderID:      m.OrderID,
		WebsiteID:    m.WebsiteID,
		FineTypeCode: m.FineTypeCode,
		PolicyID:     m.PolicyID,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Reason:       m.Reason,
		Status:       m.Status,
		IssuedBy:     m.IssuedBy,
		ImposedAt:    m.ImposedAt,
		Resolved:     m.Resolved,
		ResolvedAt:   m.ResolvedAt,
		WaivedBy:     m.WaivedBy,
		WaivedAt:     m.WaivedAt,
		CreatedAt:    m.CreatedAt,
	}
}
