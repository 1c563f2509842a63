package compensation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/money"
)

// Adjustment records the compensation movement applied to an order.
// Applied may be smaller in magnitude than the requested delta when the
// balance floors at zero.
type Adjustment struct {
	OrderID uuid.UUID
	Before  decimal.Decimal
	After   decimal.Decimal
	Applied decimal.Decimal
}

// Adjuster mutates writer compensation inside the caller's transaction.
type Adjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, delta decimal.Decimal) (*Adjustment, error)
}

type ledger struct{}

// NewLedger returns the sole writer-compensation mutator. Every fine debit
// and waiver credit flows through it so the floor-at-zero rule holds
// everywhere.
func NewLedger() Adjuster {
	return ledger{}
}

// Adjust applies the signed delta to the order's writer compensation,
// flooring the result at zero. It must run inside the transaction that also
// records the fine transition, so the two commit or roll back together.
func (ledger) Adjust(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, delta decimal.Decimal) (*Adjustment, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var order models.Order
	if err := tx.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	before := order.WriterCompensation
	after := money.FloorAtZero(before.Add(delta))
	if err := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("writer_compensation", after).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update writer compensation")
	}

	return &Adjustment{
		OrderID: orderID,
		Before:  before,
		After:   after,
		Applied: after.Sub(before),
	}, nil
}
