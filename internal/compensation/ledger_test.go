package compensation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  website_id TEXT,
  writer_id TEXT,
  order_number INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  total_price TEXT NOT NULL,
  writer_compensation TEXT NOT NULL,
  deadline DATETIME NOT NULL,
  submitted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, compensation string) uuid.UUID {
	t.Helper()
	amount, err := decimal.NewFromString(compensation)
	if err != nil {
		t.Fatalf("parse compensation: %v", err)
	}
	order := models.Order{
		ID:                 uuid.New(),
		OrderNumber:        1001,
		TotalPrice:         amount.Mul(decimal.NewFromInt(2)),
		WriterCompensation: amount,
		Deadline:           time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order.ID
}

func TestAdjustDebitsAndCredits(t *testing.T) {
	db := newTestDB(t)
	orderID := seedOrder(t, db, "200")
	ledger := NewLedger()
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		adj, err := ledger.Adjust(ctx, tx, orderID, decimal.NewFromInt(-30))
		if err != nil {
			return err
		}
		if !adj.Before.Equal(decimal.NewFromInt(200)) || !adj.After.Equal(decimal.NewFromInt(170)) {
			t.Fatalf("unexpected debit movement: %+v", adj)
		}

		adj, err = ledger.Adjust(ctx, tx, orderID, decimal.NewFromInt(30))
		if err != nil {
			return err
		}
		if !adj.After.Equal(decimal.NewFromInt(200)) {
			t.Fatalf("credit did not restore balance: %+v", adj)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("adjust transaction: %v", err)
	}
}

func TestAdjustFloorsAtZero(t *testing.T) {
	db := newTestDB(t)
	orderID := seedOrder(t, db, "20")
	ledger := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		adj, err := ledger.Adjust(context.Background(), tx, orderID, decimal.NewFromInt(-50))
		if err != nil {
			return err
		}
		if !adj.After.IsZero() {
			t.Fatalf("expected floor at zero, got %s", adj.After)
		}
		if !adj.Applied.Equal(decimal.NewFromInt(-20)) {
			t.Fatalf("expected applied -20, got %s", adj.Applied)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("adjust transaction: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !order.WriterCompensation.IsZero() {
		t.Fatalf("persisted compensation not floored: %s", order.WriterCompensation)
	}
}

func TestAdjustUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Adjust(context.Background(), tx, uuid.New(), decimal.NewFromInt(-5))
		return err
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
