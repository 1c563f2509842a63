package fines

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
)

func setupFinesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  website_id TEXT,
  writer_id TEXT NOT NULL,
  order_number INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  total_price TEXT NOT NULL,
  writer_compensation TEXT NOT NULL,
  deadline DATETIME NOT NULL,
  submitted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	fines := `
CREATE TABLE IF NOT EXISTS fines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  website_id TEXT,
  fine_type_code TEXT NOT NULL,
  policy_id TEXT,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  reason TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'issued',
  issued_by TEXT NOT NULL,
  imposed_at DATETIME NOT NULL,
  resolved INTEGER NOT NULL DEFAULT 0,
  resolved_at DATETIME,
  resolved_reason TEXT,
  waived_by TEXT,
  waived_at DATETIME,
  waiver_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(fines).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, deadline time.Time, submittedAt *time.Time) *models.Order {
	t.Helper()
	writerID := uuid.New()
	order := &models.Order{
		ID:                 uuid.New(),
		WriterID:           &writerID,
		OrderNumber:        4100,
		Currency:           enums.CurrencyUSD,
		TotalPrice:         decimal.NewFromInt(300),
		WriterCompensation: decimal.NewFromInt(150),
		Deadline:           deadline,
		SubmittedAt:        submittedAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedFine(t *testing.T, repo Repository, orderID uuid.UUID, code string, status enums.FineStatus) *models.Fine {
	t.Helper()
	fine := &models.Fine{
		ID:           uuid.New(),
		OrderID:      orderID,
		FineTypeCode: code,
		Amount:       decimal.NewFromInt(15),
		Currency:     enums.CurrencyUSD,
		Reason:       "late delivery",
		Status:       status,
		IssuedBy:     uuid.New(),
		ImposedAt:    time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), fine))
	return fine
}

func TestRepoHasOpenFine(t *testing.T) {
	db := setupFinesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now().Add(-time.Hour), nil)
	seedFine(t, repo, order.ID, enums.FineTypeLateSubmission, enums.FineStatusIssued)

	open, err := repo.HasOpenFine(ctx, order.ID, enums.FineTypeLateSubmission)
	require.NoError(t, err)
	assert.True(t, open)

	// A different code on the same order does not count.
	open, err = repo.HasOpenFine(ctx, order.ID, enums.FineTypeQualityIssue)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestRepoHasOpenFineIgnoresClosedFines(t *testing.T) {
	db := setupFinesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, time.Now().Add(-time.Hour), nil)
	seedFine(t, repo, order.ID, enums.FineTypeLateSubmission, enums.FineStatusWaived)
	seedFine(t, repo, order.ID, enums.FineTypeQualityIssue, enums.FineStatusVoided)

	open, err := repo.HasOpenFine(ctx, order.ID, enums.FineTypeLateSubmission)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestRepoListOverdueWithoutLateFine(t *testing.T) {
	db := setupFinesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	overdueUnsubmitted := seedOrder(t, db, now.Add(-3*time.Hour), nil)
	lateSubmission := now.Add(-30 * time.Minute)
	overdueSubmittedLate := seedOrder(t, db, now.Add(-2*time.Hour), &lateSubmission)

	// Excluded: submitted before the deadline.
	onTime := now.Add(-5 * time.Hour)
	seedOrder(t, db, now.Add(-4*time.Hour), &onTime)
	// Excluded: deadline still in the future.
	seedOrder(t, db, now.Add(time.Hour), nil)
	// Excluded: already carries a lateness fine, even a waived one.
	alreadyFined := seedOrder(t, db, now.Add(-6*time.Hour), nil)
	seedFine(t, repo, alreadyFined.ID, enums.FineTypeLateSubmission, enums.FineStatusWaived)

	orders, err := repo.ListOverdueWithoutLateFine(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// Oldest deadline first.
	assert.Equal(t, overdueUnsubmitted.ID, orders[0].ID)
	assert.Equal(t, overdueSubmittedLate.ID, orders[1].ID)
}

func TestRepoListOverdueHonorsLimit(t *testing.T) {
	db := setupFinesTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	for i := 1; i <= 3; i++ {
		seedOrder(t, db, now.Add(-time.Duration(i)*time.Hour), nil)
	}

	orders, err := repo.ListOverdueWithoutLateFine(context.Background(), now, 2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestRepoListFiltersAndPagination(t *testing.T) {
	db := setupFinesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now()

	order := seedOrder(t, db, now.Add(-time.Hour), nil)
	other := seedOrder(t, db, now.Add(-time.Hour), nil)

	first := seedFine(t, repo, order.ID, enums.FineTypeLateSubmission, enums.FineStatusIssued)
	second := seedFine(t, repo, order.ID, enums.FineTypeQualityIssue, enums.FineStatusWaived)
	seedFine(t, repo, other.ID, enums.FineTypeLateSubmission, enums.FineStatusIssued)

	// Distinct created_at values keep the cursor ordering deterministic.
	require.NoError(t, db.Model(first).Update("created_at", now.Add(-2*time.Minute)).Error)
	require.NoError(t, db.Model(second).Update("created_at", now.Add(-time.Minute)).Error)

	rows, err := repo.List(ctx, listQuery{orderID: &order.ID, limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)

	status := enums.FineStatusIssued
	rows, err = repo.List(ctx, listQuery{orderID: &order.ID, status: &status, limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	rows, err = repo.List(ctx, listQuery{code: enums.FineTypeLateSubmission, limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
