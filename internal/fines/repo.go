package fines

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
)

// Repository manages persistence for fines and the order snapshots they bind to.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, fine *models.Fine) error
	Update(ctx context.Context, fine *models.Fine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	HasOpenFine(ctx context.Context, orderID uuid.UUID, code string) (bool, error)
	ListOverdueWithoutLateFine(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	List(ctx context.Context, opts listQuery) ([]models.Fine, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a fines repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, fine *models.Fine) error {
	return r.db.WithContext(ctx).Create(fine).Error
}

func (r *repository) Update(ctx context.Context, fine *models.Fine) error {
	return r.db.WithContext(ctx).Save(fine).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).
		Preload("Appeal").
		First(&fine, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// HasOpenFine reports whether the order already carries a non-terminal fine
// of the given type. A partial unique index backs this guard in Postgres;
// checking here keeps the error typed instead of a constraint violation.
func (r *repository) HasOpenFine(ctx context.Context, orderID uuid.UUID, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Fine{}).
		Where("order_id = ? AND fine_type_code = ?", orderID, code).
		Where("status IN ?", []string{"issued", "disputed", "escalated"}).
		Count(&count).Error
	return count > 0, err
}

// ListOverdueWithoutLateFine returns orders past their deadline that were
// never fined for lateness: still unsubmitted, or submitted after the
// deadline. Ordered oldest deadline first so the longest-overdue orders are
// swept before the batch cap cuts off.
func (r *repository) ListOverdueWithoutLateFine(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("deadline < ?", now).
		Where("submitted_at IS NULL OR submitted_at > deadline").
		Where("NOT EXISTS (SELECT 1 FROM fines WHERE fines.order_id = orders.id AND fines.fine_type_code = ?)", enums.FineTypeLateSubmission).
		Order("deadline ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// List returns fines using cursor pagination with optional filters.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Fine, error) {
	query := r.db.WithContext(ctx).Model(&models.Fine{})

	if opts.orderID != nil {
		query = query.Where("order_id = ?", *opts.orderID)
	}
	if opts.websiteID != nil {
		query = query.Where("website_id = ?", *opts.websiteID)
	}
	if opts.status != nil {
		query = query.Where("status = ?", *opts.status)
	}
	if opts.code != "" {
		query = query.Where("fine_type_code = ?", opts.code)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Fine
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
