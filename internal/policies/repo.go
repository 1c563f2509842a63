package policies

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
)

// Repository manages persistence for fine type configs and their lateness rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cfg *models.FineTypeConfig) error
	Update(ctx context.Context, cfg *models.FineTypeConfig) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FineTypeConfig, error)
	FindCandidates(ctx context.Context, code string, websiteID *uuid.UUID, at time.Time) ([]models.FineTypeConfig, error)
	List(ctx context.Context, opts listQuery) ([]models.FineTypeConfig, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a policy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cfg *models.FineTypeConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

// Update persists the config row and replaces its lateness rule in full.
func (r *repository) Update(ctx context.Context, cfg *models.FineTypeConfig) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(cfg).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FineTypeConfig, error) {
	var cfg models.FineTypeConfig
	if err := r.db.WithContext(ctx).
		Preload("LatenessRule").
		First(&cfg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindCandidates returns every active config for the code whose validity
// window contains the instant, tenant-scoped rows and global rows alike,
// newest start_date first. The service layer picks the winner.
func (r *repository) FindCandidates(ctx context.Context, code string, websiteID *uuid.UUID, at time.Time) ([]models.FineTypeConfig, error) {
	query := r.db.WithContext(ctx).
		Preload("LatenessRule").
		Where("code = ? AND active = ?", code, true).
		Where("start_date <= ?", at).
		Where("end_date IS NULL OR end_date > ?", at)

	if websiteID != nil {
		query = query.Where("website_id = ? OR website_id IS NULL", *websiteID)
	} else {
		query = query.Where("website_id IS NULL")
	}

	var rows []models.FineTypeConfig
	if err := query.Order("start_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns configs using cursor pagination, optionally filtered by code
// and website scope.
func (r *repository) List(ctx context.Context, opts listQuery) ([]models.FineTypeConfig, error) {
	query := r.db.WithContext(ctx).Model(&models.FineTypeConfig{}).Preload("LatenessRule")

	if opts.code != "" {
		query = query.Where("code = ?", opts.code)
	}
	if opts.websiteID != nil {
		query = query.Where("website_id = ?", *opts.websiteID)
	}
	if opts.activeOnly {
		query = query.Where("active = ?", true)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.FineTypeConfig
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
