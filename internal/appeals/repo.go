package appeals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
)

// Repository manages persistence for appeals and their timeline events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, appeal *models.FineAppeal) error
	Update(ctx context.Context, appeal *models.FineAppeal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FineAppeal, error)
	FindByFineID(ctx context.Context, fineID uuid.UUID) (*models.FineAppeal, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	AddEvent(ctx context.Context, event *models.AppealEvent) error
	ListEvents(ctx context.Context, appealID uuid.UUID) ([]models.AppealEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an appeals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, appeal *models.FineAppeal) error {
	return r.db.WithContext(ctx).Create(appeal).Error
}

func (r *repository) Update(ctx context.Context, appeal *models.FineAppeal) error {
	return r.db.WithContext(ctx).Save(appeal).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FineAppeal, error) {
	var appeal models.FineAppeal
	if err := r.db.WithContext(ctx).First(&appeal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *repository) FindByFineID(ctx context.Context, fineID uuid.UUID) (*models.FineAppeal, error) {
	var appeal models.FineAppeal
	if err := r.db.WithContext(ctx).First(&appeal, "fine_id = ?", fineID).Error; err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) AddEvent(ctx context.Context, event *models.AppealEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListEvents returns the appeal timeline oldest first.
func (r *repository) ListEvents(ctx context.Context, appealID uuid.UUID) ([]models.AppealEvent, error) {
	var events []models.AppealEvent
	if err := r.db.WithContext(ctx).
		Where("appeal_id = ?", appealID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
