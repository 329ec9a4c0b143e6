package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wellspring/booking-core/internal/model"
)

type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*model.Service, error)
	// Active services of a professional.
	ListByProfessional(ctx context.Context, professionalID string) ([]model.Service, error)
	Create(ctx context.Context, service *model.Service) error
}

type GormServiceRepository struct {
	db *gorm.DB
}

func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

func (r *GormServiceRepository) GetByID(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormServiceRepository) ListByProfessional(ctx context.Context, professionalID string) ([]model.Service, error) {
	var services []model.Service
	err := r.db.WithContext(ctx).
		Where("professional_id = ? AND is_active = ?", professionalID, true).
		Order("created_at ASC").
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (r *GormServiceRepository) Create(ctx context.Context, service *model.Service) error {
	return r.db.WithContext(ctx).Create(service).Error
}
