package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wellspring/booking-core/internal/model"
)

type CapacitySlotRepository interface {
	// Unbooked slots of a professional starting in [from, to).
	ListFree(ctx context.Context, professionalID string, from, to time.Time) ([]model.CapacitySlot, error)
	// MarkBookedByWindow flips is_booked on the unbooked slot whose bounds equal
	// [startsAt, endsAt). It returns nil when no such slot exists.
	MarkBookedByWindow(ctx context.Context, professionalID string, startsAt, endsAt time.Time) (*model.CapacitySlot, error)
	Create(ctx context.Context, slot *model.CapacitySlot) error
}

type GormCapacitySlotRepository struct {
	db *gorm.DB
}

func NewGormCapacitySlotRepository(db *gorm.DB) *GormCapacitySlotRepository {
	return &GormCapacitySlotRepository{db: db}
}

func (r *GormCapacitySlotRepository) ListFree(
	ctx context.Context,
	professionalID string,
	from, to time.Time,
) ([]model.CapacitySlot, error) {
	var slots []model.CapacitySlot
	err := r.db.WithContext(ctx).
		Model(&model.CapacitySlot{}).
		Where("professional_id = ?", professionalID).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Where("is_booked = ?", false).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormCapacitySlotRepository) MarkBookedByWindow(
	ctx context.Context,
	professionalID string,
	startsAt, endsAt time.Time,
) (*model.CapacitySlot, error) {
	var slot model.CapacitySlot
	err := r.db.WithContext(ctx).
		Where("professional_id = ?", professionalID).
		Where("starts_at = ? AND ends_at = ?", startsAt.UTC(), endsAt.UTC()).
		Where("is_booked = ?", false).
		First(&slot).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tx := r.db.WithContext(ctx).
		Model(&model.CapacitySlot{}).
		Where("id = ? AND is_booked = ?", slot.ID, false).
		Update("is_booked", true)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		// taken by a concurrent writer
		return nil, nil
	}
	slot.IsBooked = true
	return &slot, nil
}

func (r *GormCapacitySlotRepository) Create(ctx context.Context, slot *model.CapacitySlot) error {
	slot.StartsAt = slot.StartsAt.UTC()
	slot.EndsAt = slot.EndsAt.UTC()
	return r.db.WithContext(ctx).Create(slot).Error
}
