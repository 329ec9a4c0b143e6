package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wellspring/booking-core/internal/model"
)

// uniqueViolation is the postgres SQLSTATE for a unique index collision.
const uniqueViolation = "23505"

type ReservationRepository interface {
	// Create inserts a reservation. A live reservation already holding the
	// same (service, date, start time) makes it fail with IsDuplicate(err).
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	// Non-cancelled reservations of a service with from <= date <= to.
	ListActiveByServiceAndDates(ctx context.Context, serviceID string, from, to time.Time) ([]model.Reservation, error)
	// Reservations of a patient with from <= date <= to, paginated.
	ListByPatientAndRange(
		ctx context.Context,
		patientID string,
		from, to time.Time,
		limit, offset int,
	) ([]model.Reservation, int64, error)
}

type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) ListActiveByServiceAndDates(
	ctx context.Context,
	serviceID string,
	from, to time.Time,
) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := r.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Where("date >= ? AND date <= ?", datatypes.Date(from), datatypes.Date(to)).
		Where("status <> ?", model.ReservationStatusCancelled).
		Order("date ASC, start_time ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *GormReservationRepository) ListByPatientAndRange(
	ctx context.Context,
	patientID string,
	from, to time.Time,
	limit, offset int,
) ([]model.Reservation, int64, error) {
	var (
		reservations []model.Reservation
		total        int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("patient_id = ?", patientID).
		Where("date >= ? AND date <= ?", datatypes.Date(from), datatypes.Date(to))

	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("date ASC, start_time ASC").Find(&reservations).Error; err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

// IsDuplicate reports whether err is a unique index collision.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
