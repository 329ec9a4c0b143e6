package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationStatusScheduled ReservationStatus = "scheduled"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a patient's booking of one service slot.
//
// A live reservation owns its (service, date, start time) triple: the partial
// unique index is what arbitrates concurrent booking attempts.
type Reservation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ServiceID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_reservations_slot,where:status <> 'cancelled'"`
	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index"`
	PatientID      uuid.UUID `gorm:"type:uuid;not null;index"`

	// Naive local calendar date and wall-clock times, no zone conversion.
	Date      datatypes.Date `gorm:"not null;index;uniqueIndex:idx_reservations_slot"`
	StartTime datatypes.Time `gorm:"not null;uniqueIndex:idx_reservations_slot"`
	EndTime   datatypes.Time `gorm:"not null"`

	PriceCents int64             `gorm:"not null;default:0"`
	Status     ReservationStatus `gorm:"type:varchar(32);not null;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`

	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
