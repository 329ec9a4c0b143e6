package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit event type.
type EventType string

const (
	EventTypeReservationCreated   EventType = "reservation_created"
	EventTypeCapacitySlotConsumed EventType = "capacity_slot_consumed"
)

// Event is one entry of the booking audit trail.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`

	ReservationID *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`

	Reservation *Reservation `gorm:"foreignKey:ReservationID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
