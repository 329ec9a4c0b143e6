package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CapacitySlot is a pre-generated fixed slot of a professional. Services
// without a declarative rule are offered through these slots.
type CapacitySlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index"`

	// No explicit column type: timestamptz on postgres, datetime on sqlite.
	StartsAt time.Time `gorm:"not null;index"`
	EndsAt   time.Time `gorm:"not null"`

	IsBooked bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`

	Professional *Professional `gorm:"foreignKey:ProfessionalID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *CapacitySlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
