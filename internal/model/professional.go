package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Professional offers services (therapist, coach, nutritionist and so on).
// Profile data lives in the identity backend; only the scheduling-relevant part is kept here.
type Professional struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Reference to the user record in the identity backend.
	UserID *uuid.UUID `gorm:"type:uuid;index"`

	DisplayName string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`

	Services      []Service      `gorm:"foreignKey:ProfessionalID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CapacitySlots []CapacitySlot `gorm:"foreignKey:ProfessionalID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (p *Professional) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
