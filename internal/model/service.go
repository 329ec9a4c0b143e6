package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is a bookable offering of a professional.
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProfessionalID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	// Length of one appointment in minutes.
	DurationMin int   `gorm:"not null"`
	PriceCents  int64 `gorm:"not null;default:0"`

	// Declarative availability rule (weekly/custom). NULL means the service
	// is offered through pre-generated capacity slots instead.
	Availability datatypes.JSON

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`

	Professional *Professional `gorm:"foreignKey:ProfessionalID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// HasAvailabilityRule reports whether a declarative rule is stored.
func (s *Service) HasAvailabilityRule() bool {
	switch string(s.Availability) {
	case "", "null", "{}":
		return false
	}
	return true
}
