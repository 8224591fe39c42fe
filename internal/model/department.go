package model

import (
	"time"

	"github.com/google/uuid"
)

// departments: справочник подразделений. Код задаётся снаружи (кадровая система).
type Department struct {
	ID     string `gorm:"type:varchar(64);primaryKey"`
	Name   string `gorm:"type:varchar(255);not null"`
	Active bool   `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// reservation_slot_departments: какие подразделения могут записываться на слот.
type SlotDepartment struct {
	SlotID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	DepartmentID string    `gorm:"type:varchar(64);primaryKey"`
	Enabled      bool      `gorm:"not null"`
	// Только для информации, учёт мест идёт по слоту.
	CapacityOverride *int

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (SlotDepartment) TableName() string {
	return "reservation_slot_departments"
}
