package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Имена уникальных ограничений таблицы reservations.
const (
	IndexReservationSlotStaff    = "uq_reservations_slot_staff"
	IndexReservationActivePeriod = "uq_reservations_active_period"
)

// reservations: запись сотрудника на слот. Строки не удаляются, отмена через canceled_at.
type Reservation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	SlotID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_reservations_slot_staff,priority:1"`
	StaffUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_reservations_slot_staff,priority:2;index"`
	StaffID  string    `gorm:"type:varchar(64);not null"`

	ReservationTypeID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Снимок слота на момент записи, не зависит от последующих правок слота.
	ServiceDate      datatypes.Date `gorm:"not null"`
	StartMinuteOfDay int            `gorm:"not null"`
	DurationMinutes  int            `gorm:"not null"`

	// Ключ финансового года, например FY2025.
	PeriodKey string `gorm:"type:varchar(16);not null;index"`

	CanceledAt *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Slot  *ReservationSlot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Staff *Staff           `gorm:"foreignKey:StaffUID;references:UID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Reservation) Active() bool {
	return r.CanceledAt == nil
}
