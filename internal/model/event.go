package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeReservationCreated       EventType = "reservation_created"
	EventTypeReservationCanceled      EventType = "reservation_canceled"
	EventTypeReservationAdminCanceled EventType = "reservation_admin_canceled"
	EventTypeSlotUpdated              EventType = "slot_updated"
	EventTypeProfileUpdated           EventType = "profile_updated"
	EventTypePinLocked                EventType = "pin_locked"
	EventTypePinUnlocked              EventType = "pin_unlocked"
	EventTypeRefreshReuseDetected     EventType = "refresh_reuse_detected"
	EventTypeStaffStatusChanged       EventType = "staff_status_changed"
)

// events: события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	StaffUID      *uuid.UUID `gorm:"type:uuid;index"`
	ReservationID *uuid.UUID `gorm:"type:uuid;index"`
	SlotID        *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
