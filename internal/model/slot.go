package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Статус слота записи.
type SlotStatus string

const (
	SlotStatusDraft     SlotStatus = "draft"
	SlotStatusPublished SlotStatus = "published"
	SlotStatusClosed    SlotStatus = "closed"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusDraft, SlotStatusPublished, SlotStatusClosed:
		return true
	}
	return false
}

// reservation_slots
type ReservationSlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ReservationTypeID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Локальная дата приёма в часовом поясе организации.
	ServiceDate      datatypes.Date `gorm:"not null;index"`
	StartMinuteOfDay int            `gorm:"not null;check:chk_slot_start_minute,start_minute_of_day >= 0 AND start_minute_of_day <= 1439"`
	DurationMinutes  int            `gorm:"not null;check:chk_slot_duration,duration_minutes > 0"`

	Capacity    int `gorm:"not null;check:chk_slot_capacity,capacity >= 0"`
	BookedCount int `gorm:"not null;default:0;check:chk_slot_booked_count,booked_count >= 0 AND booked_count <= capacity"`

	Status SlotStatus `gorm:"type:varchar(16);not null;index"`

	// Окно записи, границы включительно.
	BookingStart *time.Time
	BookingEnd   *time.Time

	// Дедлайн отмены: оба поля заданы или оба NULL.
	CancelDeadlineDate        *datatypes.Date
	CancelDeadlineMinuteOfDay *int `gorm:"check:chk_slot_cancel_deadline_pair,(cancel_deadline_date IS NULL) = (cancel_deadline_minute_of_day IS NULL)"`

	Notes *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	ReservationType *ReservationType `gorm:"foreignKey:ReservationTypeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Departments     []SlotDepartment `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *ReservationSlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *ReservationSlot) Remaining() int {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}
