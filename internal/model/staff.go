package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StaffStatus string

const (
	StaffStatusActive    StaffStatus = "active"
	StaffStatusSuspended StaffStatus = "suspended"
	StaffStatusLeft      StaffStatus = "left"
)

type StaffRole string

const (
	StaffRoleStaff StaffRole = "STAFF"
	StaffRoleAdmin StaffRole = "ADMIN"
)

// staffs
type Staff struct {
	UID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Табельный номер из кадровой системы.
	StaffID string `gorm:"type:varchar(64);not null;uniqueIndex:uq_staffs_staff_id"`
	// Номер пациента в EMR, только цифры. NULL допускается многократно.
	EmrPatientID *string `gorm:"type:varchar(32);uniqueIndex:uq_staffs_emr_patient_id"`

	FamilyName     string  `gorm:"type:varchar(100);not null"`
	GivenName      string  `gorm:"type:varchar(100);not null"`
	FamilyNameKana *string `gorm:"type:varchar(100)"`
	GivenNameKana  *string `gorm:"type:varchar(100)"`
	JobTitle       string  `gorm:"type:varchar(100);not null;default:''"`
	DepartmentID   *string `gorm:"type:varchar(64);index"`

	DateOfBirth *datatypes.Date
	SexCode     *string `gorm:"type:varchar(1)"` // '1' | '2'

	PinHash        string `gorm:"type:text;not null"`
	PinRetryCount  int    `gorm:"not null;default:0"`
	PinLockedUntil *time.Time
	PinUpdatedAt   time.Time `gorm:"not null"`
	PinVersion     int       `gorm:"not null;default:1"`
	PinMustChange  bool      `gorm:"not null;default:false"`

	// Токен оптимистичной блокировки, растёт на каждой успешной мутации.
	Version int `gorm:"not null;default:1"`

	Status      StaffStatus `gorm:"type:varchar(16);not null;default:'active';index"`
	Role        StaffRole   `gorm:"type:varchar(16);not null;default:'STAFF'"`
	LastLoginAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Department *Department `gorm:"foreignKey:DepartmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (s *Staff) BeforeCreate(*gorm.DB) error {
	if s.UID == uuid.Nil {
		s.UID = uuid.New()
	}
	return nil
}

// ProfileComplete: заполнены ли поля, без которых запись невозможна.
func (s *Staff) ProfileComplete() bool {
	return s.EmrPatientID != nil && *s.EmrPatientID != "" &&
		s.DateOfBirth != nil &&
		s.SexCode != nil && *s.SexCode != ""
}

// PinLocked: PIN заблокирован до ручной разблокировки.
func (s *Staff) PinLocked() bool {
	return s.PinLockedUntil != nil
}
