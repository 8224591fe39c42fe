package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/model"
)

// EventRef: к чему относится событие аудита. Пустые поля не пишутся.
type EventRef struct {
	StaffUID      uuid.UUID
	ReservationID uuid.UUID
	SlotID        uuid.UUID
}

type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	// Записать событие; details сериализуется в JSON.
	Record(ctx context.Context, eventType model.EventType, ref EventRef, details any) error
	// События сотрудника, старые сверху.
	ListByStaff(ctx context.Context, staffUID uuid.UUID) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &GormEventRepository{db: tx}
}

func (r *GormEventRepository) Record(ctx context.Context, eventType model.EventType, ref EventRef, details any) error {
	ev := model.Event{
		EventType:     eventType,
		StaffUID:      optionalID(ref.StaffUID),
		ReservationID: optionalID(ref.ReservationID),
		SlotID:        optionalID(ref.SlotID),
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
		ev.Details = datatypes.JSON(raw)
	}
	return translate(r.db.WithContext(ctx).Create(&ev).Error)
}

func (r *GormEventRepository) ListByStaff(ctx context.Context, staffUID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("staff_uid = ?", staffUID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, translate(err)
	}
	return events, nil
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
