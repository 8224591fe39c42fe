package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/staff-booking/internal/model"
)

// SlotFilter: выборка слотов для сотрудника или админки.
type SlotFilter struct {
	ReservationTypeID uuid.UUID
	// nil: любые статусы.
	Status       *model.SlotStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	DepartmentID string
}

type SlotRepository interface {
	// Репозиторий поверх открытой транзакции.
	WithTx(tx *gorm.DB) SlotRepository
	// Создать слот.
	Create(ctx context.Context, slot *model.ReservationSlot) error
	// Создать пачку слотов одним запросом.
	CreateBatch(ctx context.Context, slots []model.ReservationSlot) error
	// Найти слот по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReservationSlot, error)
	// Найти слот по ID под блокировкой строки (в транзакции).
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ReservationSlot, error)
	// Слоты по фильтру, по дате и времени начала.
	List(ctx context.Context, f SlotFilter) ([]model.ReservationSlot, error)
	// Записать новое значение booked_count.
	SetBookedCount(ctx context.Context, id uuid.UUID, count int) error
	// Сохранить все поля слота.
	Save(ctx context.Context, slot *model.ReservationSlot) error
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) WithTx(tx *gorm.DB) SlotRepository {
	return &GormSlotRepository{db: tx}
}

func (r *GormSlotRepository) Create(ctx context.Context, slot *model.ReservationSlot) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(slot).Error)
}

func (r *GormSlotRepository) CreateBatch(ctx context.Context, slots []model.ReservationSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(&slots).Error)
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReservationSlot, error) {
	var slot model.ReservationSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (r *GormSlotRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ReservationSlot, error) {
	var slot model.ReservationSlot
	if err := forUpdate(r.db.WithContext(ctx)).First(&slot, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (r *GormSlotRepository) List(ctx context.Context, f SlotFilter) ([]model.ReservationSlot, error) {
	q := r.db.WithContext(ctx).
		Model(&model.ReservationSlot{}).
		Where("reservation_slots.reservation_type_id = ?", f.ReservationTypeID)

	if f.Status != nil {
		q = q.Where("reservation_slots.status = ?", *f.Status)
	}
	if f.DateFrom != nil {
		q = q.Where("reservation_slots.service_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("reservation_slots.service_date <= ?", *f.DateTo)
	}
	if f.DepartmentID != "" {
		q = q.Joins(
			"JOIN reservation_slot_departments sd ON sd.slot_id = reservation_slots.id AND sd.department_id = ? AND sd.enabled = ?",
			f.DepartmentID, true,
		)
	}

	var slots []model.ReservationSlot
	err := q.
		Order("reservation_slots.service_date ASC").
		Order("reservation_slots.start_minute_of_day ASC").
		Order("reservation_slots.id ASC").
		Find(&slots).Error
	if err != nil {
		return nil, translate(err)
	}
	return slots, nil
}

func (r *GormSlotRepository) SetBookedCount(ctx context.Context, id uuid.UUID, count int) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.ReservationSlot{}).
		Where("id = ?", id).
		Update("booked_count", count).
		Error)
}

func (r *GormSlotRepository) Save(ctx context.Context, slot *model.ReservationSlot) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(slot).Error)
}
