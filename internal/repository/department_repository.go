package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/staff-booking/internal/model"
)

type DepartmentRepository interface {
	WithTx(tx *gorm.DB) DepartmentRepository
	// Создать подразделение или обновить имя/активность существующего.
	Upsert(ctx context.Context, d *model.Department) error
	GetByID(ctx context.Context, id string) (*model.Department, error)

	// Привязать подразделение к слоту (или обновить привязку).
	UpsertSlotLink(ctx context.Context, link *model.SlotDepartment) error
	// Удалить привязку. Отсутствие привязки не ошибка.
	DeleteSlotLink(ctx context.Context, slotID uuid.UUID, departmentID string) error
	// Привязки слота.
	ListSlotLinks(ctx context.Context, slotID uuid.UUID) ([]model.SlotDepartment, error)
}

type GormDepartmentRepository struct {
	db *gorm.DB
}

func NewGormDepartmentRepository(db *gorm.DB) *GormDepartmentRepository {
	return &GormDepartmentRepository{db: db}
}

func (r *GormDepartmentRepository) WithTx(tx *gorm.DB) DepartmentRepository {
	return &GormDepartmentRepository{db: tx}
}

func (r *GormDepartmentRepository) Upsert(ctx context.Context, d *model.Department) error {
	return translate(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
		}).
		Create(d).Error)
}

func (r *GormDepartmentRepository) GetByID(ctx context.Context, id string) (*model.Department, error) {
	var d model.Department
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *GormDepartmentRepository) UpsertSlotLink(ctx context.Context, link *model.SlotDepartment) error {
	return translate(r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot_id"}, {Name: "department_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "capacity_override", "updated_at"}),
		}).
		Create(link).Error)
}

func (r *GormDepartmentRepository) DeleteSlotLink(ctx context.Context, slotID uuid.UUID, departmentID string) error {
	return translate(r.db.WithContext(ctx).
		Where("slot_id = ? AND department_id = ?", slotID, departmentID).
		Delete(&model.SlotDepartment{}).
		Error)
}

func (r *GormDepartmentRepository) ListSlotLinks(ctx context.Context, slotID uuid.UUID) ([]model.SlotDepartment, error) {
	var links []model.SlotDepartment
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", slotID).
		Order("department_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, translate(err)
	}
	return links, nil
}
