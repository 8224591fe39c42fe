package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/staff-booking/internal/model"
)

// ErrStaleVersion: версия профиля в запросе не совпала с текущей.
var ErrStaleVersion = errors.New("repository: stale version")

type StaffRepository interface {
	WithTx(tx *gorm.DB) StaffRepository
	Create(ctx context.Context, staff *model.Staff) error
	// По внутреннему UID, с подразделением.
	GetByUID(ctx context.Context, uid uuid.UUID) (*model.Staff, error)
	// По табельному номеру, с подразделением.
	GetByStaffID(ctx context.Context, staffID string) (*model.Staff, error)
	// Под блокировкой строки, без подразделения.
	GetByUIDForUpdate(ctx context.Context, uid uuid.UUID) (*model.Staff, error)
	// Занят ли номер EMR кем-то, кроме exclude.
	EmrPatientIDTaken(ctx context.Context, emrPatientID string, exclude uuid.UUID) (bool, error)
	// Обновить поля и поднять version на 1, если текущая version == expected.
	UpdateVersioned(ctx context.Context, uid uuid.UUID, expected int, fields map[string]any) error
	// Служебные поля (счётчик PIN, last_login_at) без изменения version.
	UpdateFields(ctx context.Context, uid uuid.UUID, fields map[string]any) error
}

type GormStaffRepository struct {
	db *gorm.DB
}

func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

func (r *GormStaffRepository) WithTx(tx *gorm.DB) StaffRepository {
	return &GormStaffRepository{db: tx}
}

func (r *GormStaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(staff).Error)
}

func (r *GormStaffRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	if err := r.db.WithContext(ctx).Preload("Department").First(&s, "uid = ?", uid).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *GormStaffRepository) GetByStaffID(ctx context.Context, staffID string) (*model.Staff, error) {
	var s model.Staff
	if err := r.db.WithContext(ctx).Preload("Department").Where("staff_id = ?", staffID).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *GormStaffRepository) GetByUIDForUpdate(ctx context.Context, uid uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, "uid = ?", uid).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *GormStaffRepository) EmrPatientIDTaken(ctx context.Context, emrPatientID string, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Staff{}).
		Where("emr_patient_id = ? AND uid <> ?", emrPatientID, exclude).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *GormStaffRepository) UpdateVersioned(ctx context.Context, uid uuid.UUID, expected int, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&model.Staff{}).
		Where("uid = ? AND version = ?", uid, expected).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *GormStaffRepository) UpdateFields(ctx context.Context, uid uuid.UUID, fields map[string]any) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.Staff{}).
		Where("uid = ?", uid).
		Updates(fields).
		Error)
}
