package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/model"
)

type ReservationTypeRepository interface {
	WithTx(tx *gorm.DB) ReservationTypeRepository
	Create(ctx context.Context, t *model.ReservationType) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReservationType, error)
	// Список типов; onlyActive: только активные.
	List(ctx context.Context, onlyActive bool) ([]model.ReservationType, error)
}

type GormReservationTypeRepository struct {
	db *gorm.DB
}

func NewGormReservationTypeRepository(db *gorm.DB) *GormReservationTypeRepository {
	return &GormReservationTypeRepository{db: db}
}

func (r *GormReservationTypeRepository) WithTx(tx *gorm.DB) ReservationTypeRepository {
	return &GormReservationTypeRepository{db: tx}
}

func (r *GormReservationTypeRepository) Create(ctx context.Context, t *model.ReservationType) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *GormReservationTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReservationType, error) {
	var t model.ReservationType
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *GormReservationTypeRepository) List(ctx context.Context, onlyActive bool) ([]model.ReservationType, error) {
	q := r.db.WithContext(ctx).Model(&model.ReservationType{})
	if onlyActive {
		q = q.Where("active = ?", true)
	}

	var list []model.ReservationType
	if err := q.Order("name ASC").Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}
