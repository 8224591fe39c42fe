package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/staff-booking/internal/model"
)

type ReservationRepository interface {
	WithTx(tx *gorm.DB) ReservationRepository
	// Создать запись. Нарушение уникальности приходит как *ConstraintError.
	Create(ctx context.Context, reservation *model.Reservation) error
	// Получить запись по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	// Получить запись под блокировкой. staffUID != nil: только запись этого сотрудника.
	GetForUpdate(ctx context.Context, id uuid.UUID, staffUID *uuid.UUID) (*model.Reservation, error)
	// Активная запись сотрудника на тип в финансовом году.
	FindActiveForPeriod(ctx context.Context, staffUID, reservationTypeID uuid.UUID, periodKey string) (*model.Reservation, error)
	// Все записи сотрудника, новые сверху.
	ListByStaff(ctx context.Context, staffUID uuid.UUID) ([]model.Reservation, error)
	// Отметить запись отменённой.
	MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Реализация на GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) WithTx(tx *gorm.DB) ReservationRepository {
	return &GormReservationRepository{db: tx}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(reservation).Error)
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *GormReservationRepository) GetForUpdate(ctx context.Context, id uuid.UUID, staffUID *uuid.UUID) (*model.Reservation, error) {
	q := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id)
	if staffUID != nil {
		q = q.Where("staff_uid = ?", *staffUID)
	}

	var res model.Reservation
	if err := q.First(&res).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *GormReservationRepository) FindActiveForPeriod(
	ctx context.Context,
	staffUID, reservationTypeID uuid.UUID,
	periodKey string,
) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).
		Where("staff_uid = ? AND reservation_type_id = ? AND period_key = ?", staffUID, reservationTypeID, periodKey).
		Where("canceled_at IS NULL").
		First(&res).Error
	if err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *GormReservationRepository) ListByStaff(ctx context.Context, staffUID uuid.UUID) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).
		Where("staff_uid = ?", staffUID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (r *GormReservationRepository) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ?", id).
		Update("canceled_at", at).
		Error)
}
