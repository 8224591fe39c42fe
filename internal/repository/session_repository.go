package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/staff-booking/internal/model"
)

type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Create(ctx context.Context, session *model.RefreshSession) error
	// Под блокировкой: две параллельные ротации одного токена не должны пройти обе.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RefreshSession, error)
	// Отозвать сессию и отметить использование.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	// Отозвать все живые сессии сотрудника.
	RevokeAllForStaff(ctx context.Context, staffUID uuid.UUID, at time.Time) (int64, error)
	// Живые сессии сотрудника.
	ListActive(ctx context.Context, staffUID uuid.UUID, now time.Time) ([]model.RefreshSession, error)
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	return &GormSessionRepository{db: tx}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *model.RefreshSession) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error)
}

func (r *GormSessionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RefreshSession, error) {
	var s model.RefreshSession
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *GormSessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.RefreshSession{}).
		Where("id = ?", id).
		Updates(map[string]any{"revoked_at": at, "last_used_at": at}).
		Error)
}

func (r *GormSessionRepository) RevokeAllForStaff(ctx context.Context, staffUID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RefreshSession{}).
		Where("staff_uid = ? AND revoked_at IS NULL", staffUID).
		Update("revoked_at", at)
	return res.RowsAffected, translate(res.Error)
}

func (r *GormSessionRepository) ListActive(ctx context.Context, staffUID uuid.UUID, now time.Time) ([]model.RefreshSession, error) {
	var list []model.RefreshSession
	err := r.db.WithContext(ctx).
		Where("staff_uid = ? AND revoked_at IS NULL AND expires_at > ?", staffUID, now).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}
