package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/logs"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
)

// Credentials: хэширование PIN и токенов. Verify не возвращает ошибку на несовпадение.
type Credentials interface {
	Hash(value string) (string, error)
	Verify(value, digest string) bool
}

// PinGuard ведёт счётчик неудачных попыток PIN и блокировку.
// Блокировка снимается только явной разблокировкой администратором.
type PinGuard struct {
	db          *gorm.DB
	staff       repository.StaffRepository
	events      repository.EventRepository
	hasher      Credentials
	maxAttempts int
}

func NewPinGuard(
	db *gorm.DB,
	staff repository.StaffRepository,
	events repository.EventRepository,
	hasher Credentials,
	maxAttempts int,
) *PinGuard {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &PinGuard{db: db, staff: staff, events: events, hasher: hasher, maxAttempts: maxAttempts}
}

// CheckLoginAllowed: вход запрещён без проверки PIN, если аккаунт не active или PIN заблокирован.
func (g *PinGuard) CheckLoginAllowed(staff *model.Staff) error {
	if staff.Status != model.StaffStatusActive {
		return ErrAccountInactive
	}
	if staff.PinLocked() {
		return ErrPinLocked
	}
	return nil
}

// Verify сверяет PIN. Неудача увеличивает счётчик, на maxAttempts ставится блокировка
// и возвращается ErrPinLocked. Успех сбрасывает счётчик.
func (g *PinGuard) Verify(ctx context.Context, staff *model.Staff, pin string, now time.Time) (bool, error) {
	if staff.PinLocked() {
		return false, ErrPinLocked
	}

	if g.hasher.Verify(pin, staff.PinHash) {
		if staff.PinRetryCount > 0 || staff.PinLockedUntil != nil {
			if err := g.reset(ctx, staff.UID); err != nil {
				return false, err
			}
			staff.PinRetryCount = 0
			staff.PinLockedUntil = nil
		}
		return true, nil
	}

	locked, err := g.recordFailure(ctx, staff.UID, now)
	if err != nil {
		return false, err
	}
	if locked {
		staff.PinLockedUntil = &now
		return false, ErrPinLocked
	}
	return false, nil
}

func (g *PinGuard) reset(ctx context.Context, uid uuid.UUID) error {
	return g.staff.UpdateFields(ctx, uid, map[string]any{
		"pin_retry_count":  0,
		"pin_locked_until": nil,
	})
}

// recordFailure увеличивает счётчик под блокировкой строки, чтобы параллельные
// неудачные попытки не потерялись.
func (g *PinGuard) recordFailure(ctx context.Context, uid uuid.UUID, now time.Time) (bool, error) {
	var locked bool
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff := g.staff.WithTx(tx)
		current, err := staff.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}

		count := current.PinRetryCount + 1
		fields := map[string]any{"pin_retry_count": count}
		if count >= g.maxAttempts && current.PinLockedUntil == nil {
			fields["pin_locked_until"] = now
			locked = true
		}
		if err := staff.UpdateFields(ctx, uid, fields); err != nil {
			return err
		}
		if locked {
			return g.events.WithTx(tx).Record(ctx, model.EventTypePinLocked, repository.EventRef{StaffUID: uid},
				map[string]any{"attempts": count})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, notFound("Staff")
		}
		return false, err
	}
	if locked {
		logs.Logger.WithField("staff_uid", uid).Warn("pin locked after too many failed attempts")
	}
	return locked, nil
}
