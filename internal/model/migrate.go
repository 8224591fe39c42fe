package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Частичный уникальный индекс: одна активная запись на тип в финансовом году.
// Синтаксис одинаков для postgres и sqlite.
const activePeriodIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS ` + IndexReservationActivePeriod +
	` ON reservations (staff_uid, reservation_type_id, period_key) WHERE canceled_at IS NULL`

// AutoMigrate выполняет миграцию всех сущностей сервиса записи.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Department{},
		&Staff{},
		&ReservationType{},
		&ReservationSlot{},
		&SlotDepartment{},
		&Reservation{},
		&RefreshSession{},
		&Event{},
	); err != nil {
		return err
	}

	if err := db.Exec(activePeriodIndexSQL).Error; err != nil {
		return fmt.Errorf("create %s: %w", IndexReservationActivePeriod, err)
	}
	return nil
}
