package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/model"
)

var (
	// ErrNotFound оборачивает gorm.ErrRecordNotFound, errors.Is работает с обоими.
	ErrNotFound = fmt.Errorf("repository: %w", gorm.ErrRecordNotFound)
	// ErrLockTimeout: дедлок или таймаут ожидания блокировки, запрос можно повторить.
	ErrLockTimeout = errors.New("repository: lock wait timeout")
)

// Constraint: известные уникальные ограничения схемы.
type Constraint int

const (
	ConstraintUnknown Constraint = iota
	ConstraintSlotStaff
	ConstraintActivePeriod
	ConstraintStaffID
	ConstraintEmrPatientID
)

func (c Constraint) String() string {
	switch c {
	case ConstraintSlotStaff:
		return model.IndexReservationSlotStaff
	case ConstraintActivePeriod:
		return model.IndexReservationActivePeriod
	case ConstraintStaffID:
		return "uq_staffs_staff_id"
	case ConstraintEmrPatientID:
		return "uq_staffs_emr_patient_id"
	default:
		return "unknown"
	}
}

// ConstraintError: нарушение уникальности, с идентификатором ограничения.
type ConstraintError struct {
	Constraint Constraint
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("unique constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// ConstraintOf возвращает ограничение, если err: нарушение уникальности.
func ConstraintOf(err error) (Constraint, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint, true
	}
	return ConstraintUnknown, false
}

var constraintsByName = map[string]Constraint{
	model.IndexReservationSlotStaff:    ConstraintSlotStaff,
	model.IndexReservationActivePeriod: ConstraintActivePeriod,
	"uq_staffs_staff_id":               ConstraintStaffID,
	"uq_staffs_emr_patient_id":         ConstraintEmrPatientID,
}

// sqlite не сообщает имя индекса, только список колонок.
var constraintsByColumns = map[string]Constraint{
	"reservations.slot_id,reservations.staff_uid":                                     ConstraintSlotStaff,
	"reservations.staff_uid,reservations.reservation_type_id,reservations.period_key": ConstraintActivePeriod,

	"staffs.staff_id":       ConstraintStaffID,
	"staffs.emr_patient_id": ConstraintEmrPatientID,
}

// translate приводит ошибки драйверов к ошибкам пакета. Остальное возвращается как есть.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Constraint: constraintsByName[pgErr.ConstraintName], Err: err}
		case "40P01", "55P03", "40001":
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return err
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch {
		case sqErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &ConstraintError{Constraint: sqliteConstraint(sqErr.Error()), Err: err}
		case sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
	}
	return err
}

// "UNIQUE constraint failed: reservations.slot_id, reservations.staff_uid"
func sqliteConstraint(msg string) Constraint {
	_, cols, ok := strings.Cut(msg, "failed: ")
	if !ok {
		return ConstraintUnknown
	}
	key := strings.ReplaceAll(strings.TrimSpace(cols), " ", "")
	return constraintsByColumns[key]
}
