package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/calendar"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/telemetry"
)

// SlotQuery: выборка слотов для сотрудника.
type SlotQuery struct {
	ReservationTypeID uuid.UUID
	// nil: только опубликованные.
	Status       *model.SlotStatus
	DateFrom     string
	DateTo       string
	DepartmentID string
	Page         int
	PageSize     int
}

// SlotView: слот с вычисленными для клиента полями.
type SlotView struct {
	Slot      model.ReservationSlot
	Remaining int
	Bookable  bool
	Label     string
}

// ReservationService: запись и отмена. Места на слоте считаются
// под блокировкой строки слота, уникальность страхуют индексы БД.
type ReservationService struct {
	db           *gorm.DB
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	types        repository.ReservationTypeRepository
	staff        repository.StaffRepository
	events       repository.EventRepository
	loc          *time.Location
	now          Clock
}

func NewReservationService(
	db *gorm.DB,
	slots repository.SlotRepository,
	reservations repository.ReservationRepository,
	types repository.ReservationTypeRepository,
	staff repository.StaffRepository,
	events repository.EventRepository,
	loc *time.Location,
	now Clock,
) *ReservationService {
	if now == nil {
		now = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationService{
		db:           db,
		slots:        slots,
		reservations: reservations,
		types:        types,
		staff:        staff,
		events:       events,
		loc:          loc,
		now:          now,
	}
}

// Create записывает сотрудника на слот.
func (s *ReservationService) Create(ctx context.Context, staffUID, slotID uuid.UUID) (res *model.Reservation, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "reservation.create")
	defer func() {
		finish(span, "reservation.create", logrus.Fields{"staff_uid": staffUID, "slot_id": slotID}, err)
	}()

	now := s.now()

	staff, err := s.staff.GetByUID(ctx, staffUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Staff")
		}
		return nil, err
	}
	if staff.Status != model.StaffStatusActive {
		return nil, ErrAccountInactive
	}
	if err := bookingEligibility(staff); err != nil {
		return nil, err
	}

	// Предварительные проверки без блокировок: быстрый отказ.
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Reservation slot")
		}
		return nil, err
	}
	if !calendar.IsBookable(slot, now) {
		return nil, ErrSlotUnavailable
	}
	periodKey := calendar.PeriodKey(time.Time(slot.ServiceDate))
	if _, err := s.reservations.FindActiveForPeriod(ctx, staffUID, slot.ReservationTypeID, periodKey); err == nil {
		return nil, ErrAlreadyReservedFY
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := s.slots.WithTx(tx)

		locked, err := slots.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("Reservation slot")
			}
			return err
		}
		// Слот мог измениться между предпроверкой и блокировкой.
		if !calendar.IsBookable(locked, now) {
			return ErrSlotUnavailable
		}
		if locked.BookedCount >= locked.Capacity {
			return ErrCapacityReached
		}

		rtype, err := s.types.WithTx(tx).GetByID(ctx, locked.ReservationTypeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("Reservation type")
			}
			return err
		}
		if !rtype.Active {
			return forbidden("Reservation type is not active")
		}

		res = &model.Reservation{
			SlotID:            locked.ID,
			StaffUID:          staff.UID,
			StaffID:           staff.StaffID,
			ReservationTypeID: locked.ReservationTypeID,
			ServiceDate:       locked.ServiceDate,
			StartMinuteOfDay:  locked.StartMinuteOfDay,
			DurationMinutes:   locked.DurationMinutes,
			PeriodKey:         calendar.PeriodKey(time.Time(locked.ServiceDate)),
		}

		if err := slots.SetBookedCount(ctx, locked.ID, locked.BookedCount+1); err != nil {
			return err
		}
		if err := s.reservations.WithTx(tx).Create(ctx, res); err != nil {
			if c, ok := repository.ConstraintOf(err); ok {
				switch c {
				case repository.ConstraintSlotStaff:
					return ErrDuplicateForSlot
				case repository.ConstraintActivePeriod:
					return ErrAlreadyReservedFY
				}
			}
			return err
		}

		return s.events.WithTx(tx).Record(ctx, model.EventTypeReservationCreated,
			repository.EventRef{StaffUID: staff.UID, ReservationID: res.ID, SlotID: locked.ID},
			map[string]any{"period_key": res.PeriodKey, "booked_count": locked.BookedCount + 1})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return res, nil
}

// CancelForStaff: отмена своей записи. Повторная отмена ничего не делает.
func (s *ReservationService) CancelForStaff(ctx context.Context, staffUID, reservationID uuid.UUID) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "reservation.cancel")
	defer func() {
		finish(span, "reservation.cancel", logrus.Fields{"staff_uid": staffUID, "reservation_id": reservationID}, err)
	}()

	err = s.cancel(ctx, reservationID, &staffUID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Reservation")
	}
	return err
}

// CancelByAdmin: отмена без дедлайна. Несуществующая запись не ошибка.
func (s *ReservationService) CancelByAdmin(ctx context.Context, reservationID uuid.UUID) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "reservation.admin_cancel")
	defer func() {
		finish(span, "reservation.admin_cancel", logrus.Fields{"reservation_id": reservationID}, err)
	}()

	err = s.cancel(ctx, reservationID, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// cancel: staffUID != nil: отмена сотрудником, с проверкой владельца и дедлайна.
func (s *ReservationService) cancel(ctx context.Context, reservationID uuid.UUID, staffUID *uuid.UUID) error {
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservations := s.reservations.WithTx(tx)
		slots := s.slots.WithTx(tx)

		res, err := reservations.GetForUpdate(ctx, reservationID, staffUID)
		if err != nil {
			return err
		}
		if !res.Active() {
			return nil
		}

		slot, err := slots.GetByIDForUpdate(ctx, res.SlotID)
		switch {
		case err == nil:
		case staffUID == nil && errors.Is(err, repository.ErrNotFound):
			// слота нет: админ всё равно снимает запись, счётчик не трогаем
			slot = nil
		default:
			return err
		}
		if staffUID != nil && calendar.CancellationClosed(slot, s.loc, now) {
			return ErrDeadlinePassed
		}

		if err := reservations.MarkCanceled(ctx, res.ID, now); err != nil {
			return err
		}
		details := map[string]any{}
		if slot != nil {
			booked := max(slot.BookedCount-1, 0)
			if err := slots.SetBookedCount(ctx, slot.ID, booked); err != nil {
				return err
			}
			details["booked_count"] = booked
		} else {
			details["slot_missing"] = true
		}

		eventType := model.EventTypeReservationCanceled
		if staffUID == nil {
			eventType = model.EventTypeReservationAdminCanceled
		}
		return s.events.WithTx(tx).Record(ctx, eventType,
			repository.EventRef{StaffUID: res.StaffUID, ReservationID: res.ID, SlotID: res.SlotID},
			details)
	})
	return storeErr(err)
}

// FindForPeriod: активная запись сотрудника на тип в финансовом году.
// Пустой periodKey: текущий год организации.
func (s *ReservationService) FindForPeriod(ctx context.Context, staffUID, typeID uuid.UUID, periodKey string) (*model.Reservation, error) {
	if periodKey == "" {
		periodKey = calendar.CurrentPeriodKey(s.now(), s.loc)
	}
	res, err := s.reservations.FindActiveForPeriod(ctx, staffUID, typeID, periodKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Reservation")
		}
		return nil, err
	}
	return res, nil
}

// ListForStaff: все записи сотрудника, включая отменённые.
func (s *ReservationService) ListForStaff(ctx context.Context, staffUID uuid.UUID) ([]model.Reservation, error) {
	return s.reservations.ListByStaff(ctx, staffUID)
}

// ListSlots: слоты типа записи с постраничной выдачей.
func (s *ReservationService) ListSlots(ctx context.Context, q SlotQuery) (calendar.Page[SlotView], error) {
	var v validation
	if q.ReservationTypeID == uuid.Nil {
		v.add("reservationTypeId", "reservationTypeId is required")
	}

	filter := repository.SlotFilter{ReservationTypeID: q.ReservationTypeID, DepartmentID: q.DepartmentID}

	status := model.SlotStatusPublished
	if q.Status != nil {
		status = *q.Status
	}
	if !status.Valid() {
		v.add("status", "status must be draft, published or closed")
	}
	filter.Status = &status

	if q.DateFrom != "" {
		d, err := calendar.ParseLocalDate(q.DateFrom)
		if err != nil {
			v.add("dateFrom", err.Error())
		} else {
			t := time.Time(d)
			filter.DateFrom = &t
		}
	}
	if q.DateTo != "" {
		d, err := calendar.ParseLocalDate(q.DateTo)
		if err != nil {
			v.add("dateTo", err.Error())
		} else {
			t := time.Time(d)
			filter.DateTo = &t
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		v.add("dateTo", "dateTo must not be before dateFrom")
	}
	if err := v.err(); err != nil {
		return calendar.Page[SlotView]{}, err
	}

	slots, err := s.slots.List(ctx, filter)
	if err != nil {
		return calendar.Page[SlotView]{}, err
	}

	now := s.now()
	views := make([]SlotView, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		views = append(views, SlotView{
			Slot:      *slot,
			Remaining: slot.Remaining(),
			Bookable:  calendar.IsBookable(slot, now) && slot.Remaining() > 0,
			Label:     calendar.FormatSlotLabel(calendar.SlotRange(slot, s.loc), s.loc),
		})
	}
	return calendar.Paginate(views, q.Page, q.PageSize), nil
}

// storeErr: дедлок и таймаут блокировки отдаются как повторяемый конфликт.
func storeErr(err error) error {
	if errors.Is(err, repository.ErrLockTimeout) {
		return ErrRetryable
	}
	return err
}

// ListTypes: активные типы записи для выбора сотрудником.
func (s *ReservationService) ListTypes(ctx context.Context) ([]model.ReservationType, error) {
	return s.types.List(ctx, true)
}
