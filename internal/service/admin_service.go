package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/calendar"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/telemetry"
)

// InitialPin: PIN, который получает сотрудник, заведённый администратором.
const InitialPin = "0000"

// SlotInput: новый слот. Даты в формате YYYY-MM-DD, локальные для организации.
type SlotInput struct {
	ReservationTypeID         uuid.UUID
	ServiceDate               string
	StartMinuteOfDay          int
	DurationMinutes           int
	Capacity                  int
	Status                    model.SlotStatus // пусто: draft
	BookingStart              *time.Time
	BookingEnd                *time.Time
	CancelDeadlineDate        *string
	CancelDeadlineMinuteOfDay *int
	Notes                     *string
}

// GenerateSlotsInput: серия слотов по дням и окну времени.
type GenerateSlotsInput struct {
	ReservationTypeID uuid.UUID
	FromDate          string
	UntilDate         string
	Weekdays          []time.Weekday
	ExceptDates       []string
	// Окно приёма в минутах от полуночи, [start, end).
	WindowStartMinute int
	WindowEndMinute   int
	DurationMinutes   int
	AlignMinutes      int
	Capacity          int
	Status            model.SlotStatus
	BookingStart      *time.Time
	BookingEnd        *time.Time
	// Дедлайн отмены: за CancelDaysBefore дней до приёма в CancelMinuteOfDay.
	CancelMinuteOfDay *int
	CancelDaysBefore  int
}

// CancelDeadlinePatch: оба поля nil сбрасывают дедлайн.
type CancelDeadlinePatch struct {
	Date        *string
	MinuteOfDay *int
}

// SlotPatch: частичное изменение слота. nil: без изменений.
type SlotPatch struct {
	Capacity          *int
	Status            *model.SlotStatus
	BookingStart      *time.Time
	ClearBookingStart bool
	BookingEnd        *time.Time
	ClearBookingEnd   bool
	CancelDeadline    *CancelDeadlinePatch
	Notes             *string // "": очистить
}

// ProvisionInput: заведение сотрудника администратором.
type ProvisionInput struct {
	StaffID      string
	FamilyName   string
	GivenName    string
	JobTitle     string
	DepartmentID string
	Role         model.StaffRole
}

// AdminService: операции администратора над справочниками, слотами и учётками.
type AdminService struct {
	db           *gorm.DB
	slots        repository.SlotRepository
	types        repository.ReservationTypeRepository
	departments  repository.DepartmentRepository
	staff        repository.StaffRepository
	sessions     repository.SessionRepository
	events       repository.EventRepository
	reservations *ReservationService
	hasher       Credentials
	loc          *time.Location
	now          Clock
}

func NewAdminService(
	db *gorm.DB,
	slots repository.SlotRepository,
	types repository.ReservationTypeRepository,
	departments repository.DepartmentRepository,
	staff repository.StaffRepository,
	sessions repository.SessionRepository,
	events repository.EventRepository,
	reservations *ReservationService,
	hasher Credentials,
	loc *time.Location,
	now Clock,
) *AdminService {
	if now == nil {
		now = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminService{
		db:           db,
		slots:        slots,
		types:        types,
		departments:  departments,
		staff:        staff,
		sessions:     sessions,
		events:       events,
		reservations: reservations,
		hasher:       hasher,
		loc:          loc,
		now:          now,
	}
}

func (s *AdminService) CreateReservationType(ctx context.Context, name, description string, active bool) (*model.ReservationType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidField("name", "name is required")
	}
	t := &model.ReservationType{Name: name, Description: description, Active: active}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *AdminService) ListReservationTypes(ctx context.Context, onlyActive bool) ([]model.ReservationType, error) {
	return s.types.List(ctx, onlyActive)
}

// CreateDepartment создаёт подразделение или обновляет имя существующего.
func (s *AdminService) CreateDepartment(ctx context.Context, id, name string, active bool) (*model.Department, error) {
	var v validation
	id = strings.TrimSpace(id)
	if !staffIDRe.MatchString(id) {
		v.add("id", "id must be 1-64 latin letters, digits, '-' or '_'")
	}
	if strings.TrimSpace(name) == "" {
		v.add("name", "name is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	d := &model.Department{ID: id, Name: strings.TrimSpace(name), Active: active}
	if err := s.departments.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateSlots создаёт слоты пачкой: либо все, либо ни одного.
func (s *AdminService) CreateSlots(ctx context.Context, inputs []SlotInput) (slots []model.ReservationSlot, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "admin.create_slots")
	defer func() { finish(span, "admin.create_slots", logrus.Fields{"count": len(inputs)}, err) }()

	if len(inputs) == 0 {
		return nil, invalidField("slots", "at least one slot is required")
	}

	var v validation
	slots = make([]model.ReservationSlot, 0, len(inputs))
	for i, in := range inputs {
		slot, reason := buildSlot(in)
		if reason != "" {
			v.add(fmt.Sprintf("slots[%d]", i), reason)
			continue
		}
		slots = append(slots, *slot)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.ensureTypes(ctx, slots); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.slots.WithTx(tx).CreateBatch(ctx, slots)
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *AdminService) ensureTypes(ctx context.Context, slots []model.ReservationSlot) error {
	seen := map[uuid.UUID]bool{}
	for _, slot := range slots {
		if seen[slot.ReservationTypeID] {
			continue
		}
		seen[slot.ReservationTypeID] = true
		if _, err := s.types.GetByID(ctx, slot.ReservationTypeID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("Reservation type")
			}
			return err
		}
	}
	return nil
}

// buildSlot разбирает вход в модель. Непустая строка: причина отказа.
func buildSlot(in SlotInput) (*model.ReservationSlot, string) {
	if in.ReservationTypeID == uuid.Nil {
		return nil, "reservationTypeId is required"
	}
	date, err := calendar.ParseLocalDate(in.ServiceDate)
	if err != nil {
		return nil, "serviceDate: " + err.Error()
	}

	status := in.Status
	if status == "" {
		status = model.SlotStatusDraft
	}

	slot := &model.ReservationSlot{
		ReservationTypeID:         in.ReservationTypeID,
		ServiceDate:               date,
		StartMinuteOfDay:          in.StartMinuteOfDay,
		DurationMinutes:           in.DurationMinutes,
		Capacity:                  in.Capacity,
		Status:                    status,
		BookingStart:              utcPtr(in.BookingStart),
		BookingEnd:                utcPtr(in.BookingEnd),
		CancelDeadlineMinuteOfDay: in.CancelDeadlineMinuteOfDay,
		Notes:                     in.Notes,
	}
	if in.CancelDeadlineDate != nil {
		d, err := calendar.ParseLocalDate(*in.CancelDeadlineDate)
		if err != nil {
			return nil, "cancelDeadlineDate: " + err.Error()
		}
		slot.CancelDeadlineDate = &d
	}

	if ok, reason := validateSlotModel(slot); !ok {
		return nil, reason
	}
	return slot, ""
}

// GenerateSlots нарезает окно приёма на слоты по каждому подходящему дню.
// Интервалы, пересекающиеся с уже существующими слотами типа, пропускаются.
func (s *AdminService) GenerateSlots(ctx context.Context, in GenerateSlotsInput) (created []model.ReservationSlot, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "admin.generate_slots")
	defer func() {
		finish(span, "admin.generate_slots", logrus.Fields{"type_id": in.ReservationTypeID, "created": len(created)}, err)
	}()

	var v validation
	from, errFrom := calendar.ParseLocalDate(in.FromDate)
	if errFrom != nil {
		v.add("fromDate", errFrom.Error())
	}
	until, errUntil := calendar.ParseLocalDate(in.UntilDate)
	if errUntil != nil {
		v.add("untilDate", errUntil.Error())
	}
	if !calendar.ValidMinuteOfDay(in.WindowStartMinute) {
		v.add("windowStartMinute", calendar.ErrInvalidMinuteOfDay.Error())
	}
	if in.WindowEndMinute <= in.WindowStartMinute || in.WindowEndMinute > calendar.MinutesPerDay {
		v.add("windowEndMinute", "windowEndMinute must be after windowStartMinute and within the day")
	}
	if in.DurationMinutes <= 0 {
		v.add("durationMinutes", "durationMinutes must be positive")
	}
	if in.CancelDaysBefore < 0 {
		v.add("cancelDaysBefore", "cancelDaysBefore must not be negative")
	}
	exceptions := map[time.Time]struct{}{}
	for _, raw := range in.ExceptDates {
		d, err := calendar.ParseLocalDate(raw)
		if err != nil {
			v.add("exceptDates", err.Error())
			break
		}
		exceptions[time.Time(d)] = struct{}{}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	days, err := calendar.ExpandDays(calendar.DayRule{
		From:       time.Time(from),
		Until:      time.Time(until),
		Weekdays:   in.Weekdays,
		Exceptions: exceptions,
	})
	if err != nil {
		return nil, invalidField("untilDate", err.Error())
	}
	if len(days) == 0 {
		return []model.ReservationSlot{}, nil
	}

	if _, err := s.types.GetByID(ctx, in.ReservationTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Reservation type")
		}
		return nil, err
	}

	fromT, untilT := time.Time(from), time.Time(until)
	existing, err := s.slots.List(ctx, repository.SlotFilter{
		ReservationTypeID: in.ReservationTypeID,
		DateFrom:          &fromT,
		DateTo:            &untilT,
	})
	if err != nil {
		return nil, err
	}
	busy := make([]calendar.TimeRange, 0, len(existing))
	for i := range existing {
		busy = append(busy, calendar.SlotRange(&existing[i], s.loc))
	}

	duration := time.Duration(in.DurationMinutes) * time.Minute
	for _, day := range days {
		date := datatypes.Date(day)
		window, err := calendar.NewTimeRange(
			calendar.AtMinute(date, in.WindowStartMinute, s.loc),
			calendar.AtMinute(date, in.WindowEndMinute, s.loc),
		)
		if err != nil {
			return nil, invalidField("windowEndMinute", err.Error())
		}
		ranges, err := calendar.SplitToTimeSlots(window, duration, in.AlignMinutes)
		if err != nil {
			return nil, invalidField("durationMinutes", err.Error())
		}

		for _, tr := range ranges {
			if overlap, _ := calendar.HasOverlap(tr, busy); overlap {
				continue
			}
			local := tr.Start.In(s.loc)
			slotIn := SlotInput{
				ReservationTypeID: in.ReservationTypeID,
				ServiceDate:       calendar.FormatLocalDate(calendar.LocalDateOf(tr.Start, s.loc)),
				StartMinuteOfDay:  local.Hour()*60 + local.Minute(),
				DurationMinutes:   in.DurationMinutes,
				Capacity:          in.Capacity,
				Status:            in.Status,
				BookingStart:      in.BookingStart,
				BookingEnd:        in.BookingEnd,
			}
			if in.CancelMinuteOfDay != nil {
				deadline := calendar.FormatLocalDate(datatypes.Date(day.AddDate(0, 0, -in.CancelDaysBefore)))
				minute := *in.CancelMinuteOfDay
				slotIn.CancelDeadlineDate = &deadline
				slotIn.CancelDeadlineMinuteOfDay = &minute
			}

			slot, reason := buildSlot(slotIn)
			if reason != "" {
				return nil, &Error{Kind: KindValidation, Message: reason}
			}
			created = append(created, *slot)
			busy = append(busy, tr)
		}
	}
	if len(created) == 0 {
		return []model.ReservationSlot{}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.slots.WithTx(tx).CreateBatch(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateSlot меняет слот под блокировкой строки. Уменьшение вместимости
// ниже числа записей прижимает booked_count к новой вместимости.
func (s *AdminService) UpdateSlot(ctx context.Context, id uuid.UUID, patch SlotPatch) (slot *model.ReservationSlot, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "admin.update_slot")
	defer func() { finish(span, "admin.update_slot", logrus.Fields{"slot_id": id}, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slots := s.slots.WithTx(tx)

		locked, err := slots.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("Reservation slot")
			}
			return err
		}

		changed, err := applySlotPatch(locked, patch)
		if err != nil {
			return err
		}
		if ok, reason := validateSlotModel(locked); !ok {
			return &Error{Kind: KindValidation, Message: reason}
		}
		if len(changed) == 0 {
			slot = locked
			return nil
		}

		if err := slots.Save(ctx, locked); err != nil {
			return err
		}
		slot = locked
		return s.events.WithTx(tx).Record(ctx, model.EventTypeSlotUpdated, repository.EventRef{SlotID: id},
			map[string]any{"fields": changed, "booked_count": locked.BookedCount})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return slot, nil
}

func applySlotPatch(slot *model.ReservationSlot, p SlotPatch) ([]string, error) {
	var changed []string

	if p.Capacity != nil {
		if *p.Capacity < 0 {
			return nil, invalidField("capacity", "capacity must not be negative")
		}
		slot.Capacity = *p.Capacity
		if slot.BookedCount > slot.Capacity {
			slot.BookedCount = slot.Capacity
		}
		changed = append(changed, "capacity")
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, invalidField("status", "status must be draft, published or closed")
		}
		slot.Status = *p.Status
		changed = append(changed, "status")
	}
	switch {
	case p.ClearBookingStart:
		slot.BookingStart = nil
		changed = append(changed, "bookingStart")
	case p.BookingStart != nil:
		slot.BookingStart = utcPtr(p.BookingStart)
		changed = append(changed, "bookingStart")
	}
	switch {
	case p.ClearBookingEnd:
		slot.BookingEnd = nil
		changed = append(changed, "bookingEnd")
	case p.BookingEnd != nil:
		slot.BookingEnd = utcPtr(p.BookingEnd)
		changed = append(changed, "bookingEnd")
	}
	if p.CancelDeadline != nil {
		d := p.CancelDeadline
		switch {
		case d.Date == nil && d.MinuteOfDay == nil:
			slot.CancelDeadlineDate = nil
			slot.CancelDeadlineMinuteOfDay = nil
		case d.Date != nil && d.MinuteOfDay != nil:
			date, err := calendar.ParseLocalDate(*d.Date)
			if err != nil {
				return nil, invalidField("cancelDeadlineDate", err.Error())
			}
			minute := *d.MinuteOfDay
			slot.CancelDeadlineDate = &date
			slot.CancelDeadlineMinuteOfDay = &minute
		default:
			return nil, invalidField("cancelDeadline", "cancel deadline date and minute must be set together")
		}
		changed = append(changed, "cancelDeadline")
	}
	if p.Notes != nil {
		slot.Notes = optionalString(*p.Notes)
		changed = append(changed, "notes")
	}
	return changed, nil
}

// CancelReservation: отмена записи администратором, без дедлайна.
func (s *AdminService) CancelReservation(ctx context.Context, id uuid.UUID) error {
	return s.reservations.CancelByAdmin(ctx, id)
}

// UnlockPin снимает блокировку PIN и требует сменить PIN при следующем входе.
// Приостановленный аккаунт снова становится активным, его сессии отзываются.
func (s *AdminService) UnlockPin(ctx context.Context, uid uuid.UUID) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "admin.unlock_pin")
	defer func() { finish(span, "admin.unlock_pin", logrus.Fields{"staff_uid": uid}, err) }()

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff := s.staff.WithTx(tx)
		current, err := staff.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}

		fields := map[string]any{
			"pin_retry_count":  0,
			"pin_locked_until": nil,
			"pin_must_change":  true,
		}
		reactivated := current.Status == model.StaffStatusSuspended
		if reactivated {
			fields["status"] = model.StaffStatusActive
			if _, err := s.sessions.WithTx(tx).RevokeAllForStaff(ctx, uid, now); err != nil {
				return err
			}
		}
		if err := staff.UpdateVersioned(ctx, uid, current.Version, fields); err != nil {
			return err
		}
		return s.events.WithTx(tx).Record(ctx, model.EventTypePinUnlocked, repository.EventRef{StaffUID: uid},
			map[string]any{"reactivated": reactivated})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Staff")
	}
	if errors.Is(err, repository.ErrStaleVersion) {
		return ErrRetryable
	}
	return storeErr(err)
}

// SetStaffStatus меняет статус учётки. Уход из active отзывает все сессии.
func (s *AdminService) SetStaffStatus(ctx context.Context, uid uuid.UUID, status model.StaffStatus) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "admin.set_staff_status")
	defer func() {
		finish(span, "admin.set_staff_status", logrus.Fields{"staff_uid": uid, "status": status}, err)
	}()

	switch status {
	case model.StaffStatusActive, model.StaffStatusSuspended, model.StaffStatusLeft:
	default:
		return invalidField("status", "status must be active, suspended or left")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staff := s.staff.WithTx(tx)
		current, err := staff.GetByUIDForUpdate(ctx, uid)
		if err != nil {
			return err
		}
		if current.Status == status {
			return nil
		}
		if status != model.StaffStatusActive {
			if _, err := s.sessions.WithTx(tx).RevokeAllForStaff(ctx, uid, now); err != nil {
				return err
			}
		}
		if err := staff.UpdateVersioned(ctx, uid, current.Version, map[string]any{"status": status}); err != nil {
			return err
		}
		return s.events.WithTx(tx).Record(ctx, model.EventTypeStaffStatusChanged, repository.EventRef{StaffUID: uid},
			map[string]any{"from": current.Status, "to": status})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Staff")
	}
	if errors.Is(err, repository.ErrStaleVersion) {
		return ErrRetryable
	}
	return storeErr(err)
}

// ProvisionStaff заводит сотрудника с PIN 0000 и обязательной сменой PIN.
// Неизвестное подразделение создаётся с кодом вместо имени.
func (s *AdminService) ProvisionStaff(ctx context.Context, in ProvisionInput) (*model.Staff, error) {
	var v validation
	in.StaffID = strings.TrimSpace(in.StaffID)
	if !staffIDRe.MatchString(in.StaffID) {
		v.add("staffId", "staffId must be 1-64 latin letters, digits, '-' or '_'")
	}
	if strings.TrimSpace(in.FamilyName) == "" {
		v.add("familyName", "familyName is required")
	}
	if strings.TrimSpace(in.GivenName) == "" {
		v.add("givenName", "givenName is required")
	}
	role := in.Role
	if role == "" {
		role = model.StaffRoleStaff
	}
	if role != model.StaffRoleStaff && role != model.StaffRoleAdmin {
		v.add("role", "role must be STAFF or ADMIN")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(InitialPin)
	if err != nil {
		return nil, err
	}

	now := s.now()
	staff := &model.Staff{
		StaffID:       in.StaffID,
		FamilyName:    strings.TrimSpace(in.FamilyName),
		GivenName:     strings.TrimSpace(in.GivenName),
		JobTitle:      strings.TrimSpace(in.JobTitle),
		DepartmentID:  optionalString(in.DepartmentID),
		PinHash:       digest,
		PinUpdatedAt:  now,
		PinVersion:    1,
		PinMustChange: true,
		Version:       1,
		Status:        model.StaffStatusActive,
		Role:          role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.DepartmentID != "" {
			departments := s.departments.WithTx(tx)
			if _, err := departments.GetByID(ctx, in.DepartmentID); errors.Is(err, repository.ErrNotFound) {
				if err := departments.Upsert(ctx, &model.Department{ID: in.DepartmentID, Name: in.DepartmentID, Active: true}); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		return s.staff.WithTx(tx).Create(ctx, staff)
	})
	if err != nil {
		if isConstraint(err, repository.ConstraintStaffID) {
			return nil, conflict(ReasonStaffIDTaken, "Staff ID already registered")
		}
		return nil, err
	}
	return staff, nil
}

// LinkSlotDepartment открывает слот подразделению (или меняет привязку).
func (s *AdminService) LinkSlotDepartment(ctx context.Context, slotID uuid.UUID, departmentID string, enabled bool, capacityOverride *int) error {
	if capacityOverride != nil && *capacityOverride < 0 {
		return invalidField("capacityOverride", "capacityOverride must not be negative")
	}
	if _, err := s.slots.GetByID(ctx, slotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Reservation slot")
		}
		return err
	}
	if _, err := s.departments.GetByID(ctx, departmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Department")
		}
		return err
	}
	return s.departments.UpsertSlotLink(ctx, &model.SlotDepartment{
		SlotID:           slotID,
		DepartmentID:     departmentID,
		Enabled:          enabled,
		CapacityOverride: capacityOverride,
	})
}

func (s *AdminService) UnlinkSlotDepartment(ctx context.Context, slotID uuid.UUID, departmentID string) error {
	return s.departments.DeleteSlotLink(ctx, slotID, departmentID)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
