package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Leganyst/staff-booking/internal/calendar"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/telemetry"
)

var (
	pinRe     = regexp.MustCompile(`^[0-9]{4}$`)
	digitsRe  = regexp.MustCompile(`^[0-9]+$`)
	staffIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// RegisterInput: самостоятельная регистрация сотрудника.
type RegisterInput struct {
	StaffID        string
	FamilyName     string
	GivenName      string
	FamilyNameKana string
	GivenNameKana  string
	JobTitle       string
	DepartmentID   string
	Pin            string
}

// ProfileUpdate: частичное обновление профиля. nil: поле не меняется,
// пустая строка в необязательном поле сбрасывает его в NULL.
type ProfileUpdate struct {
	Version    int
	CurrentPin *string

	// Свободные поля.
	FamilyName     *string
	GivenName      *string
	FamilyNameKana *string
	GivenNameKana  *string

	// Чувствительные поля, требуют повторного ввода PIN.
	EmrPatientID *string
	DateOfBirth  *string
	SexCode      *string
	JobTitle     *string
	DepartmentID *string
}

func (u ProfileUpdate) touchesSensitive() bool {
	return u.EmrPatientID != nil || u.DateOfBirth != nil || u.SexCode != nil ||
		u.JobTitle != nil || u.DepartmentID != nil
}

// Profile: профиль с признаком допуска к записи.
type Profile struct {
	Staff    *model.Staff
	Eligible bool
	// Почему запись недоступна, если Eligible = false.
	EligibilityReason string
}

// StaffService: профиль сотрудника: чтение, правка с версией, смена PIN.
type StaffService struct {
	db          *gorm.DB
	staff       repository.StaffRepository
	departments repository.DepartmentRepository
	events      repository.EventRepository
	guard       *PinGuard
	hasher      Credentials
	now         Clock
}

func NewStaffService(
	db *gorm.DB,
	staff repository.StaffRepository,
	departments repository.DepartmentRepository,
	events repository.EventRepository,
	guard *PinGuard,
	hasher Credentials,
	now Clock,
) *StaffService {
	if now == nil {
		now = SystemClock
	}
	return &StaffService{
		db:          db,
		staff:       staff,
		departments: departments,
		events:      events,
		guard:       guard,
		hasher:      hasher,
		now:         now,
	}
}

// Register создаёт сотрудника с собственным PIN.
func (s *StaffService) Register(ctx context.Context, in RegisterInput) (*model.Staff, error) {
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
	if !pinRe.MatchString(in.Pin) {
		v.add("pin", "pin must be exactly 4 digits")
	}
	if in.DepartmentID != "" {
		if err := s.checkDepartment(ctx, in.DepartmentID); err != nil {
			if KindOf(err) != KindValidation {
				return nil, err
			}
			v.add("departmentId", err.(*Error).Message)
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Pin)
	if err != nil {
		return nil, err
	}

	now := s.now()
	staff := &model.Staff{
		StaffID:        in.StaffID,
		FamilyName:     strings.TrimSpace(in.FamilyName),
		GivenName:      strings.TrimSpace(in.GivenName),
		FamilyNameKana: optionalString(strings.TrimSpace(in.FamilyNameKana)),
		GivenNameKana:  optionalString(strings.TrimSpace(in.GivenNameKana)),
		JobTitle:       strings.TrimSpace(in.JobTitle),
		DepartmentID:   optionalString(in.DepartmentID),
		PinHash:        digest,
		PinUpdatedAt:   now,
		PinVersion:     1,
		Version:        1,
		Status:         model.StaffStatusActive,
		Role:           model.StaffRoleStaff,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if c, ok := repository.ConstraintOf(err); ok && c == repository.ConstraintStaffID {
			return nil, conflict(ReasonStaffIDTaken, "Staff ID already registered")
		}
		return nil, err
	}
	return staff, nil
}

// GetProfile возвращает профиль и признак допуска к записи.
func (s *StaffService) GetProfile(ctx context.Context, uid uuid.UUID) (*Profile, error) {
	staff, err := s.staff.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Staff")
		}
		return nil, err
	}

	p := &Profile{Staff: staff, Eligible: true}
	if err := bookingEligibility(staff); err != nil {
		p.Eligible = false
		p.EligibilityReason = err.(*Error).Message
	}
	return p, nil
}

// bookingEligibility: без смены PIN и заполненного профиля записываться нельзя.
func bookingEligibility(staff *model.Staff) error {
	if staff.PinMustChange {
		return ErrPinChangeRequired
	}
	if !staff.ProfileComplete() {
		return ErrProfileIncomplete
	}
	return nil
}

// UpdateProfile применяет изменения, если версия совпала.
// Чувствительные поля меняются только с верным текущим PIN.
func (s *StaffService) UpdateProfile(ctx context.Context, uid uuid.UUID, in ProfileUpdate) (staff *model.Staff, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "staff.update_profile")
	defer func() { finish(span, "staff.update_profile", logrus.Fields{"staff_uid": uid}, err) }()

	current, err := s.staff.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Staff")
		}
		return nil, err
	}
	if in.Version != current.Version {
		return nil, ErrVersionMismatch
	}

	if in.touchesSensitive() {
		if in.CurrentPin == nil || *in.CurrentPin == "" {
			return nil, ErrPinReauthRequired
		}
		ok, err := s.guard.Verify(ctx, current, *in.CurrentPin, s.now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPinMismatch
		}
	}

	fields, err := s.profileFields(ctx, current, in)
	if err != nil {
		return nil, err
	}
	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.staff.WithTx(tx).UpdateVersioned(ctx, uid, in.Version, fields); err != nil {
			return err
		}
		return s.events.WithTx(tx).Record(ctx, model.EventTypeProfileUpdated, repository.EventRef{StaffUID: uid},
			map[string]any{"fields": changed, "version": in.Version + 1})
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleVersion):
			return nil, ErrVersionMismatch
		case isConstraint(err, repository.ConstraintEmrPatientID):
			return nil, invalidField("emrPatientId", "emrPatientId is already registered")
		}
		return nil, err
	}

	return s.staff.GetByUID(ctx, uid)
}

// profileFields валидирует изменения и собирает колонки для UPDATE.
func (s *StaffService) profileFields(ctx context.Context, current *model.Staff, in ProfileUpdate) (map[string]any, error) {
	var v validation
	fields := map[string]any{}

	if in.FamilyName != nil {
		if name := strings.TrimSpace(*in.FamilyName); name == "" {
			v.add("familyName", "familyName must not be empty")
		} else {
			fields["family_name"] = name
		}
	}
	if in.GivenName != nil {
		if name := strings.TrimSpace(*in.GivenName); name == "" {
			v.add("givenName", "givenName must not be empty")
		} else {
			fields["given_name"] = name
		}
	}
	if in.FamilyNameKana != nil {
		fields["family_name_kana"] = optionalString(strings.TrimSpace(*in.FamilyNameKana))
	}
	if in.GivenNameKana != nil {
		fields["given_name_kana"] = optionalString(strings.TrimSpace(*in.GivenNameKana))
	}
	if in.JobTitle != nil {
		fields["job_title"] = strings.TrimSpace(*in.JobTitle)
	}

	if in.EmrPatientID != nil {
		emr := strings.TrimSpace(*in.EmrPatientID)
		switch {
		case emr == "":
			fields["emr_patient_id"] = nil
		case !digitsRe.MatchString(emr):
			v.add("emrPatientId", "emrPatientId must contain digits only")
		default:
			taken, err := s.staff.EmrPatientIDTaken(ctx, emr, current.UID)
			if err != nil {
				return nil, err
			}
			if taken {
				v.add("emrPatientId", "emrPatientId is already registered")
			} else {
				fields["emr_patient_id"] = emr
			}
		}
	}

	if in.DateOfBirth != nil {
		if *in.DateOfBirth == "" {
			fields["date_of_birth"] = nil
		} else if dob, err := calendar.ParseLocalDate(*in.DateOfBirth); err != nil {
			v.add("dateOfBirth", err.Error())
		} else if time.Time(dob).After(s.now()) {
			v.add("dateOfBirth", "dateOfBirth must not be in the future")
		} else {
			fields["date_of_birth"] = dob
		}
	}

	if in.SexCode != nil {
		switch *in.SexCode {
		case "":
			fields["sex_code"] = nil
		case "1", "2":
			fields["sex_code"] = *in.SexCode
		default:
			v.add("sexCode", "sexCode must be '1' or '2'")
		}
	}

	if in.DepartmentID != nil {
		if *in.DepartmentID == "" {
			fields["department_id"] = nil
		} else if err := s.checkDepartment(ctx, *in.DepartmentID); err != nil {
			if KindOf(err) != KindValidation {
				return nil, err
			}
			v.add("departmentId", err.(*Error).Message)
		} else {
			fields["department_id"] = *in.DepartmentID
		}
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return fields, nil
}

func (s *StaffService) checkDepartment(ctx context.Context, id string) error {
	d, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalidField("departmentId", "department not found")
		}
		return err
	}
	if !d.Active {
		return invalidField("departmentId", "department is not active")
	}
	return nil
}

// ChangePin меняет PIN по текущему PIN и снимает требование смены.
func (s *StaffService) ChangePin(ctx context.Context, uid uuid.UUID, currentPin, newPin string) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "staff.change_pin")
	defer func() { finish(span, "staff.change_pin", logrus.Fields{"staff_uid": uid}, err) }()

	if !pinRe.MatchString(newPin) {
		return invalidField("newPin", "newPin must be exactly 4 digits")
	}

	staff, err := s.staff.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Staff")
		}
		return err
	}

	ok, err := s.guard.Verify(ctx, staff, currentPin, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrPinMismatch
	}

	digest, err := s.hasher.Hash(newPin)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.staff.UpdateVersioned(ctx, uid, staff.Version, map[string]any{
		"pin_hash":         digest,
		"pin_updated_at":   now,
		"pin_version":      gorm.Expr("pin_version + 1"),
		"pin_must_change":  false,
		"pin_retry_count":  0,
		"pin_locked_until": nil,
	})
	if errors.Is(err, repository.ErrStaleVersion) {
		return ErrVersionMismatch
	}
	return err
}

func isConstraint(err error, want repository.Constraint) bool {
	c, ok := repository.ConstraintOf(err)
	return ok && c == want
}
