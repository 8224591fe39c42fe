package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/security"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

type harness struct {
	db    *gorm.DB
	clock *testClock
	loc   *time.Location

	staffRepo    *repository.GormStaffRepository
	slotRepo     *repository.GormSlotRepository
	resRepo      *repository.GormReservationRepository
	sessionRepo  *repository.GormSessionRepository
	eventRepo    *repository.GormEventRepository
	departments  *repository.GormDepartmentRepository
	reservations *ReservationService
	auth         *AuthService
	profiles     *StaffService
	admin        *AdminService
	tokens       *security.TokenManager
}

var cheapArgon = security.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "svc.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2025-05-01 09:00 JST
	clock := &testClock{now: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	now := Clock(clock.Now)

	h := &harness{
		db:          db,
		clock:       clock,
		loc:         loc,
		staffRepo:   repository.NewGormStaffRepository(db),
		slotRepo:    repository.NewGormSlotRepository(db),
		resRepo:     repository.NewGormReservationRepository(db),
		sessionRepo: repository.NewGormSessionRepository(db),
		eventRepo:   repository.NewGormEventRepository(db),
		departments: repository.NewGormDepartmentRepository(db),
		tokens:      security.NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour),
	}
	types := repository.NewGormReservationTypeRepository(db)
	hasher := security.NewHasher([]byte("pepper"), cheapArgon)
	guard := NewPinGuard(db, h.staffRepo, h.eventRepo, hasher, 5)

	h.reservations = NewReservationService(db, h.slotRepo, h.resRepo, types, h.staffRepo, h.eventRepo, loc, now)
	h.auth = NewAuthService(db, h.staffRepo, h.sessionRepo, h.eventRepo, guard, h.tokens, hasher, now)
	h.profiles = NewStaffService(db, h.staffRepo, h.departments, h.eventRepo, guard, hasher, now)
	h.admin = NewAdminService(db, h.slotRepo, types, h.departments, h.staffRepo, h.sessionRepo, h.eventRepo, h.reservations, hasher, loc, now)
	return h
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func (h *harness) newType(t *testing.T, active bool) *model.ReservationType {
	t.Helper()
	rt, err := h.admin.CreateReservationType(context.Background(), "Vaccination", "annual", active)
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	return rt
}

// newSlot создаёт опубликованный слот 09:00 на указанную дату.
func (h *harness) newSlot(t *testing.T, rt *model.ReservationType, date string, capacity int, mutate func(*SlotInput)) *model.ReservationSlot {
	t.Helper()
	in := SlotInput{
		ReservationTypeID: rt.ID,
		ServiceDate:       date,
		StartMinuteOfDay:  540,
		DurationMinutes:   30,
		Capacity:          capacity,
		Status:            model.SlotStatusPublished,
	}
	if mutate != nil {
		mutate(&in)
	}
	slots, err := h.admin.CreateSlots(context.Background(), []SlotInput{in})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return &slots[0]
}

// newEligibleStaff: заведён администратором, PIN сменён на 1234, профиль заполнен.
func (h *harness) newEligibleStaff(t *testing.T, staffID, emr string) *model.Staff {
	t.Helper()
	ctx := context.Background()

	staff := h.provision(t, staffID, "")
	if err := h.profiles.ChangePin(ctx, staff.UID, InitialPin, "1234"); err != nil {
		t.Fatalf("change pin: %v", err)
	}
	updated, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:      2,
		CurrentPin:   strPtr("1234"),
		EmrPatientID: strPtr(emr),
		DateOfBirth:  strPtr("1990-04-01"),
		SexCode:      strPtr("1"),
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	return updated
}

func (h *harness) provision(t *testing.T, staffID, department string) *model.Staff {
	t.Helper()
	staff, err := h.admin.ProvisionStaff(context.Background(), ProvisionInput{
		StaffID:      staffID,
		FamilyName:   "Yamada",
		GivenName:    "Taro",
		DepartmentID: department,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", staffID, err)
	}
	return staff
}

func (h *harness) reloadSlot(t *testing.T, slot *model.ReservationSlot) *model.ReservationSlot {
	t.Helper()
	got, err := h.slotRepo.GetByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	return got
}

func (h *harness) reloadStaff(t *testing.T, uid uuid.UUID) *model.Staff {
	t.Helper()
	staff, err := h.staffRepo.GetByUID(context.Background(), uid)
	if err != nil {
		t.Fatalf("reload staff: %v", err)
	}
	return staff
}

func hasEvent(t *testing.T, db *gorm.DB, eventType model.EventType) bool {
	t.Helper()
	var count int64
	if err := db.Model(&model.Event{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count > 0
}
