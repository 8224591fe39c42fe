package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Leganyst/staff-booking/internal/model"
)

func TestLogin_IssuesTokensAndRecordsLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	pair, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}
	if !pair.AccessExpiresAt.Equal(h.clock.Now().Add(15 * time.Minute)) {
		t.Errorf("access expiry = %v", pair.AccessExpiresAt)
	}

	p, err := h.auth.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UID != staff.UID || p.StaffID != "S001" || p.IsAdmin() {
		t.Fatalf("principal = %+v", p)
	}

	reloaded := h.reloadStaff(t, staff.UID)
	if reloaded.LastLoginAt == nil {
		t.Fatalf("last login not recorded")
	}
	if reloaded.Version != staff.Version {
		t.Fatalf("login must not bump version: %d -> %d", staff.Version, reloaded.Version)
	}

	sessions, err := h.sessionRepo.ListActive(ctx, staff.UID, h.clock.Now())
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions = %v, err = %v", sessions, err)
	}
	if sessions[0].TokenHash == pair.RefreshToken {
		t.Fatalf("refresh token stored in clear text")
	}
}

func TestLogin_UnknownStaffAndWrongPin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.newEligibleStaff(t, "S001", "1001")

	if _, err := h.auth.Login(ctx, "nobody", "1234", ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown staff: err = %v", err)
	}
	if _, err := h.auth.Login(ctx, "S001", "9999", ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong pin: err = %v", err)
	}
}

func TestLogin_PinLockoutAndUnlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	for i := 1; i <= 4; i++ {
		if _, err := h.auth.Login(ctx, "S001", "0000", ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if _, err := h.auth.Login(ctx, "S001", "0000", ClientMeta{}); !errors.Is(err, ErrPinLocked) {
		t.Fatalf("attempt 5: err = %v, want ErrPinLocked", err)
	}
	// верный PIN не помогает, пока блокировка не снята
	if _, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{}); !errors.Is(err, ErrPinLocked) {
		t.Fatalf("correct pin while locked: err = %v", err)
	}
	h.clock.Set(h.clock.Now().Add(30 * 24 * time.Hour))
	if _, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{}); !errors.Is(err, ErrPinLocked) {
		t.Fatalf("lock must not expire by itself: err = %v", err)
	}
	if !hasEvent(t, h.db, model.EventTypePinLocked) {
		t.Fatalf("expected pin_locked event")
	}

	if err := h.admin.UnlockPin(ctx, staff.UID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	pair, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{})
	if err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
	if !pair.Staff.PinMustChange {
		t.Fatalf("unlock must require pin change")
	}
	if pair.Staff.PinRetryCount != 0 {
		t.Fatalf("retry count = %d", pair.Staff.PinRetryCount)
	}
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	first, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := h.auth.Refresh(ctx, first.RefreshToken, ClientMeta{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}

	_, err = h.auth.Refresh(ctx, first.RefreshToken, ClientMeta{})
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("reuse: err = %v, want ErrRefreshReuse", err)
	}
	if KindOf(err) != KindSecurityIncident {
		t.Fatalf("kind = %v", KindOf(err))
	}

	// после инцидента отозваны все сессии, включая свежую
	if _, err := h.auth.Refresh(ctx, second.RefreshToken, ClientMeta{}); err == nil {
		t.Fatalf("rotated token must be revoked after reuse")
	}
	sessions, err := h.sessionRepo.ListActive(ctx, staff.UID, h.clock.Now())
	if err != nil || len(sessions) != 0 {
		t.Fatalf("active sessions = %d, err = %v", len(sessions), err)
	}

	if got := h.reloadStaff(t, staff.UID).Status; got != model.StaffStatusSuspended {
		t.Fatalf("status = %s, want suspended", got)
	}
	if _, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{}); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("login after incident: err = %v", err)
	}
	if _, err := h.auth.Authenticate(ctx, second.AccessToken); KindOf(err) != KindUnauthorized {
		t.Fatalf("access token of suspended staff: err = %v", err)
	}
	if !hasEvent(t, h.db, model.EventTypeRefreshReuseDetected) {
		t.Fatalf("expected refresh_reuse_detected event")
	}

	// разблокировка администратором возвращает доступ
	if err := h.admin.UnlockPin(ctx, staff.UID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{}); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
}

func TestRefresh_ExpiredAndGarbage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.newEligibleStaff(t, "S001", "1001")

	pair, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := h.auth.Refresh(ctx, "not-a-jwt", ClientMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("garbage: err = %v", err)
	}
	if _, err := h.auth.Refresh(ctx, pair.AccessToken, ClientMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("access token as refresh: err = %v", err)
	}

	h.clock.Set(h.clock.Now().Add(25 * time.Hour))
	if _, err := h.auth.Refresh(ctx, pair.RefreshToken, ClientMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expired: err = %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	pair, err := h.auth.Login(ctx, "S001", "1234", ClientMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := h.auth.Logout(ctx, pair.RefreshToken); err != nil {
			t.Fatalf("logout #%d: %v", i+1, err)
		}
	}
	sessions, err := h.sessionRepo.ListActive(ctx, staff.UID, h.clock.Now())
	if err != nil || len(sessions) != 0 {
		t.Fatalf("active sessions = %d, err = %v", len(sessions), err)
	}
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	h := newHarness(t)
	if _, err := h.auth.Authenticate(context.Background(), "x.y.z"); KindOf(err) != KindUnauthorized {
		t.Fatalf("err = %v", err)
	}
}
