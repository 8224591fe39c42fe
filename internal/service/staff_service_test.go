package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	staff, err := h.profiles.Register(ctx, RegisterInput{StaffID: "N100", FamilyName: "Sato", GivenName: "Hanako", Pin: "2580"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if staff.Version != 1 || staff.PinMustChange {
		t.Fatalf("unexpected new staff: %+v", staff)
	}
	if _, err := h.auth.Login(ctx, "N100", "2580", ClientMeta{}); err != nil {
		t.Fatalf("login with own pin: %v", err)
	}

	_, err = h.profiles.Register(ctx, RegisterInput{StaffID: "N100", FamilyName: "Sato", GivenName: "Jiro", Pin: "1111"})
	if KindOf(err) != KindConflict || ReasonOf(err) != ReasonStaffIDTaken {
		t.Fatalf("duplicate: err = %v", err)
	}

	_, err = h.profiles.Register(ctx, RegisterInput{StaffID: "N101", Pin: "12a4"})
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != KindValidation {
		t.Fatalf("invalid input: err = %v", err)
	}
	for _, field := range []string{"familyName", "givenName", "pin"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing field error %q in %v", field, verr.Fields)
		}
	}
}

func TestUpdateProfile_VersionCheck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	updated, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:    staff.Version,
		FamilyName: strPtr("Suzuki"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != staff.Version+1 || updated.FamilyName != "Suzuki" {
		t.Fatalf("updated = version %d, name %s", updated.Version, updated.FamilyName)
	}

	_, err = h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:    staff.Version,
		FamilyName: strPtr("Tanaka"),
	})
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale version: err = %v", err)
	}
	if got := h.reloadStaff(t, staff.UID).FamilyName; got != "Suzuki" {
		t.Fatalf("stale update applied: %s", got)
	}
}

func TestUpdateProfile_VersionOnlyPayloadBumps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	updated, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{Version: staff.Version})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if updated.Version != staff.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, staff.Version+1)
	}

	_, err = h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{Version: staff.Version})
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("replay with stale version: err = %v", err)
	}
}

func TestUpdateProfile_SensitiveFieldsNeedPin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")

	_, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version: staff.Version,
		SexCode: strPtr("2"),
	})
	if !errors.Is(err, ErrPinReauthRequired) {
		t.Fatalf("no pin: err = %v", err)
	}

	_, err = h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:    staff.Version,
		CurrentPin: strPtr("9999"),
		SexCode:    strPtr("2"),
	})
	if !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("wrong pin: err = %v", err)
	}
	if got := h.reloadStaff(t, staff.UID).PinRetryCount; got != 1 {
		t.Fatalf("retry count = %d, want 1", got)
	}

	updated, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:    staff.Version,
		CurrentPin: strPtr("1234"),
		SexCode:    strPtr("2"),
	})
	if err != nil {
		t.Fatalf("with pin: %v", err)
	}
	if updated.SexCode == nil || *updated.SexCode != "2" || updated.PinRetryCount != 0 {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestUpdateProfile_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.newEligibleStaff(t, "S001", "1001")
	other := h.newEligibleStaff(t, "S002", "1002")

	_, err := h.profiles.UpdateProfile(ctx, staff.UID, ProfileUpdate{
		Version:      staff.Version,
		CurrentPin:   strPtr("1234"),
		EmrPatientID: strPtr("12-34"),
		SexCode:      strPtr("3"),
		DateOfBirth:  strPtr("1990/04/01"),
		GivenName:    strPtr("  "),
	})
	var verr *Error
	if !errors.As(err, &verr) || verr.Kind != KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	for _, field := range []string{"emrPatientId", "sexCode", "dateOfBirth", "givenName"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing field error %q in %v", field, verr.Fields)
		}
	}

	_, err = h.profiles.UpdateProfile(ctx, other.UID, ProfileUpdate{
		Version:      other.Version,
		CurrentPin:   strPtr("1234"),
		EmrPatientID: strPtr("1001"),
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("taken emr: err = %v", err)
	}

	_, err = h.profiles.UpdateProfile(ctx, other.UID, ProfileUpdate{
		Version:      other.Version,
		CurrentPin:   strPtr("1234"),
		DepartmentID: strPtr("NOPE"),
	})
	if KindOf(err) != KindValidation {
		t.Fatalf("unknown department: err = %v", err)
	}
}

func TestGetProfile_Eligibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fresh := h.provision(t, "S001", "")
	p, err := h.profiles.GetProfile(ctx, fresh.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Eligible || p.EligibilityReason != ErrPinChangeRequired.Message {
		t.Fatalf("fresh profile = %+v", p)
	}

	ready := h.newEligibleStaff(t, "S002", "1002")
	p, err = h.profiles.GetProfile(ctx, ready.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.Eligible {
		t.Fatalf("complete profile not eligible: %s", p.EligibilityReason)
	}

	if _, err := h.profiles.GetProfile(ctx, uuid.New()); KindOf(err) != KindNotFound {
		t.Fatalf("unknown: err = %v", err)
	}
}

func TestChangePin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.provision(t, "S001", "")

	if err := h.profiles.ChangePin(ctx, staff.UID, InitialPin, "12345"); KindOf(err) != KindValidation {
		t.Fatalf("bad format: err = %v", err)
	}
	if err := h.profiles.ChangePin(ctx, staff.UID, "1111", "2222"); !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("wrong current: err = %v", err)
	}
	if err := h.profiles.ChangePin(ctx, staff.UID, InitialPin, "2222"); err != nil {
		t.Fatalf("change: %v", err)
	}

	got := h.reloadStaff(t, staff.UID)
	if got.PinMustChange || got.PinVersion != 2 || got.PinRetryCount != 0 || got.Version != 2 {
		t.Fatalf("after change: mustChange=%v pinVersion=%d retry=%d version=%d",
			got.PinMustChange, got.PinVersion, got.PinRetryCount, got.Version)
	}
	if _, err := h.auth.Login(ctx, "S001", "2222", ClientMeta{}); err != nil {
		t.Fatalf("login with new pin: %v", err)
	}
	if _, err := h.auth.Login(ctx, "S001", InitialPin, ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old pin still works: err = %v", err)
	}
}
