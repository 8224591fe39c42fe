package calendar

import (
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/staff-booking/internal/model"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func mustDate(t *testing.T, s string) datatypes.Date {
	t.Helper()
	d, err := ParseLocalDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

//
// Ключ финансового года
//

func TestPeriodKey_FiscalYearBoundary(t *testing.T) {
	cases := map[string]string{
		"2025-03-31": "FY2024",
		"2025-04-01": "FY2025",
		"2025-12-31": "FY2025",
		"2026-01-01": "FY2025",
		"2024-02-29": "FY2023",
	}
	for in, want := range cases {
		if got := PeriodKey(time.Time(mustDate(t, in))); got != want {
			t.Errorf("PeriodKey(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestCurrentPeriodKey_UsesOrgZone(t *testing.T) {
	// 2025-03-31 16:00 UTC = 2025-04-01 01:00 в Токио.
	now := mustTime(t, 2025, 3, 31, 16, 0)
	if got := CurrentPeriodKey(now, tokyo(t)); got != "FY2025" {
		t.Fatalf("got %s, want FY2025", got)
	}
	if got := CurrentPeriodKey(now, time.UTC); got != "FY2024" {
		t.Fatalf("got %s, want FY2024", got)
	}
}

//
// Доступность слота
//

func TestIsBookable(t *testing.T) {
	now := mustTime(t, 2025, 5, 1, 12, 0)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name string
		slot model.ReservationSlot
		want bool
	}{
		{"draft", model.ReservationSlot{Status: model.SlotStatusDraft}, false},
		{"closed", model.ReservationSlot{Status: model.SlotStatusClosed}, false},
		{"published no window", model.ReservationSlot{Status: model.SlotStatusPublished}, true},
		{"inside window", model.ReservationSlot{Status: model.SlotStatusPublished, BookingStart: &before, BookingEnd: &after}, true},
		{"not started", model.ReservationSlot{Status: model.SlotStatusPublished, BookingStart: &after}, false},
		{"ended", model.ReservationSlot{Status: model.SlotStatusPublished, BookingEnd: &before}, false},
		{"start boundary", model.ReservationSlot{Status: model.SlotStatusPublished, BookingStart: &now}, true},
		{"end boundary", model.ReservationSlot{Status: model.SlotStatusPublished, BookingEnd: &now}, true},
	}
	for _, tc := range cases {
		slot := tc.slot
		if got := IsBookable(&slot, now); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
	if IsBookable(nil, now) {
		t.Errorf("nil slot must not be bookable")
	}
}

//
// Дедлайн отмены
//

func TestCancelDeadline_LocalMidnightPlusMinutes(t *testing.T) {
	date := mustDate(t, "2025-05-09")
	minute := 17*60 + 30
	slot := &model.ReservationSlot{CancelDeadlineDate: &date, CancelDeadlineMinuteOfDay: &minute}

	deadline, ok := CancelDeadline(slot, tokyo(t))
	if !ok {
		t.Fatalf("expected deadline")
	}
	// 2025-05-09 17:30 JST = 08:30 UTC
	want := mustTime(t, 2025, 5, 9, 8, 30)
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline.UTC(), want)
	}

	if CancellationClosed(slot, tokyo(t), want) {
		t.Fatalf("exactly at deadline cancellation is still allowed")
	}
	if !CancellationClosed(slot, tokyo(t), want.Add(time.Second)) {
		t.Fatalf("after deadline cancellation must be closed")
	}
}

func TestCancelDeadline_Absent(t *testing.T) {
	slot := &model.ReservationSlot{}
	if _, ok := CancelDeadline(slot, time.UTC); ok {
		t.Fatalf("expected no deadline")
	}
	if CancellationClosed(slot, time.UTC, time.Now()) {
		t.Fatalf("no deadline means always open")
	}
}

func TestCancelDeadline_LongPast(t *testing.T) {
	date := mustDate(t, "2000-01-01")
	minute := 0
	slot := &model.ReservationSlot{CancelDeadlineDate: &date, CancelDeadlineMinuteOfDay: &minute}
	if !CancellationClosed(slot, tokyo(t), time.Now()) {
		t.Fatalf("deadline in 2000 must be closed")
	}
}

//
// Локальные даты
//

func TestParseLocalDate(t *testing.T) {
	for _, bad := range []string{"", "2025-5-1", "2025/05/01", "2025-13-01", "2025-02-30", "x2025-05-01"} {
		if _, err := ParseLocalDate(bad); err == nil {
			t.Errorf("ParseLocalDate(%q): expected error", bad)
		}
	}
	d := mustDate(t, "2025-05-01")
	if FormatLocalDate(d) != "2025-05-01" {
		t.Fatalf("round trip: %s", FormatLocalDate(d))
	}
}

func TestValidMinuteOfDay(t *testing.T) {
	if !ValidMinuteOfDay(0) || !ValidMinuteOfDay(1439) {
		t.Fatalf("bounds must be valid")
	}
	if ValidMinuteOfDay(-1) || ValidMinuteOfDay(1440) {
		t.Fatalf("out of range must be invalid")
	}
}

func TestSlotRange(t *testing.T) {
	slot := &model.ReservationSlot{
		ServiceDate:      mustDate(t, "2025-05-10"),
		StartMinuteOfDay: 9 * 60,
		DurationMinutes:  30,
	}
	tr := SlotRange(slot, tokyo(t))
	if !tr.Start.Equal(mustTime(t, 2025, 5, 10, 0, 0)) || tr.End.Sub(tr.Start) != 30*time.Minute {
		t.Fatalf("unexpected range %v", tr)
	}
	if got := LocalDateOf(tr.Start, tokyo(t)); FormatLocalDate(got) != "2025-05-10" {
		t.Fatalf("local date = %s", FormatLocalDate(got))
	}
}

//
// Разбиение на слоты и пересечения
//

func TestSplitToTimeSlots_Basic(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 12, 0)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	if !slots[3].End.Equal(tr.End) {
		t.Fatalf("last slot must end at range end, got %v", slots[3].End)
	}
}

func TestSplitToTimeSlots_TailDropped(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 10)}

	slots, err := SplitToTimeSlots(tr, 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestSplitToTimeSlots_AlignMinutes(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 7), End: mustTime(t, 2025, 1, 1, 11, 0)}

	slots, err := SplitToTimeSlots(tr, 15*time.Minute, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 3 || !slots[0].Start.Equal(mustTime(t, 2025, 1, 1, 10, 15)) {
		t.Fatalf("unexpected slots %v", slots)
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	if _, err := SplitToTimeSlots(tr, 0, 0); err != ErrSlotDuration {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

func TestNewTimeRange(t *testing.T) {
	if _, err := NewTimeRange(mustTime(t, 2025, 1, 1, 11, 0), mustTime(t, 2025, 1, 1, 10, 0)); err == nil {
		t.Fatalf("expected error for reversed range")
	}
	if _, err := NewTimeRange(time.Time{}, mustTime(t, 2025, 1, 1, 10, 0)); err == nil {
		t.Fatalf("expected error for zero start")
	}
}

func TestHasOverlap(t *testing.T) {
	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 9, 0), End: mustTime(t, 2025, 1, 1, 10, 0)},
		{Start: mustTime(t, 2025, 1, 1, 11, 0), End: mustTime(t, 2025, 1, 1, 12, 0)},
	}

	touching := TimeRange{Start: mustTime(t, 2025, 1, 1, 10, 0), End: mustTime(t, 2025, 1, 1, 11, 0)}
	if ok, _ := HasOverlap(touching, existing); ok {
		t.Fatalf("touching ranges must not overlap")
	}

	crossing := TimeRange{Start: mustTime(t, 2025, 1, 1, 9, 30), End: mustTime(t, 2025, 1, 1, 11, 30)}
	ok, conflicts := HasOverlap(crossing, existing)
	if !ok || len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %v", conflicts)
	}
}

//
// Развёртка дней
//

func TestExpandDays_Weekdays(t *testing.T) {
	rule := DayRule{
		From:     time.Time(mustDate(t, "2025-05-05")), // понедельник
		Until:    time.Time(mustDate(t, "2025-05-18")),
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		Exceptions: map[time.Time]struct{}{
			time.Time(mustDate(t, "2025-05-07")): {},
		},
	}

	days, err := ExpandDays(rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, d := range days {
		got = append(got, d.Format(LocalDateLayout))
	}
	want := "2025-05-05,2025-05-12,2025-05-14"
	if strings.Join(got, ",") != want {
		t.Fatalf("got %v, want %s", got, want)
	}
}

func TestExpandDays_TooLong(t *testing.T) {
	rule := DayRule{From: time.Time(mustDate(t, "2025-01-01")), Until: time.Time(mustDate(t, "2027-01-01"))}
	if _, err := ExpandDays(rule); err != ErrDayRuleTooLong {
		t.Fatalf("expected ErrDayRuleTooLong, got %v", err)
	}
}

func TestFormatSlotLabel(t *testing.T) {
	tr := TimeRange{Start: mustTime(t, 2025, 5, 10, 0, 0), End: mustTime(t, 2025, 5, 10, 0, 30)}
	got := FormatSlotLabel(tr, tokyo(t))
	if got != "2025/05/10(土) 09:00〜09:30" {
		t.Fatalf("unexpected label %q", got)
	}
}

//
// Пагинация
//

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	p := Paginate(items, 2, 2)
	if len(p.Items) != 2 || p.Items[0] != 3 || !p.HasNext || !p.HasPrev || p.Total != 5 {
		t.Fatalf("unexpected page %+v", p)
	}
}

func TestPaginate_LastPageAndDefaults(t *testing.T) {
	items := []int{1, 2, 3}
	p := Paginate(items, 0, 0)
	if p.Page != 1 || p.PageSize != 20 || len(p.Items) != 3 || p.HasNext {
		t.Fatalf("unexpected page %+v", p)
	}
	p = Paginate(items, 5, 2)
	if len(p.Items) != 0 || p.HasNext {
		t.Fatalf("past the end must be empty, got %+v", p)
	}
}

func TestPaginate_ClampsPageSize(t *testing.T) {
	items := make([]int, 250)
	p := Paginate(items, 1, 1000)
	if p.PageSize != MaxPageSize || len(p.Items) != MaxPageSize || !p.HasNext {
		t.Fatalf("unexpected page size %d, items %d", p.PageSize, len(p.Items))
	}
}
