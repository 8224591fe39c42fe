package calendar

import (
	"time"

	"github.com/Leganyst/staff-booking/internal/model"
)

// CancelDeadline: крайний момент отмены записи на слот.
// ok = false, если дедлайн не задан (пара полей пустая).
func CancelDeadline(slot *model.ReservationSlot, loc *time.Location) (deadline time.Time, ok bool) {
	if slot.CancelDeadlineDate == nil || slot.CancelDeadlineMinuteOfDay == nil {
		return time.Time{}, false
	}
	return AtMinute(*slot.CancelDeadlineDate, *slot.CancelDeadlineMinuteOfDay, loc), true
}

// CancellationClosed: отмена запрещена, если now строго позже дедлайна.
func CancellationClosed(slot *model.ReservationSlot, loc *time.Location, now time.Time) bool {
	deadline, ok := CancelDeadline(slot, loc)
	if !ok {
		return false
	}
	return now.After(deadline)
}

// SlotRange: интервал приёма слота в абсолютном времени.
func SlotRange(slot *model.ReservationSlot, loc *time.Location) TimeRange {
	start := AtMinute(slot.ServiceDate, slot.StartMinuteOfDay, loc)
	return TimeRange{Start: start, End: start.Add(time.Duration(slot.DurationMinutes) * time.Minute)}
}
