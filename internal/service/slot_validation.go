package service

import (
	"github.com/Leganyst/staff-booking/internal/calendar"
	"github.com/Leganyst/staff-booking/internal/model"
)

// validateSlotModel проверяет инварианты слота перед записью в БД.
// Возвращает первую найденную проблему.
func validateSlotModel(slot *model.ReservationSlot) (bool, string) {
	if !slot.Status.Valid() {
		return false, "invalid slot status"
	}
	if !calendar.ValidMinuteOfDay(slot.StartMinuteOfDay) {
		return false, "startMinuteOfDay must be between 0 and 1439"
	}
	if slot.DurationMinutes <= 0 {
		return false, "durationMinutes must be positive"
	}
	if slot.Capacity < 0 {
		return false, "capacity must not be negative"
	}
	if slot.BookedCount < 0 || slot.BookedCount > slot.Capacity {
		return false, "bookedCount must be between 0 and capacity"
	}
	if slot.BookingStart != nil && slot.BookingEnd != nil && slot.BookingEnd.Before(*slot.BookingStart) {
		return false, "bookingEnd must not be before bookingStart"
	}
	if (slot.CancelDeadlineDate == nil) != (slot.CancelDeadlineMinuteOfDay == nil) {
		return false, "cancel deadline date and minute must be set together"
	}
	if slot.CancelDeadlineMinuteOfDay != nil && !calendar.ValidMinuteOfDay(*slot.CancelDeadlineMinuteOfDay) {
		return false, "cancelDeadlineMinuteOfDay must be between 0 and 1439"
	}
	return true, ""
}
