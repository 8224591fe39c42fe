package calendar

import (
	"time"

	"github.com/Leganyst/staff-booking/internal/model"
)

// IsBookable: слот опубликован и now внутри окна записи (границы включительно).
// Незаданная граница окна не ограничивает.
func IsBookable(slot *model.ReservationSlot, now time.Time) bool {
	if slot == nil || slot.Status != model.SlotStatusPublished {
		return false
	}
	if slot.BookingStart != nil && now.Before(*slot.BookingStart) {
		return false
	}
	if slot.BookingEnd != nil && now.After(*slot.BookingEnd) {
		return false
	}
	return true
}
