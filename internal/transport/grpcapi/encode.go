package grpcapi

import (
	"github.com/Leganyst/staff-booking/internal/calendar"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/service"
)

func encodeTokens(p *service.TokenPair) map[string]any {
	return map[string]any{
		"accessToken":      p.AccessToken,
		"accessExpiresAt":  formatTime(&p.AccessExpiresAt),
		"refreshToken":     p.RefreshToken,
		"refreshExpiresAt": formatTime(&p.RefreshExpiresAt),
		"tokenType":        "Bearer",
		"staff":            encodeStaff(p.Staff),
	}
}

func encodeStaff(s *model.Staff) map[string]any {
	var dob any
	if s.DateOfBirth != nil {
		dob = calendar.FormatLocalDate(*s.DateOfBirth)
	}
	return map[string]any{
		"uid":            s.UID.String(),
		"staffId":        s.StaffID,
		"familyName":     s.FamilyName,
		"givenName":      s.GivenName,
		"familyNameKana": derefString(s.FamilyNameKana),
		"givenNameKana":  derefString(s.GivenNameKana),
		"jobTitle":       s.JobTitle,
		"departmentId":   derefString(s.DepartmentID),
		"emrPatientId":   derefString(s.EmrPatientID),
		"dateOfBirth":    dob,
		"sexCode":        derefString(s.SexCode),
		"status":         string(s.Status),
		"role":           string(s.Role),
		"pinMustChange":  s.PinMustChange,
		"version":        s.Version,
		"lastLoginAt":    formatTime(s.LastLoginAt),
	}
}

func encodeSlot(s *model.ReservationSlot) map[string]any {
	var deadlineDate any
	if s.CancelDeadlineDate != nil {
		deadlineDate = calendar.FormatLocalDate(*s.CancelDeadlineDate)
	}
	return map[string]any{
		"id":                        s.ID.String(),
		"reservationTypeId":         s.ReservationTypeID.String(),
		"serviceDate":               calendar.FormatLocalDate(s.ServiceDate),
		"startMinuteOfDay":          s.StartMinuteOfDay,
		"durationMinutes":           s.DurationMinutes,
		"capacity":                  s.Capacity,
		"bookedCount":               s.BookedCount,
		"status":                    string(s.Status),
		"bookingStart":              formatTime(s.BookingStart),
		"bookingEnd":                formatTime(s.BookingEnd),
		"cancelDeadlineDate":        deadlineDate,
		"cancelDeadlineMinuteOfDay": derefInt(s.CancelDeadlineMinuteOfDay),
		"notes":                     derefString(s.Notes),
	}
}

func encodeSlots(slots []model.ReservationSlot) []any {
	out := make([]any, 0, len(slots))
	for i := range slots {
		out = append(out, encodeSlot(&slots[i]))
	}
	return out
}

func encodeReservation(r *model.Reservation) map[string]any {
	return map[string]any{
		"id":                r.ID.String(),
		"slotId":            r.SlotID.String(),
		"staffUid":          r.StaffUID.String(),
		"staffId":           r.StaffID,
		"reservationTypeId": r.ReservationTypeID.String(),
		"serviceDate":       calendar.FormatLocalDate(r.ServiceDate),
		"startMinuteOfDay":  r.StartMinuteOfDay,
		"durationMinutes":   r.DurationMinutes,
		"periodKey":         r.PeriodKey,
		"canceledAt":        formatTime(r.CanceledAt),
		"createdAt":         formatTime(&r.CreatedAt),
	}
}

func encodeReservationType(t *model.ReservationType) map[string]any {
	return map[string]any{
		"id":          t.ID.String(),
		"name":        t.Name,
		"description": t.Description,
		"active":      t.Active,
	}
}

func encodeReservationTypes(list []model.ReservationType) []any {
	out := make([]any, 0, len(list))
	for i := range list {
		out = append(out, encodeReservationType(&list[i]))
	}
	return out
}
