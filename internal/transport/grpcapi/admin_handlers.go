package grpcapi

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/service"
)

func (s *Server) adminCreateReservationType(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	active, err := boolOr(req, "active", true)
	if err != nil {
		return nil, err
	}
	t, err := s.admin.CreateReservationType(ctx, str(req, "name"), str(req, "description"), active)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"reservationType": encodeReservationType(t)})
}

func (s *Server) adminListReservationTypes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	onlyActive, err := boolOr(req, "onlyActive", false)
	if err != nil {
		return nil, err
	}
	list, err := s.admin.ListReservationTypes(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"reservationTypes": encodeReservationTypes(list)})
}

func (s *Server) adminCreateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	active, err := boolOr(req, "active", true)
	if err != nil {
		return nil, err
	}
	d, err := s.admin.CreateDepartment(ctx, str(req, "id"), str(req, "name"), active)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"department": map[string]any{"id": d.ID, "name": d.Name, "active": d.Active}})
}

func decodeSlotInput(req *structpb.Struct) (service.SlotInput, error) {
	var in service.SlotInput
	var err error

	if in.ReservationTypeID, err = reqUUID(req, "reservationTypeId"); err != nil {
		return in, err
	}
	in.ServiceDate = str(req, "serviceDate")
	if in.StartMinuteOfDay, err = intOr(req, "startMinuteOfDay", 0); err != nil {
		return in, err
	}
	if in.DurationMinutes, err = intOr(req, "durationMinutes", 0); err != nil {
		return in, err
	}
	if in.Capacity, err = intOr(req, "capacity", 0); err != nil {
		return in, err
	}
	in.Status = model.SlotStatus(str(req, "status"))
	if in.BookingStart, _, err = optTime(req, "bookingStart"); err != nil {
		return in, err
	}
	if in.BookingEnd, _, err = optTime(req, "bookingEnd"); err != nil {
		return in, err
	}
	if in.CancelDeadlineDate, err = optStr(req, "cancelDeadlineDate"); err != nil {
		return in, err
	}
	if in.CancelDeadlineDate != nil && *in.CancelDeadlineDate == "" {
		in.CancelDeadlineDate = nil
	}
	if in.CancelDeadlineMinuteOfDay, err = optInt(req, "cancelDeadlineMinuteOfDay"); err != nil {
		return in, err
	}
	if in.Notes, err = optStr(req, "notes"); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) adminCreateSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	items, err := structList(req, "slots")
	if err != nil {
		return nil, err
	}
	inputs := make([]service.SlotInput, 0, len(items))
	for i, item := range items {
		in, err := decodeSlotInput(item)
		if err != nil {
			return nil, fmt.Errorf("slots[%d]: %w", i, err)
		}
		inputs = append(inputs, in)
	}

	slots, err := s.admin.CreateSlots(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"slots": encodeSlots(slots)})
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday, "WED": time.Wednesday,
	"THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

func (s *Server) adminGenerateSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	typeID, err := reqUUID(req, "reservationTypeId")
	if err != nil {
		return nil, err
	}
	in := service.GenerateSlotsInput{
		ReservationTypeID: typeID,
		FromDate:          str(req, "fromDate"),
		UntilDate:         str(req, "untilDate"),
		Status:            model.SlotStatus(str(req, "status")),
	}

	days, err := stringList(req, "weekdays")
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		w, ok := weekdayNames[d]
		if !ok {
			return nil, badRequest("weekdays", "unknown weekday "+d)
		}
		in.Weekdays = append(in.Weekdays, w)
	}
	if in.ExceptDates, err = stringList(req, "exceptDates"); err != nil {
		return nil, err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"windowStartMinute", &in.WindowStartMinute},
		{"windowEndMinute", &in.WindowEndMinute},
		{"durationMinutes", &in.DurationMinutes},
		{"alignMinutes", &in.AlignMinutes},
		{"capacity", &in.Capacity},
		{"cancelDaysBefore", &in.CancelDaysBefore},
	}
	for _, f := range ints {
		if *f.dst, err = intOr(req, f.key, 0); err != nil {
			return nil, err
		}
	}
	if in.CancelMinuteOfDay, err = optInt(req, "cancelMinuteOfDay"); err != nil {
		return nil, err
	}
	if in.BookingStart, _, err = optTime(req, "bookingStart"); err != nil {
		return nil, err
	}
	if in.BookingEnd, _, err = optTime(req, "bookingEnd"); err != nil {
		return nil, err
	}

	slots, err := s.admin.GenerateSlots(ctx, in)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"slots": encodeSlots(slots)})
}

func (s *Server) adminUpdateSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := reqUUID(req, "slotId")
	if err != nil {
		return nil, err
	}

	var p service.SlotPatch
	if p.Capacity, err = optInt(req, "capacity"); err != nil {
		return nil, err
	}
	if st := str(req, "status"); st != "" {
		status := model.SlotStatus(st)
		p.Status = &status
	}
	if p.BookingStart, p.ClearBookingStart, err = optTime(req, "bookingStart"); err != nil {
		return nil, err
	}
	if p.BookingEnd, p.ClearBookingEnd, err = optTime(req, "bookingEnd"); err != nil {
		return nil, err
	}

	_, hasDate := field(req, "cancelDeadlineDate")
	_, hasMinute := field(req, "cancelDeadlineMinuteOfDay")
	if hasDate || hasMinute {
		d := &service.CancelDeadlinePatch{}
		if d.Date, err = optStr(req, "cancelDeadlineDate"); err != nil {
			return nil, err
		}
		if d.Date != nil && *d.Date == "" {
			d.Date = nil
		}
		if d.MinuteOfDay, err = optInt(req, "cancelDeadlineMinuteOfDay"); err != nil {
			return nil, err
		}
		p.CancelDeadline = d
	}
	if p.Notes, err = optStr(req, "notes"); err != nil {
		return nil, err
	}

	slot, err := s.admin.UpdateSlot(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"slot": encodeSlot(slot)})
}

func (s *Server) adminCancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := reqUUID(req, "reservationId")
	if err != nil {
		return nil, err
	}
	if err := s.admin.CancelReservation(ctx, id); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) adminUnlockPin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := reqUUID(req, "staffUid")
	if err != nil {
		return nil, err
	}
	if err := s.admin.UnlockPin(ctx, uid); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) adminSetStaffStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := reqUUID(req, "staffUid")
	if err != nil {
		return nil, err
	}
	if err := s.admin.SetStaffStatus(ctx, uid, model.StaffStatus(str(req, "status"))); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) adminProvisionStaff(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	staff, err := s.admin.ProvisionStaff(ctx, service.ProvisionInput{
		StaffID:      str(req, "staffId"),
		FamilyName:   str(req, "familyName"),
		GivenName:    str(req, "givenName"),
		JobTitle:     str(req, "jobTitle"),
		DepartmentID: str(req, "departmentId"),
		Role:         model.StaffRole(str(req, "role")),
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"staff": encodeStaff(staff)})
}

func (s *Server) adminLinkSlotDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	slotID, err := reqUUID(req, "slotId")
	if err != nil {
		return nil, err
	}
	enabled, err := boolOr(req, "enabled", true)
	if err != nil {
		return nil, err
	}
	override, err := optInt(req, "capacityOverride")
	if err != nil {
		return nil, err
	}
	if err := s.admin.LinkSlotDepartment(ctx, slotID, str(req, "departmentId"), enabled, override); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) adminUnlinkSlotDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	slotID, err := reqUUID(req, "slotId")
	if err != nil {
		return nil, err
	}
	if err := s.admin.UnlinkSlotDepartment(ctx, slotID, str(req, "departmentId")); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}
