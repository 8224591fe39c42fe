package grpcapi

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/service"
)

func (s *Server) login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := s.auth.Login(ctx, str(req, "staffId"), str(req, "pin"), clientMeta(ctx))
	if err != nil {
		return nil, err
	}
	return reply(encodeTokens(pair))
}

func (s *Server) refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := s.auth.Refresh(ctx, str(req, "refreshToken"), clientMeta(ctx))
	if err != nil {
		return nil, err
	}
	return reply(encodeTokens(pair))
}

func (s *Server) logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.auth.Logout(ctx, str(req, "refreshToken")); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	staff, err := s.profiles.Register(ctx, service.RegisterInput{
		StaffID:        str(req, "staffId"),
		FamilyName:     str(req, "familyName"),
		GivenName:      str(req, "givenName"),
		FamilyNameKana: str(req, "familyNameKana"),
		GivenNameKana:  str(req, "givenNameKana"),
		JobTitle:       str(req, "jobTitle"),
		DepartmentID:   str(req, "departmentId"),
		Pin:            str(req, "pin"),
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"staff": encodeStaff(staff)})
}

func (s *Server) getProfile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{
		"staff":             encodeStaff(p.Staff),
		"eligible":          p.Eligible,
		"eligibilityReason": p.EligibilityReason,
	})
}

func (s *Server) updateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	version, err := optInt(req, "version")
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, badRequest("version", "is required")
	}

	in := service.ProfileUpdate{Version: *version}
	targets := map[string]**string{
		"currentPin":     &in.CurrentPin,
		"familyName":     &in.FamilyName,
		"givenName":      &in.GivenName,
		"familyNameKana": &in.FamilyNameKana,
		"givenNameKana":  &in.GivenNameKana,
		"emrPatientId":   &in.EmrPatientID,
		"dateOfBirth":    &in.DateOfBirth,
		"sexCode":        &in.SexCode,
		"jobTitle":       &in.JobTitle,
		"departmentId":   &in.DepartmentID,
	}
	for key, dst := range targets {
		v, err := optStr(req, key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	staff, err := s.profiles.UpdateProfile(ctx, uid, in)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"staff": encodeStaff(staff)})
}

func (s *Server) changePin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.ChangePin(ctx, uid, str(req, "currentPin"), str(req, "newPin")); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) listReservationTypes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.reservations.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"reservationTypes": encodeReservationTypes(list)})
}

func (s *Server) listSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	typeID, err := reqUUID(req, "reservationTypeId")
	if err != nil {
		return nil, err
	}
	page, err := intOr(req, "page", 1)
	if err != nil {
		return nil, err
	}
	pageSize, err := intOr(req, "pageSize", 0)
	if err != nil {
		return nil, err
	}

	q := service.SlotQuery{
		ReservationTypeID: typeID,
		DateFrom:          str(req, "dateFrom"),
		DateTo:            str(req, "dateTo"),
		DepartmentID:      str(req, "departmentId"),
		Page:              page,
		PageSize:          pageSize,
	}
	if st := str(req, "status"); st != "" {
		status := model.SlotStatus(st)
		q.Status = &status
	}

	result, err := s.reservations.ListSlots(ctx, q)
	if err != nil {
		return nil, err
	}

	items := make([]any, 0, len(result.Items))
	for i := range result.Items {
		v := &result.Items[i]
		item := encodeSlot(&v.Slot)
		item["remaining"] = v.Remaining
		item["bookable"] = v.Bookable
		item["label"] = v.Label
		items = append(items, item)
	}
	return reply(map[string]any{
		"slots":    items,
		"page":     result.Page,
		"pageSize": result.PageSize,
		"total":    result.Total,
		"hasNext":  result.HasNext,
		"hasPrev":  result.HasPrev,
	})
}

func (s *Server) createReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slotID, err := reqUUID(req, "slotId")
	if err != nil {
		return nil, err
	}
	res, err := s.reservations.Create(ctx, uid, slotID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"reservation": encodeReservation(res)})
}

func (s *Server) cancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := reqUUID(req, "reservationId")
	if err != nil {
		return nil, err
	}
	if err := s.reservations.CancelForStaff(ctx, uid, id); err != nil {
		return nil, err
	}
	return reply(map[string]any{})
}

func (s *Server) findReservationForPeriod(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	typeID, err := reqUUID(req, "reservationTypeId")
	if err != nil {
		return nil, err
	}
	res, err := s.reservations.FindForPeriod(ctx, uid, typeID, str(req, "periodKey"))
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			// отсутствие записи: нормальный ответ
			return reply(map[string]any{"reservation": nil})
		}
		return nil, err
	}
	return reply(map[string]any{"reservation": encodeReservation(res)})
}

func (s *Server) listMyReservations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.reservations.ListForStaff(ctx, uid)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(list))
	for i := range list {
		items = append(items, encodeReservation(&list[i]))
	}
	return reply(map[string]any{"reservations": items})
}
