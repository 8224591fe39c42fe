package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/staff-booking/internal/service"
)

const (
	StaffServiceName = "staffbooking.v1.StaffBooking"
	AdminServiceName = "staffbooking.v1.Admin"
)

// Методы без access-токена.
var publicMethods = map[string]bool{
	"/" + StaffServiceName + "/Login":    true,
	"/" + StaffServiceName + "/Refresh":  true,
	"/" + StaffServiceName + "/Logout":   true,
	"/" + StaffServiceName + "/Register": true,
}

// Server: gRPC-обёртка над сервисами записи.
type Server struct {
	auth         *service.AuthService
	profiles     *service.StaffService
	reservations *service.ReservationService
	admin        *service.AdminService
}

func NewServer(
	auth *service.AuthService,
	profiles *service.StaffService,
	reservations *service.ReservationService,
	admin *service.AdminService,
) *Server {
	return &Server{auth: auth, profiles: profiles, reservations: reservations, admin: admin}
}

// Register регистрирует оба сервиса на gRPC-сервере.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&staffServiceDesc, s)
	r.RegisterService(&adminServiceDesc, s)
}

type handlerFunc func(s *Server, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(serviceName, method string, h handlerFunc) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				out, err := h(srv.(*Server), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, call)
		},
	}
}

var staffServiceDesc = grpc.ServiceDesc{
	ServiceName: StaffServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(StaffServiceName, "Login", (*Server).login),
		unary(StaffServiceName, "Refresh", (*Server).refresh),
		unary(StaffServiceName, "Logout", (*Server).logout),
		unary(StaffServiceName, "Register", (*Server).register),
		unary(StaffServiceName, "GetProfile", (*Server).getProfile),
		unary(StaffServiceName, "UpdateProfile", (*Server).updateProfile),
		unary(StaffServiceName, "ChangePin", (*Server).changePin),
		unary(StaffServiceName, "ListReservationTypes", (*Server).listReservationTypes),
		unary(StaffServiceName, "ListSlots", (*Server).listSlots),
		unary(StaffServiceName, "CreateReservation", (*Server).createReservation),
		unary(StaffServiceName, "CancelReservation", (*Server).cancelReservation),
		unary(StaffServiceName, "FindReservationForPeriod", (*Server).findReservationForPeriod),
		unary(StaffServiceName, "ListMyReservations", (*Server).listMyReservations),
	},
	Metadata: "staffbooking/v1/staff_booking",
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(AdminServiceName, "CreateReservationType", (*Server).adminCreateReservationType),
		unary(AdminServiceName, "ListReservationTypes", (*Server).adminListReservationTypes),
		unary(AdminServiceName, "CreateDepartment", (*Server).adminCreateDepartment),
		unary(AdminServiceName, "CreateSlots", (*Server).adminCreateSlots),
		unary(AdminServiceName, "GenerateSlots", (*Server).adminGenerateSlots),
		unary(AdminServiceName, "UpdateSlot", (*Server).adminUpdateSlot),
		unary(AdminServiceName, "CancelReservation", (*Server).adminCancelReservation),
		unary(AdminServiceName, "UnlockPin", (*Server).adminUnlockPin),
		unary(AdminServiceName, "SetStaffStatus", (*Server).adminSetStaffStatus),
		unary(AdminServiceName, "ProvisionStaff", (*Server).adminProvisionStaff),
		unary(AdminServiceName, "LinkSlotDepartment", (*Server).adminLinkSlotDepartment),
		unary(AdminServiceName, "UnlinkSlotDepartment", (*Server).adminUnlinkSlotDepartment),
	},
	Metadata: "staffbooking/v1/admin",
}
