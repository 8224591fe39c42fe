package grpcapi

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/staff-booking/internal/service"
)

func TestToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"capacity", service.ErrCapacityReached, codes.ResourceExhausted},
		{"duplicate", service.ErrDuplicateForSlot, codes.AlreadyExists},
		{"fiscal year", service.ErrAlreadyReservedFY, codes.AlreadyExists},
		{"deadline", service.ErrDeadlinePassed, codes.FailedPrecondition},
		{"version", service.ErrVersionMismatch, codes.Aborted},
		{"retryable", service.ErrRetryable, codes.Unavailable},
		{"locked", service.ErrPinLocked, codes.ResourceExhausted},
		{"inactive", service.ErrAccountInactive, codes.PermissionDenied},
		{"reauth", service.ErrPinReauthRequired, codes.FailedPrecondition},
		{"credentials", service.ErrInvalidCredentials, codes.Unauthenticated},
		{"reuse", service.ErrRefreshReuse, codes.Unauthenticated},
		{"wrapped", fmt.Errorf("create: %w", service.ErrCapacityReached), codes.ResourceExhausted},
		{"internal", errors.New("disk on fire"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus(tc.err)); got != tc.want {
			t.Errorf("%s: code = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestToStatusHidesInternals(t *testing.T) {
	st := status.Convert(toStatus(errors.New("pq: connection refused to 10.0.0.3")))
	if st.Message() != "internal error" {
		t.Fatalf("message = %q", st.Message())
	}

	st = status.Convert(toStatus(service.ErrRefreshReuse))
	if st.Message() != "Refresh token revoked" {
		t.Fatalf("reuse message = %q", st.Message())
	}
}

func TestToStatusPassesStatus(t *testing.T) {
	in := status.Error(codes.InvalidArgument, "slotId: must be a uuid")
	if got := toStatus(in); got != in {
		t.Fatalf("status rewritten: %v", got)
	}
	if toStatus(nil) != nil {
		t.Fatalf("nil error mapped")
	}
}
