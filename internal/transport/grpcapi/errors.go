package grpcapi

import (
	"errors"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/Leganyst/staff-booking/internal/service"
)

const errorDomain = "staffbooking"

// toStatus переводит доменные исходы в коды gRPC. Внутренние ошибки
// наружу не раскрываются.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var e *service.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal error")
	}

	code := codeOf(e)
	msg := e.Message
	if e.Kind == service.KindSecurityIncident {
		// клиенту инцидент выглядит как отозванный токен
		msg = "Refresh token revoked"
	}

	st := status.New(code, msg)
	details := []protoadapt.MessageV1{
		&errdetails.ErrorInfo{
			Domain:   errorDomain,
			Reason:   reasonOf(e),
			Metadata: map[string]string{"kind": e.Kind.String()},
		},
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		br := &errdetails.BadRequest{}
		for _, k := range keys {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       k,
				Description: e.Fields[k],
			})
		}
		details = append(details, br)
	}

	withDetails, derr := st.WithDetails(details...)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

func codeOf(e *service.Error) codes.Code {
	switch e.Kind {
	case service.KindNotFound:
		return codes.NotFound
	case service.KindPreconditionRequired:
		return codes.FailedPrecondition
	case service.KindForbidden:
		return codes.PermissionDenied
	case service.KindValidation:
		return codes.InvalidArgument
	case service.KindUnauthorized, service.KindSecurityIncident:
		return codes.Unauthenticated
	case service.KindLocked:
		return codes.ResourceExhausted
	case service.KindConflict:
		switch e.Reason {
		case service.ReasonCapacity:
			return codes.ResourceExhausted
		case service.ReasonDeadline:
			return codes.FailedPrecondition
		case service.ReasonVersion:
			return codes.Aborted
		case service.ReasonRetryableStore:
			return codes.Unavailable
		}
		return codes.AlreadyExists
	}
	return codes.Internal
}

// reasonOf: машиночитаемая причина для ErrorInfo, например CONFLICT_CAPACITY.
func reasonOf(e *service.Error) string {
	reason := e.Kind.String()
	if e.Reason != "" {
		reason += "_" + e.Reason
	}
	return strings.ToUpper(reason)
}
