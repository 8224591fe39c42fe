package grpcapi

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сообщения: google.protobuf.Struct, поля в camelCase.
// Отсутствующее поле и null различаются: null сбрасывает необязательное поле.

func badRequest(key, msg string) error {
	return status.Errorf(codes.InvalidArgument, "%s: %s", key, msg)
}

func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[key]
	return v, ok
}

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}

func str(req *structpb.Struct, key string) string {
	v, _ := field(req, key)
	return v.GetStringValue()
}

// optStr: nil: поля нет, "": null или пустая строка.
func optStr(req *structpb.Struct, key string) (*string, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	if isNull(v) {
		empty := ""
		return &empty, nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, badRequest(key, "must be a string")
	}
	return &s.StringValue, nil
}

func optInt(req *structpb.Struct, key string) (*int, error) {
	v, ok := field(req, key)
	if !ok || isNull(v) {
		return nil, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return nil, badRequest(key, "must be an integer")
	}
	i := int(n.NumberValue)
	return &i, nil
}

func intOr(req *structpb.Struct, key string, def int) (int, error) {
	i, err := optInt(req, key)
	if err != nil || i == nil {
		return def, err
	}
	return *i, nil
}

func boolOr(req *structpb.Struct, key string, def bool) (bool, error) {
	v, ok := field(req, key)
	if !ok || isNull(v) {
		return def, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return def, badRequest(key, "must be a boolean")
	}
	return b.BoolValue, nil
}

func reqUUID(req *structpb.Struct, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(str(req, key))
	if err != nil {
		return uuid.Nil, badRequest(key, "must be a UUID")
	}
	return id, nil
}

// optTime разбирает RFC 3339. cleared = true, если передан null.
func optTime(req *structpb.Struct, key string) (t *time.Time, cleared bool, err error) {
	v, ok := field(req, key)
	if !ok {
		return nil, false, nil
	}
	if isNull(v) {
		return nil, true, nil
	}
	parsed, err := time.Parse(time.RFC3339, v.GetStringValue())
	if err != nil {
		return nil, false, badRequest(key, "must be an RFC 3339 timestamp")
	}
	return &parsed, false, nil
}

func structList(req *structpb.Struct, key string) ([]*structpb.Struct, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, badRequest(key, "must be a list")
	}
	out := make([]*structpb.Struct, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, badRequest(fmt.Sprintf("%s[%d]", key, i), "must be an object")
		}
		out = append(out, s)
	}
	return out, nil
}

func stringList(req *structpb.Struct, key string) ([]string, error) {
	v, ok := field(req, key)
	if !ok || isNull(v) {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, badRequest(key, "must be a list")
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, badRequest(key, "must contain strings")
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func derefInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
