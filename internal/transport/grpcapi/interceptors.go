package grpcapi

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/staff-booking/internal/logs"
	"github.com/Leganyst/staff-booking/internal/service"
	"github.com/Leganyst/staff-booking/internal/telemetry"
)

type principalKey struct{}

func principalFrom(ctx context.Context) *service.Principal {
	p, _ := ctx.Value(principalKey{}).(*service.Principal)
	return p
}

// caller: UID сотрудника, положенный AuthInterceptor.
func caller(ctx context.Context) (uuid.UUID, error) {
	p := principalFrom(ctx)
	if p == nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	return p.UID, nil
}

// Authenticator: проверка access-токена.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*service.Principal, error)
}

// AuthInterceptor требует Bearer-токен везде, кроме publicMethods.
// Методы Admin доступны только роли ADMIN.
func AuthInterceptor(auth Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] || !strings.HasPrefix(info.FullMethod, "/staffbooking.") {
			return handler(ctx, req)
		}

		token, ok := bearerToken(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		p, err := auth.Authenticate(ctx, token)
		if err != nil {
			return nil, toStatus(err)
		}
		if strings.HasPrefix(info.FullMethod, "/"+AdminServiceName+"/") && !p.IsAdmin() {
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}
		return handler(context.WithValue(ctx, principalKey{}, p), req)
	}
}

func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found && token != "" {
			return token, true
		}
	}
	return "", false
}

// LoggingInterceptor пишет строку на каждый вызов и открывает серверный спан.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := telemetry.Tracer().Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		entry := logs.Logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     code.String(),
			"duration": time.Since(start).String(),
		})
		switch code {
		case codes.OK:
			entry.Debug("grpc call")
		case codes.Internal, codes.Unknown:
			span.SetStatus(otelcodes.Error, code.String())
			entry.WithError(err).Error("grpc call failed")
		default:
			entry.Info("grpc call rejected")
		}
		return resp, err
	}
}

func clientMeta(ctx context.Context) service.ClientMeta {
	var meta service.ClientMeta
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			meta.UserAgent = ua[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		meta.IPAddress = p.Addr.String()
	}
	return meta
}
