package service

import (
	"github.com/sirupsen/logrus"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leganyst/staff-booking/internal/logs"
)

// finish закрывает спан и пишет итог операции в лог.
func finish(span trace.Span, op string, fields logrus.Fields, err error) {
	defer span.End()

	entry := logs.Logger.WithFields(fields).WithField("op", op)
	if err == nil {
		entry.Debug("ok")
		return
	}

	kind := KindOf(err)
	entry = entry.WithField("error_kind", kind.String())
	switch kind {
	case KindInternal:
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		entry.WithError(err).Error("operation failed")
	case KindSecurityIncident:
		span.SetStatus(otelcodes.Error, kind.String())
		entry.Warn(err.Error())
	default:
		entry.Info(err.Error())
	}
}
