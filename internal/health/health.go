package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"
)

var ErrNoDB = errors.New("db not configured")

// NewHandler: HTTP-роутер с /healthz и /readyz, обёрнутый в otelhttp.
func NewHandler(db *gorm.DB, serviceName string) http.Handler {
	r := mux.NewRouter()
	RegisterRoutesWithDB(r, db)
	return otelhttp.NewHandler(r, serviceName)
}

// RegisterRoutes: базовый liveness.
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", liveness).Methods(http.MethodGet)
}

// RegisterRoutesWithDB: liveness + readiness (пинг БД).
func RegisterRoutesWithDB(r *mux.Router, db *gorm.DB) {
	RegisterRoutes(r)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := Ping(req.Context(), db); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
}

// Ping проверяет соединение с БД с коротким таймаутом.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return ErrNoDB
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
