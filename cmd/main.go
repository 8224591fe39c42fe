package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Leganyst/staff-booking/internal/config"
	"github.com/Leganyst/staff-booking/internal/db"
	"github.com/Leganyst/staff-booking/internal/health"
	"github.com/Leganyst/staff-booking/internal/logs"
	"github.com/Leganyst/staff-booking/internal/model"
	"github.com/Leganyst/staff-booking/internal/repository"
	"github.com/Leganyst/staff-booking/internal/security"
	"github.com/Leganyst/staff-booking/internal/service"
	"github.com/Leganyst/staff-booking/internal/telemetry"
	"github.com/Leganyst/staff-booking/internal/transport/grpcapi"
)

func main() {
	// 1. Конфиг и логгер.
	cfg := config.MustLoad()
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	log := logs.Logger

	shutdownTracing := telemetry.Setup(cfg.Telemetry.ServiceName)

	loc, err := cfg.OrgLocation()
	if err != nil {
		log.Fatalf("org timezone: %v", err)
	}
	pepper, err := cfg.PepperBytes()
	if err != nil {
		log.Fatalf("pin pepper: %v", err)
	}

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Репозитории (реализации на GORM).
	staffRepo := repository.NewGormStaffRepository(gormDB)
	slotRepo := repository.NewGormSlotRepository(gormDB)
	reservationRepo := repository.NewGormReservationRepository(gormDB)
	typeRepo := repository.NewGormReservationTypeRepository(gormDB)
	deptRepo := repository.NewGormDepartmentRepository(gormDB)
	sessionRepo := repository.NewGormSessionRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)

	// 5. Сервисы.
	now := service.Clock(time.Now)
	hasher := security.NewHasher(pepper, security.DefaultArgon2idParams)
	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	guard := service.NewPinGuard(gormDB, staffRepo, eventRepo, hasher, cfg.Auth.MaxPinAttempts)

	reservationSvc := service.NewReservationService(gormDB, slotRepo, reservationRepo, typeRepo, staffRepo, eventRepo, loc, now)
	authSvc := service.NewAuthService(gormDB, staffRepo, sessionRepo, eventRepo, guard, tokens, hasher, now)
	staffSvc := service.NewStaffService(gormDB, staffRepo, deptRepo, eventRepo, guard, hasher, now)
	adminSvc := service.NewAdminService(gormDB, slotRepo, typeRepo, deptRepo, staffRepo, sessionRepo, eventRepo, reservationSvc, hasher, loc, now)

	// 6. gRPC и HTTP (health).
	api := grpcapi.NewServer(authSvc, staffSvc, reservationSvc, adminSvc)
	grpcServer, healthSrv := grpcapi.NewGRPCServer(api, authSvc)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Server.GRPCAddr, err)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           health.NewHandler(gormDB, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 7. Запускаем оба сервера до сигнала.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("gRPC server listening on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("health server listening on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 8. Грейсфул-шатдаун.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
