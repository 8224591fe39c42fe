package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/staff-booking/internal/config"
)

func TestNewGormDB_SQLiteSingleConnection(t *testing.T) {
	cfg := &config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "core.db"),
	}
	gdb, err := NewGormDB(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("max open conns = %d, want 1", got)
	}
	if gdb.Dialector.Name() != "sqlite" {
		t.Fatalf("dialector = %s", gdb.Dialector.Name())
	}
}

func TestNewGormDB_UnknownDriver(t *testing.T) {
	if _, err := NewGormDB(&config.DBConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLogrusLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)

	gl := NewLogrusLogger(l, 10*time.Millisecond).LogMode(gormlogger.Warn)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found must not be logged, got %q", buf.String())
	}

	gl.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	if !strings.Contains(buf.String(), "gorm query failed") {
		t.Fatalf("expected error log, got %q", buf.String())
	}

	buf.Reset()
	gl.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	if !strings.Contains(buf.String(), "slow query") {
		t.Fatalf("expected slow query log, got %q", buf.String())
	}
}
