package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/avelari/workbase-backend/internal/db"
	"github.com/avelari/workbase-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("development")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a migrated test database. With TEST_POSTGRES_DSN set it runs
// against real Postgres; otherwise it falls back to a private in-memory
// sqlite database per call, so tests never share state. The sqlite DSN
// must be uniquely named and shared-cache: a bare ":memory:" gives every
// pooled connection its own empty database. The pool is then capped at
// one connection so concurrent transactions serialize the way Postgres
// row locks serialize them, and gorm drops the FOR UPDATE clause sqlite
// cannot express.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var (
		gdb *gorm.DB
		err error
	)
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		gdb, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
		gdb, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err == nil {
			sqlDB, dbErr := gdb.DB()
			if dbErr != nil {
				tb.Fatalf("failed to access test db pool: %v", dbErr)
			}
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return gdb
}
