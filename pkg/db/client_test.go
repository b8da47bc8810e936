package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Code string `gorm:"uniqueIndex:ux_test_models_code"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db, time.Second)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Code: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Code: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestIsUniqueViolationOnSQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Code: "dup"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	err := db.Create(&testModel{Code: "dup"}).Error
	if !IsUniqueViolation(err, "ux_test_models_code") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestIsUniqueViolationMatchesPostgresConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_enrollments_learner_course"})
	if !IsUniqueViolation(err, "ux_enrollments_learner_course") {
		t.Fatalf("expected constraint match")
	}
	if IsUniqueViolation(err, "ux_payments_transaction_id") {
		t.Fatalf("different constraint should not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violations are not unique violations")
	}
}

func TestStoreErrorClassification(t *testing.T) {
	if StoreError(nil, "op") != nil {
		t.Fatalf("nil stays nil")
	}
	typed := pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "exists")
	if got := StoreError(typed, "op"); pkgerrors.CodeOf(got) != pkgerrors.CodeAlreadyEnrolled {
		t.Fatalf("typed errors must pass through, got %v", got)
	}
	if got := StoreError(context.DeadlineExceeded, "load"); pkgerrors.CodeOf(got) != pkgerrors.CodeStoreUnavailable {
		t.Fatalf("timeouts must surface as store unavailable, got %v", got)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t), 0)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
