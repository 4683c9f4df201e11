package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nkoutso/festpass-admin/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreatePayment_Success_PersistsAndSetsFields(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{})

	start := time.Now().UTC().Add(-time.Minute)
	p, err := CreatePayment(context.Background(), db, "ord_1", "u1", "day_pass", 500, "INR", nil, "")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.ID == "" || p.OrderID != "ord_1" || p.UserID != "u1" || p.Status != domain.PaymentPending {
		t.Fatalf("unexpected Payment fields: %+v", p)
	}
	if p.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", p.CreatedAt)
	}

	// round-trip
	var got domain.Payment
	if err := db.First(&got, "order_id = ?", "ord_1").Error; err != nil {
		t.Fatalf("load created payment: %v", err)
	}
	if got.PassType != "day_pass" || got.Amount != 500 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreatePayment_DuplicateOrderID_Fails(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{})
	if _, err := CreatePayment(context.Background(), db, "ord_1", "u1", "day_pass", 500, "INR", nil, ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreatePayment(context.Background(), db, "ord_1", "u2", "day_pass", 500, "INR", nil, ""); err == nil {
		t.Fatalf("expected unique violation on duplicate order id")
	}
}

func TestFindPaymentByOrderID_ChecksPrimaryThenOnspot(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{}, &domain.OnspotPayment{})
	ctx := context.Background()

	// Only the on-the-spot table has the order.
	op := domain.OnspotPayment{
		Payment: domain.Payment{
			ID: "id-onspot", OrderID: "ord_spot", UserID: "u2",
			PassType: "day_pass", Amount: 300, Status: domain.PaymentPending,
		},
		RecordedBy: "admin1",
	}
	if err := db.Create(&op).Error; err != nil {
		t.Fatalf("seed onspot: %v", err)
	}
	got, err := FindPaymentByOrderID(ctx, db, "ord_spot")
	if err != nil {
		t.Fatalf("FindPaymentByOrderID: %v", err)
	}
	if got.ID != "id-onspot" || got.UserID != "u2" {
		t.Fatalf("expected onspot fallback row, got %+v", got)
	}

	// When the primary table also has the order id, it wins.
	if _, err := CreatePayment(ctx, db, "ord_spot2", "u3", "day_pass", 500, "INR", nil, ""); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
	got, err = FindPaymentByOrderID(ctx, db, "ord_spot2")
	if err != nil || got.UserID != "u3" {
		t.Fatalf("expected primary row, got %+v err=%v", got, err)
	}

	// Missing everywhere.
	if _, err := FindPaymentByOrderID(ctx, db, "ord_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkPaymentSuccess_IdempotentSet(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{}, &domain.OnspotPayment{})
	ctx := context.Background()
	if _, err := CreatePayment(ctx, db, "ord_1", "u1", "day_pass", 500, "INR", nil, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := MarkPaymentSuccess(ctx, db, "ord_1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	var got domain.Payment
	if err := db.First(&got, "order_id = ?", "ord_1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.PaymentSuccess {
		t.Fatalf("status not updated: %q", got.Status)
	}

	// Second call is a no-op, not an error.
	if err := MarkPaymentSuccess(ctx, db, "ord_1"); err != nil {
		t.Fatalf("second mark should be idempotent: %v", err)
	}
}

func TestUpdatePaymentStatus_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{})
	err := UpdatePaymentStatus(context.Background(), db, "nope", domain.PaymentFailed)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPaymentsPage_OrderAndBounds(t *testing.T) {
	db := newRepoDB(t, &domain.Payment{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := CreatePayment(ctx, db, fmt.Sprintf("ord_%d", i), "u1", "day_pass", 100, "INR", nil, ""); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	n, err := CountPayments(ctx, db, "u1")
	if err != nil || n != 5 {
		t.Fatalf("CountPayments = %d, %v", n, err)
	}

	page, err := ListPaymentsPage(ctx, db, "u1", 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListPaymentsPage = %d rows, %v", len(page), err)
	}
	page2, err := ListPaymentsPage(ctx, db, "u1", 4, 2)
	if err != nil || len(page2) != 1 {
		t.Fatalf("last page = %d rows, %v", len(page2), err)
	}
}
