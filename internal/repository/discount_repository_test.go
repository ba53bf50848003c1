package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/cryptoshop/shopbot/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)
}

func discountRepo(db *fakeExecutor) *DiscountRepository {
	repo := NewDiscountRepository(db)
	repo.now = fixedNow
	return repo
}

func TestFindCode_Absent(t *testing.T) {
	repo := discountRepo(&fakeExecutor{getErr: sql.ErrNoRows})

	dc, err := repo.FindCode(context.Background(), "NOSUCHCODE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc != nil {
		t.Errorf("expected nil for unknown code, got %+v", dc)
	}
}

func TestFindCode_UpperCasesLookup(t *testing.T) {
	db := &fakeExecutor{getFn: func(dest interface{}) {
		*dest.(*model.DiscountCode) = model.DiscountCode{Code: "SAVE10", Percent: 10}
	}}
	repo := discountRepo(db)

	dc, err := repo.FindCode(context.Background(), "save10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc == nil || dc.Percent != 10 {
		t.Fatalf("unexpected result: %+v", dc)
	}
	if got := db.args[0][0]; got != "SAVE10" {
		t.Errorf("lookup arg = %v, want SAVE10", got)
	}
}

func TestFindCode_ExpiredYesterdayIsAbsent(t *testing.T) {
	expired := fixedNow().AddDate(0, 0, -1)
	db := &fakeExecutor{getFn: func(dest interface{}) {
		*dest.(*model.DiscountCode) = model.DiscountCode{Code: "OLD", Percent: 10, Expires: &expired}
	}}
	repo := discountRepo(db)

	dc, err := repo.FindCode(context.Background(), "OLD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc != nil {
		t.Errorf("code expired yesterday must be reported absent, got %+v", dc)
	}
}

func TestFindCode_ExpiringTodayIsValid(t *testing.T) {
	// Expiry at midnight today still counts as valid all day.
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	db := &fakeExecutor{getFn: func(dest interface{}) {
		*dest.(*model.DiscountCode) = model.DiscountCode{Code: "TODAY", Percent: 15, Expires: &today}
	}}
	repo := discountRepo(db)

	dc, err := repo.FindCode(context.Background(), "TODAY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc == nil || dc.Percent != 15 {
		t.Errorf("code expiring today must still be valid, got %+v", dc)
	}
}

func TestFindCode_NoExpiry(t *testing.T) {
	db := &fakeExecutor{getFn: func(dest interface{}) {
		*dest.(*model.DiscountCode) = model.DiscountCode{Code: "FOREVER", Percent: 5}
	}}
	repo := discountRepo(db)

	dc, err := repo.FindCode(context.Background(), "FOREVER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc == nil {
		t.Error("code without expiry must be valid")
	}
}

func TestUpsert_UpperCasesCode(t *testing.T) {
	db := &fakeExecutor{}
	repo := discountRepo(db)

	expires := fixedNow().AddDate(0, 1, 0)
	if err := repo.Upsert(context.Background(), "summer20", 20, &expires); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.execCount != 1 {
		t.Fatalf("expected 1 exec, got %d", db.execCount)
	}
	if got := db.args[0][0]; got != "SUMMER20" {
		t.Errorf("stored code = %v, want SUMMER20", got)
	}
	if got := db.args[0][1]; got != 20 {
		t.Errorf("stored percent = %v, want 20", got)
	}
}

func TestBeforeDay(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b time.Time
		want bool
	}{
		{"previous day", time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), true},
		{"same day ignores time", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC), false},
		{"next day", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), false},
		{"month boundary", time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), true},
		{"year boundary", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), true},
	} {
		if got := beforeDay(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: beforeDay = %v, want %v", tc.name, got, tc.want)
		}
	}
}
