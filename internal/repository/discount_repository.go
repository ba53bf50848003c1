package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryptoshop/shopbot/internal/model"
)

// DiscountRepository handles admin-issued discount codes
type DiscountRepository struct {
	db DBExecutor

	// now is swapped in tests to pin the expiry boundary
	now func() time.Time
}

// NewDiscountRepository creates a new discount code repository
func NewDiscountRepository(db DBExecutor) *DiscountRepository {
	return &DiscountRepository{db: db, now: time.Now}
}

// Upsert stores a discount code, replacing any previous definition.
// Codes are upper-cased before storage.
func (r *DiscountRepository) Upsert(ctx context.Context, code string, percent int, expires *time.Time) error {
	query := `
		INSERT INTO discount_codes (code, percent, expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET percent = $2, expires = $3
	`

	_, err := r.db.ExecContext(ctx, query, strings.ToUpper(code), percent, expires)
	if err != nil {
		return fmt.Errorf("failed to upsert discount code: %w", err)
	}

	return nil
}

// FindCode looks a code up case-insensitively. Codes whose expiry date is
// strictly before today are reported as absent; a code expiring today is
// still valid. Expired rows are never deleted here.
func (r *DiscountRepository) FindCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	query := `SELECT code, percent, expires FROM discount_codes WHERE code = $1`

	var dc model.DiscountCode
	err := r.db.GetContext(ctx, &dc, query, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}

	if dc.Expires != nil && beforeDay(*dc.Expires, r.now()) {
		return nil, nil
	}

	return &dc, nil
}

// beforeDay reports whether a falls on an earlier calendar day than b
func beforeDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
