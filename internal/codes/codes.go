// Package codes resolves user-supplied discount and referral tokens.
package codes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cryptoshop/shopbot/internal/model"
)

const referralPrefix = "REF"

// ReferralPercent is the fixed discount granted by any valid referral code,
// independent of the discount code table.
const ReferralPercent = 10

// SkipToken is the free-text token that declines the discount prompt.
const SkipToken = "skip"

// Kind tags a validation result
type Kind int

const (
	// KindNone means the token matched neither pattern; the cart is left
	// unchanged (silent no-op, deliberately no error).
	KindNone Kind = iota
	// KindReferral means the token was another user's referral code
	KindReferral
	// KindDiscount means the token was a live discount code
	KindDiscount
)

// Match is the outcome of validating one token
type Match struct {
	Kind       Kind
	Code       string // normalized (upper-cased) token, set unless KindNone
	Percent    int
	ReferrerID int64 // set only for KindReferral
}

// DiscountLookup is the slice of the discount store the validator needs.
// Implementations must treat expired codes as absent.
type DiscountLookup interface {
	FindCode(ctx context.Context, code string) (*model.DiscountCode, error)
}

// Validator resolves tokens against the referral pattern first, then the
// discount code table.
type Validator struct {
	discounts DiscountLookup
}

// NewValidator creates a token validator backed by the given discount store
func NewValidator(discounts DiscountLookup) *Validator {
	return &Validator{discounts: discounts}
}

// ReferralCode derives the referral code for a user. Referral codes are not
// stored anywhere; any token matching this shape is a referral code.
func ReferralCode(userID int64) string {
	return fmt.Sprintf("%s%d", referralPrefix, userID)
}

// parseReferral extracts the referrer id from a referral-shaped token
func parseReferral(code string) (int64, bool) {
	rest, ok := strings.CutPrefix(code, referralPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Validate resolves token for the acting user. The referral pattern takes
// precedence over the discount table; a user's own referral code is
// rejected and falls through to the table, where it cannot match either,
// ending in KindNone. Matching is case-insensitive.
func (v *Validator) Validate(ctx context.Context, token string, userID int64) (Match, error) {
	code := strings.ToUpper(strings.TrimSpace(token))
	if code == "" {
		return Match{Kind: KindNone}, nil
	}

	if referrerID, ok := parseReferral(code); ok && referrerID != userID {
		return Match{
			Kind:       KindReferral,
			Code:       code,
			Percent:    ReferralPercent,
			ReferrerID: referrerID,
		}, nil
	}

	dc, err := v.discounts.FindCode(ctx, code)
	if err != nil {
		return Match{}, fmt.Errorf("failed to look up discount code: %w", err)
	}
	if dc == nil {
		return Match{Kind: KindNone}, nil
	}

	return Match{
		Kind:    KindDiscount,
		Code:    dc.Code,
		Percent: dc.Percent,
	}, nil
}
