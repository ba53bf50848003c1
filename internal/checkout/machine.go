// Package checkout owns the per-user cart lifecycle: product selection,
// quantity, discount or referral code, shipping address, invoice creation
// and payment confirmation. Sessions live in process memory only; durable
// state is written exactly once, when a payment settles.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/catalog"
	"github.com/cryptoshop/shopbot/internal/codes"
	"github.com/cryptoshop/shopbot/internal/metrics"
	"github.com/cryptoshop/shopbot/internal/model"
	"github.com/cryptoshop/shopbot/internal/payment"
	"github.com/cryptoshop/shopbot/internal/pricing"
)

// Stage is the explicit state of one cart session. A single enumeration
// replaces per-field awaiting flags so illegal combinations (awaiting
// address and discount at once) cannot exist.
type Stage int

const (
	// StageIdle means no cart exists
	StageIdle Stage = iota
	// StageProduct means a product is selected, quantity pending
	StageProduct
	// StageQuantity means the cart is priced and showing the cart view
	StageQuantity
	// StageAwaitingCode means the next free-text input is a discount token
	StageAwaitingCode
	// StageAwaitingAddress means the next free-text input is the address
	StageAwaitingAddress
	// StageAwaitingPayment means an invoice exists and settlement is pending
	StageAwaitingPayment
)

// Session is one user's in-progress cart. It is cleared on settled payment
// or on returning to the root menu; starting a new product selection
// overwrites it with no history.
type Session struct {
	Stage           Stage
	Product         *catalog.Product
	Quantity        int
	Price           float64
	DiscountCode    string // empty when none applied
	DiscountPercent int
	ReferredBy      int64 // 0 when no referral
	Address         string
	InvoiceID       string
	PayURL          string
}

// HasAddress reports whether an address was captured. The address value
// itself is never echoed back to the user.
func (s *Session) HasAddress() bool {
	return s.Address != ""
}

// Sentinel errors for the event taxonomy. All are user-visible conditions
// handled at the rendering boundary; none corrupt session state.
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrNoActiveCart       = errors.New("no active cart")
	ErrMissingAddress     = errors.New("missing address")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentPending     = errors.New("payment pending")
)

// OrderStore is the slice of the order log the machine needs. Append must
// deduplicate on invoice id and report whether a row was written.
type OrderStore interface {
	Append(ctx context.Context, order *model.Order) (bool, error)
}

type userSession struct {
	mu sync.Mutex
	s  Session
}

// Machine drives every user's checkout. Access to each session is
// serialized per user; different users proceed independently.
type Machine struct {
	catalog   *catalog.Catalog
	validator *codes.Validator
	gateway   payment.Gateway
	orders    OrderStore
	currency  string
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[int64]*userSession
}

// NewMachine creates a checkout machine
func NewMachine(cat *catalog.Catalog, validator *codes.Validator, gateway payment.Gateway, orders OrderStore, currency string, logger *zap.Logger) *Machine {
	return &Machine{
		catalog:   cat,
		validator: validator,
		gateway:   gateway,
		orders:    orders,
		currency:  currency,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[int64]*userSession),
	}
}

func (m *Machine) user(userID int64) *userSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	us, ok := m.sessions[userID]
	if !ok {
		us = &userSession{}
		m.sessions[userID] = us
	}
	return us
}

// Snapshot returns a copy of the user's session for rendering
func (m *Machine) Snapshot(userID int64) Session {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	return us.s
}

// Stage returns the user's current stage
func (m *Machine) Stage(userID int64) Stage {
	return m.Snapshot(userID).Stage
}

// Reset clears the user's session, as when returning to the root menu
func (m *Machine) Reset(userID int64) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	us.s = Session{}
}

// SelectProduct starts a fresh cart for the given product. Any prior
// session for this user is discarded, not merged.
func (m *Machine) SelectProduct(userID int64, productID int) (Session, error) {
	p := m.catalog.ByID(productID)
	if p == nil {
		return Session{}, ErrProductNotFound
	}

	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	us.s = Session{Stage: StageProduct, Product: p}
	return us.s, nil
}

// SelectQuantity picks one of the product's priced tiers. Discount,
// referral and address fields are reset: the price is re-derived from the
// tier, never carried over from a previously discounted cart.
func (m *Machine) SelectQuantity(userID int64, qty int) (Session, error) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Product == nil {
		return Session{}, ErrNoActiveCart
	}
	price, ok := us.s.Product.TierPrice(qty)
	if !ok {
		return Session{}, ErrInvalidQuantity
	}

	us.s = Session{
		Stage:    StageQuantity,
		Product:  us.s.Product,
		Quantity: qty,
		Price:    price,
	}
	return us.s, nil
}

// AwaitCode marks the next free-text input as a discount/referral token
func (m *Machine) AwaitCode(userID int64) error {
	return m.await(userID, StageAwaitingCode)
}

// AwaitAddress marks the next free-text input as the shipping address
func (m *Machine) AwaitAddress(userID int64) error {
	return m.await(userID, StageAwaitingAddress)
}

func (m *Machine) await(userID int64, stage Stage) error {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Product == nil || us.s.Quantity == 0 {
		return ErrNoActiveCart
	}
	us.s.Stage = stage
	return nil
}

// SubmitCodeOrSkip resolves a discount/referral token. "skip" keeps the
// cart unchanged; a token matching neither pattern is a silent no-op. The
// price is always recomputed from the tier base, so resubmitting a token
// never compounds a discount.
func (m *Machine) SubmitCodeOrSkip(ctx context.Context, userID int64, text string) (Session, error) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Stage != StageAwaitingCode {
		return Session{}, ErrNoActiveCart
	}

	base, ok := us.s.Product.TierPrice(us.s.Quantity)
	if !ok {
		return Session{}, ErrInvalidQuantity
	}

	match := codes.Match{Kind: codes.KindNone}
	if !strings.EqualFold(strings.TrimSpace(text), codes.SkipToken) {
		var err error
		match, err = m.validator.Validate(ctx, text, userID)
		if err != nil {
			// Store failure: leave the cart untouched, stay in the cart view.
			us.s.Stage = StageQuantity
			return us.s, fmt.Errorf("failed to validate code: %w", err)
		}
	}

	us.s.DiscountCode = ""
	us.s.DiscountPercent = 0
	us.s.ReferredBy = 0
	us.s.Price = base

	switch match.Kind {
	case codes.KindReferral:
		us.s.DiscountCode = match.Code
		us.s.DiscountPercent = match.Percent
		us.s.ReferredBy = match.ReferrerID
		us.s.Price = pricing.Apply(base, match.Percent)
	case codes.KindDiscount:
		us.s.DiscountCode = match.Code
		us.s.DiscountPercent = match.Percent
		us.s.Price = pricing.Apply(base, match.Percent)
	}

	us.s.Stage = StageQuantity
	return us.s, nil
}

// SubmitAddress stores the trimmed address text verbatim; no format
// validation is performed.
func (m *Machine) SubmitAddress(userID int64, text string) (Session, error) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Stage != StageAwaitingAddress {
		return Session{}, ErrNoActiveCart
	}

	us.s.Address = strings.TrimSpace(text)
	us.s.Stage = StageQuantity
	return us.s, nil
}

// RequestCheckout creates a payment invoice for the cart. It fails before
// any external call when no address is set, and leaves the session
// unchanged when the gateway fails.
func (m *Machine) RequestCheckout(ctx context.Context, userID int64) (Session, error) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Product == nil || us.s.Quantity == 0 {
		return Session{}, ErrNoActiveCart
	}
	if !us.s.HasAddress() {
		return Session{}, ErrMissingAddress
	}

	orderRef := fmt.Sprintf("%d_%d_%d", userID, us.s.Product.ID, m.now().Unix())

	start := m.now()
	invoice, err := m.gateway.CreateInvoice(ctx, us.s.Price, m.currency, orderRef, us.s.Product.Name)
	if err != nil {
		metrics.RecordInvoiceCreate("failure", time.Since(start).Seconds())
		m.logger.Warn("invoice creation failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return Session{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	metrics.RecordInvoiceCreate("success", time.Since(start).Seconds())

	us.s.InvoiceID = invoice.ID
	us.s.PayURL = invoice.PayURL
	us.s.Stage = StageAwaitingPayment

	m.logger.Info("awaiting payment",
		zap.Int64("user_id", userID),
		zap.String("invoice_id", invoice.ID))

	return us.s, nil
}

// ConfirmPayment polls settlement for the session's invoice. While the
// invoice is pending it returns ErrPaymentPending and changes nothing; the
// user may retry any number of times. Once settled it writes exactly one
// order row (the invoice id deduplicates races) and clears the session.
// The returned session is the fulfilled cart, for rendering.
func (m *Machine) ConfirmPayment(ctx context.Context, userID int64) (Session, error) {
	us := m.user(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.s.Stage != StageAwaitingPayment || us.s.InvoiceID == "" {
		return Session{}, ErrNoActiveCart
	}

	status, err := m.gateway.CheckInvoice(ctx, us.s.InvoiceID)
	if err != nil {
		metrics.PaymentChecks.WithLabelValues("failure").Inc()
		return Session{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if status != payment.StatusSettled {
		metrics.PaymentChecks.WithLabelValues("pending").Inc()
		return Session{}, ErrPaymentPending
	}
	metrics.PaymentChecks.WithLabelValues("settled").Inc()

	order := &model.Order{
		Timestamp:       m.now(),
		UserID:          userID,
		ProductID:       us.s.Product.ID,
		ProductName:     us.s.Product.Name,
		Quantity:        us.s.Quantity,
		Price:           us.s.Price,
		InvoiceID:       us.s.InvoiceID,
		DiscountPercent: us.s.DiscountPercent,
		Address:         us.s.Address,
	}
	if us.s.DiscountCode != "" {
		code := us.s.DiscountCode
		order.DiscountCode = &code
	}
	if us.s.ReferredBy != 0 {
		ref := us.s.ReferredBy
		order.ReferredBy = &ref
	}

	inserted, err := m.orders.Append(ctx, order)
	if err != nil {
		// Durable write failed: keep the session so the user can retry.
		return Session{}, fmt.Errorf("failed to record order: %w", err)
	}
	if inserted {
		metrics.OrdersCompleted.Inc()
		m.logger.Info("order completed",
			zap.Int64("user_id", userID),
			zap.String("invoice_id", order.InvoiceID),
			zap.Float64("price", order.Price))
	}

	fulfilled := us.s
	us.s = Session{}
	return fulfilled, nil
}
