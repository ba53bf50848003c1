// Package payment talks to the external crypto payment processor.
package payment

import (
	"context"
	"errors"
)

// Invoice is a payable reference issued by the processor
type Invoice struct {
	ID     string
	PayURL string
}

// Status is the settlement state of an invoice
type Status int

const (
	// StatusPending means funds have not been confirmed yet
	StatusPending Status = iota
	// StatusSettled means the processor confirmed payment
	StatusSettled
)

// ErrGateway wraps any processor failure: transport errors, timeouts and
// non-success responses all surface as this, so callers can treat them
// uniformly as "gateway unavailable, retry later".
var ErrGateway = errors.New("payment gateway error")

// Gateway creates invoices and reports their settlement status
type Gateway interface {
	CreateInvoice(ctx context.Context, amount float64, currency, orderRef, description string) (Invoice, error)
	CheckInvoice(ctx context.Context, invoiceID string) (Status, error)
}
