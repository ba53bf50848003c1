package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/config"
)

// TestGateway is the deterministic always-settled gateway selected when no
// processor API key is configured. This is a documented integration-testing
// seam, not a silent fallback: New logs loudly when it is chosen.
type TestGateway struct{}

// CreateInvoice returns a fake invoice with a unique id
func (TestGateway) CreateInvoice(ctx context.Context, amount float64, currency, orderRef, description string) (Invoice, error) {
	id := uuid.NewString()
	return Invoice{
		ID:     id,
		PayURL: fmt.Sprintf("https://pay.crypto-provider.com/test/%s", id),
	}, nil
}

// CheckInvoice always reports settled
func (TestGateway) CheckInvoice(ctx context.Context, invoiceID string) (Status, error) {
	return StatusSettled, nil
}

// New selects the gateway implementation for the given configuration
func New(cfg config.PaymentConfig, logger *zap.Logger) Gateway {
	if cfg.APIKey == "" {
		logger.Warn("no payment API key configured, using always-settled test gateway")
		return TestGateway{}
	}
	return NewHTTPGateway(cfg, logger)
}
