package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/config"
)

// HTTPGateway is the production Gateway over the processor's JSON API.
// Every request carries the client timeout, so a stalled processor call
// cannot freeze a user's session.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway creates a gateway client from configuration
func NewHTTPGateway(cfg config.PaymentConfig, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
		logger:  logger,
	}
}

type createInvoiceRequest struct {
	Out         string `json:"out"`
	OutCurrency string `json:"out_currency"`
	CallbackURL string `json:"callback_url"`
	OrderID     string `json:"order_id"`
	Description string `json:"description"`
}

type invoiceResult struct {
	InvoiceID string `json:"invoice_id"`
	PayURL    string `json:"pay_url"`
	Status    string `json:"status"`
}

type gatewayResponse struct {
	Result *invoiceResult `json:"result"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreateInvoice asks the processor for a payable invoice
func (g *HTTPGateway) CreateInvoice(ctx context.Context, amount float64, currency, orderRef, description string) (Invoice, error) {
	payload := createInvoiceRequest{
		Out:         strconv.FormatFloat(amount, 'f', 2, 64),
		OutCurrency: currency,
		OrderID:     orderRef,
		Description: description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: failed to encode request: %v", ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.apiKey)

	result, err := g.do(req)
	if err != nil {
		return Invoice{}, err
	}
	if result.InvoiceID == "" || result.PayURL == "" {
		return Invoice{}, fmt.Errorf("%w: incomplete invoice in response", ErrGateway)
	}

	g.logger.Info("created invoice",
		zap.String("invoice_id", result.InvoiceID),
		zap.String("order_ref", orderRef))

	return Invoice{ID: result.InvoiceID, PayURL: result.PayURL}, nil
}

// CheckInvoice polls the processor for settlement
func (g *HTTPGateway) CheckInvoice(ctx context.Context, invoiceID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/invoice/"+invoiceID, nil)
	if err != nil {
		return StatusPending, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Authorization", g.apiKey)

	result, err := g.do(req)
	if err != nil {
		return StatusPending, err
	}

	if result.Status == "paid" {
		return StatusSettled, nil
	}
	return StatusPending, nil
}

func (g *HTTPGateway) do(req *http.Request) (*invoiceResult, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reach processor: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: processor returned %d: %s", ErrGateway, resp.StatusCode, body)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrGateway, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrGateway, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("%w: response has no result", ErrGateway)
	}

	return parsed.Result, nil
}
