package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marinehub/pkg/domain"
)

const StatusSucceeded = "succeeded"

var ErrIncomplete = errors.New("payment not completed")

// Intent is a checkout handed to the external payment component.
type Intent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}

// Processor creates checkouts with an external payment provider.
type Processor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, reference string) (Intent, error)
}

// Result is what the payment component reports back on completion.
type Result struct {
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Delegate prices the service and hands the charge to a Processor.
type Delegate struct {
	processor Processor
}

func NewDelegate(p Processor) *Delegate {
	return &Delegate{processor: p}
}

// Begin opens a checkout for the diagnostic fee of serviceType.
func (d *Delegate) Begin(ctx context.Context, serviceType domain.ServiceType, reference string) (Intent, error) {
	fee, err := FeeFor(serviceType)
	if err != nil {
		return Intent{}, err
	}
	if d.processor == nil {
		return Intent{}, errors.New("payment processor not configured")
	}
	intent, err := d.processor.CreateIntent(ctx, fee, Currency, reference)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// Complete accepts an explicit success callback. Anything other than a
// succeeded result with a payment id matches ErrIncomplete.
func (d *Delegate) Complete(serviceType domain.ServiceType, r Result) (domain.Payment, error) {
	if strings.TrimSpace(r.PaymentID) == "" {
		return domain.Payment{}, fmt.Errorf("%w: missing payment id", ErrIncomplete)
	}
	if r.Status != StatusSucceeded {
		return domain.Payment{}, fmt.Errorf("%w: status %q", ErrIncomplete, r.Status)
	}
	fee, err := FeeFor(serviceType)
	if err != nil {
		return domain.Payment{}, err
	}
	amount := r.Amount
	if amount.IsZero() {
		amount = fee
	} else if !amount.Equal(fee) {
		return domain.Payment{}, fmt.Errorf("%w: paid %s, fee is %s", ErrIncomplete, amount.StringFixed(2), fee.StringFixed(2))
	}
	currency := strings.ToLower(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = Currency
	}
	return domain.Payment{
		PaymentID: r.PaymentID,
		Amount:    amount,
		Currency:  currency,
		Status:    r.Status,
	}, nil
}

// HTTPProcessor talks to a Stripe-compatible payment intents API.
type HTTPProcessor struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewHTTPProcessor(baseURL, secretKey string) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProcessor) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, reference string) (Intent, error) {
	if strings.TrimSpace(p.secretKey) == "" {
		return Intent{}, errors.New("payment secret key not configured")
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(MinorUnits(amount), 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if reference != "" {
		form.Set("metadata[reference]", reference)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if reference != "" {
		req.Header.Set("Idempotency-Key", reference)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Intent{}, err
	}
	defer resp.Body.Close()
	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("decode payment intent: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Intent{}, fmt.Errorf("payment provider error: %s", msg)
	}
	return Intent{
		ID:           out.ID,
		ClientSecret: out.ClientSecret,
		Amount:       decimal.New(out.Amount, -2),
		Currency:     out.Currency,
		Status:       out.Status,
	}, nil
}
