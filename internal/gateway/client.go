package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/payment"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Config holds gateway client settings.
type Config struct {
	BaseURL          string
	APIKey           string
	RequestTimeout   time.Duration
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
	BreakerThreshold uint32
}

// Client queries the gateway's payment status endpoint over HTTP. Calls go
// through a circuit breaker so a misbehaving gateway trips fast instead of
// tying up every in-flight poller.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*payment.Status]
	logger  zerolog.Logger
}

// NewClient creates a gateway status client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = 60 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 10
	}

	breaker := gobreaker.NewCircuitBreaker[*payment.Status](gobreaker.Settings{
		Name:     "gateway-status",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.6
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: breaker,
		logger:  logger,
	}
}

// floatToCents rounds a currency amount to whole cents. The gateway reports
// values as JSON floats, so truncation would undercount by a cent.
func floatToCents(value float64) int64 {
	return int64(math.Round(value * 100))
}

// statusResponse mirrors the gateway's payment resource.
type statusResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	BillingType       string  `json:"billingType"`
	DueDate           string  `json:"dueDate"`
	Customer          string  `json:"customer"`
	ExternalReference string  `json:"externalReference"`
}

// GetPaymentStatus fetches a fresh status snapshot for the payment.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*payment.Status, error) {
	return c.breaker.Execute(func() (*payment.Status, error) {
		return c.fetch(ctx, paymentID)
	})
}

func (c *Client) fetch(ctx context.Context, paymentID string) (*payment.Status, error) {
	url := fmt.Sprintf("%s/payments/%s", c.cfg.BaseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("access_token", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domainErrors.ErrPaymentNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", domainErrors.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	state, err := payment.ParseState(body.Status)
	if err != nil {
		c.logger.Warn().Str("payment_id", paymentID).Str("raw", body.Status).Msg("Unknown gateway status")
		return nil, err
	}

	return &payment.Status{
		ID:          body.ID,
		State:       state,
		ObservedAt:  time.Now(),
		AmountCents: floatToCents(body.Value),
		Metadata: map[string]any{
			"billing_type":       body.BillingType,
			"due_date":           body.DueDate,
			"customer":           body.Customer,
			"external_reference": body.ExternalReference,
		},
	}, nil
}
