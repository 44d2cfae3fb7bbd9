package gateway

import (
	"context"

	"payment-confirmation/internal/domain/payment"
)

// StatusSource is the payment gateway's status endpoint: given a payment
// identifier it returns the payment's current lifecycle state. Treated as an
// unreliable, rate-limited, network-bound dependency.
type StatusSource interface {
	// GetPaymentStatus fetches a fresh status snapshot for the payment.
	GetPaymentStatus(ctx context.Context, paymentID string) (*payment.Status, error)
}
