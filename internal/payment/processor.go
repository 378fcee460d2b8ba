// Package payment wraps the external payment processor behind a small
// interface: authorise, capture, transfer, refund, void. The escrow service
// depends only on the interface, so tests swap in a stub and the HTTP client
// stays in one place.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Processor is the escrow service's view of the payment provider. Every call
// is a remote operation and must be treated as fallible and slow.
type Processor interface {
	// Authorize places a hold on the buyer's payment method and returns the
	// provider's hold reference.
	Authorize(ctx context.Context, buyerRef string, amount decimal.Decimal, currency string) (holdRef string, err error)

	// Capture converts an authorisation into captured funds on the platform
	// account.
	Capture(ctx context.Context, holdRef string) error

	// CancelAuthorization voids an uncaptured hold.
	CancelAuthorization(ctx context.Context, holdRef string) error

	// Transfer pays out to the seller's connected account and returns the
	// provider's transfer reference.
	Transfer(ctx context.Context, payoutAccountID string, amount decimal.Decimal, currency string) (transferRef string, err error)

	// Refund returns captured funds to the buyer and returns the provider's
	// refund reference.
	Refund(ctx context.Context, holdRef string, amount decimal.Decimal) (refundRef string, err error)
}

// Error is a classified processor failure. Retryable errors (timeouts,
// provider 5xx) leave the money where it was and may be reattempted;
// terminal errors (declines, invalid references) must not be.
type Error struct {
	Op        string // which processor call failed
	Code      string // provider error code, "" when unreachable
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("payment %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a processor failure that may be retried.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
