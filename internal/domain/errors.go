package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Auction / bid errors
var (
	// ErrAuctionNotFound is returned when no auction matches the given criteria.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrAuctionNotActive is returned when a bid is attempted on an auction
	// that is not in StatusActive.
	ErrAuctionNotActive = errors.New("auction is not active")

	// ErrAuctionEnded is returned when the auction closed between the caller's
	// read and the write attempt. Safe for the caller to retry with fresh state.
	ErrAuctionEnded = errors.New("auction has already ended")

	// ErrBidTooLow is returned when a bid does not clear the minimum next bid
	// (starting bid, or current bid plus the minimum increment).
	ErrBidTooLow = errors.New("bid amount is below the minimum acceptable bid")

	// ErrBidNotFound is returned when no bid matches the given criteria.
	ErrBidNotFound = errors.New("bid not found")

	// ErrProxyBidNotFound is returned when no active proxy bid matches.
	ErrProxyBidNotFound = errors.New("max bid not found")

	// ErrMaxBidTooLow is returned when a proxy ceiling does not exceed the
	// current displayed price.
	ErrMaxBidTooLow = errors.New("max bid must exceed the current price")

	// ErrStaleAuction is returned when a concurrent bid won the row lock race.
	// The caller should reload the auction and retry.
	ErrStaleAuction = errors.New("auction state changed, retry with fresh state")
)

// Order / escrow errors
var (
	// ErrOrderNotFound is returned when no order matches the given criteria.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotPayable is returned on escrow creation for an order that is
	// not awaiting payment.
	ErrOrderNotPayable = errors.New("order is not payable")

	// ErrEscrowNotFound is returned when no escrow transaction matches.
	ErrEscrowNotFound = errors.New("escrow transaction not found")

	// ErrEscrowExists is returned when a non-cancelled escrow already exists
	// for the order.
	ErrEscrowExists = errors.New("an escrow transaction already exists for this order")

	// ErrEscrowStateInvalid is returned when the requested transition is not
	// legal from the escrow's current status (e.g. releasing an escrow that is
	// not held). Never retried automatically.
	ErrEscrowStateInvalid = errors.New("escrow is not in the required state")

	// ErrSellerNotPayable is returned when the seller's payout destination is
	// missing or unverified.
	ErrSellerNotPayable = errors.New("seller payout account is not verified")

	// ErrCaptureInFlight is returned when another delivery of the same capture
	// webhook is between the processor call and the commit. Deliberately not a
	// validation error: the webhook handler must answer 5xx so the processor
	// redelivers after the in-flight attempt settles.
	ErrCaptureInFlight = errors.New("capture already in flight for this hold")
)

// User / auth errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user does not own the
	// resource being mutated (e.g. cancelling another user's max bid).
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrAuctionNotFound,
	ErrBidNotFound,
	ErrProxyBidNotFound,
	ErrOrderNotFound,
	ErrEscrowNotFound,
	ErrUserNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for business-rule violations that the caller must
// fix before resubmitting (HTTP 400/422). These are never retried as-is.
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrAuctionNotActive,
		ErrBidTooLow,
		ErrMaxBidTooLow,
		ErrOrderNotPayable,
		ErrEscrowStateInvalid,
		ErrSellerNotPayable,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for lost races on auction or escrow state. The
// caller may safely retry with freshly loaded state (HTTP 409).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrAuctionEnded,
		ErrStaleAuction,
		ErrEscrowExists,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsForbidden returns true for ownership/authorisation mismatches (HTTP 403).
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrTokenInvalid)
}
