package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// EscrowStatus represents the state of an escrow transaction.
type EscrowStatus string

const (
	EscrowPending   EscrowStatus = "pending"   // authorised, not yet captured
	EscrowCapturing EscrowStatus = "capturing" // capture call in flight
	EscrowHeld      EscrowStatus = "held"      // captured, funds in escrow
	EscrowReleasing EscrowStatus = "releasing" // transfer to seller in flight
	EscrowReleased  EscrowStatus = "released"  // funds with the seller (terminal)
	EscrowRefunding EscrowStatus = "refunding" // refund to buyer in flight
	EscrowRefunded  EscrowStatus = "refunded"  // funds back with the buyer (terminal)
	EscrowDisputed  EscrowStatus = "disputed"  // processor dispute open
	EscrowCancelled EscrowStatus = "cancelled" // authorisation voided (terminal)
)

// IsTerminal reports whether no further transitions are legal from s.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowReleased || s == EscrowRefunded || s == EscrowCancelled
}

// legalTransitions maps each status to the set of statuses reachable from it.
// The in-flight statuses (capturing, releasing, refunding) revert to their
// origin when the processor call fails.
var legalTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowPending:   {EscrowCapturing, EscrowCancelled},
	EscrowCapturing: {EscrowHeld, EscrowPending},
	EscrowHeld:      {EscrowReleasing, EscrowRefunding, EscrowDisputed},
	EscrowReleasing: {EscrowReleased, EscrowHeld},
	EscrowRefunding: {EscrowRefunded, EscrowHeld},
	EscrowDisputed:  {EscrowReleasing, EscrowRefunding},
}

// CanTransition reports whether from → to is a legal escrow transition.
func CanTransition(from, to EscrowStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// EscrowTransaction
// ──────────────────────────────────────────────────────────────────────────────

// EscrowTransaction holds buyer funds for one order until delivery is
// confirmed, the auto-release window elapses, or a refund/dispute resolves.
// Invariant: SellerAmount + PlatformFee == GrossAmount, exactly.
type EscrowTransaction struct {
	ID                uuid.UUID       `json:"id"                  db:"id"`
	OrderID           uuid.UUID       `json:"order_id"            db:"order_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"            db:"buyer_id"`
	SellerID          uuid.UUID       `json:"seller_id"           db:"seller_id"`
	GrossAmount       decimal.Decimal `json:"gross_amount"        db:"gross_amount"`
	PlatformFee       decimal.Decimal `json:"platform_fee"        db:"platform_fee"`
	SellerAmount      decimal.Decimal `json:"seller_amount"       db:"seller_amount"`
	Currency          string          `json:"currency"            db:"currency"`
	Status            EscrowStatus    `json:"status"              db:"status"`
	HoldRef           string          `json:"hold_ref"            db:"hold_ref"`
	TransferRef       *string         `json:"transfer_ref"        db:"transfer_ref"`
	RefundRef         *string         `json:"refund_ref"          db:"refund_ref"`
	DisputeRef        *string         `json:"dispute_ref"         db:"dispute_ref"`
	ReleaseScheduled  time.Time       `json:"release_scheduled_at" db:"release_scheduled_at"`
	HeldAt            *time.Time      `json:"held_at"             db:"held_at"`
	ReleasedAt        *time.Time      `json:"released_at"         db:"released_at"`
	ReleaseReason     *string         `json:"release_reason"      db:"release_reason"`
	CreatedAt         time.Time       `json:"created_at"          db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"          db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Fee arithmetic
// ──────────────────────────────────────────────────────────────────────────────

// currencyPlaces is the number of minor units all monetary values are rounded
// to (2 for cent-denominated currencies).
const currencyPlaces = 2

// SplitFee computes the platform fee and seller net for a gross amount.
//
//	platformFee  = round-half-up(gross × feeRate, 2)
//	sellerAmount = gross − platformFee
//
// Any rounding remainder is absorbed by the platform fee, never the seller,
// so sellerAmount + platformFee always equals gross exactly.
func SplitFee(gross decimal.Decimal, feeRate decimal.Decimal) (platformFee, sellerAmount decimal.Decimal) {
	platformFee = gross.Mul(feeRate).Round(currencyPlaces)
	sellerAmount = gross.Sub(platformFee)
	return platformFee, sellerAmount
}

// Release reasons recorded on the escrow row.
const (
	// ReleaseReasonAuto marks releases performed by the auto-release sweep.
	ReleaseReasonAuto = "auto_release"

	// ReleaseReasonAdmin marks releases forced from the backoffice.
	ReleaseReasonAdmin = "admin_release"

	// ReleaseReasonDispute marks releases or refunds that resolve a dispute.
	ReleaseReasonDispute = "dispute_resolved"

	// RefundReasonAdmin marks refunds issued from the backoffice.
	RefundReasonAdmin = "admin_refund"
)
