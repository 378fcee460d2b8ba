// Package domain defines the core business entities for the live-auction
// marketplace: auctions, bids, proxy (max) bids, orders, and escrow
// transactions.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionPending   AuctionStatus = "pending"   // scheduled, stream not started
	AuctionActive    AuctionStatus = "active"    // accepting bids
	AuctionEnded     AuctionStatus = "ended"     // close time elapsed or force-closed
	AuctionCancelled AuctionStatus = "cancelled" // voided by the seller
)

// AuctionMode controls the anti-snipe behaviour near the close time.
type AuctionMode string

const (
	// ModeNormal extends the close time when a bid lands inside the snipe
	// window, up to MaxTimerExtensions times.
	ModeNormal AuctionMode = "normal"

	// ModeSuddenDeath disables extensions: the first bid inside the snipe
	// window ends the auction immediately.
	ModeSuddenDeath AuctionMode = "sudden_death"
)

// ──────────────────────────────────────────────────────────────────────────────
// Auction
// ──────────────────────────────────────────────────────────────────────────────

// Auction represents a single item being sold in a livestream segment.
type Auction struct {
	ID                 uuid.UUID        `json:"id"                   db:"id"`
	SellerID           uuid.UUID        `json:"seller_id"            db:"seller_id"`
	ProductID          uuid.UUID        `json:"product_id"           db:"product_id"`
	StartingBid        decimal.Decimal  `json:"starting_bid"         db:"starting_bid"`
	CurrentBid         *decimal.Decimal `json:"current_bid"          db:"current_bid"`
	CurrentBidderID    *uuid.UUID       `json:"current_bidder_id"    db:"current_bidder_id"`
	BidCount           int              `json:"bid_count"            db:"bid_count"`
	MinIncrement       decimal.Decimal  `json:"min_increment"        db:"min_increment"`
	ReservePrice       *decimal.Decimal `json:"reserve_price,omitempty" db:"reserve_price"`
	ReserveMet         bool             `json:"reserve_met"          db:"reserve_met"`
	Status             AuctionStatus    `json:"status"               db:"status"`
	Mode               AuctionMode      `json:"mode"                 db:"mode"`
	EndsAt             time.Time        `json:"ends_at"              db:"ends_at"`
	OriginalEndsAt     *time.Time       `json:"original_ends_at"     db:"original_ends_at"`
	TimerExtensions    int              `json:"timer_extensions"     db:"timer_extensions"`
	MaxTimerExtensions int              `json:"max_timer_extensions" db:"max_timer_extensions"`
	CreatedAt          time.Time        `json:"created_at"           db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"           db:"updated_at"`
}

// IsActive returns true while the auction is accepting bids.
func (a *Auction) IsActive() bool {
	return a.Status == AuctionActive
}

// HasBids returns true once at least one bid has been accepted.
func (a *Auction) HasBids() bool {
	return a.BidCount > 0
}

// MinNextBid returns the lowest amount the next bid must reach: the starting
// bid when no bids exist, otherwise the current bid plus the minimum increment.
func (a *Auction) MinNextBid() decimal.Decimal {
	if !a.HasBids() || a.CurrentBid == nil {
		return a.StartingBid
	}
	return a.CurrentBid.Add(a.MinIncrement)
}

// DisplayedPrice returns the current displayed price: the current bid, or the
// starting bid before the first bid arrives.
func (a *Auction) DisplayedPrice() decimal.Decimal {
	if a.CurrentBid != nil {
		return *a.CurrentBid
	}
	return a.StartingBid
}

// ReserveSatisfied reports whether price clears the reserve. Auctions without
// a reserve are always satisfied.
func (a *Auction) ReserveSatisfied(price decimal.Decimal) bool {
	if a.ReservePrice == nil {
		return true
	}
	return price.GreaterThanOrEqual(*a.ReservePrice)
}

// InSnipeWindow reports whether now falls inside the anti-snipe window before
// the close time.
func (a *Auction) InSnipeWindow(now time.Time, window time.Duration) bool {
	return !now.Before(a.EndsAt.Add(-window)) && now.Before(a.EndsAt)
}

// CanExtend reports whether another timer extension is allowed.
func (a *Auction) CanExtend() bool {
	return a.Mode == ModeNormal && a.TimerExtensions < a.MaxTimerExtensions
}

// HasExpired reports whether the close time has passed.
func (a *Auction) HasExpired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// TimeLeft returns the duration remaining until the auction closes.
// Returns 0 if the closing time has already passed.
func (a *Auction) TimeLeft() time.Duration {
	remaining := time.Until(a.EndsAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// WonFact — emitted when an auction closes with a sale
// ──────────────────────────────────────────────────────────────────────────────

// WonFact is the fact published when an auction ends with its reserve met and
// a leader standing. The checkout flow turns it into an order.
type WonFact struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	WinnerID   uuid.UUID       `json:"winner_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
	EndedAt    time.Time       `json:"ended_at"`
}
