package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bid
// ──────────────────────────────────────────────────────────────────────────────

// Bid represents one accepted bid on an auction. Rows are immutable once
// written except for the winning flag, and are never deleted.
type Bid struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	AuctionID uuid.UUID       `json:"auction_id" db:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"  db:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	IsWinning bool            `json:"is_winning" db:"is_winning"`
	IsProxy   bool            `json:"is_proxy"   db:"is_proxy"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ProxyBid
// ──────────────────────────────────────────────────────────────────────────────

// ProxyBid is a standing authorisation to bid on a user's behalf up to
// MaxAmount. At most one active row exists per (auction, user);
// re-registration replaces the prior ceiling.
type ProxyBid struct {
	ID                 uuid.UUID        `json:"id"                   db:"id"`
	AuctionID          uuid.UUID        `json:"auction_id"           db:"auction_id"`
	UserID             uuid.UUID        `json:"user_id"              db:"user_id"`
	MaxAmount          decimal.Decimal  `json:"max_amount"           db:"max_amount"`
	CurrentProxyAmount *decimal.Decimal `json:"current_proxy_amount" db:"current_proxy_amount"`
	IsActive           bool             `json:"is_active"            db:"is_active"`
	CreatedAt          time.Time        `json:"created_at"           db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"           db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBidRequest — value object used by BiddingService
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBidRequest carries the validated inputs for placing a bid. When
// IsMaxBid is set, Amount is registered as the bidder's proxy ceiling before
// resolution runs.
type PlaceBidRequest struct {
	UserID    uuid.UUID
	AuctionID uuid.UUID
	Amount    decimal.Decimal
	IsMaxBid  bool
}

// BidResult is returned to the API layer after a bid is accepted.
type BidResult struct {
	BidID   uuid.UUID `json:"bid_id"`
	Auction *Auction  `json:"auction"`

	// YouLead is false when a competing proxy immediately re-raised past the
	// requested amount.
	YouLead bool `json:"you_lead"`
}
