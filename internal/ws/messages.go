// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeBidPlaced       MsgType = "bid_placed"
	MsgTypeAuctionExtended MsgType = "auction_extended"
	MsgTypeAuctionClosed   MsgType = "auction_closed"
	MsgTypeError           MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// BidPlacedMessage — broadcast after a bid lands so every viewer's price,
// leader and countdown refresh together.
// ──────────────────────────────────────────────────────────────────────────────

// BidPlacedMessage notifies all clients of the new displayed price.
type BidPlacedMessage struct {
	Type            MsgType         `json:"type"`
	AuctionID       uuid.UUID       `json:"auction_id"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	LeaderID        *uuid.UUID      `json:"leader_id"`
	BidCount        int             `json:"bid_count"`
	MinNextBid      decimal.Decimal `json:"min_next_bid"`
	ReserveMet      bool            `json:"reserve_met"`
	IsProxy         bool            `json:"is_proxy"`
	EndsAt          time.Time       `json:"ends_at"`
	TimeLeftSeconds int64           `json:"time_left_seconds"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionExtendedMessage — broadcast when an anti-snipe extension fires.
// ──────────────────────────────────────────────────────────────────────────────

// AuctionExtendedMessage carries the pushed-back close time.
type AuctionExtendedMessage struct {
	Type            MsgType   `json:"type"`
	AuctionID       uuid.UUID `json:"auction_id"`
	EndsAt          time.Time `json:"ends_at"`
	TimerExtensions int       `json:"timer_extensions"`
	Timestamp       time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuctionClosedMessage — broadcast when the hammer falls.
// ──────────────────────────────────────────────────────────────────────────────

// AuctionClosedMessage tells clients whether the item sold, to whom, and at
// what price. WinnerID and FinalPrice are nil for a no-sale close.
type AuctionClosedMessage struct {
	Type       MsgType          `json:"type"`
	AuctionID  uuid.UUID        `json:"auction_id"`
	Sold       bool             `json:"sold"`
	WinnerID   *uuid.UUID       `json:"winner_id,omitempty"`
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
