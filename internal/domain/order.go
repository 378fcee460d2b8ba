package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order. Orders are created
// by the checkout flow from a WonFact (or a buy-now); this core only reads
// them and advances their status as escrow transitions commit.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"   // awaiting payment
	OrderPaid      OrderStatus = "paid"      // funds captured into escrow
	OrderDelivered OrderStatus = "delivered" // escrow released to the seller
	OrderRefunded  OrderStatus = "refunded"  // escrow refunded to the buyer
	OrderCancelled OrderStatus = "cancelled" // voided before payment
)

// Order represents the financial obligation created when a bid wins.
type Order struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	AuctionID *uuid.UUID      `json:"auction_id" db:"auction_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"   db:"buyer_id"`
	SellerID  uuid.UUID       `json:"seller_id"  db:"seller_id"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	Status    OrderStatus     `json:"status"     db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPayable reports whether an escrow may be opened for the order.
func (o *Order) IsPayable() bool {
	return o.Status == OrderPending
}
