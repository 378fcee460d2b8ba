package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User carries the marketplace-side view of an account. Identity and profile
// data live in the upstream identity service; this core only needs payout
// routing and aggregate sales figures.
type User struct {
	ID              uuid.UUID       `json:"id"                db:"id"`
	Username        string          `json:"username"          db:"username"`
	PayoutAccountID *string         `json:"payout_account_id" db:"payout_account_id"`
	PayoutVerified  bool            `json:"payout_verified"   db:"payout_verified"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"     db:"total_revenue"`
	SalesCount      int             `json:"sales_count"       db:"sales_count"`
	CreatedAt       time.Time       `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"        db:"updated_at"`
}

// CanReceivePayout reports whether escrow funds may be transferred to the
// user. Requires a verified payout destination.
func (u *User) CanReceivePayout() bool {
	return u.PayoutAccountID != nil && *u.PayoutAccountID != "" && u.PayoutVerified
}
