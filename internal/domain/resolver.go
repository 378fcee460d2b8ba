package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bid resolution
//
// Resolution is a pure function over an auction snapshot, the incoming bid,
// and the set of active proxy ceilings. It decides the new displayed price,
// the new leader, and the bid rows to persist. Callers (BiddingService) run it
// inside a transaction holding the auction row lock and apply the outcome
// atomically.
// ──────────────────────────────────────────────────────────────────────────────

// BidInput is the incoming bid as seen by the resolver. When IsMaxBid is set,
// Amount is the bidder's proxy ceiling rather than an explicit offer.
type BidInput struct {
	BidderID uuid.UUID
	Amount   decimal.Decimal
	IsMaxBid bool
}

// BidRow is one bid row the caller must insert, in order. At most one row has
// IsWinning set.
type BidRow struct {
	BidderID  uuid.UUID
	Amount    decimal.Decimal
	IsProxy   bool
	IsWinning bool
}

// Resolution is the outcome of resolving one incoming bid.
type Resolution struct {
	// NewPrice is the displayed price after the bid. Never below the prior
	// displayed price.
	NewPrice decimal.Decimal

	// LeaderID is the user holding the winning bid after resolution.
	LeaderID uuid.UUID

	// RequesterLeads is false when a competing proxy re-raised past the
	// requester in the same pass.
	RequesterLeads bool

	// ReserveMet reports whether NewPrice clears the reserve. Sticky: once an
	// auction's reserve is met it stays met.
	ReserveMet bool

	// Rows are the bid rows to insert, requester's first.
	Rows []BidRow

	// DeactivateProxyIDs are proxy bids whose ceiling fell below NewPrice and
	// can never act again.
	DeactivateProxyIDs []uuid.UUID

	// LeaderProxyID, when set, is the proxy that produced the winning bid; its
	// current_proxy_amount must be advanced to NewPrice.
	LeaderProxyID *uuid.UUID
}

// candidate is one participant competing for the lead: the requester, the
// active proxies, and the incumbent leader's standing bid.
type candidate struct {
	userID  uuid.UUID
	ceiling decimal.Decimal
	since   time.Time // earlier wins ties
	proxyID *uuid.UUID
}

// ResolveBid resolves an incoming bid against the auction's current state and
// active proxies in a single pass.
//
// The competition is between ceilings: each active proxy competes up to its
// max amount, the incumbent leader defends at the current bid, and the
// requester competes up to in.Amount. The highest ceiling wins (earliest
// registration breaks ties) and pays the lowest amount that beats the
// runner-up by the minimum increment, capped at the winner's own ceiling.
//
// proxies must be every active proxy for the auction, including the
// requester's own (already upserted when in.IsMaxBid is set).
func ResolveBid(a *Auction, in BidInput, proxies []ProxyBid, now time.Time) (*Resolution, error) {
	if in.IsMaxBid {
		// A ceiling at or below the displayed price could never take the lead.
		if !in.Amount.GreaterThan(a.DisplayedPrice()) {
			return nil, ErrMaxBidTooLow
		}
	} else if in.Amount.LessThan(a.MinNextBid()) {
		return nil, ErrBidTooLow
	}

	cands := buildCandidates(a, in, proxies, now)

	leader, second := pickLeader(cands)
	price := settlePrice(a, leader, second)

	res := &Resolution{
		NewPrice:       price,
		LeaderID:       leader.userID,
		RequesterLeads: leader.userID == in.BidderID,
		ReserveMet:     a.ReserveMet || a.ReserveSatisfied(price),
		LeaderProxyID:  leader.proxyID,
	}

	if res.RequesterLeads {
		res.Rows = []BidRow{{
			BidderID:  in.BidderID,
			Amount:    price,
			IsProxy:   in.IsMaxBid || price.GreaterThan(in.Amount),
			IsWinning: true,
		}}
	} else {
		// The requester's offer is recorded as placed, then the winning proxy
		// re-raises in the same pass.
		res.Rows = []BidRow{
			{
				BidderID: in.BidderID,
				Amount:   in.Amount,
				IsProxy:  in.IsMaxBid,
			},
			{
				BidderID:  leader.userID,
				Amount:    price,
				IsProxy:   true,
				IsWinning: true,
			},
		}
	}

	for i := range proxies {
		p := &proxies[i]
		if leader.proxyID != nil && p.ID == *leader.proxyID {
			continue
		}
		if p.MaxAmount.LessThan(price) {
			res.DeactivateProxyIDs = append(res.DeactivateProxyIDs, p.ID)
		}
	}

	return res, nil
}

// buildCandidates assembles the ceiling of every participant. The requester's
// ceiling absorbs their own active proxy so a low explicit bid from a proxy
// holder still competes at their registered max.
func buildCandidates(a *Auction, in BidInput, proxies []ProxyBid, now time.Time) []candidate {
	cands := make([]candidate, 0, len(proxies)+2)

	requester := candidate{userID: in.BidderID, ceiling: in.Amount, since: now}
	coveredIncumbent := false

	for i := range proxies {
		p := proxies[i]
		if p.UserID == in.BidderID {
			if p.MaxAmount.GreaterThan(requester.ceiling) {
				requester.ceiling = p.MaxAmount
			}
			requester.since = p.CreatedAt
			requester.proxyID = &proxies[i].ID
			continue
		}
		if a.CurrentBidderID != nil && p.UserID == *a.CurrentBidderID {
			coveredIncumbent = true
		}
		cands = append(cands, candidate{
			userID:  p.UserID,
			ceiling: p.MaxAmount,
			since:   p.CreatedAt,
			proxyID: &proxies[i].ID,
		})
	}

	// The incumbent leader defends at the standing bid even without a proxy.
	if a.CurrentBidderID != nil && !coveredIncumbent && *a.CurrentBidderID != in.BidderID && a.CurrentBid != nil {
		cands = append(cands, candidate{
			userID:  *a.CurrentBidderID,
			ceiling: *a.CurrentBid,
			since:   time.Time{}, // holds the lead, wins any tie
		})
	}

	return append(cands, requester)
}

// pickLeader returns the candidate with the highest ceiling (earliest wins
// ties) and the best remaining ceiling, nil when the leader is unopposed.
func pickLeader(cands []candidate) (leader candidate, second *decimal.Decimal) {
	leader = cands[0]
	for _, c := range cands[1:] {
		switch {
		case c.ceiling.GreaterThan(leader.ceiling),
			c.ceiling.Equal(leader.ceiling) && c.since.Before(leader.since):
			leader = c
		}
	}
	for _, c := range cands {
		if c.userID == leader.userID {
			continue
		}
		if second == nil || c.ceiling.GreaterThan(*second) {
			v := c.ceiling
			second = &v
		}
	}
	return leader, second
}

// settlePrice computes what the leader pays: one increment over the runner-up,
// capped at the leader's own ceiling and floored so the displayed price never
// goes down. An incumbent raising their own ceiling pays nothing extra.
func settlePrice(a *Auction, leader candidate, second *decimal.Decimal) decimal.Decimal {
	floor := a.MinNextBid()
	if a.CurrentBidderID != nil && leader.userID == *a.CurrentBidderID {
		floor = a.DisplayedPrice()
	}

	price := floor
	if second != nil {
		if raised := second.Add(a.MinIncrement); raised.GreaterThan(price) {
			price = raised
		}
	}
	if price.GreaterThan(leader.ceiling) {
		price = leader.ceiling
	}
	return price
}
