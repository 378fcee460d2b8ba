package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testAuction(current string, bidderID *uuid.UUID, bidCount int) *Auction {
	a := &Auction{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		ProductID:    uuid.New(),
		StartingBid:  dec("50"),
		MinIncrement: dec("1"),
		Status:       AuctionActive,
		Mode:         ModeNormal,
		BidCount:     bidCount,
		EndsAt:       time.Now().Add(time.Hour),
	}
	if current != "" {
		a.CurrentBid = decPtr(current)
		a.CurrentBidderID = bidderID
	}
	return a
}

func activeProxy(auctionID, userID uuid.UUID, max string, createdAt time.Time) ProxyBid {
	return ProxyBid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		UserID:    userID,
		MaxAmount: dec(max),
		IsActive:  true,
		CreatedAt: createdAt,
	}
}

func TestResolveBid_FirstBidAtStartingPrice(t *testing.T) {
	a := testAuction("", nil, 0)
	bidder := uuid.New()

	res, err := ResolveBid(a, BidInput{BidderID: bidder, Amount: dec("50")}, nil, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("50")) {
		t.Errorf("price = %s, want 50", res.NewPrice)
	}
	if res.LeaderID != bidder || !res.RequesterLeads {
		t.Error("first bidder should take the lead")
	}
	if len(res.Rows) != 1 || !res.Rows[0].IsWinning || res.Rows[0].IsProxy {
		t.Errorf("rows = %+v, want one winning explicit row", res.Rows)
	}
}

func TestResolveBid_BelowMinimumRejected(t *testing.T) {
	leader := uuid.New()
	a := testAuction("55", &leader, 2)

	// Needs at least 56 (current 55 + increment 1).
	_, err := ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("55.50")}, nil, time.Now())
	if !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("err = %v, want ErrBidTooLow", err)
	}

	_, err = ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("56")}, nil, time.Now())
	if err != nil {
		t.Fatalf("bid at exactly current+increment should be accepted, got %v", err)
	}
}

func TestResolveBid_MaxBidMustExceedDisplayedPrice(t *testing.T) {
	leader := uuid.New()
	a := testAuction("55", &leader, 2)

	_, err := ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("55"), IsMaxBid: true}, nil, time.Now())
	if !errors.Is(err, ErrMaxBidTooLow) {
		t.Fatalf("err = %v, want ErrMaxBidTooLow", err)
	}
}

// Registering a ceiling against a plain leader takes the lead one increment
// above the standing bid, not at the full ceiling.
func TestResolveBid_MaxBidTakesLeadAtOneIncrement(t *testing.T) {
	leader := uuid.New()
	a := testAuction("55", &leader, 2)
	c := uuid.New()

	in := BidInput{BidderID: c, Amount: dec("150"), IsMaxBid: true}
	proxies := []ProxyBid{activeProxy(a.ID, c, "150", time.Now())}

	res, err := ResolveBid(a, in, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("56")) {
		t.Errorf("price = %s, want 56", res.NewPrice)
	}
	if res.LeaderID != c {
		t.Error("ceiling holder should lead")
	}
	if res.LeaderProxyID == nil || *res.LeaderProxyID != proxies[0].ID {
		t.Error("winning proxy should be advanced to the new price")
	}
}

// An explicit bid under a standing ceiling loses in the same pass: the price
// lands one increment above the challenge and the ceiling holder keeps the
// lead. This is the walkthrough from the product brief: 50, 55, ceiling 150,
// challenge 60 -> 61, challenge 100 -> 101.
func TestResolveBid_ProxyDefendsAgainstChallenges(t *testing.T) {
	c := uuid.New()
	registered := time.Now().Add(-time.Minute)
	a := testAuction("56", &c, 3)
	proxies := []ProxyBid{activeProxy(a.ID, c, "150", registered)}

	d := uuid.New()
	res, err := ResolveBid(a, BidInput{BidderID: d, Amount: dec("60")}, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid(60): %v", err)
	}
	if !res.NewPrice.Equal(dec("61")) {
		t.Errorf("price = %s, want 61", res.NewPrice)
	}
	if res.LeaderID != c || res.RequesterLeads {
		t.Error("ceiling holder should defend the lead")
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want challenger row plus proxy re-raise", len(res.Rows))
	}
	if !res.Rows[0].Amount.Equal(dec("60")) || res.Rows[0].IsWinning {
		t.Errorf("challenger row = %+v", res.Rows[0])
	}
	if !res.Rows[1].Amount.Equal(dec("61")) || !res.Rows[1].IsWinning || !res.Rows[1].IsProxy {
		t.Errorf("proxy row = %+v", res.Rows[1])
	}

	// Second challenge at 100 lands the price at 101.
	a.CurrentBid = decPtr("61")
	a.BidCount = 5
	res, err = ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("100")}, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid(100): %v", err)
	}
	if !res.NewPrice.Equal(dec("101")) {
		t.Errorf("price = %s, want 101", res.NewPrice)
	}
	if res.LeaderID != c {
		t.Error("ceiling holder should still lead at 101")
	}
}

// A challenge above the ceiling takes the lead and pays one increment over
// the exhausted ceiling, which is then deactivated.
func TestResolveBid_ChallengeBeatsExhaustedProxy(t *testing.T) {
	c := uuid.New()
	a := testAuction("101", &c, 6)
	proxies := []ProxyBid{activeProxy(a.ID, c, "150", time.Now().Add(-time.Minute))}

	e := uuid.New()
	res, err := ResolveBid(a, BidInput{BidderID: e, Amount: dec("200")}, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("151")) {
		t.Errorf("price = %s, want 151", res.NewPrice)
	}
	if res.LeaderID != e || !res.RequesterLeads {
		t.Error("challenger above the ceiling should take the lead")
	}
	if len(res.DeactivateProxyIDs) != 1 || res.DeactivateProxyIDs[0] != proxies[0].ID {
		t.Errorf("beaten proxy should be deactivated, got %v", res.DeactivateProxyIDs)
	}
}

// Equal ceilings: the earlier registration wins and pays its full ceiling.
func TestResolveBid_EarlierCeilingWinsTies(t *testing.T) {
	c := uuid.New()
	a := testAuction("61", &c, 4)
	proxies := []ProxyBid{activeProxy(a.ID, c, "150", time.Now().Add(-time.Hour))}

	res, err := ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("150")}, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if res.LeaderID != c || res.RequesterLeads {
		t.Error("earlier ceiling should win the tie")
	}
	if !res.NewPrice.Equal(dec("150")) {
		t.Errorf("price = %s, want the full ceiling 150", res.NewPrice)
	}
}

// Two ceilings against each other: the higher one leads at the lower one
// plus the increment, and the beaten proxy is deactivated.
func TestResolveBid_DuelingCeilings(t *testing.T) {
	leader := uuid.New()
	a := testAuction("56", &leader, 2)
	f := uuid.New()
	existing := activeProxy(a.ID, leader, "80", time.Now().Add(-time.Minute))
	mine := activeProxy(a.ID, f, "120", time.Now())
	proxies := []ProxyBid{existing, mine}

	res, err := ResolveBid(a, BidInput{BidderID: f, Amount: dec("120"), IsMaxBid: true}, proxies, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("81")) {
		t.Errorf("price = %s, want 81", res.NewPrice)
	}
	if res.LeaderID != f || !res.RequesterLeads {
		t.Error("higher ceiling should take the lead")
	}
	if len(res.DeactivateProxyIDs) != 1 || res.DeactivateProxyIDs[0] != existing.ID {
		t.Errorf("exhausted ceiling should be deactivated, got %v", res.DeactivateProxyIDs)
	}
}

// The incumbent raising their own ceiling does not move the price.
func TestResolveBid_IncumbentRaisingOwnCeilingKeepsPrice(t *testing.T) {
	c := uuid.New()
	a := testAuction("61", &c, 4)
	p := activeProxy(a.ID, c, "200", time.Now().Add(-time.Minute))

	res, err := ResolveBid(a, BidInput{BidderID: c, Amount: dec("200"), IsMaxBid: true}, []ProxyBid{p}, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("61")) {
		t.Errorf("price = %s, want unchanged 61", res.NewPrice)
	}
	if res.LeaderID != c {
		t.Error("incumbent should keep the lead")
	}
}

func TestResolveBid_ReserveMetIsSticky(t *testing.T) {
	leader := uuid.New()
	a := testAuction("55", &leader, 1)
	a.ReservePrice = decPtr("60")

	res, err := ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("56")}, nil, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if res.ReserveMet {
		t.Error("reserve should not be met at 56")
	}

	// An offer of 60 over a standing 55 settles at 56, below the reserve: the
	// bidder's headroom does not jump the price to the reserve.
	res, err = ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("60")}, nil, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("56")) {
		t.Errorf("price = %s, want 56", res.NewPrice)
	}
	if res.ReserveMet {
		t.Error("reserve should not be met while the settled price is 56")
	}

	// Once the standing bid pushes the settled price to 60 the reserve is met.
	a.CurrentBid = decPtr("59")
	res, err = ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("60")}, nil, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.NewPrice.Equal(dec("60")) {
		t.Errorf("price = %s, want 60", res.NewPrice)
	}
	if !res.ReserveMet {
		t.Error("reserve should be met at 60")
	}

	// Once flagged on the auction, later resolutions keep it even below the
	// reserve (never happens in practice, the price only climbs).
	a.CurrentBid = decPtr("55")
	a.ReserveMet = true
	res, err = ResolveBid(a, BidInput{BidderID: uuid.New(), Amount: dec("56")}, nil, time.Now())
	if err != nil {
		t.Fatalf("ResolveBid: %v", err)
	}
	if !res.ReserveMet {
		t.Error("reserve flag should be sticky")
	}
}

func TestAuction_SnipeWindowAndExtensions(t *testing.T) {
	now := time.Now()
	a := &Auction{
		Mode:               ModeNormal,
		EndsAt:             now.Add(10 * time.Second),
		TimerExtensions:    0,
		MaxTimerExtensions: 3,
	}

	if !a.InSnipeWindow(now, 15*time.Second) {
		t.Error("10s before close should be inside a 15s window")
	}
	if a.InSnipeWindow(now, 5*time.Second) {
		t.Error("10s before close should be outside a 5s window")
	}
	if !a.CanExtend() {
		t.Error("normal mode under the cap should allow extension")
	}

	a.TimerExtensions = 3
	if a.CanExtend() {
		t.Error("extension cap reached")
	}

	a.TimerExtensions = 0
	a.Mode = ModeSuddenDeath
	if a.CanExtend() {
		t.Error("sudden death never extends")
	}
}
