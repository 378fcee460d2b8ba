package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into BiddingService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal interface BiddingService needs from the WS hub.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastBidPlaced(auction *domain.Auction, bid *domain.Bid)
	BroadcastAuctionExtended(auction *domain.Auction)
	BroadcastAuctionClosed(auction *domain.Auction, won *domain.WonFact)
}

// WonSink consumes the fact emitted when an auction closes with a sale.
// Implemented by CheckoutService.
type WonSink interface {
	AuctionWon(ctx context.Context, fact *domain.WonFact) error
}

// ──────────────────────────────────────────────────────────────────────────────
// BiddingService
// ──────────────────────────────────────────────────────────────────────────────

// BiddingService orchestrates bid placement, proxy ceilings and auction
// closing. Every mutation of one auction runs inside a single PostgreSQL
// transaction holding the auction's row lock, so concurrent bids on the same
// auction serialise at the database.
type BiddingService struct {
	db          *sqlx.DB
	auctionRepo *repository.AuctionRepository
	bidRepo     *repository.BidRepository
	proxyRepo   *repository.ProxyBidRepository
	cfg         *config.Config
	broadcaster Broadcaster // injected after WS Hub is built
	wonSink     WonSink     // injected after CheckoutService is built
}

// NewBiddingService creates a BiddingService.
func NewBiddingService(
	db *sqlx.DB,
	auctionRepo *repository.AuctionRepository,
	bidRepo *repository.BidRepository,
	proxyRepo *repository.ProxyBidRepository,
	cfg *config.Config,
) *BiddingService {
	return &BiddingService{
		db:          db,
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		proxyRepo:   proxyRepo,
		cfg:         cfg,
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *BiddingService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// SetWonSink injects the checkout dependency post-construction.
func (s *BiddingService) SetWonSink(w WonSink) { s.wonSink = w }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBid
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBid accepts an explicit bid or registers a proxy ceiling, resolves it
// against the standing ceilings, applies the outcome, and handles the
// anti-snipe timer, all inside one transaction.
//
// After a successful commit it broadcasts the new state; if a sudden-death
// bid closed the auction, it also emits the won fact.
func (s *BiddingService) PlaceBid(ctx context.Context, req domain.PlaceBidRequest) (*domain.BidResult, error) {
	now := time.Now().UTC()

	// ── 1. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 2. Lock the auction row ──────────────────────────────────────────────
	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, tx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: lock auction: %w", err)
	}
	if !auction.IsActive() {
		err = domain.ErrAuctionNotActive
		return nil, err
	}
	if auction.HasExpired(now) {
		// The closing sweep has not swept this one yet; the bid arrived late.
		err = domain.ErrAuctionEnded
		return nil, err
	}
	if auction.SellerID == req.UserID {
		err = domain.ErrForbidden
		return nil, err
	}

	// ── 3. Register the ceiling when this is a max bid ───────────────────────
	if req.IsMaxBid {
		if !req.Amount.GreaterThan(auction.DisplayedPrice()) {
			err = domain.ErrMaxBidTooLow
			return nil, err
		}
		proxy := &domain.ProxyBid{
			ID:        uuid.New(),
			AuctionID: req.AuctionID,
			UserID:    req.UserID,
			MaxAmount: req.Amount,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = s.proxyRepo.Upsert(ctx, tx, proxy); err != nil {
			return nil, fmt.Errorf("bidding_service.PlaceBid: upsert proxy: %w", err)
		}
	}

	// ── 4. Resolve against active ceilings ───────────────────────────────────
	proxies, err := s.proxyRepo.GetActiveByAuction(ctx, tx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: load proxies: %w", err)
	}

	res, err := domain.ResolveBid(auction, domain.BidInput{
		BidderID: req.UserID,
		Amount:   req.Amount,
		IsMaxBid: req.IsMaxBid,
	}, proxies, now)
	if err != nil {
		return nil, err
	}

	// ── 5. Persist bid rows ──────────────────────────────────────────────────
	if err = s.bidRepo.DemoteWinning(ctx, tx, req.AuctionID); err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: demote winning: %w", err)
	}

	var requesterBidID uuid.UUID
	var winningBid *domain.Bid
	for _, row := range res.Rows {
		bid := &domain.Bid{
			ID:        uuid.New(),
			AuctionID: req.AuctionID,
			BidderID:  row.BidderID,
			Amount:    row.Amount,
			IsWinning: row.IsWinning,
			IsProxy:   row.IsProxy,
			CreatedAt: now,
		}
		if err = s.bidRepo.Create(ctx, tx, bid); err != nil {
			return nil, fmt.Errorf("bidding_service.PlaceBid: create bid: %w", err)
		}
		if row.BidderID == req.UserID {
			requesterBidID = bid.ID
		}
		if row.IsWinning {
			winningBid = bid
		}
	}

	// ── 6. Advance / retire proxies ──────────────────────────────────────────
	if res.LeaderProxyID != nil {
		if err = s.proxyRepo.AdvanceTo(ctx, tx, *res.LeaderProxyID, res.NewPrice); err != nil {
			return nil, fmt.Errorf("bidding_service.PlaceBid: advance proxy: %w", err)
		}
	}
	if err = s.proxyRepo.Deactivate(ctx, tx, res.DeactivateProxyIDs); err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: deactivate proxies: %w", err)
	}

	// ── 7. Anti-snipe timer ──────────────────────────────────────────────────
	closeNow := false
	extended := false
	if auction.InSnipeWindow(now, s.cfg.Auction.SnipeWindow) {
		switch {
		case auction.Mode == domain.ModeSuddenDeath:
			closeNow = true
		case auction.CanExtend():
			if auction.OriginalEndsAt == nil {
				orig := auction.EndsAt
				auction.OriginalEndsAt = &orig
			}
			auction.EndsAt = auction.EndsAt.Add(s.cfg.Auction.ExtensionDuration)
			auction.TimerExtensions++
			extended = true
		}
	}

	// ── 8. Write the outcome to the auction row ──────────────────────────────
	price := res.NewPrice
	leader := res.LeaderID
	auction.CurrentBid = &price
	auction.CurrentBidderID = &leader
	auction.BidCount++
	auction.ReserveMet = res.ReserveMet
	if err = s.auctionRepo.ApplyResolution(ctx, tx, auction); err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: apply resolution: %w", err)
	}

	// ── 9. Sudden death: the bid that landed in the window ends the auction ──
	var won *domain.WonFact
	if closeNow {
		won, err = s.closeLocked(ctx, tx, auction, now)
		if err != nil {
			return nil, fmt.Errorf("bidding_service.PlaceBid: sudden death close: %w", err)
		}
	}

	// ── 10. Commit ───────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("bidding_service.PlaceBid: commit: %w", err)
	}

	// ── 11. Async: WS broadcast + won fact ───────────────────────────────────
	go s.postBidAsync(auction, winningBid, extended, closeNow, won)

	return &domain.BidResult{
		BidID:   requesterBidID,
		Auction: auction,
		YouLead: res.RequesterLeads,
	}, nil
}

// postBidAsync pushes the post-commit side effects of a bid. Runs in a
// goroutine; errors are swallowed (monitoring via logs in the sinks).
func (s *BiddingService) postBidAsync(auction *domain.Auction, winning *domain.Bid, extended, closed bool, won *domain.WonFact) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastBidPlaced(auction, winning)
		if extended {
			s.broadcaster.BroadcastAuctionExtended(auction)
		}
		if closed {
			s.broadcaster.BroadcastAuctionClosed(auction, won)
		}
	}
	if won != nil && s.wonSink != nil {
		_ = s.wonSink.AuctionWon(ctx, won)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Proxy ceilings
// ──────────────────────────────────────────────────────────────────────────────

// RegisterMaxBid registers (or raises) the user's proxy ceiling for an
// auction. The ceiling immediately competes for the lead.
func (s *BiddingService) RegisterMaxBid(ctx context.Context, auctionID, userID uuid.UUID, maxAmount decimal.Decimal) (*domain.BidResult, error) {
	return s.PlaceBid(ctx, domain.PlaceBidRequest{
		UserID:    userID,
		AuctionID: auctionID,
		Amount:    maxAmount,
		IsMaxBid:  true,
	})
}

// CancelMaxBid deactivates the user's own proxy ceiling. Bids already placed
// on their behalf stand; the ceiling just stops defending.
func (s *BiddingService) CancelMaxBid(ctx context.Context, auctionID, userID uuid.UUID) error {
	if err := s.proxyRepo.CancelByUser(ctx, auctionID, userID); err != nil {
		return fmt.Errorf("bidding_service.CancelMaxBid: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Auction lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// CreateAuctionRequest carries the seller's inputs for a new auction.
type CreateAuctionRequest struct {
	SellerID     uuid.UUID
	ProductID    uuid.UUID
	StartingBid  decimal.Decimal
	MinIncrement decimal.Decimal
	ReservePrice *decimal.Decimal
	Mode         domain.AuctionMode
	Duration     time.Duration // 0 = configured default
}

// CreateAuction creates a pending auction for a livestream segment.
func (s *BiddingService) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error) {
	if req.StartingBid.IsNegative() || !req.MinIncrement.IsPositive() {
		return nil, domain.ErrBidTooLow
	}
	if req.Mode == "" {
		req.Mode = domain.ModeNormal
	}
	duration := req.Duration
	if duration <= 0 {
		duration = s.cfg.Auction.DefaultDuration
	}

	now := time.Now().UTC()
	auction := &domain.Auction{
		ID:                 uuid.New(),
		SellerID:           req.SellerID,
		ProductID:          req.ProductID,
		StartingBid:        req.StartingBid,
		MinIncrement:       req.MinIncrement,
		ReservePrice:       req.ReservePrice,
		Status:             domain.AuctionPending,
		Mode:               req.Mode,
		EndsAt:             now.Add(duration),
		MaxTimerExtensions: s.cfg.Auction.MaxTimerExtensions,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("bidding_service.CreateAuction: %w", err)
	}
	return auction, nil
}

// ActivateAuction opens a pending auction for bidding and starts its timer.
// Only the seller may start their own auction.
func (s *BiddingService) ActivateAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*domain.Auction, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.ActivateAuction: %w", err)
	}
	if auction.SellerID != sellerID {
		return nil, domain.ErrForbidden
	}

	// The timer starts from activation, not creation: re-arm using the
	// duration the seller chose when creating the auction.
	duration := auction.EndsAt.Sub(auction.CreatedAt)
	if duration <= 0 {
		duration = s.cfg.Auction.DefaultDuration
	}
	endsAt := time.Now().UTC().Add(duration)
	if err := s.auctionRepo.Activate(ctx, auctionID, endsAt); err != nil {
		return nil, fmt.Errorf("bidding_service.ActivateAuction: %w", err)
	}
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// CloseAuction ends an active auction. Idempotent across concurrent callers:
// the guarded status UPDATE lets exactly one transaction perform the close,
// later attempts get ErrAuctionEnded.
func (s *BiddingService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WonFact, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.CloseAuction: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	auction, err := s.auctionRepo.GetByIDForUpdate(ctx, tx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.CloseAuction: lock auction: %w", err)
	}
	if !auction.IsActive() {
		err = domain.ErrAuctionEnded
		return nil, err
	}

	won, err := s.closeLocked(ctx, tx, auction, now)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.CloseAuction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("bidding_service.CloseAuction: commit: %w", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.broadcaster != nil {
			s.broadcaster.BroadcastAuctionClosed(auction, won)
		}
		if won != nil && s.wonSink != nil {
			_ = s.wonSink.AuctionWon(ctx, won)
		}
	}()

	return won, nil
}

// closeLocked performs the close inside a transaction that already holds the
// auction's row lock. Returns a won fact when the auction sold: a leader is
// standing and the reserve (if any) was met.
func (s *BiddingService) closeLocked(ctx context.Context, tx *sqlx.Tx, auction *domain.Auction, now time.Time) (*domain.WonFact, error) {
	if err := s.auctionRepo.Close(ctx, tx, auction.ID, now); err != nil {
		return nil, err
	}
	if err := s.proxyRepo.DeactivateForAuction(ctx, tx, auction.ID); err != nil {
		return nil, err
	}
	auction.Status = domain.AuctionEnded
	auction.EndsAt = now

	if auction.CurrentBidderID == nil || !auction.ReserveMet && auction.ReservePrice != nil {
		// No sale: nobody bid, or the reserve was never reached.
		return nil, nil
	}
	return &domain.WonFact{
		AuctionID:  auction.ID,
		SellerID:   auction.SellerID,
		WinnerID:   *auction.CurrentBidderID,
		FinalPrice: auction.DisplayedPrice(),
		EndedAt:    now,
	}, nil
}

// CloseExpiredAuctions closes every active auction whose timer has elapsed.
// Called by the scheduler. A failure on one auction does not stop the sweep.
// Returns the number of auctions closed.
func (s *BiddingService) CloseExpiredAuctions(ctx context.Context) (int, []error) {
	now := time.Now().UTC()
	expired, err := s.auctionRepo.GetExpiredActive(ctx, now)
	if err != nil {
		return 0, []error{fmt.Errorf("bidding_service.CloseExpiredAuctions: %w", err)}
	}

	closed := 0
	var errs []error
	for _, a := range expired {
		if _, err := s.CloseAuction(ctx, a.ID); err != nil {
			// A concurrent sudden-death bid may have closed it already.
			if domain.IsConflict(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("auction %s: %w", a.ID, err))
			continue
		}
		closed++
	}
	return closed, errs
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetAuction returns a single auction.
func (s *BiddingService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.GetAuction: %w", err)
	}
	return a, nil
}

// ListAuctions returns paginated auctions filtered by optional status.
func (s *BiddingService) ListAuctions(ctx context.Context, limit, offset int, status string) ([]*domain.Auction, int, error) {
	auctions, total, err := s.auctionRepo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("bidding_service.ListAuctions: %w", err)
	}
	return auctions, total, nil
}

// GetAuctionBids returns an auction's bid history, newest first.
func (s *BiddingService) GetAuctionBids(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	bids, err := s.bidRepo.GetByAuction(ctx, auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.GetAuctionBids: %w", err)
	}
	return bids, nil
}

// GetMyBids returns paginated bids for a user across auctions.
func (s *BiddingService) GetMyBids(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	bids, err := s.bidRepo.GetByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bidding_service.GetMyBids: %w", err)
	}
	return bids, nil
}
