package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BidRepository handles all database operations for Bids.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository creates a new BidRepository.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create inserts a new bid inside the bidding transaction.
func (r *BidRepository) Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bid) error {
	query := `
		INSERT INTO bids
			(id, auction_id, bidder_id, amount, is_winning, is_proxy, created_at)
		VALUES
			(:id, :auction_id, :bidder_id, :amount, :is_winning, :is_proxy, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bid_repo.Create: %w", err)
	}
	return nil
}

// DemoteWinning clears the winning flag on the auction's current winning bid,
// inside the bidding transaction. Must run before inserting the new winning
// row: a partial unique index allows only one winning bid per auction.
func (r *BidRepository) DemoteWinning(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bids SET is_winning = FALSE WHERE auction_id = $1 AND is_winning = TRUE`,
		auctionID)
	if err != nil {
		return fmt.Errorf("bid_repo.DemoteWinning: %w", err)
	}
	return nil
}

// GetWinning returns the auction's winning bid inside the closing transaction.
func (r *BidRepository) GetWinning(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) (*domain.Bid, error) {
	var b domain.Bid
	err := tx.GetContext(ctx, &b,
		`SELECT * FROM bids WHERE auction_id = $1 AND is_winning = TRUE`,
		auctionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("bid_repo.GetWinning: %w", err)
	}
	return &b, nil
}

// GetByAuction returns an auction's bid history, newest first, paginated.
func (r *BidRepository) GetByAuction(ctx context.Context, auctionID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE auction_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		auctionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.GetByAuction: %w", err)
	}
	return bids, nil
}

// CountByAuction returns the total number of bid rows for an auction.
func (r *BidRepository) CountByAuction(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID)
	if err != nil {
		return 0, fmt.Errorf("bid_repo.CountByAuction: %w", err)
	}
	return total, nil
}

// GetByUser returns a user's bid history across auctions, paginated.
func (r *BidRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE bidder_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid_repo.GetByUser: %w", err)
	}
	return bids, nil
}
