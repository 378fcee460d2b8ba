package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuctionRepository handles all database operations for Auctions.
type AuctionRepository struct {
	db *sqlx.DB
}

// NewAuctionRepository creates a new AuctionRepository.
func NewAuctionRepository(db *sqlx.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

// Create inserts a new auction row.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
		INSERT INTO auctions
			(id, seller_id, product_id, starting_bid, current_bid, current_bidder_id,
			 bid_count, min_increment, reserve_price, reserve_met, status, mode,
			 ends_at, original_ends_at, timer_extensions, max_timer_extensions,
			 created_at, updated_at)
		VALUES
			(:id, :seller_id, :product_id, :starting_bid, :current_bid, :current_bidder_id,
			 :bid_count, :min_increment, :reserve_price, :reserve_met, :status, :mode,
			 :ends_at, :original_ends_at, :timer_extensions, :max_timer_extensions,
			 :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("auction_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches an auction by its primary key.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	var a domain.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction_repo.GetByID: %w", err)
	}
	return &a, nil
}

// GetByIDForUpdate fetches an auction inside a transaction with a row lock.
// Every bid and close path goes through this lock, which serialises all
// writes to one auction.
func (r *AuctionRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Auction, error) {
	var a domain.Auction
	err := tx.GetContext(ctx, &a, `SELECT * FROM auctions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("auction_repo.GetByIDForUpdate: %w", err)
	}
	return &a, nil
}

// ApplyResolution writes the outcome of a bid resolution to the auction row
// inside the bidding transaction: new price, new leader, bid count, reserve
// flag and (possibly extended) close time.
func (r *AuctionRepository) ApplyResolution(ctx context.Context, tx *sqlx.Tx, a *domain.Auction) error {
	query := `
		UPDATE auctions
		SET current_bid       = :current_bid,
		    current_bidder_id = :current_bidder_id,
		    bid_count         = :bid_count,
		    reserve_met       = :reserve_met,
		    ends_at           = :ends_at,
		    original_ends_at  = :original_ends_at,
		    timer_extensions  = :timer_extensions,
		    updated_at        = now()
		WHERE id = :id AND status = 'active'`
	res, err := tx.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("auction_repo.ApplyResolution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAuctionEnded
	}
	return nil
}

// Activate moves a pending auction to active and stamps its close time.
// Only touches rows still in status='pending' so a double start is a no-op
// conflict rather than a timer reset.
func (r *AuctionRepository) Activate(ctx context.Context, id uuid.UUID, endsAt time.Time) error {
	query := `
		UPDATE auctions
		SET status     = 'active',
		    ends_at    = $1,
		    updated_at = now()
		WHERE id = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, endsAt, id)
	if err != nil {
		return fmt.Errorf("auction_repo.Activate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAuctionNotActive
	}
	return nil
}

// Close marks an active auction as ended inside the closing transaction.
// Returns ErrAuctionEnded when the row was already closed, making close
// idempotent for callers that tolerate the conflict.
func (r *AuctionRepository) Close(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, endedAt time.Time) error {
	query := `
		UPDATE auctions
		SET status     = 'ended',
		    ends_at    = $1,
		    updated_at = now()
		WHERE id = $2 AND status = 'active'`
	res, err := tx.ExecContext(ctx, query, endedAt, id)
	if err != nil {
		return fmt.Errorf("auction_repo.Close: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAuctionEnded
	}
	return nil
}

// Cancel voids an auction that has not ended yet.
func (r *AuctionRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'active')`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("auction_repo.Cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAuctionEnded
	}
	return nil
}

// GetExpiredActive returns auctions still active past their close time,
// due for the closing sweep.
func (r *AuctionRepository) GetExpiredActive(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE status = 'active' AND ends_at <= $1 ORDER BY ends_at ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.GetExpiredActive: %w", err)
	}
	return auctions, nil
}

// List returns a paginated slice of auctions filtered by optional status.
// status="" returns all statuses. Returns (auctions, totalCount, error).
func (r *AuctionRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Auction, int, error) {
	var auctions []*domain.Auction
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM auctions WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &auctions,
			`SELECT * FROM auctions WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM auctions`); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &auctions,
			`SELECT * FROM auctions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("auction_repo.List select: %w", err)
		}
	}
	return auctions, total, nil
}

// CountByStatus returns auction counts grouped by status, for the dashboard.
func (r *AuctionRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	type row struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM auctions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.CountByStatus: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// GetBySeller returns a seller's auctions in descending creation order.
func (r *AuctionRepository) GetBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]*domain.Auction, error) {
	var auctions []*domain.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sellerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auction_repo.GetBySeller: %w", err)
	}
	return auctions, nil
}
