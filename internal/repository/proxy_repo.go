package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ProxyBidRepository handles all database operations for proxy (max) bids.
type ProxyBidRepository struct {
	db *sqlx.DB
}

// NewProxyBidRepository creates a new ProxyBidRepository.
func NewProxyBidRepository(db *sqlx.DB) *ProxyBidRepository {
	return &ProxyBidRepository{db: db}
}

// Upsert registers or replaces the user's ceiling for an auction inside the
// bidding transaction. A partial unique index on (auction_id, user_id) WHERE
// is_active makes the conflict target the single active row. On replacement
// the row keeps its original id and created_at, so an updated ceiling does
// not lose its tie-break seniority.
func (r *ProxyBidRepository) Upsert(ctx context.Context, tx *sqlx.Tx, p *domain.ProxyBid) error {
	query := `
		INSERT INTO proxy_bids
			(id, auction_id, user_id, max_amount, current_proxy_amount, is_active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, TRUE, $6, $7)
		ON CONFLICT (auction_id, user_id) WHERE is_active
		DO UPDATE SET
			max_amount = EXCLUDED.max_amount,
			updated_at = now()
		RETURNING id, created_at`
	err := tx.GetContext(ctx, p, query,
		p.ID, p.AuctionID, p.UserID, p.MaxAmount, p.CurrentProxyAmount,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("proxy_repo.Upsert: %w", err)
	}
	return nil
}

// GetActiveByAuction returns every active proxy for an auction inside the
// bidding transaction, oldest first so tie-breaks favour earlier ceilings.
func (r *ProxyBidRepository) GetActiveByAuction(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) ([]domain.ProxyBid, error) {
	var proxies []domain.ProxyBid
	err := tx.SelectContext(ctx, &proxies,
		`SELECT * FROM proxy_bids WHERE auction_id = $1 AND is_active = TRUE ORDER BY created_at ASC`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("proxy_repo.GetActiveByAuction: %w", err)
	}
	return proxies, nil
}

// GetByID fetches a proxy bid by its primary key.
func (r *ProxyBidRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProxyBid, error) {
	var p domain.ProxyBid
	err := r.db.GetContext(ctx, &p, `SELECT * FROM proxy_bids WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProxyBidNotFound
		}
		return nil, fmt.Errorf("proxy_repo.GetByID: %w", err)
	}
	return &p, nil
}

// GetActiveByUser returns the user's active proxy for an auction, if any.
func (r *ProxyBidRepository) GetActiveByUser(ctx context.Context, auctionID, userID uuid.UUID) (*domain.ProxyBid, error) {
	var p domain.ProxyBid
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM proxy_bids WHERE auction_id = $1 AND user_id = $2 AND is_active = TRUE`,
		auctionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProxyBidNotFound
		}
		return nil, fmt.Errorf("proxy_repo.GetActiveByUser: %w", err)
	}
	return &p, nil
}

// AdvanceTo moves the winning proxy's auto-bid watermark to the new price,
// inside the bidding transaction.
func (r *ProxyBidRepository) AdvanceTo(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, price decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE proxy_bids SET current_proxy_amount = $1, updated_at = now() WHERE id = $2`,
		price, id)
	if err != nil {
		return fmt.Errorf("proxy_repo.AdvanceTo: %w", err)
	}
	return nil
}

// Deactivate retires proxies whose ceiling has been passed, inside the
// bidding transaction.
func (r *ProxyBidRepository) Deactivate(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE proxy_bids SET is_active = FALSE, updated_at = now() WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("proxy_repo.Deactivate in: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("proxy_repo.Deactivate: %w", err)
	}
	return nil
}

// CancelByUser deactivates the user's own active proxy for an auction.
// Returns ErrProxyBidNotFound when no active row exists.
func (r *ProxyBidRepository) CancelByUser(ctx context.Context, auctionID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE proxy_bids SET is_active = FALSE, updated_at = now()
		 WHERE auction_id = $1 AND user_id = $2 AND is_active = TRUE`,
		auctionID, userID)
	if err != nil {
		return fmt.Errorf("proxy_repo.CancelByUser: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProxyBidNotFound
	}
	return nil
}

// DeactivateForAuction retires every remaining active proxy when the auction
// closes, inside the closing transaction.
func (r *ProxyBidRepository) DeactivateForAuction(ctx context.Context, tx *sqlx.Tx, auctionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE proxy_bids SET is_active = FALSE, updated_at = now()
		 WHERE auction_id = $1 AND is_active = TRUE`,
		auctionID)
	if err != nil {
		return fmt.Errorf("proxy_repo.DeactivateForAuction: %w", err)
	}
	return nil
}
