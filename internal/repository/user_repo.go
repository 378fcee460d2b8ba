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

// UserRepository handles all database operations for Users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID fetches a user by their primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByID: %w", err)
	}
	return &u, nil
}

// IncrementSellerRevenue adds a completed sale to the seller's aggregates,
// inside the payout transaction.
func (r *UserRepository) IncrementSellerRevenue(ctx context.Context, tx *sqlx.Tx, sellerID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET total_revenue = total_revenue + $1,
		    sales_count   = sales_count + 1,
		    updated_at    = now()
		WHERE id = $2`
	res, err := tx.ExecContext(ctx, query, amount, sellerID)
	if err != nil {
		return fmt.Errorf("user_repo.IncrementSellerRevenue: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
