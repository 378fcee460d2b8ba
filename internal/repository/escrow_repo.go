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
	"github.com/lib/pq"
)

// pqUniqueViolation is the Postgres error code for unique_violation.
const pqUniqueViolation = "23505"

// EscrowRepository handles all database operations for escrow transactions.
// Every status change is a guarded UPDATE (WHERE status = <from>): the state
// machine is enforced in SQL, and a zero-row update surfaces as a domain
// error instead of silently clobbering a concurrent transition.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository creates a new EscrowRepository.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create inserts a new escrow row in status pending. A partial unique index
// on order_id (excluding cancelled rows) makes a second live escrow for the
// same order fail with ErrEscrowExists.
func (r *EscrowRepository) Create(ctx context.Context, e *domain.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions
			(id, order_id, buyer_id, seller_id, gross_amount, platform_fee, seller_amount,
			 currency, status, hold_ref, release_scheduled_at, created_at, updated_at)
		VALUES
			(:id, :order_id, :buyer_id, :seller_id, :gross_amount, :platform_fee, :seller_amount,
			 :currency, :status, :hold_ref, :release_scheduled_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domain.ErrEscrowExists
		}
		return fmt.Errorf("escrow_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches an escrow transaction by its primary key.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowTransaction, error) {
	var e domain.EscrowTransaction
	err := r.db.GetContext(ctx, &e, `SELECT * FROM escrow_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetByID: %w", err)
	}
	return &e, nil
}

// GetByOrder returns the live (non-cancelled) escrow for an order.
func (r *EscrowRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.EscrowTransaction, error) {
	var e domain.EscrowTransaction
	err := r.db.GetContext(ctx, &e,
		`SELECT * FROM escrow_transactions WHERE order_id = $1 AND status != 'cancelled'`,
		orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetByOrder: %w", err)
	}
	return &e, nil
}

// GetByHoldRef returns the escrow created for a processor authorisation.
// Capture webhooks key on this for idempotency.
func (r *EscrowRepository) GetByHoldRef(ctx context.Context, holdRef string) (*domain.EscrowTransaction, error) {
	var e domain.EscrowTransaction
	err := r.db.GetContext(ctx, &e,
		`SELECT * FROM escrow_transactions WHERE hold_ref = $1`, holdRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow_repo.GetByHoldRef: %w", err)
	}
	return &e, nil
}

// BeginCapture moves pending -> capturing before the processor capture runs,
// so duplicate deliveries of the same webhook serialize on the status guard.
func (r *EscrowRepository) BeginCapture(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'capturing',
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.BeginCapture: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// RevertCapture returns a capturing escrow to pending after a failed capture,
// so a webhook redelivery can attempt it again.
func (r *EscrowRepository) RevertCapture(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'pending',
		    updated_at = now()
		WHERE id = $1 AND status = 'capturing'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.RevertCapture: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// MarkHeld finishes capturing -> held once the processor confirms capture.
// The auto-release clock was fixed at creation and is never touched here.
func (r *EscrowRepository) MarkHeld(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, heldAt time.Time) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'held',
		    held_at    = $1,
		    updated_at = now()
		WHERE id = $2 AND status = 'capturing'`
	return r.guarded(ctx, tx, "MarkHeld", query, heldAt, id)
}

// BeginRelease moves held -> releasing before the processor transfer is
// attempted, so a crash mid-transfer is visible.
func (r *EscrowRepository) BeginRelease(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE escrow_transactions
		SET status         = 'releasing',
		    release_reason = $1,
		    updated_at     = now()
		WHERE id = $2 AND status IN ('held', 'disputed')`
	res, err := r.db.ExecContext(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.BeginRelease: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// MarkReleased finishes releasing -> released with the processor's transfer
// reference, inside the payout transaction.
func (r *EscrowRepository) MarkReleased(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, transferRef string) error {
	query := `
		UPDATE escrow_transactions
		SET status       = 'released',
		    transfer_ref = $1,
		    released_at  = now(),
		    updated_at   = now()
		WHERE id = $2 AND status = 'releasing'`
	return r.guarded(ctx, tx, "MarkReleased", query, transferRef, id)
}

// BeginRefund moves held -> refunding before the processor refund is
// attempted, recording why the money is going back.
func (r *EscrowRepository) BeginRefund(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE escrow_transactions
		SET status         = 'refunding',
		    release_reason = $1,
		    updated_at     = now()
		WHERE id = $2 AND status IN ('held', 'disputed')`
	res, err := r.db.ExecContext(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.BeginRefund: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// MarkRefunded finishes refunding -> refunded with the processor's refund
// reference, inside the refund transaction.
func (r *EscrowRepository) MarkRefunded(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, refundRef string) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'refunded',
		    refund_ref = $1,
		    updated_at = now()
		WHERE id = $2 AND status = 'refunding'`
	return r.guarded(ctx, tx, "MarkRefunded", query, refundRef, id)
}

// Revert returns an in-flight escrow to held after a retryable processor
// failure, so the operation can be attempted again.
func (r *EscrowRepository) Revert(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'held',
		    updated_at = now()
		WHERE id = $1 AND status IN ('releasing', 'refunding')`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.Revert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// MarkDisputed moves held -> disputed when the processor reports a dispute.
func (r *EscrowRepository) MarkDisputed(ctx context.Context, id uuid.UUID, disputeRef string) error {
	query := `
		UPDATE escrow_transactions
		SET status      = 'disputed',
		    dispute_ref = $1,
		    updated_at  = now()
		WHERE id = $2 AND status = 'held'`
	res, err := r.db.ExecContext(ctx, query, disputeRef, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.MarkDisputed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// MarkCancelled voids a pending escrow whose authorisation was released.
func (r *EscrowRepository) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE escrow_transactions
		SET status     = 'cancelled',
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("escrow_repo.MarkCancelled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}

// GetDueAutoRelease returns held escrows whose release window has elapsed,
// oldest first, capped for one sweep.
func (r *EscrowRepository) GetDueAutoRelease(ctx context.Context, now time.Time, limit int) ([]*domain.EscrowTransaction, error) {
	var escrows []*domain.EscrowTransaction
	err := r.db.SelectContext(ctx, &escrows,
		`SELECT * FROM escrow_transactions
		 WHERE status = 'held' AND release_scheduled_at <= $1
		 ORDER BY release_scheduled_at ASC
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.GetDueAutoRelease: %w", err)
	}
	return escrows, nil
}

// List returns a paginated slice of escrows filtered by optional status.
// status="" returns all statuses. Returns (escrows, totalCount, error).
func (r *EscrowRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.EscrowTransaction, int, error) {
	var escrows []*domain.EscrowTransaction
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM escrow_transactions WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("escrow_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &escrows,
			`SELECT * FROM escrow_transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("escrow_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM escrow_transactions`); err != nil {
			return nil, 0, fmt.Errorf("escrow_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &escrows,
			`SELECT * FROM escrow_transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("escrow_repo.List select: %w", err)
		}
	}
	return escrows, total, nil
}

// FinanceReport holds aggregated escrow money flow for a date range.
type FinanceReport struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	GrossVolume   string    `json:"gross_volume"`
	FeesEarned    string    `json:"fees_earned"`
	SellerPayouts string    `json:"seller_payouts"`
	Refunded      string    `json:"refunded"`
	ReleasedCount int       `json:"released_count"`
	RefundedCount int       `json:"refunded_count"`
	DisputedCount int       `json:"disputed_count"`
}

// GetFinanceReport aggregates settled escrow flows for a date range.
func (r *EscrowRepository) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	type row struct {
		GrossVolume   string `db:"gross_volume"`
		FeesEarned    string `db:"fees_earned"`
		SellerPayouts string `db:"seller_payouts"`
		ReleasedCount int    `db:"released_count"`
	}
	var rel row
	err := r.db.GetContext(ctx, &rel, `
		SELECT
			COALESCE(SUM(gross_amount), 0)::text  AS gross_volume,
			COALESCE(SUM(platform_fee), 0)::text  AS fees_earned,
			COALESCE(SUM(seller_amount), 0)::text AS seller_payouts,
			COUNT(*)                              AS released_count
		FROM escrow_transactions
		WHERE status = 'released'
		  AND released_at >= $1 AND released_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.GetFinanceReport released: %w", err)
	}

	type rrow struct {
		Refunded      string `db:"refunded"`
		RefundedCount int    `db:"refunded_count"`
	}
	var ref rrow
	err = r.db.GetContext(ctx, &ref, `
		SELECT
			COALESCE(SUM(gross_amount), 0)::text AS refunded,
			COUNT(*)                             AS refunded_count
		FROM escrow_transactions
		WHERE status = 'refunded'
		  AND updated_at >= $1 AND updated_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.GetFinanceReport refunded: %w", err)
	}

	var disputed int
	err = r.db.GetContext(ctx, &disputed,
		`SELECT COUNT(*) FROM escrow_transactions WHERE status = 'disputed'`)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.GetFinanceReport disputed: %w", err)
	}

	// Amounts stay as strings to preserve decimal precision for JSON.
	return &FinanceReport{
		From:          from,
		To:            to,
		GrossVolume:   rel.GrossVolume,
		FeesEarned:    rel.FeesEarned,
		SellerPayouts: rel.SellerPayouts,
		Refunded:      ref.Refunded,
		ReleasedCount: rel.ReleasedCount,
		RefundedCount: ref.RefundedCount,
		DisputedCount: disputed,
	}, nil
}

// CountByStatus returns escrow counts grouped by status, for the dashboard.
func (r *EscrowRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	type row struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var rows []row
	err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM escrow_transactions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("escrow_repo.CountByStatus: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// guarded runs a status-guarded transition inside a transaction and maps a
// zero-row update to ErrEscrowStateInvalid.
func (r *EscrowRepository) guarded(ctx context.Context, tx *sqlx.Tx, op, query string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("escrow_repo.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEscrowStateInvalid
	}
	return nil
}
