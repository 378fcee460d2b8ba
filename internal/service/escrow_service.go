package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/payment"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Store interfaces
// ──────────────────────────────────────────────────────────────────────────────

// EscrowStore is the slice of the escrow repository the service depends on.
// Satisfied by *repository.EscrowRepository; tests substitute a stub.
type EscrowStore interface {
	Create(ctx context.Context, e *domain.EscrowTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowTransaction, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.EscrowTransaction, error)
	GetByHoldRef(ctx context.Context, holdRef string) (*domain.EscrowTransaction, error)
	BeginCapture(ctx context.Context, id uuid.UUID) error
	RevertCapture(ctx context.Context, id uuid.UUID) error
	MarkHeld(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, heldAt time.Time) error
	BeginRelease(ctx context.Context, id uuid.UUID, reason string) error
	MarkReleased(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, transferRef string) error
	BeginRefund(ctx context.Context, id uuid.UUID, reason string) error
	MarkRefunded(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, refundRef string) error
	Revert(ctx context.Context, id uuid.UUID) error
	MarkDisputed(ctx context.Context, id uuid.UUID, disputeRef string) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	GetDueAutoRelease(ctx context.Context, now time.Time, limit int) ([]*domain.EscrowTransaction, error)
	List(ctx context.Context, limit, offset int, status string) ([]*domain.EscrowTransaction, int, error)
}

// OrderStore is the slice of the order repository the service depends on.
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to domain.OrderStatus) error
}

// UserStore is the slice of the user repository the service depends on.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	IncrementSellerRevenue(ctx context.Context, tx *sqlx.Tx, sellerID uuid.UUID, amount decimal.Decimal) error
}

// ──────────────────────────────────────────────────────────────────────────────
// EscrowService
// ──────────────────────────────────────────────────────────────────────────────

// EscrowService drives escrow transactions through their state machine:
// authorise, capture into escrow, release to the seller, refund to the buyer.
// Processor calls run outside database transactions; the in-flight statuses
// (releasing, refunding) make a crash between the two visible and recoverable.
type EscrowService struct {
	db         *sqlx.DB
	escrowRepo EscrowStore
	orderRepo  OrderStore
	userRepo   UserStore
	processor  payment.Processor
	cfg        *config.Config
	logger     *slog.Logger
}

// NewEscrowService creates an EscrowService.
func NewEscrowService(
	db *sqlx.DB,
	escrowRepo EscrowStore,
	orderRepo OrderStore,
	userRepo UserStore,
	processor payment.Processor,
	cfg *config.Config,
	logger *slog.Logger,
) *EscrowService {
	return &EscrowService{
		db:         db,
		escrowRepo: escrowRepo,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		processor:  processor,
		cfg:        cfg,
		logger:     logger,
	}
}

// feeRate returns the platform fee rate as a decimal.
func (s *EscrowService) feeRate() decimal.Decimal {
	return decimal.NewFromFloat(s.cfg.Escrow.FeeRate)
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateEscrow
// ──────────────────────────────────────────────────────────────────────────────

// CreateEscrow authorises the buyer's payment method for the order amount and
// opens a pending escrow. At most one live escrow can exist per order; a lost
// race voids the fresh authorisation and returns ErrEscrowExists.
func (s *EscrowService) CreateEscrow(ctx context.Context, orderID, buyerID uuid.UUID, buyerRef string) (*domain.EscrowTransaction, error) {
	// ── 1. Load and validate the order ───────────────────────────────────────
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CreateEscrow: get order: %w", err)
	}
	if order.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if !order.IsPayable() {
		return nil, domain.ErrOrderNotPayable
	}

	// ── 2. The seller must be able to receive the eventual payout ────────────
	// Checked before any money is authorised, otherwise funds get captured for
	// an escrow that can never release.
	seller, err := s.userRepo.GetByID(ctx, order.SellerID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CreateEscrow: get seller: %w", err)
	}
	if !seller.CanReceivePayout() {
		return nil, domain.ErrSellerNotPayable
	}

	// ── 3. Authorise with the processor (no DB transaction held) ─────────────
	holdRef, err := s.processor.Authorize(ctx, buyerRef, order.Amount, s.cfg.Escrow.Currency)
	if err != nil {
		s.logMoneyFailure("authorize", uuid.Nil, orderID, err)
		return nil, fmt.Errorf("escrow_service.CreateEscrow: authorize: %w", err)
	}

	// ── 4. Open the escrow row ───────────────────────────────────────────────
	fee, sellerAmount := domain.SplitFee(order.Amount, s.feeRate())
	now := time.Now().UTC()
	escrow := &domain.EscrowTransaction{
		ID:               uuid.New(),
		OrderID:          orderID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		GrossAmount:      order.Amount,
		PlatformFee:      fee,
		SellerAmount:     sellerAmount,
		Currency:         s.cfg.Escrow.Currency,
		Status:           domain.EscrowPending,
		HoldRef:          holdRef,
		ReleaseScheduled: now.Add(s.cfg.Escrow.AutoReleaseWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.escrowRepo.Create(ctx, escrow); err != nil {
		if errors.Is(err, domain.ErrEscrowExists) {
			// Lost the race: another escrow is live for this order. Void our
			// hold so the buyer is not double-authorised. Best effort.
			if cancelErr := s.processor.CancelAuthorization(ctx, holdRef); cancelErr != nil {
				s.logMoneyFailure("void_orphan_hold", escrow.ID, orderID, cancelErr)
			}
		}
		return nil, fmt.Errorf("escrow_service.CreateEscrow: %w", err)
	}
	return escrow, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CaptureToEscrow
// ──────────────────────────────────────────────────────────────────────────────

// CaptureToEscrow captures an authorised hold into escrow and marks the order
// paid. Idempotent by hold reference: capturing an already-held escrow is a
// no-op, so processor webhook retries are safe. The escrow is parked in
// capturing while the processor call runs, the same discipline release and
// refund use, so concurrent deliveries cannot both capture.
func (s *EscrowService) CaptureToEscrow(ctx context.Context, holdRef string) (*domain.EscrowTransaction, error) {
	escrow, err := s.escrowRepo.GetByHoldRef(ctx, holdRef)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: get escrow: %w", err)
	}

	// Already captured (or further along): nothing to do.
	switch escrow.Status {
	case domain.EscrowPending:
		// proceed
	case domain.EscrowCancelled:
		return nil, domain.ErrEscrowStateInvalid
	case domain.EscrowCapturing:
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: %w", domain.ErrCaptureInFlight)
	default:
		return escrow, nil
	}

	// ── 1. Park in capturing (guarded: pending only) ─────────────────────────
	// Two deliveries of the same webhook race here; the loser answers 5xx and
	// the processor redelivers after the winner settles.
	if err := s.escrowRepo.BeginCapture(ctx, escrow.ID); err != nil {
		if errors.Is(err, domain.ErrEscrowStateInvalid) {
			return nil, fmt.Errorf("escrow_service.CaptureToEscrow: %w", domain.ErrCaptureInFlight)
		}
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: park capturing: %w", err)
	}

	// ── 2. Capture with the processor ────────────────────────────────────────
	if err := s.processor.Capture(ctx, holdRef); err != nil {
		s.logMoneyFailure("capture", escrow.ID, escrow.OrderID, err)
		if revertErr := s.escrowRepo.RevertCapture(ctx, escrow.ID); revertErr != nil {
			s.logMoneyFailure("revert_capture", escrow.ID, escrow.OrderID, revertErr)
		}
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: capture: %w", err)
	}

	// ── 3. held + order paid, atomically ─────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.escrowRepo.MarkHeld(ctx, tx, escrow.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: mark held: %w", err)
	}
	if err = s.orderRepo.UpdateStatus(ctx, tx, escrow.OrderID, domain.OrderPending, domain.OrderPaid); err != nil {
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: mark order paid: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.CaptureToEscrow: commit: %w", err)
	}

	return s.escrowRepo.GetByID(ctx, escrow.ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// ReleaseToSeller
// ──────────────────────────────────────────────────────────────────────────────

// ReleaseToSeller pays the seller their net amount from a held escrow. The
// escrow is parked in releasing while the transfer runs; a retryable
// processor failure reverts it to held, a success finishes it atomically with
// the order and the seller's revenue aggregates.
func (s *EscrowService) ReleaseToSeller(ctx context.Context, escrowID uuid.UUID, reason string) (*domain.EscrowTransaction, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: get escrow: %w", err)
	}

	// ── 1. The seller must be able to receive the payout ─────────────────────
	seller, err := s.userRepo.GetByID(ctx, escrow.SellerID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: get seller: %w", err)
	}
	if !seller.CanReceivePayout() {
		return nil, domain.ErrSellerNotPayable
	}

	// ── 2. Park in releasing (guarded: held/disputed only) ───────────────────
	if err := s.escrowRepo.BeginRelease(ctx, escrowID, reason); err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: %w", err)
	}

	// ── 3. Transfer the seller's net ─────────────────────────────────────────
	transferRef, err := s.processor.Transfer(ctx, *seller.PayoutAccountID, escrow.SellerAmount, escrow.Currency)
	if err != nil {
		s.logMoneyFailure("transfer", escrowID, escrow.OrderID, err)
		if revertErr := s.escrowRepo.Revert(ctx, escrowID); revertErr != nil {
			// Money may be in flight and the row is stuck in releasing.
			// Operator intervention required; everything needed is in the log.
			s.logMoneyFailure("revert_release", escrowID, escrow.OrderID, revertErr)
		}
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: transfer: %w", err)
	}

	// ── 4. Finish: released + order delivered + seller aggregates ────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.escrowRepo.MarkReleased(ctx, tx, escrowID, transferRef); err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: mark released: %w", err)
	}
	if err = s.orderRepo.UpdateStatus(ctx, tx, escrow.OrderID, domain.OrderPaid, domain.OrderDelivered); err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: mark delivered: %w", err)
	}
	if err = s.userRepo.IncrementSellerRevenue(ctx, tx, escrow.SellerID, escrow.SellerAmount); err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: seller revenue: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.ReleaseToSeller: commit: %w", err)
	}

	s.logger.Info("escrow released",
		"escrow_id", escrowID,
		"order_id", escrow.OrderID,
		"seller_amount", escrow.SellerAmount.StringFixed(2),
		"platform_fee", escrow.PlatformFee.StringFixed(2),
		"reason", reason)

	return s.escrowRepo.GetByID(ctx, escrowID)
}

// ──────────────────────────────────────────────────────────────────────────────
// RefundToBuyer
// ──────────────────────────────────────────────────────────────────────────────

// RefundToBuyer returns the full gross amount to the buyer from a held (or
// disputed) escrow. Mirrors ReleaseToSeller: park in refunding, call the
// processor, finish or revert.
func (s *EscrowService) RefundToBuyer(ctx context.Context, escrowID uuid.UUID, reason string) (*domain.EscrowTransaction, error) {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: get escrow: %w", err)
	}

	if err := s.escrowRepo.BeginRefund(ctx, escrowID, reason); err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: %w", err)
	}

	refundRef, err := s.processor.Refund(ctx, escrow.HoldRef, escrow.GrossAmount)
	if err != nil {
		s.logMoneyFailure("refund", escrowID, escrow.OrderID, err)
		if revertErr := s.escrowRepo.Revert(ctx, escrowID); revertErr != nil {
			s.logMoneyFailure("revert_refund", escrowID, escrow.OrderID, revertErr)
		}
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: refund: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.escrowRepo.MarkRefunded(ctx, tx, escrowID, refundRef); err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: mark refunded: %w", err)
	}
	if err = s.orderRepo.UpdateStatus(ctx, tx, escrow.OrderID, domain.OrderPaid, domain.OrderRefunded); err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: mark order refunded: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow_service.RefundToBuyer: commit: %w", err)
	}

	s.logger.Info("escrow refunded",
		"escrow_id", escrowID,
		"order_id", escrow.OrderID,
		"gross_amount", escrow.GrossAmount.StringFixed(2),
		"reason", reason)

	return s.escrowRepo.GetByID(ctx, escrowID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel / disputes
// ──────────────────────────────────────────────────────────────────────────────

// CancelEscrow voids a pending (never captured) escrow and its authorisation,
// and cancels the order.
func (s *EscrowService) CancelEscrow(ctx context.Context, escrowID uuid.UUID) error {
	escrow, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return fmt.Errorf("escrow_service.CancelEscrow: get escrow: %w", err)
	}

	if err := s.escrowRepo.MarkCancelled(ctx, escrowID); err != nil {
		return fmt.Errorf("escrow_service.CancelEscrow: %w", err)
	}
	if err := s.processor.CancelAuthorization(ctx, escrow.HoldRef); err != nil {
		// The hold expires on its own at the processor; log and move on.
		s.logMoneyFailure("void", escrowID, escrow.OrderID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("escrow_service.CancelEscrow: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.orderRepo.UpdateStatus(ctx, tx, escrow.OrderID, domain.OrderPending, domain.OrderCancelled); err != nil {
		return fmt.Errorf("escrow_service.CancelEscrow: cancel order: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("escrow_service.CancelEscrow: commit: %w", err)
	}
	return nil
}

// HandleDisputeCreated freezes a held escrow when the processor reports a
// dispute. Auto-release skips disputed escrows; resolution comes later via
// ReleaseToSeller or RefundToBuyer from the back office.
func (s *EscrowService) HandleDisputeCreated(ctx context.Context, holdRef, disputeRef string) error {
	escrow, err := s.escrowRepo.GetByHoldRef(ctx, holdRef)
	if err != nil {
		return fmt.Errorf("escrow_service.HandleDisputeCreated: get escrow: %w", err)
	}
	if err := s.escrowRepo.MarkDisputed(ctx, escrow.ID, disputeRef); err != nil {
		return fmt.Errorf("escrow_service.HandleDisputeCreated: %w", err)
	}
	s.logger.Warn("escrow disputed",
		"escrow_id", escrow.ID,
		"order_id", escrow.OrderID,
		"dispute_ref", disputeRef)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Auto-release sweep
// ──────────────────────────────────────────────────────────────────────────────

// ProcessAutoRelease releases every held escrow whose release window has
// elapsed. Called by the scheduler. A failure on one escrow does not stop
// the sweep. Returns the number of escrows released.
func (s *EscrowService) ProcessAutoRelease(ctx context.Context) (int, []error) {
	due, err := s.escrowRepo.GetDueAutoRelease(ctx, time.Now().UTC(), s.cfg.Escrow.SweepBatchSize)
	if err != nil {
		return 0, []error{fmt.Errorf("escrow_service.ProcessAutoRelease: %w", err)}
	}

	released := 0
	var errs []error
	for _, e := range due {
		if _, err := s.ReleaseToSeller(ctx, e.ID, domain.ReleaseReasonAuto); err != nil {
			// Unverified sellers and in-flight disputes stay held for the
			// next sweep or manual handling.
			errs = append(errs, fmt.Errorf("escrow %s: %w", e.ID, err))
			continue
		}
		released++
	}
	return released, errs
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetEscrowByID returns a single escrow transaction.
func (s *EscrowService) GetEscrowByID(ctx context.Context, id uuid.UUID) (*domain.EscrowTransaction, error) {
	e, err := s.escrowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.GetEscrowByID: %w", err)
	}
	return e, nil
}

// GetEscrowByOrder returns the live escrow for an order.
func (s *EscrowService) GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*domain.EscrowTransaction, error) {
	e, err := s.escrowRepo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("escrow_service.GetEscrowByOrder: %w", err)
	}
	return e, nil
}

// ListEscrows returns paginated escrows filtered by optional status. Used by
// the back office.
func (s *EscrowService) ListEscrows(ctx context.Context, limit, offset int, status string) ([]*domain.EscrowTransaction, int, error) {
	escrows, total, err := s.escrowRepo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("escrow_service.ListEscrows: %w", err)
	}
	return escrows, total, nil
}

// logMoneyFailure records a failed processor interaction with everything an
// operator needs to reconcile it.
func (s *EscrowService) logMoneyFailure(op string, escrowID, orderID uuid.UUID, err error) {
	var pe *payment.Error
	code := ""
	retryable := false
	if errors.As(err, &pe) {
		code = pe.Code
		retryable = pe.Retryable
	}
	s.logger.Error("payment operation failed",
		"op", op,
		"escrow_id", escrowID,
		"order_id", orderID,
		"code", code,
		"retryable", retryable,
		"err", err)
}
