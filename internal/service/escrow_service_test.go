package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/domain"
	"github.com/AimalShah/BarterDash-sub000/internal/payment"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stubs
// ──────────────────────────────────────────────────────────────────────────────

type escrowStoreStub struct {
	escrow *domain.EscrowTransaction

	beginCaptureErr error
	beginReleaseErr error
	beginRefundErr  error

	beginCaptures  int
	captureReverts int
	beginReleases  int
	beginRefunds   int
	reverts        int
	marksHeld      int
	marksReleased  int
	marksRefunded  int
	lastReason     string
}

func (s *escrowStoreStub) get() (*domain.EscrowTransaction, error) {
	if s.escrow == nil {
		return nil, domain.ErrEscrowNotFound
	}
	e := *s.escrow
	return &e, nil
}

func (s *escrowStoreStub) Create(ctx context.Context, e *domain.EscrowTransaction) error {
	s.escrow = e
	return nil
}
func (s *escrowStoreStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.EscrowTransaction, error) {
	return s.get()
}
func (s *escrowStoreStub) GetByOrder(ctx context.Context, orderID uuid.UUID) (*domain.EscrowTransaction, error) {
	return s.get()
}
func (s *escrowStoreStub) GetByHoldRef(ctx context.Context, holdRef string) (*domain.EscrowTransaction, error) {
	return s.get()
}
func (s *escrowStoreStub) BeginCapture(ctx context.Context, id uuid.UUID) error {
	s.beginCaptures++
	return s.beginCaptureErr
}
func (s *escrowStoreStub) RevertCapture(ctx context.Context, id uuid.UUID) error {
	s.captureReverts++
	return nil
}
func (s *escrowStoreStub) MarkHeld(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, heldAt time.Time) error {
	s.marksHeld++
	return nil
}
func (s *escrowStoreStub) BeginRelease(ctx context.Context, id uuid.UUID, reason string) error {
	s.beginReleases++
	s.lastReason = reason
	return s.beginReleaseErr
}
func (s *escrowStoreStub) MarkReleased(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, transferRef string) error {
	s.marksReleased++
	return nil
}
func (s *escrowStoreStub) BeginRefund(ctx context.Context, id uuid.UUID, reason string) error {
	s.beginRefunds++
	s.lastReason = reason
	return s.beginRefundErr
}
func (s *escrowStoreStub) MarkRefunded(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, refundRef string) error {
	s.marksRefunded++
	return nil
}
func (s *escrowStoreStub) Revert(ctx context.Context, id uuid.UUID) error {
	s.reverts++
	return nil
}
func (s *escrowStoreStub) MarkDisputed(ctx context.Context, id uuid.UUID, disputeRef string) error {
	return nil
}
func (s *escrowStoreStub) MarkCancelled(ctx context.Context, id uuid.UUID) error { return nil }
func (s *escrowStoreStub) GetDueAutoRelease(ctx context.Context, now time.Time, limit int) ([]*domain.EscrowTransaction, error) {
	return nil, nil
}
func (s *escrowStoreStub) List(ctx context.Context, limit, offset int, status string) ([]*domain.EscrowTransaction, int, error) {
	return nil, 0, nil
}

type orderStoreStub struct {
	order   *domain.Order
	updates int
}

func (s *orderStoreStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if s.order == nil {
		return nil, domain.ErrOrderNotFound
	}
	o := *s.order
	return &o, nil
}
func (s *orderStoreStub) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to domain.OrderStatus) error {
	s.updates++
	return nil
}

type userStoreStub struct {
	user *domain.User
}

func (s *userStoreStub) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrUserNotFound
	}
	u := *s.user
	return &u, nil
}
func (s *userStoreStub) IncrementSellerRevenue(ctx context.Context, tx *sqlx.Tx, sellerID uuid.UUID, amount decimal.Decimal) error {
	return nil
}

type processorStub struct {
	authorizeErr error
	captureErr   error
	transferErr  error
	refundErr    error

	authorizes int
	captures   int
	transfers  int
	refunds    int
	voids      int
}

func (p *processorStub) Authorize(ctx context.Context, buyerRef string, amount decimal.Decimal, currency string) (string, error) {
	p.authorizes++
	if p.authorizeErr != nil {
		return "", p.authorizeErr
	}
	return "hold_test", nil
}
func (p *processorStub) Capture(ctx context.Context, holdRef string) error {
	p.captures++
	return p.captureErr
}
func (p *processorStub) CancelAuthorization(ctx context.Context, holdRef string) error {
	p.voids++
	return nil
}
func (p *processorStub) Transfer(ctx context.Context, payoutAccountID string, amount decimal.Decimal, currency string) (string, error) {
	p.transfers++
	if p.transferErr != nil {
		return "", p.transferErr
	}
	return "tr_test", nil
}
func (p *processorStub) Refund(ctx context.Context, holdRef string, amount decimal.Decimal) (string, error) {
	p.refunds++
	if p.refundErr != nil {
		return "", p.refundErr
	}
	return "re_test", nil
}

func newEscrowServiceForTest(es *escrowStoreStub, os *orderStoreStub, us *userStoreStub, proc payment.Processor) *EscrowService {
	cfg := &config.Config{}
	cfg.Escrow.FeeRate = 0.08
	cfg.Escrow.Currency = "USD"
	cfg.Escrow.AutoReleaseWindow = 72 * time.Hour
	cfg.Escrow.SweepBatchSize = 100
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEscrowService(nil, es, os, us, proc, cfg, logger)
}

func escrowInStatus(status domain.EscrowStatus) *domain.EscrowTransaction {
	return &domain.EscrowTransaction{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		BuyerID:      uuid.New(),
		SellerID:     uuid.New(),
		GrossAmount:  decimal.RequireFromString("101.00"),
		PlatformFee:  decimal.RequireFromString("8.08"),
		SellerAmount: decimal.RequireFromString("92.92"),
		Currency:     "USD",
		Status:       status,
		HoldRef:      "hold_abc",
	}
}

func payableSeller(id uuid.UUID) *domain.User {
	acct := "acct_1"
	return &domain.User{ID: id, PayoutAccountID: &acct, PayoutVerified: true}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

// No money may be authorised for a seller who cannot receive the payout;
// otherwise the escrow captures funds it can never release.
func TestCreateEscrow_UnverifiedSellerRejected(t *testing.T) {
	buyer := uuid.New()
	order := &domain.Order{
		ID:       uuid.New(),
		BuyerID:  buyer,
		SellerID: uuid.New(),
		Amount:   decimal.RequireFromString("101.00"),
		Status:   domain.OrderPending,
	}
	proc := &processorStub{}
	es := &escrowStoreStub{}
	svc := newEscrowServiceForTest(es,
		&orderStoreStub{order: order},
		&userStoreStub{user: &domain.User{ID: order.SellerID}}, // no payout account
		proc)

	_, err := svc.CreateEscrow(context.Background(), order.ID, buyer, "cus_1")
	if !errors.Is(err, domain.ErrSellerNotPayable) {
		t.Fatalf("err = %v, want ErrSellerNotPayable", err)
	}
	if proc.authorizes != 0 {
		t.Error("nothing may be authorised for an unpayable seller")
	}
}

func TestCreateEscrow_BuyerMismatchForbidden(t *testing.T) {
	order := &domain.Order{
		ID:       uuid.New(),
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Amount:   decimal.RequireFromString("50.00"),
		Status:   domain.OrderPending,
	}
	proc := &processorStub{}
	svc := newEscrowServiceForTest(&escrowStoreStub{},
		&orderStoreStub{order: order},
		&userStoreStub{user: payableSeller(order.SellerID)},
		proc)

	_, err := svc.CreateEscrow(context.Background(), order.ID, uuid.New(), "cus_1")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if proc.authorizes != 0 {
		t.Error("nothing may be authorised for a foreign order")
	}
}

// A second delivery of the same capture webhook finds the escrow held and
// must not touch the processor or the order again.
func TestCaptureToEscrow_DuplicateDeliveryIsNoOp(t *testing.T) {
	es := &escrowStoreStub{escrow: escrowInStatus(domain.EscrowHeld)}
	proc := &processorStub{}
	orders := &orderStoreStub{}
	svc := newEscrowServiceForTest(es, orders, &userStoreStub{}, proc)

	got, err := svc.CaptureToEscrow(context.Background(), "hold_abc")
	if err != nil {
		t.Fatalf("CaptureToEscrow: %v", err)
	}
	if got.Status != domain.EscrowHeld {
		t.Errorf("status = %s, want held", got.Status)
	}
	if proc.captures != 0 {
		t.Error("duplicate delivery must not capture again")
	}
	if es.beginCaptures != 0 || orders.updates != 0 {
		t.Error("duplicate delivery must not mutate anything")
	}
}

// Losing the pending->capturing race means another delivery is mid-capture.
// The caller must get a non-validation error so the webhook answers 5xx and
// the processor redelivers.
func TestCaptureToEscrow_ConcurrentDeliveryRejected(t *testing.T) {
	es := &escrowStoreStub{
		escrow:          escrowInStatus(domain.EscrowPending),
		beginCaptureErr: domain.ErrEscrowStateInvalid,
	}
	proc := &processorStub{}
	svc := newEscrowServiceForTest(es, &orderStoreStub{}, &userStoreStub{}, proc)

	_, err := svc.CaptureToEscrow(context.Background(), "hold_abc")
	if !errors.Is(err, domain.ErrCaptureInFlight) {
		t.Fatalf("err = %v, want ErrCaptureInFlight", err)
	}
	if domain.IsValidation(err) {
		t.Error("in-flight capture must not be acknowledged as terminal")
	}
	if proc.captures != 0 {
		t.Error("the losing delivery must not reach the processor")
	}
}

// A failed capture returns the escrow to pending for the next redelivery.
func TestCaptureToEscrow_FailedCaptureReverts(t *testing.T) {
	es := &escrowStoreStub{escrow: escrowInStatus(domain.EscrowPending)}
	proc := &processorStub{
		captureErr: &payment.Error{Op: "capture", Retryable: true, Err: errors.New("gateway down")},
	}
	svc := newEscrowServiceForTest(es, &orderStoreStub{}, &userStoreStub{}, proc)

	_, err := svc.CaptureToEscrow(context.Background(), "hold_abc")
	if err == nil {
		t.Fatal("expected capture failure")
	}
	if es.captureReverts != 1 {
		t.Errorf("captureReverts = %d, want 1", es.captureReverts)
	}
	if es.marksHeld != 0 {
		t.Error("failed capture must not mark the escrow held")
	}
}

// Releasing anything but a held/disputed escrow is a validation error and
// performs no mutation at all.
func TestReleaseToSeller_RequiresHeld(t *testing.T) {
	e := escrowInStatus(domain.EscrowReleased)
	es := &escrowStoreStub{escrow: e, beginReleaseErr: domain.ErrEscrowStateInvalid}
	proc := &processorStub{}
	orders := &orderStoreStub{}
	svc := newEscrowServiceForTest(es, orders, &userStoreStub{user: payableSeller(e.SellerID)}, proc)

	_, err := svc.ReleaseToSeller(context.Background(), e.ID, domain.ReleaseReasonAdmin)
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if proc.transfers != 0 || es.marksReleased != 0 || orders.updates != 0 {
		t.Error("rejected release must not move money or mutate state")
	}
}

// A transfer timeout reverts the escrow to held; afterwards the row is never
// observed stuck in releasing.
func TestReleaseToSeller_TransferTimeoutRevertsToHeld(t *testing.T) {
	e := escrowInStatus(domain.EscrowHeld)
	es := &escrowStoreStub{escrow: e}
	proc := &processorStub{
		transferErr: &payment.Error{Op: "transfer", Retryable: true, Err: errors.New("timeout")},
	}
	orders := &orderStoreStub{}
	svc := newEscrowServiceForTest(es, orders, &userStoreStub{user: payableSeller(e.SellerID)}, proc)

	_, err := svc.ReleaseToSeller(context.Background(), e.ID, domain.ReleaseReasonAuto)
	if err == nil {
		t.Fatal("expected transfer failure")
	}
	if !payment.IsRetryable(err) {
		t.Error("timeout should surface as retryable")
	}
	if es.reverts != 1 {
		t.Errorf("reverts = %d, want 1 (back to held)", es.reverts)
	}
	if es.marksReleased != 0 || orders.updates != 0 {
		t.Error("failed release must not finish the transition")
	}
}

func TestRefundToBuyer_RequiresHeld(t *testing.T) {
	e := escrowInStatus(domain.EscrowRefunded)
	es := &escrowStoreStub{escrow: e, beginRefundErr: domain.ErrEscrowStateInvalid}
	proc := &processorStub{}
	svc := newEscrowServiceForTest(es, &orderStoreStub{}, &userStoreStub{}, proc)

	_, err := svc.RefundToBuyer(context.Background(), e.ID, domain.RefundReasonAdmin)
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if proc.refunds != 0 || es.marksRefunded != 0 {
		t.Error("rejected refund must not move money or mutate state")
	}
}

// The refund reason is recorded when the escrow parks in refunding, so even
// an interrupted refund keeps its audit trail.
func TestRefundToBuyer_RecordsReason(t *testing.T) {
	e := escrowInStatus(domain.EscrowHeld)
	es := &escrowStoreStub{escrow: e}
	proc := &processorStub{
		refundErr: &payment.Error{Op: "refund", Retryable: true, Err: errors.New("timeout")},
	}
	svc := newEscrowServiceForTest(es, &orderStoreStub{}, &userStoreStub{}, proc)

	_, err := svc.RefundToBuyer(context.Background(), e.ID, domain.RefundReasonAdmin)
	if err == nil {
		t.Fatal("expected refund failure")
	}
	if es.lastReason != domain.RefundReasonAdmin {
		t.Errorf("recorded reason = %q, want %q", es.lastReason, domain.RefundReasonAdmin)
	}
	if es.reverts != 1 {
		t.Errorf("reverts = %d, want 1 (back to held)", es.reverts)
	}
}
