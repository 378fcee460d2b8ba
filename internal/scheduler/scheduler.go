// Package scheduler manages the two background goroutines that keep the
// auction marketplace moving:
//  1. auctionCloseLoop – closes expired auctions every second.
//  2. autoReleaseLoop  – releases held escrows whose window elapsed.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/config"
	"github.com/AimalShah/BarterDash-sub000/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the auction-close and escrow-release sweeps. Call Start(ctx)
// once from main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	biddingSvc *service.BiddingService
	escrowSvc  *service.EscrowService
	cfg        *config.Config
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	biddingSvc *service.BiddingService,
	escrowSvc *service.EscrowService,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		biddingSvc: biddingSvc,
		escrowSvc:  escrowSvc,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches the background goroutines.  It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.auctionCloseLoop(ctx)
	go s.autoReleaseLoop(ctx)
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// auctionCloseLoop
// ──────────────────────────────────────────────────────────────────────────────

// auctionCloseLoop sweeps for active auctions past their close time. The
// interval is short (1s default): a hammer that falls late is visible to
// every viewer of the stream.
func (s *Scheduler) auctionCloseLoop(ctx context.Context) {
	defer s.recoverAndLog("auctionCloseLoop")

	ticker := time.NewTicker(s.cfg.Auction.CloseSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auctionCloseLoop: shutting down")
			return
		case <-ticker.C:
			closed, errs := s.biddingSvc.CloseExpiredAuctions(ctx)
			if closed > 0 {
				s.logger.Info("auctionCloseLoop: auctions closed", "count", closed)
			}
			for _, err := range errs {
				s.logger.Error("auctionCloseLoop: close failed", "err", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// autoReleaseLoop
// ──────────────────────────────────────────────────────────────────────────────

// autoReleaseLoop sweeps for held escrows whose release window has elapsed
// and pays the sellers out. Per-escrow failures are logged and retried on the
// next sweep; they never stop the loop.
func (s *Scheduler) autoReleaseLoop(ctx context.Context) {
	defer s.recoverAndLog("autoReleaseLoop")

	ticker := time.NewTicker(s.cfg.Escrow.ReleaseSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("autoReleaseLoop: shutting down")
			return
		case <-ticker.C:
			released, errs := s.escrowSvc.ProcessAutoRelease(ctx)
			if released > 0 {
				s.logger.Info("autoReleaseLoop: escrows released", "count", released)
			}
			for _, err := range errs {
				s.logger.Error("autoReleaseLoop: release failed", "err", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
