package service_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// TestConcurrentBidSerialisation simulates 50 goroutines racing to raise a
// shared price — protected by a mutex, each must beat the price it observed
// under the lock. This test verifies our concurrency guard pattern compiles
// and passes -race.
//
// In the real BiddingService, the auction row's FOR UPDATE lock provides this
// guarantee. Here we replicate the same guard with sync primitives so the
// race detector can confirm the pattern is sound.
func TestConcurrentBidSerialisation(t *testing.T) {
	const workers = 50

	price := decimal.NewFromInt(50)
	increment := decimal.NewFromInt(1)
	var mu sync.Mutex
	var accepted int64
	var rejected int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()

			// Everyone bids the same amount: only one can be high enough once
			// the first raise lands.
			bid := decimal.NewFromInt(51)

			mu.Lock()
			defer mu.Unlock()

			if bid.LessThan(price.Add(increment)) {
				atomic.AddInt64(&rejected, 1)
				return
			}
			price = bid
			atomic.AddInt64(&accepted, 1)
		}(int64(i))
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("exactly 1 bid at 51 should clear, got %d", accepted)
	}
	if rejected != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, rejected)
	}
	if !price.Equal(decimal.NewFromInt(51)) {
		t.Errorf("final price should be 51, got %s", price)
	}
}

// TestConcurrentCloseGuard verifies that the close-once protection works
// under concurrent access: only one of N goroutines performs the close, as
// the guarded status UPDATE does in the database.
func TestConcurrentCloseGuard(t *testing.T) {
	const workers = 20
	type auctionState struct {
		mu     sync.Mutex
		closed bool
	}

	var (
		a      auctionState
		wins   int64
		losses int64
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			a.mu.Lock()
			defer a.mu.Unlock()

			if a.closed {
				// Second+ call: should be rejected
				atomic.AddInt64(&losses, 1)
				return
			}
			a.closed = true
			atomic.AddInt64(&wins, 1)
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly 1 goroutine should have closed the auction, got %d", wins)
	}
	if losses != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, losses)
	}
}
