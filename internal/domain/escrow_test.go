package domain

import (
	"testing"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name       string
		gross      string
		rate       string
		wantFee    string
		wantSeller string
	}{
		{"exact split", "100.00", "0.08", "8.00", "92.00"},
		{"rounds half up", "103.47", "0.08", "8.28", "95.19"},
		{"tiny amount", "0.01", "0.08", "0.00", "0.01"},
		{"zero rate", "250.00", "0", "0.00", "250.00"},
		{"ten percent", "99.99", "0.10", "10.00", "89.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, seller := SplitFee(dec(tt.gross), dec(tt.rate))
			if !fee.Equal(dec(tt.wantFee)) {
				t.Errorf("fee = %s, want %s", fee, tt.wantFee)
			}
			if !seller.Equal(dec(tt.wantSeller)) {
				t.Errorf("seller = %s, want %s", seller, tt.wantSeller)
			}
		})
	}
}

// The seller amount plus the fee must reconstruct the gross exactly, for any
// awkward amount. The remainder always lands in the fee.
func TestSplitFee_SumsToGross(t *testing.T) {
	rate := dec("0.0825")
	for _, gross := range []string{"0.01", "0.03", "1.99", "103.47", "9999999.99", "33.335"} {
		g := dec(gross)
		fee, seller := SplitFee(g, rate)
		if !fee.Add(seller).Equal(g) {
			t.Errorf("gross %s: fee %s + seller %s != gross", gross, fee, seller)
		}
		if fee.IsNegative() || seller.IsNegative() {
			t.Errorf("gross %s: negative split fee=%s seller=%s", gross, fee, seller)
		}
	}
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to EscrowStatus }{
		{EscrowPending, EscrowCapturing},
		{EscrowPending, EscrowCancelled},
		{EscrowCapturing, EscrowHeld},
		{EscrowCapturing, EscrowPending},
		{EscrowHeld, EscrowReleasing},
		{EscrowHeld, EscrowRefunding},
		{EscrowHeld, EscrowDisputed},
		{EscrowReleasing, EscrowReleased},
		{EscrowReleasing, EscrowHeld},
		{EscrowRefunding, EscrowRefunded},
		{EscrowRefunding, EscrowHeld},
		{EscrowDisputed, EscrowReleasing},
		{EscrowDisputed, EscrowRefunding},
	}
	for _, tr := range legal {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be legal", tr.from, tr.to)
		}
	}

	illegal := []struct{ from, to EscrowStatus }{
		{EscrowPending, EscrowHeld},
		{EscrowPending, EscrowReleasing},
		{EscrowPending, EscrowRefunding},
		{EscrowCapturing, EscrowReleased},
		{EscrowHeld, EscrowReleased},
		{EscrowHeld, EscrowCancelled},
		{EscrowReleased, EscrowRefunding},
		{EscrowRefunded, EscrowReleasing},
		{EscrowCancelled, EscrowHeld},
		{EscrowDisputed, EscrowCancelled},
	}
	for _, tr := range illegal {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestEscrowStatus_IsTerminal(t *testing.T) {
	for _, s := range []EscrowStatus{EscrowReleased, EscrowRefunded, EscrowCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []EscrowStatus{EscrowPending, EscrowCapturing, EscrowHeld, EscrowReleasing, EscrowRefunding, EscrowDisputed} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
