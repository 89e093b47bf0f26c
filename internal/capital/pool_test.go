package capital

import (
	"errors"
	"testing"
)

func TestPool_FirstDepositRoughlyProportional(t *testing.T) {
	p := NewPool()

	shares, err := p.Deposit("alice", 1_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// With the virtual offset the first depositor gets ~VirtualShares per unit.
	if shares <= 0 {
		t.Fatalf("shares = %d, want > 0", shares)
	}
	if got := p.TotalAssets(); got != 1_000 {
		t.Errorf("totalAssets = %d, want 1000", got)
	}

	assets := p.AssetsForShares(shares)
	if assets < 999 || assets > 1_000 {
		t.Errorf("round trip assets = %d, want ~1000", assets)
	}
}

func TestPool_SecondDepositorFairShare(t *testing.T) {
	p := NewPool()
	p.Deposit("alice", 1_000)
	bobShares, _ := p.Deposit("bob", 500)

	bobAssets := p.AssetsForShares(bobShares)
	if bobAssets < 499 || bobAssets > 500 {
		t.Errorf("bob redeemable = %d, want ~500", bobAssets)
	}
}

func TestPool_DonationDoesNotCaptureValue(t *testing.T) {
	// An attacker deposits 1 unit then donates a large amount hoping the next
	// depositor's assets round to zero shares. The virtual offset keeps the
	// victim's share count non-zero and the attacker's profit negligible.
	p := NewPool()
	p.Deposit("attacker", 1)
	p.AddAssets(1_000_000) // donation

	victimShares, err := p.Deposit("victim", 1_000_000)
	if err != nil {
		t.Fatalf("victim deposit: %v", err)
	}
	if victimShares <= 0 {
		t.Fatal("victim received zero shares")
	}

	victimAssets := p.AssetsForShares(victimShares)
	// Victim must recover nearly all of their deposit.
	if victimAssets < 990_000 {
		t.Errorf("victim redeemable = %d, want >= 990000", victimAssets)
	}
}

func TestPool_RedeemBurnsShares(t *testing.T) {
	p := NewPool()
	shares, _ := p.Deposit("alice", 1_000)

	assets, err := p.Redeem("alice", shares)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if assets < 999 || assets > 1_000 {
		t.Errorf("redeemed = %d, want ~1000", assets)
	}
	if got := p.Shares("alice"); got != 0 {
		t.Errorf("remaining shares = %d, want 0", got)
	}
}

func TestPool_RedeemInsufficientShares(t *testing.T) {
	p := NewPool()
	shares, _ := p.Deposit("alice", 100)

	_, err := p.Redeem("alice", shares+1)
	if !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestPool_AppreciationFlowsToHolders(t *testing.T) {
	p := NewPool()
	shares, _ := p.Deposit("alice", 1_000)

	// Earned premium grows assets without minting shares.
	p.AddAssets(500)

	assets := p.AssetsForShares(shares)
	if assets < 1_497 || assets > 1_500 {
		t.Errorf("appreciated value = %d, want ~1500", assets)
	}
}

func TestPool_TransferShares(t *testing.T) {
	p := NewPool()
	shares, _ := p.Deposit("alice", 1_000)

	if err := p.TransferShares("alice", "bob", shares); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := p.Shares("bob"); got != shares {
		t.Errorf("bob shares = %d, want %d", got, shares)
	}
	if err := p.TransferShares("alice", "bob", 1); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestPool_RemoveAssetsBounded(t *testing.T) {
	p := NewPool()
	p.Deposit("alice", 100)

	if err := p.RemoveAssets(101); !errors.Is(err, ErrInsufficientAssets) {
		t.Errorf("expected ErrInsufficientAssets, got %v", err)
	}
	if err := p.RemoveAssets(100); err != nil {
		t.Errorf("remove all: %v", err)
	}
}
