package vault

import (
	"errors"
	"testing"

	"RainLedger/internal/funds"
)

const vaultAccount = funds.Account("vault")

func newTestVault(t *testing.T, seed int64) (*Vault, *LedgerGate, *GuardianGate, *funds.Book) {
	t.Helper()
	book := funds.NewBook()
	v, err := New(Config{
		MaxUtilizationBps:    8_000, // 80%
		TargetUtilizationBps: 5_000, // 50%
		MaxLocationBps:       2_000, // 20%
	}, book, vaultAccount)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ledgerGate, err := v.IssueLedgerGate("ledger")
	if err != nil {
		t.Fatalf("issue ledger gate: %v", err)
	}
	guardianGate, err := v.IssueGuardianGate()
	if err != nil {
		t.Fatalf("issue guardian gate: %v", err)
	}
	if seed > 0 {
		book.Mint("lp", seed)
		if _, err := v.Deposit("lp", seed); err != nil {
			t.Fatalf("seed deposit: %v", err)
		}
	}
	return v, ledgerGate, guardianGate, book
}

func TestGates_IssuedOnce(t *testing.T) {
	v, _, _, _ := newTestVault(t, 0)

	if _, err := v.IssueLedgerGate("other"); !errors.Is(err, ErrGateAlreadyIssued) {
		t.Errorf("second ledger gate: got %v", err)
	}
	if _, err := v.IssueGuardianGate(); !errors.Is(err, ErrGateAlreadyIssued) {
		t.Errorf("second guardian gate: got %v", err)
	}
}

func TestLockCollateral_CeilingScenario(t *testing.T) {
	// 100 units, 0 locked, max utilization 80%, max location exposure 20%.
	v, gate, _, _ := newTestVault(t, 100)

	// 15 at location A: utilization 15% — fine.
	if err := gate.LockCollateral(15, 1, "locA"); err != nil {
		t.Fatalf("lock 15 at A: %v", err)
	}
	if got := v.UtilizationBps(); got != 1_500 {
		t.Errorf("utilization = %d bps, want 1500", got)
	}

	// Another 10 at A: utilization 25% is fine, but A's exposure would be
	// 25% > 20% cap.
	if err := gate.LockCollateral(10, 2, "locA"); !errors.Is(err, ErrLocationExposureTooHigh) {
		t.Errorf("lock 10 at A: got %v, want ErrLocationExposureTooHigh", err)
	}
	// Utilization ceiling is checked before location exposure: 70 more at A
	// would breach both, and the utilization error wins.
	if err := gate.LockCollateral(70, 2, "locA"); !errors.Is(err, ErrUtilizationTooHigh) {
		t.Errorf("lock 70 at A: got %v, want ErrUtilizationTooHigh", err)
	}
	if got := v.TotalLocked(); got != 15 {
		t.Errorf("failed lock must not mutate, locked = %d", got)
	}

	// 5 at B: utilization 20% ≤ 80%, B exposure 5% ≤ 20%.
	if err := gate.LockCollateral(5, 3, "locB"); err != nil {
		t.Errorf("lock 5 at B: %v", err)
	}
	if err := v.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestLockCollateral_UtilizationCeiling(t *testing.T) {
	v, gate, guardian, _ := newTestVault(t, 100)
	guardian.SetUtilizationLimits(8_000, 5_000)

	// Spread across locations to stay under the 20% location cap.
	for i, loc := range []string{"a", "b", "c", "d"} {
		if err := gate.LockCollateral(20, int64(i), loc); err != nil {
			t.Fatalf("lock 20 at %s: %v", loc, err)
		}
	}
	// 80 locked = exactly the 80% ceiling; one more unit breaches it.
	if err := gate.LockCollateral(1, 9, "e"); !errors.Is(err, ErrUtilizationTooHigh) {
		t.Errorf("lock past ceiling: got %v", err)
	}
	_ = v
}

func TestLockCollateral_InsufficientLiquidity(t *testing.T) {
	_, gate, _, _ := newTestVault(t, 100)

	if err := gate.LockCollateral(101, 1, "a"); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("got %v, want ErrInsufficientLiquidity", err)
	}
	if err := gate.LockCollateral(0, 1, "a"); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero lock: got %v", err)
	}
}

func TestReleaseCollateral_PaysOutToLedger(t *testing.T) {
	v, gate, _, book := newTestVault(t, 100)
	gate.LockCollateral(20, 1, "locA")

	if err := gate.ReleaseCollateral(20, 12, 1, "locA"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := v.TotalLocked(); got != 0 {
		t.Errorf("locked = %d, want 0", got)
	}
	if got := v.LocationExposure("locA"); got != 0 {
		t.Errorf("location exposure = %d, want 0", got)
	}
	if got := v.PayoutsPaid(); got != 12 {
		t.Errorf("payoutsPaid = %d, want 12", got)
	}
	if got := book.Balance("ledger"); got != 12 {
		t.Errorf("ledger account = %d, want 12", got)
	}
	if got := v.TotalAssets(); got != 88 {
		t.Errorf("totalAssets = %d, want 88", got)
	}
}

func TestReleaseCollateral_Validation(t *testing.T) {
	_, gate, _, _ := newTestVault(t, 100)
	gate.LockCollateral(20, 1, "locA")

	if err := gate.ReleaseCollateral(20, 25, 1, "locA"); !errors.Is(err, ErrPayoutExceedsRelease) {
		t.Errorf("payout > amount: got %v", err)
	}
	if err := gate.ReleaseCollateral(30, 0, 1, "locA"); !errors.Is(err, ErrReleaseExceedsLocked) {
		t.Errorf("release > locked: got %v", err)
	}
	if err := gate.ReleaseCollateral(5, 0, 1, "locB"); !errors.Is(err, ErrReleaseExceedsLocked) {
		t.Errorf("release at wrong location: got %v", err)
	}
}

func TestReceivePremium_NoRoutingByDefault(t *testing.T) {
	v, gate, _, book := newTestVault(t, 100)
	book.Mint("buyer", 10)
	book.Transfer("buyer", vaultAccount, 10)

	if err := gate.ReceivePremium(10, 1); err != nil {
		t.Fatalf("receive premium: %v", err)
	}
	if got := v.PremiumsEarned(); got != 10 {
		t.Errorf("premiumsEarned = %d, want 10 (routing inert by default)", got)
	}
	if got := v.TotalAssets(); got != 110 {
		t.Errorf("totalAssets = %d, want 110", got)
	}
}

type yieldSinkStub struct{ received int64 }

func (s *yieldSinkStub) DepositYield(amount int64) error {
	s.received += amount
	return nil
}

func TestReceivePremium_RoutesSliceWhenBound(t *testing.T) {
	v, gate, _, book := newTestVault(t, 100)
	sink := &yieldSinkStub{}
	if err := v.BindReinsurance("reinsurance", sink, 2_000); err != nil { // 20%
		t.Fatalf("bind: %v", err)
	}
	book.Mint("buyer", 50)
	book.Transfer("buyer", vaultAccount, 50)

	if err := gate.ReceivePremium(50, 1); err != nil {
		t.Fatalf("receive premium: %v", err)
	}
	if sink.received != 10 {
		t.Errorf("routed slice = %d, want 10", sink.received)
	}
	if got := v.PremiumsEarned(); got != 40 {
		t.Errorf("premiumsEarned = %d, want 40", got)
	}
	if got := book.Balance("reinsurance"); got != 10 {
		t.Errorf("reinsurance account = %d, want 10", got)
	}
}

func TestPremiumMultiplier_Curve(t *testing.T) {
	v, gate, _, _ := newTestVault(t, 100)

	// Below target (50%): 100%.
	if got := v.PremiumMultiplierBps(); got != 10_000 {
		t.Errorf("idle multiplier = %d, want 10000", got)
	}
	gate.LockCollateral(20, 1, "a")
	gate.LockCollateral(20, 2, "b")
	if got := v.PremiumMultiplierBps(); got != 10_000 {
		t.Errorf("multiplier at 40%% = %d, want 10000", got)
	}

	// At 65% — halfway between 50% and 80% — multiplier is 175%.
	gate.LockCollateral(20, 3, "c")
	gate.LockCollateral(5, 4, "d")
	if got := v.PremiumMultiplierBps(); got != 17_500 {
		t.Errorf("multiplier at 65%% = %d, want 17500", got)
	}

	// At the 80% ceiling: capped 250%.
	gate.LockCollateral(15, 5, "e")
	if got := v.PremiumMultiplierBps(); got != 25_000 {
		t.Errorf("multiplier at 80%% = %d, want 25000", got)
	}
}

func TestAvailableLiquidity_CappedByCeiling(t *testing.T) {
	v, gate, _, _ := newTestVault(t, 100)

	// 80% ceiling: only 80 of the 100 free units are lockable.
	if got := v.AvailableLiquidity(); got != 80 {
		t.Errorf("available = %d, want 80", got)
	}
	gate.LockCollateral(20, 1, "a")
	if got := v.AvailableLiquidity(); got != 60 {
		t.Errorf("available = %d, want 60", got)
	}
}

func TestCanUnderwrite(t *testing.T) {
	v, gate, _, _ := newTestVault(t, 100)

	if !v.CanUnderwrite(20, "locA") {
		t.Error("20 at fresh location should be underwritable")
	}
	if v.CanUnderwrite(21, "locA") {
		t.Error("21 at one location exceeds the 20% location cap")
	}
	if v.CanUnderwrite(0, "locA") {
		t.Error("zero amount is never underwritable")
	}
	gate.LockCollateral(20, 1, "locA")
	if v.CanUnderwrite(1, "locA") {
		t.Error("location at cap cannot take more")
	}
	if !v.CanUnderwrite(20, "locB") {
		t.Error("other location still has headroom")
	}
}

func TestWithdraw_CeilingIsUnlockedProRata(t *testing.T) {
	v, gate, _, book := newTestVault(t, 100)
	gate.LockCollateral(20, 1, "locA")

	// Sole depositor: withdrawable = unlocked assets = 80.
	if got := v.MaxWithdraw("lp"); got < 79 || got > 80 {
		t.Errorf("maxWithdraw = %d, want ~80", got)
	}

	allShares := v.Shares("lp")
	if _, err := v.Withdraw("lp", allShares); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("withdrawing locked collateral: got %v", err)
	}

	// Half the shares (~50 assets) fits under the 80-unit ceiling.
	out, err := v.Withdraw("lp", allShares/2)
	if err != nil {
		t.Fatalf("withdraw half: %v", err)
	}
	if out < 49 || out > 50 {
		t.Errorf("withdrew %d, want ~50", out)
	}
	if got := book.Balance("lp"); got != out {
		t.Errorf("lp balance = %d, want %d", got, out)
	}
	if err := v.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestGuardian_SetUtilizationLimits(t *testing.T) {
	v, _, guardian, _ := newTestVault(t, 100)

	if err := guardian.SetUtilizationLimits(9_000, 6_000); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	if v.MaxUtilizationBps() != 9_000 || v.TargetUtilizationBps() != 6_000 {
		t.Errorf("limits = %d/%d, want 9000/6000", v.MaxUtilizationBps(), v.TargetUtilizationBps())
	}
	if err := guardian.SetUtilizationLimits(5_000, 6_000); !errors.Is(err, ErrInvalidLimits) {
		t.Errorf("target > max: got %v", err)
	}
	if err := guardian.SetUtilizationLimits(11_000, 1_000); !errors.Is(err, ErrInvalidLimits) {
		t.Errorf("max > 100%%: got %v", err)
	}
}

func TestGuardian_RecordReinsuranceInflow(t *testing.T) {
	v, _, guardian, _ := newTestVault(t, 100)

	if err := guardian.RecordReinsuranceInflow(30); err != nil {
		t.Fatalf("record inflow: %v", err)
	}
	if got := v.ReinsuranceReceived(); got != 30 {
		t.Errorf("reinsuranceReceived = %d, want 30", got)
	}
	if got := v.TotalAssets(); got != 130 {
		t.Errorf("totalAssets = %d, want 130", got)
	}
}
