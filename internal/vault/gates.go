package vault

import (
	"fmt"

	"RainLedger/internal/funds"
)

// LedgerGate is the capability handle for the option ledger: lock, release,
// and premium receipt exist only here, so no other caller can reach them.
// Issued at most once, bound to the ledger's funds account so released
// payouts can only ever land there.
type LedgerGate struct {
	v             *Vault
	ledgerAccount funds.Account
}

// IssueLedgerGate hands out the single ledger capability.
func (v *Vault) IssueLedgerGate(ledgerAccount funds.Account) (*LedgerGate, error) {
	if v.ledgerGateIssued {
		return nil, ErrGateAlreadyIssued
	}
	v.ledgerGateIssued = true
	return &LedgerGate{v: v, ledgerAccount: ledgerAccount}, nil
}

// LockCollateral reserves amount against an option at the given location key.
// All ceiling checks run before any mutation; a failed lock has no effect.
func (g *LedgerGate) LockCollateral(amount, optionID int64, loc string) error {
	v := g.v
	if amount <= 0 {
		return ErrZeroAmount
	}
	assets := v.pool.TotalAssets()
	if amount > assets-v.totalLocked {
		return fmt.Errorf("%w: need %d, free %d (option %d)", ErrInsufficientLiquidity, amount, assets-v.totalLocked, optionID)
	}
	if fracExceeds(v.totalLocked+amount, assets, v.maxUtilizationBps) {
		return fmt.Errorf("%w: lock of %d would exceed %d bps (option %d)", ErrUtilizationTooHigh, amount, v.maxUtilizationBps, optionID)
	}
	if fracExceeds(v.locationExposure[loc]+amount, assets, v.maxLocationBps) {
		return fmt.Errorf("%w: lock of %d at %s would exceed %d bps (option %d)", ErrLocationExposureTooHigh, amount, loc, v.maxLocationBps, optionID)
	}

	v.totalLocked += amount
	v.locationExposure[loc] += amount
	return nil
}

// ReleaseCollateral unwinds a lock at settlement and pays out the realized
// amount to the ledger's account. payout may be zero (no transfer then).
func (g *LedgerGate) ReleaseCollateral(amount, payout, optionID int64, loc string) error {
	v := g.v
	if amount <= 0 {
		return ErrZeroAmount
	}
	if payout < 0 || payout > amount {
		return fmt.Errorf("%w: payout %d, released %d (option %d)", ErrPayoutExceedsRelease, payout, amount, optionID)
	}
	if amount > v.totalLocked {
		return fmt.Errorf("%w: release %d, locked %d (option %d)", ErrReleaseExceedsLocked, amount, v.totalLocked, optionID)
	}
	if amount > v.locationExposure[loc] {
		return fmt.Errorf("%w: release %d at %s, exposed %d (option %d)", ErrReleaseExceedsLocked, amount, loc, v.locationExposure[loc], optionID)
	}

	// Commit accounting before the outbound transfer.
	v.totalLocked -= amount
	v.locationExposure[loc] -= amount
	if v.locationExposure[loc] == 0 {
		delete(v.locationExposure, loc)
	}
	if payout > 0 {
		v.payoutsPaid += payout
		if err := v.pool.RemoveAssets(payout); err != nil {
			return err
		}
		if err := v.book.Transfer(v.account, g.ledgerAccount, payout); err != nil {
			return err
		}
	}
	return nil
}

// ReceivePremium records an incoming premium the ledger has already
// transferred to the vault's account, routing the configured slice to the
// reinsurance pool. Routing is inert while no sink is bound or the share is
// zero.
func (g *LedgerGate) ReceivePremium(amount, optionID int64) error {
	v := g.v
	if amount <= 0 {
		return ErrZeroAmount
	}

	slice := int64(0)
	if v.reinsuranceSink != nil && v.reinsuranceShareBps > 0 {
		slice = bpsOf(amount, v.reinsuranceShareBps)
	}
	kept := amount - slice

	v.premiumsEarned += kept
	if kept > 0 {
		if err := v.pool.AddAssets(kept); err != nil {
			return err
		}
	}
	if slice > 0 {
		if err := v.book.Transfer(v.account, v.reinsuranceAccount, slice); err != nil {
			return err
		}
		if err := v.reinsuranceSink.DepositYield(slice); err != nil {
			return err
		}
	}
	return nil
}

// GuardianGate is the capability handle for the risk guardian.
// Issued at most once.
type GuardianGate struct {
	v *Vault
}

// IssueGuardianGate hands out the single guardian capability.
func (v *Vault) IssueGuardianGate() (*GuardianGate, error) {
	if v.guardianGateIssued {
		return nil, ErrGateAlreadyIssued
	}
	v.guardianGateIssued = true
	return &GuardianGate{v: v}, nil
}

// SetUtilizationLimits tightens or loosens the utilization ceilings.
// Tightening below current utilization is allowed; it blocks new locks until
// utilization falls back under the ceiling.
func (g *GuardianGate) SetUtilizationLimits(maxBps, targetBps int64) error {
	if targetBps < 0 || targetBps > maxBps || maxBps > bpsScale {
		return fmt.Errorf("%w: target=%d max=%d", ErrInvalidLimits, targetBps, maxBps)
	}
	g.v.maxUtilizationBps = maxBps
	g.v.targetUtilizationBps = targetBps
	return nil
}

// RecordReinsuranceInflow books capital pushed in by the reinsurance pool's
// draw. The fund movement happens inside the pool's draw operation; this only
// updates vault-side accounting.
func (g *GuardianGate) RecordReinsuranceInflow(amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	g.v.reinsuranceReceived += amount
	return g.v.pool.AddAssets(amount)
}
