// Package vault implements the primary liquidity pool: it holds pooled
// capital, locks collateral against options, enforces utilization and
// per-location exposure ceilings, and prices risk through a utilization-based
// premium multiplier.
//
// Mutating operations are split across capability gates so the restriction
// "callable only by X" is visible in the type system: the option ledger holds
// the one *LedgerGate, the risk guardian holds the one *GuardianGate. The
// vault itself exposes only read views and the depositor surface. Callers
// serialize access (the engine holds the lock).
package vault

import (
	"errors"
	"fmt"
	"math/big"

	"RainLedger/internal/capital"
	"RainLedger/internal/funds"
)

const bpsScale = 10_000

var (
	ErrZeroAmount              = errors.New("vault: amount must be positive")
	ErrInsufficientLiquidity   = errors.New("vault: insufficient liquidity")
	ErrUtilizationTooHigh      = errors.New("vault: utilization ceiling exceeded")
	ErrLocationExposureTooHigh = errors.New("vault: location exposure ceiling exceeded")
	ErrReleaseExceedsLocked    = errors.New("vault: release exceeds locked collateral")
	ErrPayoutExceedsRelease    = errors.New("vault: payout exceeds released collateral")
	ErrInvalidLimits           = errors.New("vault: invalid utilization limits")
	ErrGateAlreadyIssued       = errors.New("vault: capability gate already issued")
)

// YieldSink receives the reinsurance slice of incoming premiums.
// The reinsurance pool's vault-facing gate implements it.
type YieldSink interface {
	DepositYield(amount int64) error
}

// Config carries the risk ceilings, all in basis points of total assets.
type Config struct {
	MaxUtilizationBps    int64 // e.g. 8000 = 80%
	TargetUtilizationBps int64 // premium multiplier knee, e.g. 5000
	MaxLocationBps       int64 // per-location exposure ceiling, e.g. 2000
}

// Vault owns the primary pool's accounting. All fund movement touching the
// vault goes through its funds account; the vault is the only component that
// instructs transfers out of that account.
type Vault struct {
	pool    capital.Pool
	book    *funds.Book
	account funds.Account

	totalLocked         int64
	premiumsEarned      int64
	payoutsPaid         int64
	reinsuranceReceived int64
	locationExposure    map[string]int64

	maxUtilizationBps    int64
	targetUtilizationBps int64
	maxLocationBps       int64

	// Reinsurance routing is inert until Bind sets a sink and a non-zero
	// share. Pre-reinsurance behavior is the default.
	reinsuranceShareBps int64
	reinsuranceAccount  funds.Account
	reinsuranceSink     YieldSink

	ledgerGateIssued   bool
	guardianGateIssued bool
}

func New(cfg Config, book *funds.Book, account funds.Account) (*Vault, error) {
	if cfg.TargetUtilizationBps > cfg.MaxUtilizationBps || cfg.MaxUtilizationBps > bpsScale {
		return nil, fmt.Errorf("%w: target=%d max=%d", ErrInvalidLimits, cfg.TargetUtilizationBps, cfg.MaxUtilizationBps)
	}
	if cfg.MaxLocationBps <= 0 || cfg.MaxLocationBps > bpsScale {
		return nil, fmt.Errorf("%w: location=%d", ErrInvalidLimits, cfg.MaxLocationBps)
	}
	return &Vault{
		pool:                 *capital.NewPool(),
		book:                 book,
		account:              account,
		locationExposure:     make(map[string]int64),
		maxUtilizationBps:    cfg.MaxUtilizationBps,
		targetUtilizationBps: cfg.TargetUtilizationBps,
		maxLocationBps:       cfg.MaxLocationBps,
	}, nil
}

// BindReinsurance activates premium routing to the reinsurance pool.
func (v *Vault) BindReinsurance(account funds.Account, sink YieldSink, shareBps int64) error {
	if shareBps < 0 || shareBps > bpsScale {
		return fmt.Errorf("%w: reinsurance share %d bps", ErrInvalidLimits, shareBps)
	}
	v.reinsuranceAccount = account
	v.reinsuranceSink = sink
	v.reinsuranceShareBps = shareBps
	return nil
}

// fracExceeds reports whether part/whole > bps/10000, computed without
// intermediate overflow. A zero whole exceeds any ceiling for non-zero part.
func fracExceeds(part, whole, bps int64) bool {
	if part == 0 {
		return false
	}
	if whole == 0 {
		return true
	}
	lhs := new(big.Int).Mul(big.NewInt(part), big.NewInt(bpsScale))
	rhs := new(big.Int).Mul(big.NewInt(bps), big.NewInt(whole))
	return lhs.Cmp(rhs) > 0
}

func bpsOf(amount, bps int64) int64 {
	n := new(big.Int).Mul(big.NewInt(amount), big.NewInt(bps))
	n.Quo(n, big.NewInt(bpsScale))
	return n.Int64()
}

// --- Read views ---

func (v *Vault) TotalAssets() int64         { return v.pool.TotalAssets() }
func (v *Vault) TotalLocked() int64         { return v.totalLocked }
func (v *Vault) PremiumsEarned() int64      { return v.premiumsEarned }
func (v *Vault) PayoutsPaid() int64         { return v.payoutsPaid }
func (v *Vault) ReinsuranceReceived() int64 { return v.reinsuranceReceived }
func (v *Vault) Account() funds.Account     { return v.account }

// LocationExposure returns the currently locked exposure at a location key.
func (v *Vault) LocationExposure(loc string) int64 {
	return v.locationExposure[loc]
}

// UtilizationBps returns totalLocked / totalAssets in basis points
// (zero when the vault holds no assets).
func (v *Vault) UtilizationBps() int64 {
	assets := v.pool.TotalAssets()
	if assets == 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(v.totalLocked), big.NewInt(bpsScale))
	n.Quo(n, big.NewInt(assets))
	return n.Int64()
}

// AvailableLiquidity is the unlocked assets capped so that a full lock of it
// would still not breach the utilization ceiling.
func (v *Vault) AvailableLiquidity() int64 {
	assets := v.pool.TotalAssets()
	free := assets - v.totalLocked
	maxLockable := bpsOf(assets, v.maxUtilizationBps) - v.totalLocked
	if maxLockable < 0 {
		maxLockable = 0
	}
	if free < maxLockable {
		return free
	}
	return maxLockable
}

// CanUnderwrite reports whether amount can be locked at location without
// breaching any ceiling.
func (v *Vault) CanUnderwrite(amount int64, loc string) bool {
	if amount <= 0 {
		return false
	}
	assets := v.pool.TotalAssets()
	if amount > assets-v.totalLocked {
		return false
	}
	if fracExceeds(v.totalLocked+amount, assets, v.maxUtilizationBps) {
		return false
	}
	if fracExceeds(v.locationExposure[loc]+amount, assets, v.maxLocationBps) {
		return false
	}
	return true
}

// PremiumMultiplierBps is the non-decreasing risk-pricing curve consumed by
// the off-chain premium calculator: flat 100% below target utilization,
// linear to 250% between target and max, capped at 250% beyond.
func (v *Vault) PremiumMultiplierBps() int64 {
	const (
		baseBps = 10_000 // 100%
		capBps  = 25_000 // 250%
	)
	util := v.UtilizationBps()
	if util <= v.targetUtilizationBps {
		return baseBps
	}
	if util >= v.maxUtilizationBps || v.maxUtilizationBps == v.targetUtilizationBps {
		return capBps
	}
	span := v.maxUtilizationBps - v.targetUtilizationBps
	return baseBps + (capBps-baseBps)*(util-v.targetUtilizationBps)/span
}

// MaxUtilizationBps returns the current utilization ceiling.
func (v *Vault) MaxUtilizationBps() int64 { return v.maxUtilizationBps }

// TargetUtilizationBps returns the premium multiplier knee.
func (v *Vault) TargetUtilizationBps() int64 { return v.targetUtilizationBps }

// MaxLocationBps returns the per-location exposure ceiling.
func (v *Vault) MaxLocationBps() int64 { return v.maxLocationBps }

// ReinsuranceShareBps returns the premium routing fraction.
func (v *Vault) ReinsuranceShareBps() int64 { return v.reinsuranceShareBps }

// --- Depositor surface ---

// Deposit moves assets from the depositor into the vault and mints shares.
func (v *Vault) Deposit(depositor funds.Account, assets int64) (int64, error) {
	if assets <= 0 {
		return 0, ErrZeroAmount
	}
	if err := v.book.Transfer(depositor, v.account, assets); err != nil {
		return 0, err
	}
	shares, err := v.pool.Deposit(depositor, assets)
	if err != nil {
		// Unwind the transfer so a failed deposit has no effect.
		_ = v.book.Transfer(v.account, depositor, assets)
		return 0, err
	}
	return shares, nil
}

// MaxWithdraw is the asset ceiling a depositor may take out: their pro-rata
// share of UNLOCKED assets only. Locked collateral is never withdrawable
// while an option is outstanding against it.
func (v *Vault) MaxWithdraw(depositor funds.Account) int64 {
	assets := v.pool.TotalAssets()
	if assets == 0 {
		return 0
	}
	holderAssets := v.pool.HolderAssets(depositor)
	unlocked := assets - v.totalLocked
	n := new(big.Int).Mul(big.NewInt(holderAssets), big.NewInt(unlocked))
	n.Quo(n, big.NewInt(assets))
	return n.Int64()
}

// Withdraw burns shares and pays the corresponding assets out, bounded by
// MaxWithdraw. The outbound transfer is the last step.
func (v *Vault) Withdraw(depositor funds.Account, shares int64) (int64, error) {
	if shares <= 0 {
		return 0, ErrZeroAmount
	}
	assetsOut := v.pool.AssetsForShares(shares)
	if assetsOut > v.MaxWithdraw(depositor) {
		return 0, fmt.Errorf("%w: %d exceeds withdrawable %d", ErrInsufficientLiquidity, assetsOut, v.MaxWithdraw(depositor))
	}
	assetsOut, err := v.pool.Redeem(depositor, shares)
	if err != nil {
		return 0, err
	}
	if assetsOut > 0 {
		if err := v.book.Transfer(v.account, depositor, assetsOut); err != nil {
			return 0, err
		}
	}
	return assetsOut, nil
}

// Shares returns a depositor's share balance.
func (v *Vault) Shares(depositor funds.Account) int64 {
	return v.pool.Shares(depositor)
}

// CheckInvariants verifies the vault's accounting invariants; the engine runs
// it after every state-changing operation in tests and on demand.
func (v *Vault) CheckInvariants() error {
	assets := v.pool.TotalAssets()
	if v.totalLocked > assets {
		return fmt.Errorf("vault: totalLocked %d > totalAssets %d", v.totalLocked, assets)
	}
	if fracExceeds(v.totalLocked, assets, v.maxUtilizationBps) {
		return fmt.Errorf("vault: utilization %d bps above ceiling %d", v.UtilizationBps(), v.maxUtilizationBps)
	}
	var sum int64
	for loc, exp := range v.locationExposure {
		if exp < 0 {
			return fmt.Errorf("vault: negative exposure at %s", loc)
		}
		sum += exp
	}
	if sum != v.totalLocked {
		return fmt.Errorf("vault: location exposure sum %d != totalLocked %d", sum, v.totalLocked)
	}
	return nil
}
