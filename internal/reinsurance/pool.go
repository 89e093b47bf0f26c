// Package reinsurance implements the second tier of the capital waterfall: a
// pool that subsidizes the primary vault's yield and supplies emergency
// capital under a capped, reserve-protected draw policy, with depositor
// lock-ups.
//
// Like the vault, mutating privileges are split across capability gates: the
// vault holds the one *VaultGate (yield deposits), the guardian holds the one
// *GuardianGate (draws). Callers serialize access.
package reinsurance

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"RainLedger/internal/capital"
	"RainLedger/internal/funds"
)

const bpsScale = 10_000

var (
	ErrZeroAmount                = errors.New("reinsurance: amount must be positive")
	ErrCapitalLocked             = errors.New("reinsurance: deposit still in lock-up")
	ErrInsufficientPoolLiquidity = errors.New("reinsurance: draw capacity exhausted")
	ErrNoVaultBound              = errors.New("reinsurance: primary vault not configured")
	ErrInvalidPolicy             = errors.New("reinsurance: invalid draw policy")
	ErrGateAlreadyIssued         = errors.New("reinsurance: capability gate already issued")
	ErrNoYieldAvailable          = errors.New("reinsurance: no yield to claim")
)

// InflowRecorder is the vault-side accounting hook a draw notifies after
// moving funds. The vault's guardian gate implements it.
type InflowRecorder interface {
	RecordReinsuranceInflow(amount int64) error
}

// DrawRecord is one immutable entry in the draw history.
type DrawRecord struct {
	Amount  int64     `json:"amount"`
	At      time.Time `json:"at"`
	Trigger string    `json:"trigger"`
	Reason  string    `json:"reason"`
}

// Policy bounds the pool's own tail risk while it subsidizes the vault's.
type Policy struct {
	MaxSingleDrawBps int64         // cap on one draw, bps of pre-draw balance
	MinReserveBps    int64         // floor the pool never drains below
	LockupPeriod     time.Duration // depositor minimum holding period
}

// Pool owns the reinsurance accounting.
type Pool struct {
	pool    capital.Pool
	book    *funds.Book
	account funds.Account
	policy  Policy
	now     func() time.Time

	accruedYield     int64
	yieldDistributed int64
	totalDrawn       int64
	lockupExpiry     map[funds.Account]time.Time
	deposited        map[funds.Account]int64
	drawHistory      []DrawRecord

	vaultAccount funds.Account
	vaultInflow  InflowRecorder

	vaultGateIssued    bool
	guardianGateIssued bool
}

func New(policy Policy, book *funds.Book, account funds.Account, now func() time.Time) (*Pool, error) {
	if policy.MaxSingleDrawBps <= 0 || policy.MinReserveBps < 0 {
		return nil, fmt.Errorf("%w: draw=%d reserve=%d", ErrInvalidPolicy, policy.MaxSingleDrawBps, policy.MinReserveBps)
	}
	if policy.MaxSingleDrawBps+policy.MinReserveBps > bpsScale {
		return nil, fmt.Errorf("%w: draw %d + reserve %d bps exceeds 100%%", ErrInvalidPolicy, policy.MaxSingleDrawBps, policy.MinReserveBps)
	}
	if now == nil {
		now = time.Now
	}
	return &Pool{
		pool:         *capital.NewPool(),
		book:         book,
		account:      account,
		policy:       policy,
		now:          now,
		lockupExpiry: make(map[funds.Account]time.Time),
		deposited:    make(map[funds.Account]int64),
	}, nil
}

// BindVault configures the draw destination.
func (p *Pool) BindVault(account funds.Account, inflow InflowRecorder) {
	p.vaultAccount = account
	p.vaultInflow = inflow
}

func bpsOf(amount, bps int64) int64 {
	n := new(big.Int).Mul(big.NewInt(amount), big.NewInt(bps))
	n.Quo(n, big.NewInt(bpsScale))
	return n.Int64()
}

// --- Depositor surface ---

// Deposit moves assets from the depositor into the pool and mints shares.
// The lock-up restarts on every deposit: repeated deposits keep pushing the
// expiry forward.
func (p *Pool) Deposit(depositor funds.Account, assets int64) (int64, error) {
	if assets <= 0 {
		return 0, ErrZeroAmount
	}
	if err := p.book.Transfer(depositor, p.account, assets); err != nil {
		return 0, err
	}
	shares, err := p.pool.Deposit(depositor, assets)
	if err != nil {
		_ = p.book.Transfer(p.account, depositor, assets)
		return 0, err
	}
	p.lockupExpiry[depositor] = p.now().Add(p.policy.LockupPeriod)
	p.deposited[depositor] += assets
	return shares, nil
}

// Withdraw burns shares and pays assets out after the lock-up has expired.
func (p *Pool) Withdraw(depositor funds.Account, shares int64) (int64, error) {
	if shares <= 0 {
		return 0, ErrZeroAmount
	}
	if expiry, ok := p.lockupExpiry[depositor]; ok && p.now().Before(expiry) {
		return 0, fmt.Errorf("%w: until %s", ErrCapitalLocked, expiry.UTC().Format(time.RFC3339))
	}
	assets, err := p.pool.Redeem(depositor, shares)
	if err != nil {
		return 0, err
	}
	if assets > 0 {
		if err := p.book.Transfer(p.account, depositor, assets); err != nil {
			return 0, err
		}
	}
	return assets, nil
}

// TransferShares moves pool shares between holders. The receiver inherits
// the later of the two lock-up expiries: lock-up propagates forward and
// cannot be shed by transferring.
func (p *Pool) TransferShares(from, to funds.Account, shares int64) error {
	if err := p.pool.TransferShares(from, to, shares); err != nil {
		return err
	}
	if p.lockupExpiry[from].After(p.lockupExpiry[to]) {
		p.lockupExpiry[to] = p.lockupExpiry[from]
	}
	return nil
}

// ClaimYield pays the caller their pro-rata slice of accrued yield.
// Available continuously, independent of lock-up status.
func (p *Pool) ClaimYield(depositor funds.Account) (int64, error) {
	totalShares := p.pool.TotalShares()
	if totalShares == 0 || p.accruedYield == 0 {
		return 0, ErrNoYieldAvailable
	}
	shares := p.pool.Shares(depositor)
	if shares == 0 {
		return 0, ErrNoYieldAvailable
	}
	n := new(big.Int).Mul(big.NewInt(p.accruedYield), big.NewInt(shares))
	n.Quo(n, big.NewInt(totalShares))
	amount := n.Int64()
	if amount == 0 {
		return 0, ErrNoYieldAvailable
	}

	// Commit before the outbound transfer.
	p.accruedYield -= amount
	p.yieldDistributed += amount
	if err := p.pool.RemoveAssets(amount); err != nil {
		return 0, err
	}
	if err := p.book.Transfer(p.account, depositor, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// --- Read views ---

func (p *Pool) Balance() int64            { return p.pool.TotalAssets() }
func (p *Pool) AccruedYield() int64       { return p.accruedYield }
func (p *Pool) YieldDistributed() int64   { return p.yieldDistributed }
func (p *Pool) TotalDrawn() int64         { return p.totalDrawn }
func (p *Pool) Account() funds.Account    { return p.account }
func (p *Pool) DrawHistory() []DrawRecord { return append([]DrawRecord(nil), p.drawHistory...) }

func (p *Pool) Shares(depositor funds.Account) int64 {
	return p.pool.Shares(depositor)
}

func (p *Pool) LockupExpiry(depositor funds.Account) (time.Time, bool) {
	exp, ok := p.lockupExpiry[depositor]
	return exp, ok
}

func (p *Pool) Deposited(depositor funds.Account) int64 {
	return p.deposited[depositor]
}

// --- Vault gate ---

// VaultGate is the capability handle held by the vault's premium routing.
type VaultGate struct {
	p *Pool
}

func (p *Pool) IssueVaultGate() (*VaultGate, error) {
	if p.vaultGateIssued {
		return nil, ErrGateAlreadyIssued
	}
	p.vaultGateIssued = true
	return &VaultGate{p: p}, nil
}

// DepositYield books a premium slice the vault has already transferred to
// the pool's account.
func (g *VaultGate) DepositYield(amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	g.p.accruedYield += amount
	return g.p.pool.AddAssets(amount)
}

// --- Guardian gate ---

// GuardianGate is the capability handle for draw authorization.
type GuardianGate struct {
	p *Pool
}

func (p *Pool) IssueGuardianGate() (*GuardianGate, error) {
	if p.guardianGateIssued {
		return nil, ErrGateAlreadyIssued
	}
	p.guardianGateIssued = true
	return &GuardianGate{p: p}, nil
}

// FundPrimaryVault pushes emergency capital to the vault. The transferred
// amount is min(requested, balance − reserve floor, single-draw cap); the
// draw never fully drains the pool and no single event can exhaust more than
// its cap. Appends an immutable history record.
func (g *GuardianGate) FundPrimaryVault(requested int64, trigger, reason string) (int64, error) {
	p := g.p
	if p.vaultAccount == "" || p.vaultInflow == nil {
		return 0, ErrNoVaultBound
	}
	if requested <= 0 {
		return 0, ErrZeroAmount
	}

	balance := p.pool.TotalAssets()
	minReserve := bpsOf(balance, p.policy.MinReserveBps)
	maxDrawable := balance - minReserve
	maxSingleDraw := bpsOf(balance, p.policy.MaxSingleDrawBps)

	amount := requested
	if maxDrawable < amount {
		amount = maxDrawable
	}
	if maxSingleDraw < amount {
		amount = maxSingleDraw
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: balance=%d reserve=%d cap=%d", ErrInsufficientPoolLiquidity, balance, minReserve, maxSingleDraw)
	}

	// Commit accounting, then move funds, then notify vault bookkeeping.
	p.totalDrawn += amount
	p.drawHistory = append(p.drawHistory, DrawRecord{
		Amount:  amount,
		At:      p.now(),
		Trigger: trigger,
		Reason:  reason,
	})
	if err := p.pool.RemoveAssets(amount); err != nil {
		return 0, err
	}
	if err := p.book.Transfer(p.account, p.vaultAccount, amount); err != nil {
		return 0, err
	}
	if err := p.vaultInflow.RecordReinsuranceInflow(amount); err != nil {
		return 0, err
	}
	return amount, nil
}
