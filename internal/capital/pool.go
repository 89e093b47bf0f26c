// Package capital implements proportional share accounting for a pooled
// balance of capital units. It is embedded by value in both the liquidity
// vault and the reinsurance pool; the embedding component owns the actual
// funds account, this component owns only the share math.
//
// Share conversion uses a virtual offset so the first depositor cannot
// manipulate the share price by donating assets to an empty pool:
//
//	shares(a) = a * (totalShares + VirtualShares) / (totalAssets + 1)
//	assets(s) = s * (totalAssets + 1) / (totalShares + VirtualShares)
package capital

import (
	"errors"
	"fmt"
	"math/big"

	"RainLedger/internal/funds"
)

// VirtualShares is the dead-share offset applied to every conversion.
const VirtualShares = 1_000

var (
	ErrZeroAmount         = errors.New("capital: amount must be positive")
	ErrInsufficientShares = errors.New("capital: insufficient shares")
	ErrInsufficientAssets = errors.New("capital: insufficient assets")
)

// Pool tracks total pooled assets and per-holder share balances.
// Callers serialize access.
type Pool struct {
	totalAssets int64
	totalShares int64
	holdings    map[funds.Account]int64
}

func NewPool() *Pool {
	return &Pool{holdings: make(map[funds.Account]int64)}
}

// mulDiv computes a*b/c through big.Int so intermediate products cannot
// overflow int64. Result is floored.
func mulDiv(a, b, c int64) int64 {
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	n.Quo(n, big.NewInt(c))
	return n.Int64()
}

// SharesForAssets converts an asset amount to shares (rounded down).
func (p *Pool) SharesForAssets(assets int64) int64 {
	return mulDiv(assets, p.totalShares+VirtualShares, p.totalAssets+1)
}

// AssetsForShares converts a share amount to assets (rounded down).
func (p *Pool) AssetsForShares(shares int64) int64 {
	return mulDiv(shares, p.totalAssets+1, p.totalShares+VirtualShares)
}

// Deposit mints shares for a holder against newly contributed assets.
func (p *Pool) Deposit(holder funds.Account, assets int64) (int64, error) {
	if assets <= 0 {
		return 0, ErrZeroAmount
	}
	shares := p.SharesForAssets(assets)
	if shares <= 0 {
		return 0, fmt.Errorf("%w: %d assets converts to zero shares", ErrZeroAmount, assets)
	}
	p.totalAssets += assets
	p.totalShares += shares
	p.holdings[holder] += shares
	return shares, nil
}

// Redeem burns a holder's shares and returns the asset amount they represent.
func (p *Pool) Redeem(holder funds.Account, shares int64) (int64, error) {
	if shares <= 0 {
		return 0, ErrZeroAmount
	}
	if p.holdings[holder] < shares {
		return 0, fmt.Errorf("%w: holder %s has %d, need %d", ErrInsufficientShares, holder, p.holdings[holder], shares)
	}
	assets := p.AssetsForShares(shares)
	if assets > p.totalAssets {
		assets = p.totalAssets
	}
	p.holdings[holder] -= shares
	p.totalShares -= shares
	p.totalAssets -= assets
	return assets, nil
}

// TransferShares moves shares between holders without touching assets.
func (p *Pool) TransferShares(from, to funds.Account, shares int64) error {
	if shares <= 0 {
		return ErrZeroAmount
	}
	if p.holdings[from] < shares {
		return fmt.Errorf("%w: holder %s has %d, need %d", ErrInsufficientShares, from, p.holdings[from], shares)
	}
	p.holdings[from] -= shares
	p.holdings[to] += shares
	return nil
}

// AddAssets grows the pool without minting shares (earned premium, drawn
// capital). Existing holders' shares appreciate proportionally.
func (p *Pool) AddAssets(amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	p.totalAssets += amount
	return nil
}

// RemoveAssets shrinks the pool without burning shares (payouts, draws out).
func (p *Pool) RemoveAssets(amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	if amount > p.totalAssets {
		return fmt.Errorf("%w: pool has %d, need %d", ErrInsufficientAssets, p.totalAssets, amount)
	}
	p.totalAssets -= amount
	return nil
}

func (p *Pool) TotalAssets() int64 { return p.totalAssets }
func (p *Pool) TotalShares() int64 { return p.totalShares }

// Shares returns the share balance for a holder (zero if unknown).
func (p *Pool) Shares(holder funds.Account) int64 {
	return p.holdings[holder]
}

// HolderAssets returns the asset value of a holder's current shares.
func (p *Pool) HolderAssets(holder funds.Account) int64 {
	return p.AssetsForShares(p.holdings[holder])
}
