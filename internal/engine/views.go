package engine

import (
	"time"

	"github.com/google/uuid"

	"RainLedger/internal/funds"
	"RainLedger/internal/option"
	"RainLedger/internal/reinsurance"
)

// VaultStats is a point-in-time snapshot of the vault's public state.
type VaultStats struct {
	TotalAssets          int64 `json:"total_assets"`
	TotalLocked          int64 `json:"total_locked"`
	AvailableLiquidity   int64 `json:"available_liquidity"`
	UtilizationBps       int64 `json:"utilization_bps"`
	MaxUtilizationBps    int64 `json:"max_utilization_bps"`
	TargetUtilizationBps int64 `json:"target_utilization_bps"`
	MaxLocationBps       int64 `json:"max_location_bps"`
	PremiumMultiplierBps int64 `json:"premium_multiplier_bps"`
	PremiumsEarned       int64 `json:"premiums_earned"`
	PayoutsPaid          int64 `json:"payouts_paid"`
	ReinsuranceReceived  int64 `json:"reinsurance_received"`
}

// ReinsuranceStats is a point-in-time snapshot of the reinsurance pool.
type ReinsuranceStats struct {
	Balance          int64 `json:"balance"`
	AccruedYield     int64 `json:"accrued_yield"`
	YieldDistributed int64 `json:"yield_distributed"`
	TotalDrawn       int64 `json:"total_drawn"`
}

// OptionView is the externally visible option record.
type OptionView struct {
	ID                int64     `json:"id"`
	Status            string    `json:"status"`
	Holder            string    `json:"holder"`
	Direction         string    `json:"direction"`
	Latitude          string    `json:"latitude"`
	Longitude         string    `json:"longitude"`
	Start             time.Time `json:"start"`
	Expiry            time.Time `json:"expiry"`
	StrikeMM          int64     `json:"strike_mm"`
	SpreadMM          int64     `json:"spread_mm"`
	NotionalPerMM     int64     `json:"notional_per_mm"`
	Premium           int64     `json:"premium"`
	MeasuredMM        int64     `json:"measured_mm"`
	PayoutDue         int64     `json:"payout_due"`
	OwnerAtSettlement string    `json:"owner_at_settlement,omitempty"`
}

func (e *Engine) VaultStats() VaultStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return VaultStats{
		TotalAssets:          e.vault.TotalAssets(),
		TotalLocked:          e.vault.TotalLocked(),
		AvailableLiquidity:   e.vault.AvailableLiquidity(),
		UtilizationBps:       e.vault.UtilizationBps(),
		MaxUtilizationBps:    e.vault.MaxUtilizationBps(),
		TargetUtilizationBps: e.vault.TargetUtilizationBps(),
		MaxLocationBps:       e.vault.MaxLocationBps(),
		PremiumMultiplierBps: e.vault.PremiumMultiplierBps(),
		PremiumsEarned:       e.vault.PremiumsEarned(),
		PayoutsPaid:          e.vault.PayoutsPaid(),
		ReinsuranceReceived:  e.vault.ReinsuranceReceived(),
	}
}

func (e *Engine) ReinsuranceStats() ReinsuranceStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ReinsuranceStats{
		Balance:          e.pool.Balance(),
		AccruedYield:     e.pool.AccruedYield(),
		YieldDistributed: e.pool.YieldDistributed(),
		TotalDrawn:       e.pool.TotalDrawn(),
	}
}

// Option returns the view for one option.
func (e *Engine) Option(id int64) (OptionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	opt, ok := e.opts.Get(id)
	if !ok {
		return OptionView{}, option.ErrUnknownOption
	}
	return optionView(opt), nil
}

// ActiveOptions returns views for all not-yet-settled options.
func (e *Engine) ActiveOptions() []OptionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.opts.ActiveOptions()
	views := make([]OptionView, 0, len(ids))
	for _, id := range ids {
		opt, _ := e.opts.Get(id)
		views = append(views, optionView(opt))
	}
	return views
}

func optionView(opt *option.Option) OptionView {
	return OptionView{
		ID:                opt.ID,
		Status:            opt.Status.String(),
		Holder:            string(opt.Holder),
		Direction:         opt.Terms.Direction.String(),
		Latitude:          opt.Terms.Latitude,
		Longitude:         opt.Terms.Longitude,
		Start:             opt.Terms.Start,
		Expiry:            opt.Terms.Expiry,
		StrikeMM:          opt.Terms.StrikeMM,
		SpreadMM:          opt.Terms.SpreadMM,
		NotionalPerMM:     opt.Terms.NotionalPerMM,
		Premium:           opt.Terms.Premium,
		MeasuredMM:        opt.MeasuredMM,
		PayoutDue:         opt.PayoutDue,
		OwnerAtSettlement: string(opt.OwnerAtSettlement),
	}
}

// SimulatePayout prices an option against a hypothetical measurement.
func (e *Engine) SimulatePayout(id, measuredMM int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.SimulatePayout(id, measuredMM)
}

// VaultShares returns a depositor's share holding.
func (e *Engine) VaultShares(depositor funds.Account) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vault.Shares(depositor)
}

// VaultMaxWithdraw is the depositor's withdrawal ceiling against unlocked
// liquidity.
func (e *Engine) VaultMaxWithdraw(depositor funds.Account) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vault.MaxWithdraw(depositor)
}

// ReinsuranceShares returns a participant's pool shares.
func (e *Engine) ReinsuranceShares(holder funds.Account) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Shares(holder)
}

// ReinsuranceLockup returns when the holder's capital unlocks. The zero
// time means no active lockup.
func (e *Engine) ReinsuranceLockup(holder funds.Account) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	expiry, ok := e.pool.LockupExpiry(holder)
	if !ok {
		return time.Time{}
	}
	return expiry
}

// DrawHistory returns the reinsurance draw audit trail.
func (e *Engine) DrawHistory() []reinsurance.DrawRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.DrawHistory()
}

// QuoteStatus reports whether a quote handle is known and its premium if
// fulfilled.
func (e *Engine) QuoteStatus(handle uuid.UUID) (premium int64, fulfilled bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.opts.Quote(handle); !ok {
		return 0, false, option.ErrUnknownQuote
	}
	premium, err = e.opts.QuotedPremium(handle)
	if err != nil {
		return 0, false, nil
	}
	return premium, true, nil
}

// OracleHandle returns an option's outstanding measurement request, if any.
func (e *Engine) OracleHandle(id int64) (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.OracleHandle(id)
}

// FeeRevenue is the protocol fee collected and not yet withdrawn.
func (e *Engine) FeeRevenue() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.FeeRevenue()
}
