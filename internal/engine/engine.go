// Package engine assembles the option ledger, liquidity vault, and
// reinsurance pool into one serialized facade. Every mutating operation runs
// under a single mutex, so the components themselves stay lock-free and
// their combined invariants hold at every observable point.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RainLedger/internal/funds"
	"RainLedger/internal/observability"
	"RainLedger/internal/option"
	"RainLedger/internal/oracle"
	"RainLedger/internal/persistence"
	"RainLedger/internal/reinsurance"
	"RainLedger/internal/vault"
)

// System account names. User accounts are any other funds.Account value.
const (
	VaultAccount       funds.Account = "sys:vault"
	LedgerAccount      funds.Account = "sys:option_ledger"
	ReinsuranceAccount funds.Account = "sys:reinsurance"
	TreasuryAccount    funds.Account = "sys:treasury"
)

// Config collects the engine's tunables.
type Config struct {
	Vault  vault.Config
	Policy reinsurance.Policy
	Ledger option.Config

	// ReinsuranceShareBps routes that slice of every premium to the
	// reinsurance pool as yield. Zero disables routing.
	ReinsuranceShareBps int64
}

// Engine is the mutex-serialized entry point for every state mutation.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	book  *funds.Book
	vault *vault.Vault
	pool  *reinsurance.Pool
	opts  *option.Ledger

	vaultGuardian *vault.GuardianGate
	poolGuardian  *reinsurance.GuardianGate

	now     func() time.Time
	log     zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- persistence.Record
	projChan    chan<- persistence.Record
}

// New builds the full component graph: the funds book, the vault with its
// capability gates, the reinsurance pool bound to the vault, and the option
// ledger driving both through the oracle services.
func New(cfg Config, premiums oracle.PremiumCalculator, rainfall oracle.RainfallOracle,
	metrics *observability.Metrics, persistChan, projChan chan<- persistence.Record,
	now func() time.Time, log zerolog.Logger) (*Engine, error) {

	if now == nil {
		now = time.Now
	}
	book := funds.NewBook()

	v, err := vault.New(cfg.Vault, book, VaultAccount)
	if err != nil {
		return nil, fmt.Errorf("build vault: %w", err)
	}
	ledgerGate, err := v.IssueLedgerGate(LedgerAccount)
	if err != nil {
		return nil, fmt.Errorf("issue vault ledger gate: %w", err)
	}
	vaultGuardian, err := v.IssueGuardianGate()
	if err != nil {
		return nil, fmt.Errorf("issue vault guardian gate: %w", err)
	}

	pool, err := reinsurance.New(cfg.Policy, book, ReinsuranceAccount, now)
	if err != nil {
		return nil, fmt.Errorf("build reinsurance pool: %w", err)
	}
	poolVaultGate, err := pool.IssueVaultGate()
	if err != nil {
		return nil, fmt.Errorf("issue reinsurance vault gate: %w", err)
	}
	poolGuardian, err := pool.IssueGuardianGate()
	if err != nil {
		return nil, fmt.Errorf("issue reinsurance guardian gate: %w", err)
	}

	// Cross-wire the capital backstop: vault premiums route yield to the
	// pool, pool draws flow back into vault assets.
	pool.BindVault(VaultAccount, vaultGuardian)
	if cfg.ReinsuranceShareBps > 0 {
		if err := v.BindReinsurance(ReinsuranceAccount, poolVaultGate, cfg.ReinsuranceShareBps); err != nil {
			return nil, fmt.Errorf("bind reinsurance to vault: %w", err)
		}
	}

	lcfg := cfg.Ledger
	lcfg.Account = LedgerAccount
	opts := option.New(lcfg, book, v, ledgerGate, premiums, rainfall, now, log)

	return &Engine{
		cfg:           cfg,
		book:          book,
		vault:         v,
		pool:          pool,
		opts:          opts,
		vaultGuardian: vaultGuardian,
		poolGuardian:  poolGuardian,
		now:           now,
		log:           log.With().Str("component", "engine").Logger(),
		metrics:       metrics,
		persistChan:   persistChan,
		projChan:      projChan,
	}, nil
}

// apply runs fn under the engine lock, recording metrics and logging the
// outcome. All public operations funnel through it.
func (e *Engine) apply(op string, fn func() error) error {
	start := time.Now()
	e.mu.Lock()
	err := fn()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.EngineOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.EngineOpsRejected.WithLabelValues(op, "error").Inc()
		} else {
			e.metrics.EngineOpsApplied.WithLabelValues(op).Inc()
		}
	}
	if err != nil {
		e.log.Debug().Str("op", op).Err(err).Msg("operation rejected")
	}
	return err
}

// emit hands a record to the persistence worker with a blocking send: the
// engine stalls rather than lose a record. The projection send is
// non-blocking with drop, since projections rebuild from rain.records.
func (e *Engine) emit(kind persistence.RecordKind, payload interface{}) {
	if e.persistChan == nil && e.projChan == nil {
		return
	}
	rec, err := persistence.NewRecord(kind, e.now(), payload)
	if err != nil {
		e.log.Error().Err(err).Str("kind", string(kind)).Msg("encode record")
		return
	}
	if e.persistChan != nil {
		e.persistChan <- rec
	}
	if e.projChan != nil {
		select {
		case e.projChan <- rec:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.Inc()
			}
		}
	}
}

func (e *Engine) refreshGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.VaultAssets.Set(float64(e.vault.TotalAssets()))
	e.metrics.VaultLocked.Set(float64(e.vault.TotalLocked()))
	e.metrics.VaultUtilizationBps.Set(float64(e.vault.UtilizationBps()))
	e.metrics.ReinsuranceBalance.Set(float64(e.pool.Balance()))
	e.metrics.OptionsActive.Set(float64(len(e.opts.ActiveOptions())))
	e.metrics.FeeRevenue.Set(float64(e.opts.FeeRevenue()))
}

// --- Funding (external on/off ramp) ---

// CreditAccount mints capital units into an account. In production this is
// driven by the deposit on-ramp; in dev mode it is exposed directly.
func (e *Engine) CreditAccount(account funds.Account, amount int64) error {
	return e.apply("credit_account", func() error {
		if err := e.book.Mint(account, amount); err != nil {
			return err
		}
		e.emit(persistence.KindAccountCredit, persistence.AccountFlow{
			Account: string(account), Amount: amount,
		})
		return nil
	})
}

// DebitAccount burns capital units from an account on the way out.
func (e *Engine) DebitAccount(account funds.Account, amount int64) error {
	return e.apply("debit_account", func() error {
		if err := e.book.Burn(account, amount); err != nil {
			return err
		}
		e.emit(persistence.KindAccountDebit, persistence.AccountFlow{
			Account: string(account), Amount: amount,
		})
		return nil
	})
}

// Balance reads an account balance.
func (e *Engine) Balance(account funds.Account) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Balance(account)
}

// --- Trader operations ---

func (e *Engine) RequestQuote(requester funds.Account, direction option.Direction,
	lat, lon string, start, expiry time.Time, strikeMM, spreadMM, notionalPerMM int64) (uuid.UUID, error) {

	var handle uuid.UUID
	err := e.apply("request_quote", func() error {
		var err error
		handle, err = e.opts.RequestQuote(requester, direction, lat, lon, start, expiry, strikeMM, spreadMM, notionalPerMM)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.QuotesRequested.Inc()
		}
		e.emit(persistence.KindQuoteRequested, persistence.QuoteRecord{
			Handle: handle.String(), Requester: string(requester),
			Latitude: lat, Longitude: lon,
			StrikeMM: strikeMM, SpreadMM: spreadMM, NotionalPerMM: notionalPerMM,
		})
		return nil
	})
	return handle, err
}

func (e *Engine) QuotedPremium(handle uuid.UUID) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.QuotedPremium(handle)
}

func (e *Engine) CreateFromQuote(caller funds.Account, handle uuid.UUID, paid int64) (int64, error) {
	var id int64
	err := e.apply("create_option", func() error {
		var err error
		id, err = e.opts.CreateFromQuote(caller, handle, paid)
		if err != nil {
			return err
		}
		opt, _ := e.opts.Get(id)
		if e.metrics != nil {
			e.metrics.OptionsCreated.Inc()
			e.metrics.QuotesConsumed.Inc()
			e.metrics.PremiumsTotal.Add(float64(opt.Terms.Premium))
		}
		e.emit(persistence.KindOptionCreated, persistence.OptionRecord{
			OptionID: id, Holder: string(caller), Status: opt.Status.String(),
			Latitude: opt.Terms.Latitude, Longitude: opt.Terms.Longitude,
			StrikeMM: opt.Terms.StrikeMM, SpreadMM: opt.Terms.SpreadMM,
			NotionalPerMM: opt.Terms.NotionalPerMM, Premium: opt.Terms.Premium,
			Start: opt.Terms.Start, Expiry: opt.Terms.Expiry,
		})
		e.refreshGauges()
		return nil
	})
	return id, err
}

func (e *Engine) RequestSettlement(id int64) (uuid.UUID, error) {
	var handle uuid.UUID
	err := e.apply("request_settlement", func() error {
		var err error
		handle, err = e.opts.RequestSettlement(id)
		if err != nil {
			return err
		}
		e.emit(persistence.KindSettlementRequested, persistence.SettlementRecord{
			OptionID: id, OracleHandle: handle.String(),
		})
		return nil
	})
	return handle, err
}

func (e *Engine) Settle(id int64) (int64, error) {
	var payout int64
	err := e.apply("settle", func() error {
		var err error
		payout, err = e.opts.Settle(id)
		if err != nil {
			return err
		}
		opt, _ := e.opts.Get(id)
		if e.metrics != nil {
			e.metrics.OptionsSettled.Inc()
			e.metrics.PayoutsTotal.Add(float64(payout))
		}
		e.emit(persistence.KindOptionSettled, persistence.SettlementRecord{
			OptionID: id, MeasuredMM: opt.MeasuredMM, Payout: payout,
			Beneficiary: string(opt.OwnerAtSettlement),
		})
		e.refreshGauges()
		return nil
	})
	return payout, err
}

func (e *Engine) ClaimPayout(caller funds.Account, id int64) (int64, error) {
	var amount int64
	err := e.apply("claim_payout", func() error {
		var err error
		amount, err = e.opts.ClaimPayout(caller, id)
		if err != nil {
			return err
		}
		e.emit(persistence.KindPayoutClaimed, persistence.AccountFlow{
			Account: string(caller), Amount: amount, OptionID: id,
		})
		return nil
	})
	return amount, err
}

func (e *Engine) TransferCertificate(caller, to funds.Account, id int64) error {
	return e.apply("transfer_certificate", func() error {
		if err := e.opts.TransferCertificate(caller, to, id); err != nil {
			return err
		}
		e.emit(persistence.KindCertificateTransferred, persistence.TransferRecord{
			OptionID: id, From: string(caller), To: string(to),
		})
		return nil
	})
}

// --- LP operations ---

func (e *Engine) VaultDeposit(depositor funds.Account, assets int64) (int64, error) {
	var shares int64
	err := e.apply("vault_deposit", func() error {
		var err error
		shares, err = e.vault.Deposit(depositor, assets)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.VaultDeposits.Inc()
		}
		e.emit(persistence.KindVaultDeposit, persistence.AccountFlow{
			Account: string(depositor), Amount: assets, Shares: shares,
		})
		e.refreshGauges()
		return nil
	})
	return shares, err
}

func (e *Engine) VaultWithdraw(depositor funds.Account, shares int64) (int64, error) {
	var assets int64
	err := e.apply("vault_withdraw", func() error {
		var err error
		assets, err = e.vault.Withdraw(depositor, shares)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.VaultWithdrawals.Inc()
		}
		e.emit(persistence.KindVaultWithdraw, persistence.AccountFlow{
			Account: string(depositor), Amount: assets, Shares: shares,
		})
		e.refreshGauges()
		return nil
	})
	return assets, err
}

// --- Reinsurer operations ---

func (e *Engine) ReinsuranceDeposit(depositor funds.Account, assets int64) (int64, error) {
	var shares int64
	err := e.apply("reinsurance_deposit", func() error {
		var err error
		shares, err = e.pool.Deposit(depositor, assets)
		if err != nil {
			return err
		}
		e.emit(persistence.KindReinsuranceDeposit, persistence.AccountFlow{
			Account: string(depositor), Amount: assets, Shares: shares,
		})
		e.refreshGauges()
		return nil
	})
	return shares, err
}

func (e *Engine) ReinsuranceWithdraw(depositor funds.Account, shares int64) (int64, error) {
	var assets int64
	err := e.apply("reinsurance_withdraw", func() error {
		var err error
		assets, err = e.pool.Withdraw(depositor, shares)
		if err != nil {
			return err
		}
		e.emit(persistence.KindReinsuranceWithdraw, persistence.AccountFlow{
			Account: string(depositor), Amount: assets, Shares: shares,
		})
		e.refreshGauges()
		return nil
	})
	return assets, err
}

func (e *Engine) ReinsuranceTransferShares(from, to funds.Account, shares int64) error {
	return e.apply("reinsurance_transfer_shares", func() error {
		return e.pool.TransferShares(from, to, shares)
	})
}

func (e *Engine) ClaimYield(claimant funds.Account) (int64, error) {
	var amount int64
	err := e.apply("claim_yield", func() error {
		var err error
		amount, err = e.pool.ClaimYield(claimant)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.ReinsuranceYield.Add(float64(amount))
		}
		e.emit(persistence.KindYieldClaimed, persistence.AccountFlow{
			Account: string(claimant), Amount: amount,
		})
		return nil
	})
	return amount, err
}

// --- Guardian operations ---

// SetUtilizationLimits retunes the vault's underwriting ceilings.
func (e *Engine) SetUtilizationLimits(maxBps, targetBps int64) error {
	return e.apply("set_utilization_limits", func() error {
		if err := e.vaultGuardian.SetUtilizationLimits(maxBps, targetBps); err != nil {
			return err
		}
		e.emit(persistence.KindLimitsChanged, persistence.LimitsRecord{
			MaxUtilizationBps: maxBps, TargetUtilizationBps: targetBps,
		})
		return nil
	})
}

// FundVaultFromReinsurance draws backstop capital into the vault, bounded by
// the pool's reserve floor and single-draw cap.
func (e *Engine) FundVaultFromReinsurance(requested int64, trigger, reason string) (int64, error) {
	var transferred int64
	err := e.apply("fund_vault_from_reinsurance", func() error {
		var err error
		transferred, err = e.poolGuardian.FundPrimaryVault(requested, trigger, reason)
		if err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.ReinsuranceDrawn.Add(float64(transferred))
		}
		e.emit(persistence.KindReinsuranceDraw, persistence.DrawRecordRow{
			Requested: requested, Transferred: transferred,
			Trigger: trigger, Reason: reason,
		})
		e.refreshGauges()
		return nil
	})
	return transferred, err
}

// WithdrawFees moves collected protocol fees to the treasury.
func (e *Engine) WithdrawFees(amount int64) error {
	return e.apply("withdraw_fees", func() error {
		if err := e.opts.WithdrawFees(TreasuryAccount, amount); err != nil {
			return err
		}
		e.emit(persistence.KindFeesWithdrawn, persistence.AccountFlow{
			Account: string(TreasuryAccount), Amount: amount,
		})
		e.refreshGauges()
		return nil
	})
}

// --- Keeper operations ---

// Sweep advances settlement for due options and prunes stale quotes.
func (e *Engine) Sweep(limit int, autoClaim bool) []option.SweepResult {
	start := time.Now()
	e.mu.Lock()
	results := e.opts.Sweep(limit, autoClaim)
	e.opts.PruneExpiredQuotes(limit)

	requestedRecords := make([]persistence.SettlementRecord, 0, len(results))
	settledRecords := make([]persistence.SettlementRecord, 0, len(results))
	claimRecords := make([]persistence.AccountFlow, 0, len(results))
	for _, r := range results {
		switch r.Action {
		case option.ActionSettlementRequested:
			rec := persistence.SettlementRecord{OptionID: r.OptionID}
			if handle, ok := e.opts.OracleHandle(r.OptionID); ok {
				rec.OracleHandle = handle.String()
			}
			requestedRecords = append(requestedRecords, rec)
		case option.ActionSettled, option.ActionClaimed:
			opt, ok := e.opts.Get(r.OptionID)
			if !ok {
				continue
			}
			settledRecords = append(settledRecords, persistence.SettlementRecord{
				OptionID: r.OptionID, MeasuredMM: opt.MeasuredMM, Payout: r.Payout,
				Beneficiary: string(opt.OwnerAtSettlement),
			})
			if r.Action == option.ActionClaimed {
				claimRecords = append(claimRecords, persistence.AccountFlow{
					Account: string(opt.OwnerAtSettlement), Amount: r.Payout, OptionID: r.OptionID,
				})
			}
		}
	}
	if len(settledRecords) > 0 {
		e.refreshGauges()
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SweepRuns.Inc()
		e.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		for _, r := range results {
			e.metrics.SweepActions.WithLabelValues(string(r.Action)).Inc()
		}
		e.metrics.OptionsSettled.Add(float64(len(settledRecords)))
	}
	for _, rec := range requestedRecords {
		e.emit(persistence.KindSettlementRequested, rec)
	}
	for _, rec := range settledRecords {
		e.emit(persistence.KindOptionSettled, rec)
	}
	for _, rec := range claimRecords {
		e.emit(persistence.KindPayoutClaimed, rec)
	}
	return results
}

// CheckInvariants verifies the conservation and exposure invariants across
// all components. Intended for tests and the debug endpoint.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.book.CheckConserved(); err != nil {
		return err
	}
	return e.vault.CheckInvariants()
}
