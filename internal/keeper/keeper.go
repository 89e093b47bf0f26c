// Package keeper runs the periodic settlement sweep. It is the only caller
// of the engine that acts on wall-clock time rather than on a request.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"RainLedger/internal/engine"
	"RainLedger/internal/option"
	"RainLedger/internal/reinsurance"
)

// Policy is the guardian automation hook. When vault utilization reaches
// DrawThresholdBps the keeper requests a reinsurance draw sized as
// DrawRequestBps of the locked collateral, at most once per Cooldown.
// A zero threshold disables the hook.
type Policy struct {
	DrawThresholdBps int64
	DrawRequestBps   int64
	Cooldown         time.Duration
}

type Keeper struct {
	engine    *engine.Engine
	interval  time.Duration
	limit     int
	autoClaim bool
	policy    Policy
	log       zerolog.Logger

	lastDraw time.Time
}

func New(eng *engine.Engine, interval time.Duration, limit int, autoClaim bool, policy Policy, log zerolog.Logger) *Keeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if limit <= 0 {
		limit = option.DefaultSweepLimit
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = time.Hour
	}
	return &Keeper{
		engine:    eng,
		interval:  interval,
		limit:     limit,
		autoClaim: autoClaim,
		policy:    policy,
		log:       log.With().Str("component", "keeper").Logger(),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. A sweep that finds
// nothing actionable is silent; errors within a sweep are reported per
// option and never stop the loop.
func (k *Keeper) Run(ctx context.Context) {
	k.log.Info().
		Dur("interval", k.interval).
		Int("limit", k.limit).
		Bool("auto_claim", k.autoClaim).
		Msg("keeper started")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.log.Info().Msg("keeper stopped")
			return
		case <-ticker.C:
			k.sweepOnce()
			k.checkDrawPolicy()
		}
	}
}

// checkDrawPolicy pulls emergency capital from the reinsurance pool when
// utilization stays pinned above the configured threshold. Pool exhaustion is
// expected under sustained stress and only logged at debug.
func (k *Keeper) checkDrawPolicy() {
	if k.policy.DrawThresholdBps <= 0 {
		return
	}
	stats := k.engine.VaultStats()
	if stats.UtilizationBps < k.policy.DrawThresholdBps {
		return
	}
	if time.Since(k.lastDraw) < k.policy.Cooldown {
		return
	}
	requested := stats.TotalLocked * k.policy.DrawRequestBps / 10_000
	if requested <= 0 {
		return
	}

	reason := fmt.Sprintf("utilization %d bps at or above %d bps", stats.UtilizationBps, k.policy.DrawThresholdBps)
	transferred, err := k.engine.FundVaultFromReinsurance(requested, "utilization_threshold", reason)
	if err != nil {
		if errors.Is(err, reinsurance.ErrInsufficientPoolLiquidity) || errors.Is(err, reinsurance.ErrNoVaultBound) {
			k.log.Debug().Err(err).Int64("requested", requested).Msg("draw policy could not fund vault")
		} else {
			k.log.Warn().Err(err).Int64("requested", requested).Msg("draw policy failed")
		}
		return
	}
	k.lastDraw = time.Now()
	k.log.Info().
		Int64("requested", requested).
		Int64("transferred", transferred).
		Int64("utilization_bps", stats.UtilizationBps).
		Msg("reinsurance draw triggered")
}

func (k *Keeper) sweepOnce() {
	results := k.engine.Sweep(k.limit, k.autoClaim)
	for _, res := range results {
		switch res.Action {
		case option.ActionSkipped:
			continue
		case option.ActionError:
			k.log.Warn().
				Int64("option_id", res.OptionID).
				Str("error", res.Err).
				Msg("sweep action failed")
		default:
			k.log.Info().
				Int64("option_id", res.OptionID).
				Str("action", string(res.Action)).
				Int64("payout", res.Payout).
				Msg("sweep action")
		}
	}
}
