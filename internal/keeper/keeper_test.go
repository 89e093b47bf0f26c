package keeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"RainLedger/internal/engine"
	"RainLedger/internal/funds"
	"RainLedger/internal/option"
	"RainLedger/internal/oracle"
	"RainLedger/internal/persistence"
	"RainLedger/internal/reinsurance"
	"RainLedger/internal/vault"
)

func TestKeeperAdvancesExpiredOptions(t *testing.T) {
	premiumTable := oracle.NewTable()
	rainTable := oracle.NewTable()
	records := make(chan persistence.Record, 1024)

	cfg := engine.Config{
		Vault:  vault.Config{MaxUtilizationBps: 8000, TargetUtilizationBps: 5000, MaxLocationBps: 5000},
		Policy: reinsurance.Policy{MaxSingleDrawBps: 5000, MinReserveBps: 2000, LockupPeriod: 30 * 24 * time.Hour},
		Ledger: option.Config{MinNotionalPerMM: 1, MinPremium: 1, FeeBps: 100, QuoteValidity: time.Hour},
	}
	eng, err := engine.New(cfg,
		oracle.NewPremiumService(premiumTable, nil),
		oracle.NewRainfallService(rainTable, nil),
		nil, records, nil, time.Now, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	if err := eng.CreditAccount("lp", 100_000); err != nil {
		t.Fatalf("credit lp: %v", err)
	}
	if err := eng.CreditAccount("alice", 2_000); err != nil {
		t.Fatalf("credit alice: %v", err)
	}
	if _, err := eng.VaultDeposit("lp", 100_000); err != nil {
		t.Fatalf("vault deposit: %v", err)
	}

	// Coverage window already over by the time the keeper first ticks.
	start := time.Now().Add(10 * time.Millisecond)
	handle, err := eng.RequestQuote("alice", option.AboveStrike, "10.5", "-74.25",
		start, start.Add(20*time.Millisecond), 100, 50, 1)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if err := premiumTable.Fulfill(handle, 500); err != nil {
		t.Fatalf("fulfill premium: %v", err)
	}
	id, err := eng.CreateFromQuote("alice", handle, 1_000)
	if err != nil {
		t.Fatalf("CreateFromQuote: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k := New(eng, 10*time.Millisecond, 0, true, Policy{}, zerolog.Nop())
	go k.Run(ctx)

	waitFor := func(status string) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			view, err := eng.Option(id)
			if err != nil {
				t.Fatalf("Option: %v", err)
			}
			if view.Status == status {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("option never reached status %q", status)
	}

	waitFor("settling")

	oracleHandle, ok := eng.OracleHandle(id)
	if !ok {
		t.Fatal("no oracle handle after settlement request")
	}
	if err := rainTable.Fulfill(oracleHandle, 130); err != nil {
		t.Fatalf("fulfill measurement: %v", err)
	}

	waitFor("settled")

	view, err := eng.Option(id)
	if err != nil {
		t.Fatalf("Option: %v", err)
	}
	if view.PayoutDue != 0 {
		t.Fatalf("PayoutDue = %d, want 0 after auto-claim", view.PayoutDue)
	}
	if got := eng.Balance("alice"); got != 2_000-505+30 {
		t.Fatalf("alice balance = %d, want %d", got, 2_000-505+30)
	}
}

func TestDrawPolicyFundsVaultOnceAboveThreshold(t *testing.T) {
	premiumTable := oracle.NewTable()
	rainTable := oracle.NewTable()
	records := make(chan persistence.Record, 1024)

	cfg := engine.Config{
		Vault:  vault.Config{MaxUtilizationBps: 9000, TargetUtilizationBps: 5000, MaxLocationBps: 8000},
		Policy: reinsurance.Policy{MaxSingleDrawBps: 5000, MinReserveBps: 2000, LockupPeriod: 30 * 24 * time.Hour},
		Ledger: option.Config{MinNotionalPerMM: 1, MinPremium: 1, FeeBps: 100, QuoteValidity: time.Hour},
	}
	eng, err := engine.New(cfg,
		oracle.NewPremiumService(premiumTable, nil),
		oracle.NewRainfallService(rainTable, nil),
		nil, records, nil, time.Now, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	for account, amount := range map[string]int64{"lp": 10_000, "reins": 5_000, "alice": 1_000} {
		if err := eng.CreditAccount(funds.Account(account), amount); err != nil {
			t.Fatalf("credit %s: %v", account, err)
		}
	}
	if _, err := eng.VaultDeposit("lp", 10_000); err != nil {
		t.Fatalf("vault deposit: %v", err)
	}
	if _, err := eng.ReinsuranceDeposit("reins", 5_000); err != nil {
		t.Fatalf("reinsurance deposit: %v", err)
	}

	// Lock 7_500 of collateral so utilization lands above the 7000 bps trigger.
	start := time.Now().Add(time.Hour)
	handle, err := eng.RequestQuote("alice", option.AboveStrike, "10.5", "-74.25",
		start, start.Add(time.Hour), 100, 75, 100)
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if err := premiumTable.Fulfill(handle, 500); err != nil {
		t.Fatalf("fulfill premium: %v", err)
	}
	if _, err := eng.CreateFromQuote("alice", handle, 1_000); err != nil {
		t.Fatalf("CreateFromQuote: %v", err)
	}

	k := New(eng, time.Second, 0, false,
		Policy{DrawThresholdBps: 7000, DrawRequestBps: 1000}, zerolog.Nop())

	k.checkDrawPolicy()

	stats := eng.ReinsuranceStats()
	if stats.TotalDrawn != 750 {
		t.Fatalf("TotalDrawn = %d, want 750", stats.TotalDrawn)
	}
	if got := eng.VaultStats().ReinsuranceReceived; got != 750 {
		t.Fatalf("ReinsuranceReceived = %d, want 750", got)
	}

	// Default cooldown suppresses a second draw on the next tick.
	k.checkDrawPolicy()
	if got := eng.ReinsuranceStats().TotalDrawn; got != 750 {
		t.Fatalf("TotalDrawn after cooldown = %d, want 750", got)
	}
}
