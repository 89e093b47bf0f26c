package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"RainLedger/internal/persistence"
	"RainLedger/internal/testutil"
)

func TestRecordBatchRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	records := make([]persistence.Record, 0, 3)
	for i := int64(1); i <= 3; i++ {
		rec, err := persistence.NewRecord(persistence.KindAccountCredit, at,
			persistence.AccountFlow{Account: "alice", Amount: 100 * i})
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		records = append(records, rec)
	}

	writer := persistence.NewRecordWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteRecordBatch(ctx, tx, records); err != nil {
		t.Fatalf("WriteRecordBatch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rain.records").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("records = %d, want 3", count)
	}

	// Replaying the same batch must be a no-op.
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteRecordBatch(ctx, tx, records); err != nil {
		t.Fatalf("replay WriteRecordBatch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("replay commit: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rain.records").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("records after replay = %d, want 3", count)
	}
}

func TestWorkerFlushesOnChannelClose(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	input := make(chan persistence.Record, 16)
	worker := persistence.NewWorker(db, input, 50, 10*time.Millisecond, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	at := time.Now().UTC()
	for i := int64(0); i < 5; i++ {
		rec, err := persistence.NewRecord(persistence.KindVaultDeposit, at,
			persistence.AccountFlow{Account: "lp", Amount: 1000, Shares: 1000})
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		input <- rec
	}
	close(input)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("worker: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain after channel close")
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rain.records").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Fatalf("records = %d, want 5", count)
	}
}
