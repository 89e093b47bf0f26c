package funds_test

import (
	"errors"
	"testing"

	"RainLedger/internal/funds"
)

func TestBook_MintAndBalance(t *testing.T) {
	b := funds.NewBook()

	if err := b.Mint("alice", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := b.Balance("alice"); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if got := b.Supply(); got != 100 {
		t.Errorf("supply = %d, want 100", got)
	}
}

func TestBook_TransferMovesUnits(t *testing.T) {
	b := funds.NewBook()
	b.Mint("alice", 100)

	if err := b.Transfer("alice", "vault", 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.Balance("alice"); got != 40 {
		t.Errorf("alice = %d, want 40", got)
	}
	if got := b.Balance("vault"); got != 60 {
		t.Errorf("vault = %d, want 60", got)
	}
	if err := b.CheckConserved(); err != nil {
		t.Errorf("conservation: %v", err)
	}
}

func TestBook_TransferInsufficient(t *testing.T) {
	b := funds.NewBook()
	b.Mint("alice", 10)

	err := b.Transfer("alice", "vault", 11)
	if !errors.Is(err, funds.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := b.Balance("alice"); got != 10 {
		t.Errorf("failed transfer must not move funds, alice = %d", got)
	}
}

func TestBook_TransferRejectsZeroAndSelf(t *testing.T) {
	b := funds.NewBook()
	b.Mint("alice", 10)

	if err := b.Transfer("alice", "vault", 0); !errors.Is(err, funds.ErrZeroAmount) {
		t.Errorf("zero amount: got %v", err)
	}
	if err := b.Transfer("alice", "alice", 5); !errors.Is(err, funds.ErrSameAccount) {
		t.Errorf("self transfer: got %v", err)
	}
}

func TestBook_BurnReducesSupply(t *testing.T) {
	b := funds.NewBook()
	b.Mint("alice", 100)

	if err := b.Burn("alice", 30); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := b.Supply(); got != 70 {
		t.Errorf("supply = %d, want 70", got)
	}
	if err := b.Burn("alice", 1000); !errors.Is(err, funds.ErrInsufficientBalance) {
		t.Errorf("overburn: got %v", err)
	}
}
