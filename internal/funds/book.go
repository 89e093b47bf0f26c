// Package funds holds the capital-unit balance book. Every account in the
// system — buyers, depositors, the vault, the reinsurance pool, the ledger's
// fee revenue — is a row in this book, and every value movement is a Transfer.
//
// The book performs pure accounting and never calls back into any component,
// so a transfer can always be the final step of an operation.
package funds

import (
	"errors"
	"fmt"
)

// Account identifies a balance holder. External parties use opaque address
// strings; system components register well-known accounts at startup.
type Account string

var (
	ErrInsufficientBalance = errors.New("funds: insufficient balance")
	ErrZeroAmount          = errors.New("funds: amount must be positive")
	ErrSameAccount         = errors.New("funds: transfer to self")
)

// Book maintains account balances in integer capital units.
// Callers serialize access; the book itself holds no lock.
type Book struct {
	balances map[Account]int64
	supply   int64
}

func NewBook() *Book {
	return &Book{balances: make(map[Account]int64)}
}

// Mint credits an account with units entering the system (deposit wrap-in).
func (b *Book) Mint(to Account, amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	b.balances[to] += amount
	b.supply += amount
	return nil
}

// Burn debits an account with units leaving the system (withdrawal wrap-out).
func (b *Book) Burn(from Account, amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	if b.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, need %d", ErrInsufficientBalance, from, b.balances[from], amount)
	}
	b.balances[from] -= amount
	b.supply -= amount
	return nil
}

// Transfer moves units between two accounts.
func (b *Book) Transfer(from, to Account, amount int64) error {
	if amount <= 0 {
		return ErrZeroAmount
	}
	if from == to {
		return ErrSameAccount
	}
	if b.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, need %d", ErrInsufficientBalance, from, b.balances[from], amount)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

// Balance returns the current balance for an account (zero if unknown).
func (b *Book) Balance(a Account) int64 {
	return b.balances[a]
}

// Supply returns the total units currently in the book.
func (b *Book) Supply() int64 {
	return b.supply
}

// CheckConserved verifies the sum of all balances equals the minted supply.
func (b *Book) CheckConserved() error {
	var sum int64
	for _, bal := range b.balances {
		sum += bal
	}
	if sum != b.supply {
		return fmt.Errorf("funds: balance sum %d != supply %d", sum, b.supply)
	}
	return nil
}
