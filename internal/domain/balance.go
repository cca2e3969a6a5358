package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance tracks the free and locked amounts of one asset. Both components
// stay non-negative; every mutation that would break that fails instead of
// clamping.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

func NewBalance(asset string) *Balance {
	return &Balance{Asset: asset}
}

func (b *Balance) Total() decimal.Decimal { return b.Free.Add(b.Locked) }

func (b *Balance) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("deposit %s %s: %w", b.Asset, amount, ErrNegativePrice)
	}
	b.Free = b.Free.Add(amount)
	return nil
}

func (b *Balance) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(b.Free) {
		return fmt.Errorf("withdraw %s %s (free %s): %w", b.Asset, amount, b.Free, ErrInsufficient)
	}
	b.Free = b.Free.Sub(amount)
	return nil
}

// Lock moves amount from free into locked, e.g. when an order is submitted.
func (b *Balance) Lock(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(b.Free) {
		return fmt.Errorf("lock %s %s (free %s): %w", b.Asset, amount, b.Free, ErrInsufficient)
	}
	b.Free = b.Free.Sub(amount)
	b.Locked = b.Locked.Add(amount)
	return nil
}

// Unlock releases a previously locked amount back to free.
func (b *Balance) Unlock(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(b.Locked) {
		return fmt.Errorf("unlock %s %s (locked %s): %w", b.Asset, amount, b.Locked, ErrInsufficient)
	}
	b.Locked = b.Locked.Sub(amount)
	b.Free = b.Free.Add(amount)
	return nil
}

// Release consumes a locked amount, e.g. when a locked order fills.
func (b *Balance) Release(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(b.Locked) {
		return fmt.Errorf("release %s %s (locked %s): %w", b.Asset, amount, b.Locked, ErrInsufficient)
	}
	b.Locked = b.Locked.Sub(amount)
	return nil
}

// Snapshot returns a copy safe to hand across goroutines.
func (b *Balance) Snapshot() Balance {
	return Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked}
}
