// Package ledger tracks per-identity balances in integer minor units.
//
// Flow:
//  1. A buyer deposits funds, crediting their available balance
//  2. A primary sale moves the payment into a hold bound to the ticket
//  3. A release call settles the hold to the issuer
//  4. A secondary approval locks the payment in escrow
//  5. Settlement drains the escrow to the seller plus issuer commission
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrIdentityNotFound   = errors.New("ledger: identity not found")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrInsufficientHeld   = errors.New("ledger: insufficient held funds")
	ErrInsufficientEscrow = errors.New("ledger: insufficient escrowed funds")
	ErrInvalidAmount      = errors.New("ledger: invalid amount")
	ErrDuplicateDeposit   = errors.New("ledger: deposit already processed")
	ErrNoEventLog         = errors.New("ledger: no event log configured")
)

// Balance is one identity's position on the ledger. All amounts are
// non-negative integer minor units.
type Balance struct {
	Identity  string    `json:"identity"`
	Available int64     `json:"available"` // Can be spent
	Held      int64     `json:"held"`      // Primary-sale payments awaiting release
	Escrowed  int64     `json:"escrowed"`  // Secondary-market deposits awaiting settlement
	TotalIn   int64     `json:"totalIn"`   // Lifetime credits
	TotalOut  int64     `json:"totalOut"`  // Lifetime debits
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entry is one movement on an identity's ledger.
type Entry struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	Type         string    `json:"type"` // deposit, hold, hold_release, hold_settle, escrow_lock, ...
	Amount       int64     `json:"amount"`
	Reference    string    `json:"reference,omitempty"` // ticket reference or external deposit ref
	Counterparty string    `json:"counterparty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists balances and entries. Each method is a single atomic
// transaction: either every balance touched by the operation moves, or
// none do and a typed error is returned.
type Store interface {
	GetBalance(ctx context.Context, identity string) (*Balance, error)
	Deposit(ctx context.Context, identity string, amount int64, ref string) error
	HasDeposit(ctx context.Context, ref string) (bool, error)

	// Primary-sale two-phase flow.
	Hold(ctx context.Context, identity string, amount int64, ref string) error
	ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error
	SettleHold(ctx context.Context, from, to string, amount int64, ref string) error

	// Secondary-market escrow flow.
	EscrowLock(ctx context.Context, identity string, amount int64, ref string) error
	RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error
	SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error

	History(ctx context.Context, identity string, limit int) ([]*Entry, error)
}

// Ledger manages identity balances.
type Ledger struct {
	store  Store
	events EventStore // nil when the store keeps no replayable log
}

// New creates a new ledger. events may be nil.
func New(store Store, events EventStore) *Ledger {
	return &Ledger{store: store, events: events}
}

// Balance returns an identity's current balance. Unknown identities have
// a zero balance rather than an error.
func (l *Ledger) Balance(ctx context.Context, identity string) (*Balance, error) {
	return l.store.GetBalance(ctx, identity)
}

// Deposit credits an identity's available balance. The external reference
// deduplicates retried deposits.
func (l *Ledger) Deposit(ctx context.Context, identity string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	exists, err := l.store.HasDeposit(ctx, ref)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateDeposit
	}

	return l.store.Deposit(ctx, identity, amount, ref)
}

// Hold moves amount from an identity's available balance into held funds.
func (l *Ledger) Hold(ctx context.Context, identity string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Hold(ctx, identity, amount, ref)
}

// ReleaseHold returns held funds to the identity's available balance.
func (l *Ledger) ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.ReleaseHold(ctx, identity, amount, ref)
}

// SettleHold pays held funds out to the receiving identity.
func (l *Ledger) SettleHold(ctx context.Context, from, to string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.SettleHold(ctx, from, to, amount, ref)
}

// EscrowLock moves amount from available into escrow.
func (l *Ledger) EscrowLock(ctx context.Context, identity string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.EscrowLock(ctx, identity, amount, ref)
}

// RefundEscrow returns escrowed funds to the identity's available balance.
func (l *Ledger) RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return l.store.RefundEscrow(ctx, identity, amount, ref)
}

// SettleEscrow drains a buyer's escrow, paying sellerShare to the seller
// and commission to the issuer in one atomic movement.
func (l *Ledger) SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error {
	if sellerShare <= 0 || commission <= 0 {
		return ErrInvalidAmount
	}
	return l.store.SettleEscrow(ctx, buyer, seller, issuer, sellerShare, commission, ref)
}

// History returns the most recent ledger entries for an identity.
func (l *Ledger) History(ctx context.Context, identity string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, identity, limit)
}
