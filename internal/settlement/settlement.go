// Package settlement computes the split of escrowed funds between the
// seller and the issuer when a secondary-market sale completes.
package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("settlement: amount must be positive")
	ErrUnsplittable  = errors.New("settlement: amount too small to split into two positive shares")
	ErrInvalidRate   = errors.New("settlement: commission rate must be between 1 and 9999 basis points")
)

// DefaultCommissionBps is the issuer's cut when none is configured (5%).
const DefaultCommissionBps = 500

// Engine deterministically splits settlement amounts.
type Engine struct {
	commissionBps int64
}

// NewEngine creates an engine with the given commission rate in basis points.
func NewEngine(commissionBps int64) (*Engine, error) {
	if commissionBps <= 0 || commissionBps >= 10000 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRate, commissionBps)
	}
	return &Engine{commissionBps: commissionBps}, nil
}

// CommissionBps returns the configured commission rate.
func (e *Engine) CommissionBps() int64 {
	return e.commissionBps
}

// Split divides amount into a seller share and an issuer commission.
//
// The commission is amount*bps/10000 rounded down, floored at 1 so the
// issuer always receives something; the remainder goes to the seller.
// Both shares are positive and sum exactly to amount. An amount of 1
// cannot produce two positive integer shares and is rejected rather
// than silently dropping the commission.
func (e *Engine) Split(amount int64) (sellerShare, commission int64, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if amount < 2 {
		return 0, 0, ErrUnsplittable
	}

	// Decomposed to stay exact without overflowing int64 on large amounts.
	commission = (amount/10000)*e.commissionBps + (amount%10000)*e.commissionBps/10000
	if commission == 0 {
		commission = 1
	}
	if commission >= amount {
		commission = amount - 1
	}
	sellerShare = amount - commission

	// Exactness is load-bearing: a split that does not reconstruct the
	// amount would create or destroy funds.
	if sellerShare+commission != amount || sellerShare <= 0 || commission <= 0 {
		return 0, 0, fmt.Errorf("settlement: split of %d produced %d + %d", amount, sellerShare, commission)
	}
	return sellerShare, commission, nil
}
