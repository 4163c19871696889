package server

import (
	"context"
	"errors"

	"github.com/mbd888/ticketline/internal/ledger"
	"github.com/mbd888/ticketline/internal/ticket"
)

// ticketLedgerAdapter adapts *ledger.Ledger to ticket.LedgerService,
// translating ledger errors into the ticket package's vocabulary.
type ticketLedgerAdapter struct {
	l *ledger.Ledger
}

func (a *ticketLedgerAdapter) translate(err error) error {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return ticket.ErrInsufficientFunds
	}
	return err
}

func (a *ticketLedgerAdapter) Hold(ctx context.Context, identity string, amount int64, ref string) error {
	return a.translate(a.l.Hold(ctx, identity, amount, ref))
}

func (a *ticketLedgerAdapter) ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error {
	return a.l.ReleaseHold(ctx, identity, amount, ref)
}

func (a *ticketLedgerAdapter) SettleHold(ctx context.Context, from, to string, amount int64, ref string) error {
	return a.l.SettleHold(ctx, from, to, amount, ref)
}

func (a *ticketLedgerAdapter) EscrowLock(ctx context.Context, identity string, amount int64, ref string) error {
	return a.translate(a.l.EscrowLock(ctx, identity, amount, ref))
}

func (a *ticketLedgerAdapter) RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error {
	return a.l.RefundEscrow(ctx, identity, amount, ref)
}

func (a *ticketLedgerAdapter) SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error {
	return a.l.SettleEscrow(ctx, buyer, seller, issuer, sellerShare, commission, ref)
}
