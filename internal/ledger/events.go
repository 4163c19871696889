package ledger

import (
	"context"
	"time"
)

// Event is an immutable record of one balance movement. The event log is
// append-only; replaying it reconstructs any identity's balance, which is
// what makes a crash between the two phases of a sale recoverable.
type Event struct {
	ID           int64     `json:"id"`
	Identity     string    `json:"identity"`
	EventType    string    `json:"eventType"`
	Amount       int64     `json:"amount"`
	Reference    string    `json:"reference,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Event types appended by the stores.
const (
	EventDeposit          = "deposit"
	EventHold             = "hold"
	EventHoldRelease      = "hold_release"
	EventHoldSettleOut    = "hold_settle_out"
	EventHoldSettleIn     = "hold_settle_in"
	EventEscrowLock       = "escrow_lock"
	EventEscrowSettleOut  = "escrow_settle_out"
	EventEscrowSellerIn   = "escrow_seller_in"
	EventEscrowCommission = "escrow_commission_in"
	EventEscrowRefund     = "escrow_refund"
)

// EventStore queries the append-only event log.
type EventStore interface {
	Events(ctx context.Context, identity string, since time.Time) ([]*Event, error)
	Identities(ctx context.Context) ([]string, error)
}

// ReconciliationResult holds the outcome of replaying events vs actual balance.
type ReconciliationResult struct {
	Identity        string `json:"identity"`
	Match           bool   `json:"match"`
	ReplayAvailable int64  `json:"replayAvailable"`
	ReplayHeld      int64  `json:"replayHeld"`
	ReplayEscrowed  int64  `json:"replayEscrowed"`
	ActualAvailable int64  `json:"actualAvailable"`
	ActualHeld      int64  `json:"actualHeld"`
	ActualEscrowed  int64  `json:"actualEscrowed"`
}

// RebuildBalance replays a sequence of events to reconstruct a balance.
func RebuildBalance(identity string, events []*Event) *Balance {
	bal := &Balance{Identity: identity}

	for _, e := range events {
		switch e.EventType {
		case EventDeposit:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		case EventHold:
			bal.Available -= e.Amount
			bal.Held += e.Amount
		case EventHoldRelease:
			bal.Held -= e.Amount
			bal.Available += e.Amount
		case EventHoldSettleOut:
			bal.Held -= e.Amount
			bal.TotalOut += e.Amount
		case EventHoldSettleIn:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		case EventEscrowLock:
			bal.Available -= e.Amount
			bal.Escrowed += e.Amount
		case EventEscrowSettleOut:
			bal.Escrowed -= e.Amount
			bal.TotalOut += e.Amount
		case EventEscrowSellerIn, EventEscrowCommission:
			bal.Available += e.Amount
			bal.TotalIn += e.Amount
		case EventEscrowRefund:
			bal.Escrowed -= e.Amount
			bal.Available += e.Amount
		}
	}

	return bal
}

// Reconcile replays events for one identity and compares against the
// actual balance row.
func (l *Ledger) Reconcile(ctx context.Context, identity string) (*ReconciliationResult, error) {
	if l.events == nil {
		return nil, ErrNoEventLog
	}
	events, err := l.events.Events(ctx, identity, time.Time{})
	if err != nil {
		return nil, err
	}

	replayed := RebuildBalance(identity, events)

	actual, err := l.store.GetBalance(ctx, identity)
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		Identity:        identity,
		ReplayAvailable: replayed.Available,
		ReplayHeld:      replayed.Held,
		ReplayEscrowed:  replayed.Escrowed,
		ActualAvailable: actual.Available,
		ActualHeld:      actual.Held,
		ActualEscrowed:  actual.Escrowed,
	}
	result.Match = result.ReplayAvailable == result.ActualAvailable &&
		result.ReplayHeld == result.ActualHeld &&
		result.ReplayEscrowed == result.ActualEscrowed

	return result, nil
}

// ReconcileAll replays events for every identity and returns per-identity results.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]*ReconciliationResult, error) {
	if l.events == nil {
		return nil, ErrNoEventLog
	}
	identities, err := l.events.Identities(ctx)
	if err != nil {
		return nil, err
	}

	var results []*ReconciliationResult
	for _, id := range identities {
		r, err := l.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
