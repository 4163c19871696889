package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/ticketline/internal/idgen"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
// It implements both Store and EventStore.
type MemoryStore struct {
	balances map[string]*Balance
	entries  []*Entry
	events   []*Event
	deposits map[string]bool
	nextID   int64
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*Balance),
		deposits: make(map[string]bool),
	}
}

func (m *MemoryStore) balance(identity string) *Balance {
	bal, ok := m.balances[identity]
	if !ok {
		bal = &Balance{Identity: identity}
		m.balances[identity] = bal
	}
	return bal
}

func (m *MemoryStore) record(identity, entryType string, amount int64, ref, counterparty, eventType string) {
	now := time.Now()
	m.entries = append(m.entries, &Entry{
		ID:           idgen.WithPrefix("ent_"),
		Identity:     identity,
		Type:         entryType,
		Amount:       amount,
		Reference:    ref,
		Counterparty: counterparty,
		CreatedAt:    now,
	})
	m.nextID++
	m.events = append(m.events, &Event{
		ID:           m.nextID,
		Identity:     identity,
		EventType:    eventType,
		Amount:       amount,
		Reference:    ref,
		Counterparty: counterparty,
		CreatedAt:    now,
	})
}

func (m *MemoryStore) GetBalance(ctx context.Context, identity string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if bal, ok := m.balances[identity]; ok {
		cp := *bal
		return &cp, nil
	}
	return &Balance{Identity: identity, UpdatedAt: time.Now()}, nil
}

func (m *MemoryStore) Deposit(ctx context.Context, identity string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balance(identity)
	bal.Available += amount
	bal.TotalIn += amount
	bal.UpdatedAt = time.Now()

	m.deposits[ref] = true
	m.record(identity, "deposit", amount, ref, "", EventDeposit)
	return nil
}

func (m *MemoryStore) HasDeposit(ctx context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deposits[ref], nil
}

func (m *MemoryStore) Hold(ctx context.Context, identity string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[identity]
	if !ok || bal.Available < amount {
		return ErrInsufficientFunds
	}

	bal.Available -= amount
	bal.Held += amount
	bal.UpdatedAt = time.Now()

	m.record(identity, "hold", amount, ref, "", EventHold)
	return nil
}

func (m *MemoryStore) ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[identity]
	if !ok || bal.Held < amount {
		return ErrInsufficientHeld
	}

	bal.Held -= amount
	bal.Available += amount
	bal.UpdatedAt = time.Now()

	m.record(identity, "hold_release", amount, ref, "", EventHoldRelease)
	return nil
}

func (m *MemoryStore) SettleHold(ctx context.Context, from, to string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromBal, ok := m.balances[from]
	if !ok || fromBal.Held < amount {
		return ErrInsufficientHeld
	}

	now := time.Now()
	fromBal.Held -= amount
	fromBal.TotalOut += amount
	fromBal.UpdatedAt = now

	toBal := m.balance(to)
	toBal.Available += amount
	toBal.TotalIn += amount
	toBal.UpdatedAt = now

	m.record(from, "hold_settle", amount, ref, to, EventHoldSettleOut)
	m.record(to, "hold_receive", amount, ref, from, EventHoldSettleIn)
	return nil
}

func (m *MemoryStore) EscrowLock(ctx context.Context, identity string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[identity]
	if !ok || bal.Available < amount {
		return ErrInsufficientFunds
	}

	bal.Available -= amount
	bal.Escrowed += amount
	bal.UpdatedAt = time.Now()

	m.record(identity, "escrow_lock", amount, ref, "", EventEscrowLock)
	return nil
}

func (m *MemoryStore) RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[identity]
	if !ok || bal.Escrowed < amount {
		return ErrInsufficientEscrow
	}

	bal.Escrowed -= amount
	bal.Available += amount
	bal.UpdatedAt = time.Now()

	m.record(identity, "escrow_refund", amount, ref, "", EventEscrowRefund)
	return nil
}

func (m *MemoryStore) SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := sellerShare + commission
	buyerBal, ok := m.balances[buyer]
	if !ok || buyerBal.Escrowed < total {
		return ErrInsufficientEscrow
	}

	now := time.Now()
	buyerBal.Escrowed -= total
	buyerBal.TotalOut += total
	buyerBal.UpdatedAt = now

	sellerBal := m.balance(seller)
	sellerBal.Available += sellerShare
	sellerBal.TotalIn += sellerShare
	sellerBal.UpdatedAt = now

	issuerBal := m.balance(issuer)
	issuerBal.Available += commission
	issuerBal.TotalIn += commission
	issuerBal.UpdatedAt = now

	m.record(buyer, "escrow_settle", total, ref, seller, EventEscrowSettleOut)
	m.record(seller, "sale_proceeds", sellerShare, ref, buyer, EventEscrowSellerIn)
	m.record(issuer, "commission", commission, ref, seller, EventEscrowCommission)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, identity string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Identity == identity {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) Events(ctx context.Context, identity string, since time.Time) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Event
	for _, e := range m.events {
		if e.Identity == identity && e.CreatedAt.After(since) {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) Identities(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string
	for _, e := range m.events {
		if !seen[e.Identity] {
			seen[e.Identity] = true
			result = append(result, e.Identity)
		}
	}
	return result, nil
}
