package ticket

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory ticket store for demo/development mode.
type MemoryStore struct {
	tickets map[int64]*Ticket
	counts  map[string]int64
	nextID  int64
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory ticket store. IDs start at 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[int64]*Ticket),
		counts:  make(map[string]int64),
	}
}

func (m *MemoryStore) Create(ctx context.Context, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = m.nextID
	m.nextID++

	cp := *t
	m.tickets[t.ID] = &cp
	m.counts[t.Owner]++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.tickets[t.ID]
	if !ok {
		return ErrTicketNotFound
	}

	// Ownership counts move in the same critical section as the record,
	// so no observer sees a ticket counted zero or two times.
	if prev.Owner != t.Owner {
		m.counts[prev.Owner]--
		m.counts[t.Owner]++
	}

	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *MemoryStore) OwnerCount(ctx context.Context, identity string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[identity], nil
}
