// Package ticket implements the marketplace core: ticket ownership, the
// primary-sale two-phase flow, and the secondary-market resale state machine.
//
// Flow:
//  1. Issuer creates a ticket at a primary price
//  2. A buyer purchases it → ownership moves, payment goes into a hold
//  3. The new owner releases the held payment to the issuer
//  4. A resale buyer deposits escrow and is approved
//  5. The owner transfers ownership to the approved buyer
//  6. The seller settles → escrow split into seller share and commission
package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/ticketline/internal/logging"
	"github.com/mbd888/ticketline/internal/metrics"
	"github.com/mbd888/ticketline/internal/syncutil"
	"github.com/mbd888/ticketline/internal/traces"
	"github.com/mbd888/ticketline/internal/validation"
)

var (
	ErrTicketNotFound      = errors.New("ticket: not found")
	ErrUnauthorized        = errors.New("ticket: caller not authorized for this operation")
	ErrInsufficientPayment = errors.New("ticket: payment below ticket price")
	ErrInsufficientFunds   = errors.New("ticket: buyer has insufficient ledger funds")
	ErrInvalidStatus       = errors.New("ticket: market status does not allow this operation")
	ErrNoHeldFunds         = errors.New("ticket: no held payment to release")
	ErrInvalidPrice        = errors.New("ticket: price must not be negative")
	ErrInvalidIdentity     = errors.New("ticket: invalid identity")
	ErrSelfDeal            = errors.New("ticket: buyer already owns this ticket")
	ErrUnsplittablePayment = errors.New("ticket: payment too small to settle into seller share and commission")
)

// Status tracks a ticket's progress through a secondary-market resale cycle.
type Status string

const (
	StatusNone                 Status = "none"
	StatusApprovedByBuyer      Status = "approved_by_buyer"
	StatusOwnershipTransferred Status = "ownership_transferred"
	StatusDoneDeal             Status = "done_deal"
)

// Ticket is one ticket record. Amounts are integer minor units.
type Ticket struct {
	ID        int64  `json:"id"`
	EventName string `json:"eventName"`
	Seat      string `json:"seat"`
	Owner     string `json:"owner"`
	Price     int64  `json:"price"`

	// Primary-sale hold, pending release to the issuer.
	HeldAmount int64  `json:"heldAmount"`
	HeldFrom   string `json:"heldFrom,omitempty"`

	// Secondary-market cycle.
	Status         Status `json:"status"`
	ApprovedBuyer  string `json:"approvedBuyer,omitempty"`
	EscrowedAmount int64  `json:"escrowedAmount"`
	Seller         string `json:"seller,omitempty"` // party entitled to settlement proceeds
}

// Store persists ticket records and ownership counts.
type Store interface {
	// Create assigns the next monotonic ID and stores the ticket.
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id int64) (*Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	OwnerCount(ctx context.Context, identity string) (int64, error)
}

// LedgerService abstracts fund movements so ticket doesn't import ledger.
type LedgerService interface {
	Hold(ctx context.Context, identity string, amount int64, ref string) error
	ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error
	SettleHold(ctx context.Context, from, to string, amount int64, ref string) error
	EscrowLock(ctx context.Context, identity string, amount int64, ref string) error
	RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error
	SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error
}

// Splitter computes the settlement split.
type Splitter interface {
	Split(amount int64) (sellerShare, commission int64, err error)
}

// Publisher receives marketplace events for realtime streaming. May be nil.
type Publisher interface {
	Publish(eventType string, data any)
}

// SettlementResult reports a completed secondary-market settlement. The
// stored status resets to none for the next resale cycle; the done_deal
// terminal state is observable here and on the event feed.
type SettlementResult struct {
	TicketID    int64  `json:"ticketId"`
	Seller      string `json:"seller"`
	Buyer       string `json:"buyer"`
	SellerShare int64  `json:"sellerShare"`
	Commission  int64  `json:"commission"`
	Status      Status `json:"status"`
}

// Service implements the marketplace business logic. All operations on a
// given ticket are mutually exclusive; operations on different tickets
// run concurrently.
type Service struct {
	store     Store
	ledger    LedgerService
	engine    Splitter
	issuer    string
	publisher Publisher
	locks     syncutil.ShardedMutex
}

// NewService creates a new ticket service. issuer is the only identity
// allowed to create tickets and the recipient of commissions.
func NewService(store Store, ledger LedgerService, engine Splitter, issuer string) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		engine: engine,
		issuer: issuer,
	}
}

// WithPublisher adds a realtime event publisher.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Issuer returns the configured issuer identity.
func (s *Service) Issuer() string {
	return s.issuer
}

func (s *Service) publish(eventType string, data any) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, data)
	}
}

// ref is the ledger reference binding fund movements to a ticket.
func ref(id int64) string {
	return fmt.Sprintf("ticket:%d", id)
}

// eventData flattens a ticket into the map shape the realtime hub filters
// on. Identity-filtered subscriptions match the owner, buyer, and seller
// keys, so events must carry them as plain strings.
func (t *Ticket) eventData() map[string]any {
	return map[string]any{
		"id":     t.ID,
		"owner":  t.Owner,
		"buyer":  t.ApprovedBuyer,
		"seller": t.Seller,
		"price":  t.Price,
		"status": string(t.Status),
	}
}

func (r *SettlementResult) eventData() map[string]any {
	return map[string]any{
		"ticketId":    r.TicketID,
		"owner":       r.Buyer, // the buyer holds the ticket once the deal is done
		"buyer":       r.Buyer,
		"seller":      r.Seller,
		"sellerShare": r.SellerShare,
		"commission":  r.Commission,
		"status":      string(r.Status),
	}
}

// Create mints a new ticket owned by the issuer. Issuer only.
func (s *Service) Create(ctx context.Context, caller, eventName, seat string, price int64) (*Ticket, error) {
	if caller != s.issuer {
		return nil, ErrUnauthorized
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	t := &Ticket{
		EventName: validation.SanitizeString(eventName, validation.MaxStringLength),
		Seat:      validation.SanitizeString(seat, validation.MaxStringLength),
		Owner:     s.issuer,
		Price:     price,
		Status:    StatusNone,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	metrics.TicketsCreatedTotal.Inc()
	s.publish("ticket_created", t.eventData())
	return t, nil
}

// Get returns a ticket by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Ticket, error) {
	return s.store.Get(ctx, id)
}

// OwnerOf returns the current owner of a ticket.
func (s *Service) OwnerOf(ctx context.Context, id int64) (string, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Owner, nil
}

// OwnerToQuantity returns how many tickets an identity currently owns.
func (s *Service) OwnerToQuantity(ctx context.Context, identity string) (int64, error) {
	return s.store.OwnerCount(ctx, identity)
}

// Revise updates the ticket price. Owner only.
func (s *Service) Revise(ctx context.Context, caller string, id int64, newPrice int64) (*Ticket, error) {
	if newPrice < 0 {
		return nil, ErrInvalidPrice
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != t.Owner {
		return nil, ErrUnauthorized
	}

	t.Price = newPrice
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Transfer executes a primary sale: ownership moves to the buyer at once,
// and the payment is held on the ledger pending a separate release call.
func (s *Service) Transfer(ctx context.Context, buyer, seller string, id int64, payment int64) (*Ticket, error) {
	if !validation.IsValidIdentity(buyer) {
		return nil, ErrInvalidIdentity
	}

	ctx, span := traces.StartSpan(ctx, "ticket.Transfer",
		traces.TicketID(id), traces.Identity(buyer), traces.Amount(payment))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if seller != t.Owner {
		return nil, ErrUnauthorized
	}
	if buyer == t.Owner {
		return nil, ErrSelfDeal
	}
	if t.Status != StatusNone || t.HeldAmount > 0 {
		return nil, ErrInvalidStatus
	}
	if payment < t.Price {
		return nil, ErrInsufficientPayment
	}

	// A free ticket bought with zero payment moves nothing on the ledger.
	if payment > 0 {
		if err := s.ledger.Hold(ctx, buyer, payment, ref(id)); err != nil {
			return nil, fmt.Errorf("hold payment: %w", err)
		}
	}

	t.Owner = buyer
	t.HeldAmount = payment
	if payment > 0 {
		t.HeldFrom = buyer
	}
	if err := s.store.Update(ctx, t); err != nil {
		// Roll the hold back; ownership never moved.
		if payment > 0 {
			_ = s.ledger.ReleaseHold(ctx, buyer, payment, ref(id))
		}
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues("primary").Inc()
	s.publish("ticket_sold", t.eventData())
	return t, nil
}

// ReleaseHeld releases a primary-sale payment to the issuer. Callable by
// the current owner; fails once the hold is cleared.
func (s *Service) ReleaseHeld(ctx context.Context, caller string, id int64) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "ticket.ReleaseHeld",
		traces.TicketID(id), traces.Identity(caller))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != t.Owner {
		return nil, ErrUnauthorized
	}
	if t.HeldAmount == 0 {
		return nil, ErrNoHeldFunds
	}

	amount := t.HeldAmount
	if err := s.ledger.SettleHold(ctx, t.HeldFrom, s.issuer, amount, ref(id)); err != nil {
		return nil, fmt.Errorf("settle held payment: %w", err)
	}

	t.HeldAmount = 0
	t.HeldFrom = ""
	if err := s.store.Update(ctx, t); err != nil {
		// Funds already moved to the issuer; the update must land.
		if retryErr := s.store.Update(ctx, t); retryErr != nil {
			logging.L(ctx).Error("held payment settled but ticket update failed; manual resolution required",
				"ticket_id", t.ID, "amount", amount, "error", retryErr)
			return nil, fmt.Errorf("update ticket after release: %w", err)
		}
	}

	metrics.ReleasesTotal.Inc()
	s.publish("payment_released", t.eventData())
	return t, nil
}

// Approve deposits the buyer's payment into escrow and marks them as the
// approved buyer for this ticket's resale cycle.
func (s *Service) Approve(ctx context.Context, buyer string, id int64, payment int64) (*Ticket, error) {
	if !validation.IsValidIdentity(buyer) {
		return nil, ErrInvalidIdentity
	}

	ctx, span := traces.StartSpan(ctx, "ticket.Approve",
		traces.TicketID(id), traces.Identity(buyer), traces.Amount(payment))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusNone {
		return nil, ErrInvalidStatus
	}
	if buyer == t.Owner {
		return nil, ErrSelfDeal
	}
	if payment < t.Price {
		return nil, ErrInsufficientPayment
	}
	// An escrow that can never settle must not be accepted; the buyer's
	// funds would be locked with no settlement path to drain them.
	if _, _, err := s.engine.Split(payment); err != nil {
		return nil, ErrUnsplittablePayment
	}

	if err := s.ledger.EscrowLock(ctx, buyer, payment, ref(id)); err != nil {
		return nil, fmt.Errorf("lock escrow: %w", err)
	}

	t.ApprovedBuyer = buyer
	t.EscrowedAmount = payment
	t.Status = StatusApprovedByBuyer
	if err := s.store.Update(ctx, t); err != nil {
		_ = s.ledger.RefundEscrow(ctx, buyer, payment, ref(id))
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	metrics.EscrowVolume.Add(float64(payment))
	s.publish("buyer_approved", t.eventData())
	return t, nil
}

// TransferToApproved moves ownership to the approved buyer. Owner only.
// Escrow is untouched; the seller settles in a separate call.
func (s *Service) TransferToApproved(ctx context.Context, caller, buyer string, id int64) (*Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != t.Owner {
		return nil, ErrUnauthorized
	}
	if t.Status != StatusApprovedByBuyer {
		return nil, ErrInvalidStatus
	}
	if buyer != t.ApprovedBuyer {
		return nil, ErrUnauthorized
	}

	t.Seller = t.Owner
	t.Owner = buyer
	t.Status = StatusOwnershipTransferred
	if err := s.store.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues("secondary").Inc()
	s.publish("ownership_transferred", t.eventData())
	return t, nil
}

// Settle drains the escrow: the seller receives their share, the issuer
// the commission, and the ticket resets for a new resale cycle.
func (s *Service) Settle(ctx context.Context, caller string, id int64) (*SettlementResult, error) {
	ctx, span := traces.StartSpan(ctx, "ticket.Settle",
		traces.TicketID(id), traces.Identity(caller), traces.Reference(ref(id)))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusOwnershipTransferred {
		return nil, ErrInvalidStatus
	}
	if caller != t.Seller {
		return nil, ErrUnauthorized
	}

	sellerShare, commission, err := s.engine.Split(t.EscrowedAmount)
	if err != nil {
		return nil, fmt.Errorf("split settlement: %w", err)
	}

	buyer := t.Owner // the approved buyer, owner since the transfer
	seller := t.Seller
	if err := s.ledger.SettleEscrow(ctx, buyer, seller, s.issuer, sellerShare, commission, ref(id)); err != nil {
		return nil, fmt.Errorf("settle escrow: %w", err)
	}

	amount := t.EscrowedAmount
	t.EscrowedAmount = 0
	t.ApprovedBuyer = ""
	t.Seller = ""
	t.Status = StatusNone
	if err := s.store.Update(ctx, t); err != nil {
		// Funds already split and paid out; the update must land.
		if retryErr := s.store.Update(ctx, t); retryErr != nil {
			logging.L(ctx).Error("escrow settled but ticket update failed; manual resolution required",
				"ticket_id", t.ID, "amount", amount, "error", retryErr)
			return nil, fmt.Errorf("update ticket after settlement: %w", err)
		}
	}

	result := &SettlementResult{
		TicketID:    t.ID,
		Seller:      seller,
		Buyer:       buyer,
		SellerShare: sellerShare,
		Commission:  commission,
		Status:      StatusDoneDeal,
	}

	metrics.SettlementsTotal.Inc()
	metrics.EscrowVolume.Sub(float64(amount))
	s.publish("deal_done", result.eventData())
	return result, nil
}
