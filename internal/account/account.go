// Package account implements the profile registry for ledger identities.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/ticketline/internal/validation"
)

var (
	ErrAccountNotFound = errors.New("account: not found")
	ErrAccountExists   = errors.New("account: already registered")
	ErrInvalidIdentity = errors.New("account: invalid identity")
	ErrInvalidName     = errors.New("account: first and last name are required")
)

// Account maps an opaque identity to profile metadata. Records are
// immutable after creation; there is no update or removal.
type Account struct {
	Identity  string    `json:"identity"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists account records.
type Store interface {
	Create(ctx context.Context, acct *Account) error
	Get(ctx context.Context, identity string) (*Account, error)
}

// Service implements account registration.
type Service struct {
	store Store
}

// NewService creates a new account service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers profile data for an identity. Re-registering an
// existing identity is rejected rather than overwritten.
func (s *Service) Create(ctx context.Context, identity, firstName, lastName string) (*Account, error) {
	if !validation.IsValidIdentity(identity) {
		return nil, ErrInvalidIdentity
	}

	firstName = validation.SanitizeString(firstName, validation.MaxStringLength)
	lastName = validation.SanitizeString(lastName, validation.MaxStringLength)
	if firstName == "" || lastName == "" {
		return nil, ErrInvalidName
	}

	acct := &Account{
		Identity:  identity,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Get returns the account registered for an identity.
func (s *Service) Get(ctx context.Context, identity string) (*Account, error) {
	return s.store.Get(ctx, identity)
}
