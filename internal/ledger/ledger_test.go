package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	store := NewMemoryStore()
	return New(store, store)
}

func TestDeposit_CreditsAvailable(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "alice", 1000, "dep_1"))

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Available)
	assert.Equal(t, int64(1000), bal.TotalIn)
}

func TestDeposit_DuplicateReference(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "alice", 1000, "dep_1"))
	err := l.Deposit(ctx, "alice", 1000, "dep_1")
	assert.ErrorIs(t, err, ErrDuplicateDeposit)

	bal, err := l.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Available)
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	assert.ErrorIs(t, l.Deposit(ctx, "alice", 0, "dep_1"), ErrInvalidAmount)
	assert.ErrorIs(t, l.Deposit(ctx, "alice", -5, "dep_2"), ErrInvalidAmount)
}

func TestHold_Lifecycle(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 500, "dep_1"))
	require.NoError(t, l.Hold(ctx, "buyer", 300, "ticket:0"))

	bal, err := l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal.Available)
	assert.Equal(t, int64(300), bal.Held)

	// Settle the hold to the issuer.
	require.NoError(t, l.SettleHold(ctx, "buyer", "issuer", 300, "ticket:0"))

	bal, err = l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Held)
	assert.Equal(t, int64(300), bal.TotalOut)

	issuerBal, err := l.Balance(ctx, "issuer")
	require.NoError(t, err)
	assert.Equal(t, int64(300), issuerBal.Available)

	// Nothing held anymore; a second settle must fail without movement.
	err = l.SettleHold(ctx, "buyer", "issuer", 300, "ticket:0")
	assert.ErrorIs(t, err, ErrInsufficientHeld)

	issuerBal, err = l.Balance(ctx, "issuer")
	require.NoError(t, err)
	assert.Equal(t, int64(300), issuerBal.Available)
}

func TestHold_InsufficientFunds(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 100, "dep_1"))
	err := l.Hold(ctx, "buyer", 200, "ticket:0")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available)
	assert.Equal(t, int64(0), bal.Held)
}

func TestReleaseHold_ReturnsFunds(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 500, "dep_1"))
	require.NoError(t, l.Hold(ctx, "buyer", 500, "ticket:3"))
	require.NoError(t, l.ReleaseHold(ctx, "buyer", 500, "ticket:3"))

	bal, err := l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Available)
	assert.Equal(t, int64(0), bal.Held)
}

func TestEscrow_SettleSplitsFunds(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 2000, "dep_1"))
	require.NoError(t, l.EscrowLock(ctx, "buyer", 2000, "ticket:1"))

	bal, err := l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Available)
	assert.Equal(t, int64(2000), bal.Escrowed)

	require.NoError(t, l.SettleEscrow(ctx, "buyer", "seller", "issuer", 1900, 100, "ticket:1"))

	bal, err = l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Escrowed)
	assert.Equal(t, int64(2000), bal.TotalOut)

	sellerBal, err := l.Balance(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(1900), sellerBal.Available)

	issuerBal, err := l.Balance(ctx, "issuer")
	require.NoError(t, err)
	assert.Equal(t, int64(100), issuerBal.Available)
}

func TestEscrow_SettleRequiresFullEscrow(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 100, "dep_1"))
	require.NoError(t, l.EscrowLock(ctx, "buyer", 100, "ticket:1"))

	err := l.SettleEscrow(ctx, "buyer", "seller", "issuer", 150, 10, "ticket:1")
	assert.ErrorIs(t, err, ErrInsufficientEscrow)

	// No partial application.
	sellerBal, err := l.Balance(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sellerBal.Available)
}

func TestEscrow_Refund(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "buyer", 100, "dep_1"))
	require.NoError(t, l.EscrowLock(ctx, "buyer", 100, "ticket:1"))
	require.NoError(t, l.RefundEscrow(ctx, "buyer", 100, "ticket:1"))

	bal, err := l.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available)
	assert.Equal(t, int64(0), bal.Escrowed)
}

func TestUnknownIdentity_HasZeroBalance(t *testing.T) {
	l := newTestLedger()

	bal, err := l.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Available)
	assert.Equal(t, int64(0), bal.Held)
	assert.Equal(t, int64(0), bal.Escrowed)
}

func TestHistory_MostRecentFirst(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	require.NoError(t, l.Deposit(ctx, "alice", 100, "dep_1"))
	require.NoError(t, l.Deposit(ctx, "alice", 200, "dep_2"))
	require.NoError(t, l.Deposit(ctx, "bob", 300, "dep_3"))

	entries, err := l.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(200), entries[0].Amount)
	assert.Equal(t, int64(100), entries[1].Amount)
}
