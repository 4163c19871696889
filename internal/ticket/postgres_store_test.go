//go:build integration

package ticket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ticketline/internal/testutil"
)

func TestPostgresStore_CreateGetUpdate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	tk := &Ticket{
		EventName: "Concert",
		Seat:      "A-1",
		Owner:     "issuer",
		Price:     100,
		Status:    StatusNone,
	}
	require.NoError(t, store.Create(ctx, tk))

	second := &Ticket{EventName: "Concert", Seat: "A-2", Owner: "issuer", Price: 100, Status: StatusNone}
	require.NoError(t, store.Create(ctx, second))
	assert.Equal(t, tk.ID+1, second.ID, "IDs are assigned monotonically")

	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert", got.EventName)
	assert.Equal(t, StatusNone, got.Status)

	got.Owner = "buyer"
	got.HeldAmount = 100
	got.HeldFrom = "buyer"
	require.NoError(t, store.Update(ctx, got))

	got, err = store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer", got.Owner)
	assert.Equal(t, int64(100), got.HeldAmount)

	_, err = store.Get(ctx, 99999)
	assert.ErrorIs(t, err, ErrTicketNotFound)

	missing := &Ticket{ID: 99999, Owner: "nobody"}
	assert.ErrorIs(t, store.Update(ctx, missing), ErrTicketNotFound)
}

func TestPostgresStore_OwnerCount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	count, err := store.OwnerCount(ctx, "collector")
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 0; i < 3; i++ {
		tk := &Ticket{EventName: "Concert", Owner: "collector", Status: StatusNone}
		require.NoError(t, store.Create(ctx, tk))
	}

	count, err = store.OwnerCount(ctx, "collector")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
