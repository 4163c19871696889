//go:build integration

package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ticketline/internal/testutil"
)

func TestPostgresStore_CreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	acct := &Account{
		Identity:  "aaron.ko",
		FirstName: "Aaron",
		LastName:  "Ko",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, acct))

	got, err := store.Get(ctx, "aaron.ko")
	require.NoError(t, err)
	assert.Equal(t, "Aaron", got.FirstName)
	assert.Equal(t, "Ko", got.LastName)

	// Re-registration maps the unique violation to a typed error.
	dup := &Account{Identity: "aaron.ko", FirstName: "Other", LastName: "Person", CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrAccountExists)

	_, err = store.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
