package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RegistersProfile(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	acct, err := svc.Create(ctx, "userOne", "Aaron", "Ko")
	require.NoError(t, err)
	assert.Equal(t, "userOne", acct.Identity)
	assert.Equal(t, "Aaron", acct.FirstName)
	assert.Equal(t, "Ko", acct.LastName)
	assert.NotZero(t, acct.CreatedAt)

	got, err := svc.Get(ctx, "userOne")
	require.NoError(t, err)
	assert.Equal(t, acct.FirstName, got.FirstName)
}

func TestCreate_RejectsReRegistration(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, "userOne", "Aaron", "Ko")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "userOne", "Tim", "Ko")
	assert.ErrorIs(t, err, ErrAccountExists)

	// Original record untouched.
	got, err := svc.Get(ctx, "userOne")
	require.NoError(t, err)
	assert.Equal(t, "Aaron", got.FirstName)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "Aaron", "Ko")
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = svc.Create(ctx, "bad identity with spaces", "Aaron", "Ko")
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = svc.Create(ctx, "userOne", "", "Ko")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Create(ctx, "userOne", "Aaron", "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestGet_UnknownIdentity(t *testing.T) {
	svc := NewService(NewMemoryStore())

	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
