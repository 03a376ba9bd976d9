package address_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/storage/memory"
)

func newAddress(userID int64, line1 string) *address.Address {
	return &address.Address{
		UserID:   userID,
		FullName: "Ada Lovelace",
		Phone:    "555-0100",
		Line1:    line1,
		City:     "London",
		State:    "LDN",
		ZipCode:  "N1",
	}
}

func defaults(list []address.Address) int {
	n := 0
	for _, a := range list {
		if a.Default {
			n++
		}
	}
	return n
}

func TestService_DefaultHandling(t *testing.T) {
	svc := address.NewService(memory.New().Store().Addresses())
	ctx := t.Context()

	first := newAddress(1, "1 First St")
	require.NoError(t, svc.Create(ctx, first))
	assert.True(t, first.Default, "first address becomes default")
	assert.Equal(t, "Home", first.Label)
	assert.Equal(t, "US", first.Country)

	second := newAddress(1, "2 Second St")
	require.NoError(t, svc.Create(ctx, second))
	assert.False(t, second.Default)

	third := newAddress(1, "3 Third St")
	third.Default = true
	require.NoError(t, svc.Create(ctx, third))

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, 1, defaults(list))

	require.NoError(t, svc.SetDefault(ctx, 1, second.ID))
	list, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 1, defaults(list))

	require.NoError(t, svc.Delete(ctx, 1, second.ID))
	list, err = svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, defaults(list), "another address is promoted")
}

func TestService_OwnershipScoping(t *testing.T) {
	svc := address.NewService(memory.New().Store().Addresses())
	ctx := t.Context()

	mine := newAddress(1, "1 Mine St")
	require.NoError(t, svc.Create(ctx, mine))

	require.ErrorIs(t, svc.SetDefault(ctx, 2, mine.ID), address.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 2, mine.ID), address.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 1, 404), address.ErrNotFound)

	others, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestAddress_Snapshot(t *testing.T) {
	a := newAddress(1, "1 Main St")
	a.ID = 9
	a.Label = "Work"
	snap := a.Snapshot()
	assert.Equal(t, int64(9), snap.AddressID)
	assert.Equal(t, "Work", snap.Label)
	assert.Equal(t, "1 Main St", snap.Line1)
	assert.Equal(t, "London", snap.City)
}
