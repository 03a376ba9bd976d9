package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/kart-store/internal/domain/address"
)

// AddressRepository implements address.Repository.
type AddressRepository struct {
	r   runner
	now func() time.Time
}

var _ address.Repository = (*AddressRepository)(nil)

// userAddresses returns the user's addresses, default first, then by id.
func userAddresses(st *state, userID int64) []address.Address {
	var out []address.Address
	for _, a := range st.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b address.Address) int {
		if a.Default != b.Default {
			if a.Default {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func clearDefault(st *state, userID int64) {
	for id, a := range st.addresses {
		if a.UserID == userID && a.Default {
			a.Default = false
			st.addresses[id] = a
		}
	}
}

func (r *AddressRepository) List(_ context.Context, userID int64) ([]address.Address, error) {
	var out []address.Address
	err := r.r.read(func(st *state) error {
		out = userAddresses(st, userID)
		return nil
	})
	return out, err
}

func (r *AddressRepository) Get(_ context.Context, userID, id int64) (*address.Address, error) {
	var out *address.Address
	err := r.r.read(func(st *state) error {
		a, ok := st.addresses[id]
		if !ok || a.UserID != userID {
			return address.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *AddressRepository) Default(_ context.Context, userID int64) (*address.Address, error) {
	var out *address.Address
	err := r.r.read(func(st *state) error {
		list := userAddresses(st, userID)
		if len(list) == 0 || !list[0].Default {
			return address.ErrNotFound
		}
		out = &list[0]
		return nil
	})
	return out, err
}

func (r *AddressRepository) Create(_ context.Context, a *address.Address) error {
	return r.r.write(func(st *state) error {
		if len(userAddresses(st, a.UserID)) == 0 {
			a.Default = true
		}
		if a.Default {
			clearDefault(st, a.UserID)
		}
		st.lastAddressID++
		a.ID = st.lastAddressID
		a.CreatedAt = r.now()
		st.addresses[a.ID] = *a
		return nil
	})
}

func (r *AddressRepository) SetDefault(_ context.Context, userID, id int64) error {
	return r.r.write(func(st *state) error {
		a, ok := st.addresses[id]
		if !ok || a.UserID != userID {
			return address.ErrNotFound
		}
		clearDefault(st, userID)
		a.Default = true
		st.addresses[id] = a
		return nil
	})
}

func (r *AddressRepository) Delete(_ context.Context, userID, id int64) error {
	return r.r.write(func(st *state) error {
		a, ok := st.addresses[id]
		if !ok || a.UserID != userID {
			return address.ErrNotFound
		}
		delete(st.addresses, id)

		if a.Default {
			if rest := userAddresses(st, userID); len(rest) > 0 {
				next := rest[0]
				next.Default = true
				st.addresses[next.ID] = next
			}
		}
		return nil
	})
}
