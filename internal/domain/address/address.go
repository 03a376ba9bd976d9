package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address does not exist or belongs to
// another user.
var ErrNotFound = errors.New("address not found")

// Address is a saved shipping destination owned by a user.
type Address struct {
	ID        int64
	UserID    int64
	Label     string
	FullName  string
	Phone     string
	Line1     string
	Line2     string
	City      string
	State     string
	ZipCode   string
	Country   string
	Default   bool
	CreatedAt time.Time
}

// Snapshot is the by-value copy of an address stored on an order. It does
// not change when the source address is edited or deleted.
type Snapshot struct {
	AddressID int64  `json:"address_id"`
	Label     string `json:"label"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	Line1     string `json:"address_line1"`
	Line2     string `json:"address_line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
}

// Snapshot copies the shipping fields of a.
func (a *Address) Snapshot() Snapshot {
	return Snapshot{
		AddressID: a.ID,
		Label:     a.Label,
		FullName:  a.FullName,
		Phone:     a.Phone,
		Line1:     a.Line1,
		Line2:     a.Line2,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
	}
}

// Repository stores user addresses. Every method is scoped to a user; an
// address owned by someone else behaves as if it did not exist.
type Repository interface {
	List(ctx context.Context, userID int64) ([]Address, error)
	Get(ctx context.Context, userID, id int64) (*Address, error)
	// Default returns the user's default address, or ErrNotFound.
	Default(ctx context.Context, userID int64) (*Address, error)
	// Create inserts a. The user's first address always becomes the default,
	// and a new default clears the flag on all other addresses.
	Create(ctx context.Context, a *Address) error
	SetDefault(ctx context.Context, userID, id int64) error
	// Delete removes the address, promoting another one when the default
	// was deleted.
	Delete(ctx context.Context, userID, id int64) error
}
