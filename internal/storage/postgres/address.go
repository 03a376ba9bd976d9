package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-store/internal/domain/address"
)

const (
	addressColumns = `id, user_id, label, full_name, phone, address_line1, address_line2,
		city, state, zip_code, country, is_default, created_at`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, id`

	getAddressSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 AND id = $2`

	defaultAddressSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 AND is_default`

	hasAddressSQL = `SELECT EXISTS (SELECT 1 FROM addresses WHERE user_id = $1)`

	clearDefaultSQL = `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`

	insertAddressSQL = `INSERT INTO addresses
		(user_id, label, full_name, phone, address_line1, address_line2, city, state, zip_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	setDefaultSQL = `UPDATE addresses SET is_default = TRUE WHERE user_id = $1 AND id = $2`

	deleteAddressSQL = `DELETE FROM addresses WHERE user_id = $1 AND id = $2 RETURNING is_default`

	promoteAddressSQL = `UPDATE addresses SET is_default = TRUE
		WHERE id = (SELECT id FROM addresses WHERE user_id = $1 ORDER BY id LIMIT 1)`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	q querier
}

func (r *AddressRepository) List(ctx context.Context, userID int64) ([]address.Address, error) {
	rows, err := r.q.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses of user %d: %w", userID, err)
	}

	list, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, fmt.Errorf("listing addresses of user %d: %w", userID, err)
	}
	return list, nil
}

func (r *AddressRepository) Get(ctx context.Context, userID, id int64) (*address.Address, error) {
	return r.one(ctx, getAddressSQL, userID, id)
}

func (r *AddressRepository) Default(ctx context.Context, userID int64) (*address.Address, error) {
	return r.one(ctx, defaultAddressSQL, userID)
}

func (r *AddressRepository) one(ctx context.Context, sql string, args ...any) (*address.Address, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting address: %w", err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address: %w", err)
	}
	return &a, nil
}

// Create inserts a, making it the default when it is the user's first
// address or when a.Default is set.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	return inTx(ctx, r.q, func(q querier) error {
		var exists bool
		if err := q.QueryRow(ctx, hasAddressSQL, a.UserID).Scan(&exists); err != nil {
			return fmt.Errorf("checking addresses of user %d: %w", a.UserID, err)
		}
		if !exists {
			a.Default = true
		}
		if a.Default {
			if _, err := q.Exec(ctx, clearDefaultSQL, a.UserID); err != nil {
				return fmt.Errorf("clearing default address: %w", err)
			}
		}

		err := q.QueryRow(ctx, insertAddressSQL,
			a.UserID, a.Label, a.FullName, a.Phone, a.Line1, a.Line2,
			a.City, a.State, a.ZipCode, a.Country, a.Default,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting address: %w", err)
		}
		return nil
	})
}

func (r *AddressRepository) SetDefault(ctx context.Context, userID, id int64) error {
	return inTx(ctx, r.q, func(q querier) error {
		if _, err := (&AddressRepository{q: q}).Get(ctx, userID, id); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, clearDefaultSQL, userID); err != nil {
			return fmt.Errorf("clearing default address: %w", err)
		}
		if _, err := q.Exec(ctx, setDefaultSQL, userID, id); err != nil {
			return fmt.Errorf("setting default address %d: %w", id, err)
		}
		return nil
	})
}

func (r *AddressRepository) Delete(ctx context.Context, userID, id int64) error {
	return inTx(ctx, r.q, func(q querier) error {
		var wasDefault bool
		if err := q.QueryRow(ctx, deleteAddressSQL, userID, id).Scan(&wasDefault); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return address.ErrNotFound
			}
			return fmt.Errorf("deleting address %d: %w", id, err)
		}
		if wasDefault {
			if _, err := q.Exec(ctx, promoteAddressSQL, userID); err != nil {
				return fmt.Errorf("promoting default address: %w", err)
			}
		}
		return nil
	})
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Label, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.ZipCode, &a.Country, &a.Default, &a.CreatedAt,
	)
	return a, err
}
