package address

import (
	"context"

	"github.com/go-faster/errors"
)

// Service manages a user's address book.
type Service struct {
	repo Repository
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's addresses with the default first.
func (s *Service) List(ctx context.Context, userID int64) ([]Address, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

// Create stores a new address, filling in the label and country defaults.
func (s *Service) Create(ctx context.Context, a *Address) error {
	if a.Label == "" {
		a.Label = "Home"
	}
	if a.Country == "" {
		a.Country = "US"
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return errors.Wrap(err, "create address")
	}
	return nil
}

// SetDefault marks the address as the user's default.
func (s *Service) SetDefault(ctx context.Context, userID, id int64) error {
	if err := s.repo.SetDefault(ctx, userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "set default address")
	}
	return nil
}

// Delete removes the address.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete address")
	}
	return nil
}
