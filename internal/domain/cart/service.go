package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-store/internal/domain/product"
)

// Service reads and mutates user carts against the current catalog.
type Service struct {
	carts    Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products, now: time.Now}
}

// View returns the user's cart priced at current product prices.
func (s *Service) View(ctx context.Context, userID int64) (Snapshot, error) {
	entries, err := s.carts.Entries(ctx, userID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load cart")
	}
	return NewSnapshot(entries), nil
}

// Add puts qty units of a product in the cart, merging with an existing line.
func (s *Service) Add(ctx context.Context, userID, productID int64, qty int) (*Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Available() {
		return nil, &product.UnavailableError{ID: p.ID, Name: p.Name}
	}

	line := Line{UserID: userID, ProductID: productID, Quantity: qty, AddedAt: s.now()}
	existing, err := s.carts.Get(ctx, userID, productID)
	switch {
	case err == nil:
		line.Quantity += existing.Quantity
		line.AddedAt = existing.AddedAt
	case !errors.Is(err, ErrLineNotFound):
		return nil, errors.Wrap(err, "get cart line")
	}
	if line.Quantity > p.Stock {
		return nil, &product.InsufficientStockError{
			ID: p.ID, Name: p.Name, Requested: line.Quantity, Available: p.Stock,
		}
	}

	if err := s.carts.Upsert(ctx, line); err != nil {
		return nil, errors.Wrap(err, "upsert cart line")
	}
	return &line, nil
}

// Update sets the quantity of an existing line.
func (s *Service) Update(ctx context.Context, userID, productID int64, qty int) (*Line, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	line, err := s.carts.Get(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, errors.Wrap(err, "get cart line")
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > p.Stock {
		return nil, &product.InsufficientStockError{
			ID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock,
		}
	}

	line.Quantity = qty
	if err := s.carts.Upsert(ctx, *line); err != nil {
		return nil, errors.Wrap(err, "upsert cart line")
	}
	return line, nil
}

// Remove deletes the line for a product.
func (s *Service) Remove(ctx context.Context, userID, productID int64) error {
	if err := s.carts.Delete(ctx, userID, productID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

func (s *Service) product(ctx context.Context, id int64) (*product.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &product.NotFoundError{ID: id}
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}
