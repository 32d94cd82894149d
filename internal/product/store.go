package product

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// Store persists products. Save assigns the identifier; a zero ID on input
// means "new".
type Store interface {
	FindAll(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id int64) (Product, bool, error)
	Save(ctx context.Context, p Product) (Product, error)
	Ping(ctx context.Context) error
}

// NotFoundError is reported to the event sink when a lookup misses.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Product not found: %d", e.ID)
}
