package cart

import "context"

// CartRepository reads and clears a user's cart
type CartRepository interface {
	// FindByUser returns the user's cart lines ordered by insertion
	FindByUser(ctx context.Context, userID int64) ([]CartItem, error)

	// FindItem returns one line, or shared.ErrNotFound
	FindItem(ctx context.Context, userID, productID int64) (*CartItem, error)

	// Save creates or updates a line
	Save(ctx context.Context, item *CartItem) error

	// Delete removes one line; deleting a missing line yields shared.ErrNotFound
	Delete(ctx context.Context, userID, productID int64) error

	// Clear removes every line of the user's cart
	Clear(ctx context.Context, userID int64) error
}
