package partner

import "context"

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	// FindByID finds a client by its ID
	FindByID(ctx context.Context, id int64) (*Client, error)

	// Exists reports whether a billable (active, not soft-deleted) client exists
	Exists(ctx context.Context, id int64) (bool, error)

	// Save creates or updates a client
	Save(ctx context.Context, client *Client) error
}
