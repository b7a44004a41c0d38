package partner

import (
	"net/mail"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
)

// Client is the party an invoice is billed to.
// The invoicing core only ever checks that a client exists; it never owns one.
type Client struct {
	shared.BaseAggregateRoot
	Name      string
	Email     string
	IsActive  bool
	DeletedAt *time.Time
}

// NewClient creates a new active client
func NewClient(name, email string) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.Validationf("Client name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.Validationf("Client name cannot exceed 200 characters")
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, shared.Validationf("Invalid client email: %s", email)
		}
	}

	return &Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Email:             strings.ToLower(email),
		IsActive:          true,
	}, nil
}

// IsBillable reports whether invoices may be issued to this client
func (c *Client) IsBillable() bool {
	return c.IsActive && c.DeletedAt == nil
}

// SoftDelete deactivates the client
func (c *Client) SoftDelete() {
	now := time.Now()
	c.IsActive = false
	c.DeletedAt = &now
	c.UpdatedAt = now
}
