package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/partner"
)

// ClientModel is the persistence model for the Client aggregate
type ClientModel struct {
	AggregateModel
	Name      string     `gorm:"type:varchar(200);not null"`
	Email     string     `gorm:"type:varchar(200);index"`
	IsActive  bool       `gorm:"not null"`
	DeletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *partner.Client {
	return &partner.Client{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Email:             m.Email,
		IsActive:          m.IsActive,
		DeletedAt:         m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Client
func (m *ClientModel) FromDomain(c *partner.Client) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.IsActive = c.IsActive
	m.DeletedAt = c.DeletedAt
}
