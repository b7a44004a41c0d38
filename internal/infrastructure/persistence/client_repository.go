package persistence

import (
	"context"
	"fmt"

	"github.com/erp/invoicing/internal/domain/partner"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id int64) (*partner.Client, error) {
	var m models.ClientModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find client", func() error {
			return shared.NotFoundf("Client %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// Exists reports whether an active, non-deleted client exists
func (r *GormClientRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ClientModel{}).
		Where("id = ? AND is_active = ? AND deleted_at IS NULL", id, true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	return count > 0, nil
}

// Save creates or updates a client
func (r *GormClientRepository) Save(ctx context.Context, client *partner.Client) error {
	m := &models.ClientModel{}
	m.FromDomain(client)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	client.ID = m.ID
	return nil
}

// Ensure GormClientRepository implements ClientRepository
var _ partner.ClientRepository = (*GormClientRepository)(nil)
