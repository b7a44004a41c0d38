package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/shared"
	"gorm.io/gorm"
)

// SeedPaymentMethods makes sure one active method exists per supported code.
// Existing rows are left untouched, so it is safe to run on every deploy.
func SeedPaymentMethods(ctx context.Context, db *gorm.DB) (map[finance.PaymentMethodCode]*finance.PaymentMethod, error) {
	repo := NewGormPaymentMethodRepository(db)
	out := make(map[finance.PaymentMethodCode]*finance.PaymentMethod, len(finance.AllPaymentMethodCodes))
	for _, code := range finance.AllPaymentMethodCodes {
		existing, err := repo.FindByCode(ctx, code)
		if err == nil {
			out[code] = existing
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}

		m, err := finance.NewPaymentMethod(code, "")
		if err != nil {
			return nil, err
		}
		if err := repo.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("seed payment method %s: %w", code, err)
		}
		out[code] = m
	}
	return out, nil
}
