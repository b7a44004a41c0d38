package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/invoicing/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps gorm.ErrRecordNotFound to a NOT_FOUND domain error and wraps anything else
func translate(err error, op string, notFound func() error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if notFound != nil {
			return notFound()
		}
		return shared.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
