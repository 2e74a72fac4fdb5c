package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// GetCredential returns the credential stored in slot, or ErrNotFound.
func GetCredential(ctx context.Context, db *gorm.DB, slot string) (*domain.Credential, error) {
	var c domain.Credential
	if err := db.WithContext(ctx).First(&c, "slot = ?", slot).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ReplaceCredential deletes whatever the slot holds and inserts c in one
// transaction. Readers never observe an empty or doubled slot.
func ReplaceCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("slot = ?", c.Slot).Delete(&domain.Credential{}).Error; err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}
