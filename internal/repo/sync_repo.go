// Package repo: sync lease and run history. The lease serializes push
// passes; the run history backs Idempotency-Key replays.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// ErrDuplicate indicates that a sync run with the same idempotency key
// already exists.
var ErrDuplicate = errors.New("duplicate")

// ErrLeaseHeld indicates that another holder owns an unexpired lease.
var ErrLeaseHeld = errors.New("lease held")

// isUniqueViolation matches unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// AcquireLease takes the named lease for holder until now+ttl. An expired
// lease is taken over. It returns ErrLeaseHeld while another holder's lease
// is live.
func AcquireLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ? AND expires_at <= ?", name, now).Delete(&domain.SyncLock{}).Error; err != nil {
			return err
		}
		lock := &domain.SyncLock{Name: name, Holder: holder, ExpiresAt: now.Add(ttl), CreatedAt: now}
		if err := tx.Create(lock).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrLeaseHeld
			}
			return err
		}
		return nil
	})
}

// RenewLease moves the expiry of holder's lease to now+ttl. It returns
// ErrLeaseHeld when holder no longer owns the lease.
func RenewLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.SyncLock{}).
		Where("name = ? AND holder = ?", name, holder).
		Update("expires_at", now.Add(ttl))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// ReleaseLease drops the named lease if holder still owns it.
func ReleaseLease(ctx context.Context, db *gorm.DB, name, holder string) error {
	return db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&domain.SyncLock{}).Error
}

// GetSyncRunByKey returns the run recorded for an unexpired idempotency key
// or ErrNotFound.
func GetSyncRunByKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.SyncRun, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var run domain.SyncRun
	err := db.WithContext(ctx).
		Where("idempotency_key = ? AND key_expires_at > ?", key, now).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// CreateSyncRun inserts run, assigning an id when empty. An expired holder
// of the same key gives the key up first. It returns ErrDuplicate when a live
// run already owns the key.
func CreateSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun, now time.Time) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if run.IdempotencyKey != nil {
			if err := tx.Model(&domain.SyncRun{}).
				Where("idempotency_key = ? AND key_expires_at <= ?", *run.IdempotencyKey, now).
				Update("idempotency_key", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(run).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// CountSyncRuns returns the number of recorded runs.
func CountSyncRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.SyncRun{}).Count(&total).Error
	return total, err
}

// ListSyncRunsPage returns recorded runs, newest first.
func ListSyncRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.SyncRun, error) {
	var out []domain.SyncRun
	err := db.WithContext(ctx).
		Order("started_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
