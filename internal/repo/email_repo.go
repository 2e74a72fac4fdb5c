// Package repo: Email queries.
//
// A missing email yields gorm.ErrRecordNotFound (also exported as
// ErrNotFound). Conditional updates report whether a row changed instead of
// failing, so callers can tell "already done" apart from a store failure.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertEmailIfAbsent stores in unless a row with the same external id
// already exists. Existing rows are never overwritten. It returns the stored
// row and whether it was created by this call.
func InsertEmailIfAbsent(ctx context.Context, db *gorm.DB, in domain.InboundEmail) (*domain.Email, bool, error) {
	e := &domain.Email{
		GmailID:   in.ID,
		ThreadID:  in.ThreadID,
		Subject:   in.Subject,
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Body:      in.Body,
		DateSent:  in.DateSent,
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "gmail_id"}}, DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return e, true, nil
	}
	existing, err := GetEmailByGmailID(ctx, db, in.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetEmail fetches a single email by surrogate id.
func GetEmail(ctx context.Context, db *gorm.DB, id uint) (*domain.Email, error) {
	var e domain.Email
	if err := db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEmailByGmailID fetches a single email by its external id.
func GetEmailByGmailID(ctx context.Context, db *gorm.DB, gmailID string) (*domain.Email, error) {
	var e domain.Email
	if err := db.WithContext(ctx).First(&e, "gmail_id = ?", gmailID).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmails returns every stored email, most recently sent first.
func ListEmails(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	var out []domain.Email
	err := db.WithContext(ctx).
		Order("date_sent desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// ListSummarized returns emails that carry a summary, most recently sent first.
func ListSummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	var out []domain.Email
	err := db.WithContext(ctx).
		Where("summary IS NOT NULL").
		Order("date_sent desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// ListUnsummarized returns emails still waiting for an annotation, oldest first.
func ListUnsummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	var out []domain.Email
	err := db.WithContext(ctx).
		Where("summary IS NULL").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListPendingPush returns annotated emails not yet accepted by the billing
// system, in id order.
func ListPendingPush(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	var out []domain.Email
	err := db.WithContext(ctx).
		Where("summary IS NOT NULL AND pushed_to_clio = ?", false).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// IsPushed reports the current pushed flag of an email.
func IsPushed(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	var row struct{ PushedToClio bool }
	res := db.WithContext(ctx).
		Model(&domain.Email{}).
		Select("pushed_to_clio").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, ErrNotFound
	}
	return row.PushedToClio, nil
}

// MarkPushed flips the pushed flag of an annotated, unpushed email. When the
// row's billing hours are unset or zero, the submitted quantity is written alongside so a
// pushed row always carries the hours that were billed. It reports whether
// this call changed the row.
func MarkPushed(ctx context.Context, db *gorm.DB, id uint, quantity float64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("id = ? AND pushed_to_clio = ? AND summary IS NOT NULL", id, false).
		Updates(map[string]any{
			"pushed_to_clio": true,
			"billing_hours":  gorm.Expr("CASE WHEN billing_hours IS NULL OR billing_hours = 0 THEN ? ELSE billing_hours END", quantity),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetAnnotation stores an annotation on an email that has no summary yet.
// It reports whether this call changed the row.
func SetAnnotation(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("id = ? AND summary IS NULL", id).
		Updates(map[string]any{
			"summary":             a.Summary,
			"billing_hours":       a.BillingHours,
			"billing_description": a.BillingDescription,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateSummary overwrites the annotation of an email that has not been
// pushed. It reports whether this call changed the row.
func UpdateSummary(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("id = ? AND pushed_to_clio = ?", id, false).
		Updates(map[string]any{
			"summary":             a.Summary,
			"billing_hours":       a.BillingHours,
			"billing_description": a.BillingDescription,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
