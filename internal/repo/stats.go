package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

func summarized(db *gorm.DB) *gorm.DB {
	return db.Model(&domain.Email{}).Where("summary IS NOT NULL")
}

// SummariesStats returns how many emails carry a summary and the latest
// UpdatedAt among them, for the summaries ETag. With no summaries it
// returns (0, nil, nil).
func SummariesStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	db = db.WithContext(ctx)

	// Ordered read instead of MAX(): SQLite returns MAX of a datetime as TEXT.
	var newest domain.Email
	err = summarized(db).Select("updated_at").Order("updated_at DESC").Take(&newest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	if err = summarized(db).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	return count, &newest.UpdatedAt, nil
}
