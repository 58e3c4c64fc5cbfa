package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// GetOCR returns the cached markdown for a content hash.
func GetOCR(ctx context.Context, db *gorm.DB, hash string) (string, error) {
	var e domain.OCRCacheEntry
	if err := db.WithContext(ctx).Where("hash = ?", hash).First(&e).Error; err != nil {
		return "", err
	}
	return e.Markdown, nil
}

// PutOCR records markdown for a hash. Entries are append-only: an existing
// hash is left untouched.
func PutOCR(ctx context.Context, db *gorm.DB, hash, markdown string) error {
	e := domain.OCRCacheEntry{Hash: hash, Markdown: markdown, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(&e).Error
}

// ListOCR returns cached entries for the given hashes.
func ListOCR(ctx context.Context, db *gorm.DB, hashes []string) ([]domain.OCRCacheEntry, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var out []domain.OCRCacheEntry
	err := db.WithContext(ctx).Where("hash IN ?", hashes).Find(&out).Error
	return out, err
}
