// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for weak
// ETag generation in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// tableStats counts the rows of q and reads the greatest updated_at.
// When there are no rows maxUpdatedAt is nil.
func tableStats(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q = q.Session(&gorm.Session{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// avoid MAX() -> TEXT in SQLite
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ChatsStats returns the number of a user's chats and their latest update.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return tableStats(db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID))
}

// MessagesStats returns the number of messages in a chat and their latest update.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (int64, *time.Time, error) {
	return tableStats(db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID))
}

// VehiclesStats returns the number of vehicles and their latest update.
func VehiclesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return tableStats(db.WithContext(ctx).Model(&domain.Vehicle{}))
}
