package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestIdempotency_UniqueKeyPerUserChat(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_user_chat_key") {
		t.Fatalf("expected composite index ux_user_chat_key")
	}

	now := time.Now().UTC()
	rec := &Idempotency{ID: "id-1", UserID: "u1", ChatID: "c1", Key: "k1", RequestHash: "h1", MessageID: "m1", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := &Idempotency{ID: "id-2", UserID: "u1", ChatID: "c1", Key: "k1", MessageID: "m2", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, chat_id, key)")
	}
	other := &Idempotency{ID: "id-3", UserID: "u1", ChatID: "c2", Key: "k1", MessageID: "m3", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key in another chat should be allowed: %v", err)
	}
}

func TestIdempotency_Expired(t *testing.T) {
	now := time.Now()
	if (Idempotency{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("future expiry reported as expired")
	}
	if !(Idempotency{ExpiresAt: now}).Expired(now) {
		t.Fatalf("expiry at now should be expired")
	}
}
