package core

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dr-electrique/rapport-server/cache"
	"github.com/dr-electrique/rapport-server/storage"
)

// checkDatabaseHealth pings the underlying connection.
func checkDatabaseHealth(db *gorm.DB) string {
	if db == nil {
		return "not configured"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "error: " + err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// checkStorageHealth probes the storage backend.
func checkStorageHealth(provider storage.Provider) string {
	if provider == nil {
		return "not configured"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// checkCacheHealth does a write/read round trip.
func checkCacheHealth(provider cache.Provider) string {
	if provider == nil {
		return "not configured"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "health:probe"
	if err := provider.Set(ctx, key, "ok", 10*time.Second); err != nil {
		return "error: " + err.Error()
	}
	var value string
	if err := provider.Get(ctx, key, &value); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
