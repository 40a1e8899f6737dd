package cache

import (
	"fmt"
	"log"

	"github.com/dr-electrique/rapport-server/config"
)

// New builds the cache provider selected by configuration. Redis startup
// failures fall back to the in-process cache so the server still comes up.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.CacheType {
	case "redis":
		provider, err := NewRedis(RedisConfig{
			Address:  cfg.CacheRedisAddr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
		})
		if err != nil {
			log.Printf("[Cache] Redis unavailable (%v), falling back to memory cache", err)
			return NewMemory(DefaultMemoryConfig())
		}
		log.Printf("[Cache] Using Redis cache at %s", cfg.CacheRedisAddr)
		return provider, nil

	case "memory", "":
		return NewMemory(DefaultMemoryConfig())

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}
