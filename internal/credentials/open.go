package credentials

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"chatwidget-backend/internal/config"
)

// Open builds the Store selected by cfg.CredentialStore, sealed when a seal
// key is configured. redisClient may be nil unless the redis backend is selected.
func Open(cfg *config.Config, redisClient *redis.Client) (Store, error) {
	var store Store
	switch cfg.CredentialStore {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreFile:
		store = NewFileStore(cfg.CredentialFile)
	case config.StoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis credential store needs a redis client")
		}
		store = NewRedisStore(redisClient, cfg.SessionIdleTTL)
	default:
		return nil, fmt.Errorf("unsupported credential store: %q", cfg.CredentialStore)
	}

	key, err := cfg.SealKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		store = NewSealedStore(store, key)
	}
	return store, nil
}
