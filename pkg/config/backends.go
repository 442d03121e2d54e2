package config

import (
	"context"

	"github.com/matzehuels/trajgroups/pkg/cache"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/store"
)

// OpenCache opens the configured critical-graph cache.
func (c *CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, c.RedisAddr)
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "open redis cache")
		}
		return rc, nil
	default:
		fc, err := cache.NewFileCache(c.Dir)
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "open file cache")
		}
		return fc, nil
	}
}

// OpenStore opens the configured result store. The cache backend stores
// results in c under ttl.
func (s *StoreConfig) OpenStore(ctx context.Context, c cache.Cache, ttl Duration) (store.ResultStore, error) {
	switch s.Backend {
	case BackendFile:
		fs, err := store.NewFileStore(s.Dir)
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "open file store")
		}
		return fs, nil
	case BackendMongo:
		ms, err := store.NewMongoStore(ctx, s.MongoURI, s.MongoDatabase)
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeStorage, err, "open mongo store")
		}
		return ms, nil
	default:
		return store.NewCacheStore(c, ttl.Duration), nil
	}
}
