package store

import (
	"context"
	"time"

	"github.com/matzehuels/trajgroups/pkg/cache"
)

// CacheStore keeps artifacts in a cache.Cache under "<key>/<artifact>".
// Entries may expire independently; a load that misses any of the three is
// a miss.
type CacheStore struct {
	c   cache.Cache
	ttl time.Duration
}

// NewCacheStore wraps c. A ttl of zero means no expiry.
func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{c: c, ttl: ttl}
}

// Save implements ResultStore. The layer list is written last so that a
// reader never sees it before the other two.
func (s *CacheStore) Save(ctx context.Context, key string, a *Artifacts) error {
	enc, err := encode(a)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, key+"/"+OrderingsName, enc.orderings, s.ttl); err != nil {
		return err
	}
	if err := s.c.Set(ctx, key+"/"+GroupsName, enc.groups, s.ttl); err != nil {
		return err
	}
	return s.c.Set(ctx, key+"/"+LayersName, enc.layers, s.ttl)
}

// Load implements ResultStore.
func (s *CacheStore) Load(ctx context.Context, key string) (*Artifacts, bool, error) {
	var enc encoded
	for _, f := range []struct {
		name string
		dst  *[]byte
	}{
		{LayersName, &enc.layers},
		{OrderingsName, &enc.orderings},
		{GroupsName, &enc.groups},
	} {
		data, ok, err := s.c.Get(ctx, key+"/"+f.name)
		if err != nil || !ok {
			return nil, false, err
		}
		*f.dst = data
	}
	a, err := decode(key, enc)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Delete implements ResultStore.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	for _, name := range []string{LayersName, OrderingsName, GroupsName} {
		if err := s.c.Delete(ctx, key+"/"+name); err != nil {
			return err
		}
	}
	return nil
}

// Close does nothing: the underlying cache belongs to the caller.
func (s *CacheStore) Close() error { return nil }

var _ ResultStore = (*CacheStore)(nil)
