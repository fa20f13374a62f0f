package slot

import (
	"context"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// MemcachedStore keeps the slot in memcached under Key without expiry.
// Memcached may still evict it under memory pressure; a miss then reads as "no cached data".
type MemcachedStore struct {
	client *memcache.Client
	key    string
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero. namespace prefixes the
// key so several widgets can share one server.
func NewMemcachedStore(addrs, namespace string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	key := Key
	if ns := strings.TrimSpace(namespace); ns != "" {
		key = ns + ":" + Key
	}
	return &MemcachedStore{client: client, key: key}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Load implements Store.Load. Returns false, nil on cache miss; false, err on error.
func (s *MemcachedStore) Load(ctx context.Context) (models.CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheEntry{}, false, err
	}
	item, err := s.client.Get(s.key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, err
	}
	entry, err := decodeEntry(item.Value)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Save implements Store.Save.
func (s *MemcachedStore) Save(ctx context.Context, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:   s.key,
		Value: raw,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
