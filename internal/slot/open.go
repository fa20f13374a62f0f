package slot

import (
	"fmt"
	"time"
)

// Backend names accepted by Open.
const (
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendMemcached = "memcached"
	BackendMemory    = "in_memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	FilePath   string
	SQLitePath string

	MemcachedAddrs        string
	MemcachedNamespace    string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
}

// Open constructs the Store named by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile:
		return NewFileStore(opts.FilePath)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendMemcached:
		return NewMemcachedStore(opts.MemcachedAddrs, opts.MemcachedNamespace, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("slot: unknown backend %q", opts.Backend)
	}
}
