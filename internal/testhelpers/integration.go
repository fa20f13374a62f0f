//go:build integration
// +build integration

// Package testhelpers wires live dependencies for integration tests.
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/weather-widget/internal/client"
	"github.com/kjstillabower/weather-widget/internal/slot"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	SlotBackend   string // INTEGRATION_SLOT_BACKEND; file when unset
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	backend := os.Getenv("INTEGRATION_SLOT_BACKEND")
	if backend == "" {
		backend = slot.BackendFile
	}
	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		SlotBackend:   backend,
		MemcachedAddr: MemcachedAddr(),
	}
}

// MemcachedAddr returns MEMCACHED_ADDRS or the local default.
func MemcachedAddr() string {
	if addr := os.Getenv("MEMCACHED_ADDRS"); addr != "" {
		return addr
	}
	return "localhost:11211"
}

// SetupIntegrationClient creates a live weather client.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.OpenWeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

// SetupIntegrationStore opens the configured slot backend in a temp dir. A memcached
// backend that does not answer skips the test.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) slot.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := slot.Open(slot.Options{
		Backend:               cfg.SlotBackend,
		FilePath:              filepath.Join(dir, "slot.json"),
		SQLitePath:            filepath.Join(dir, "slot.db"),
		MemcachedAddrs:        cfg.MemcachedAddr,
		MemcachedNamespace:    "it-" + time.Now().Format("150405.000"),
		MemcachedTimeout:      500 * time.Millisecond,
		MemcachedMaxIdleConns: 2,
	})
	if err != nil {
		t.Fatalf("slot.Open() error = %v", err)
	}
	if mc, ok := store.(*slot.MemcachedStore); ok {
		if err := mc.Ping(); err != nil {
			mc.Close()
			t.Skipf("memcached not reachable at %s: %v", cfg.MemcachedAddr, err)
		}
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
