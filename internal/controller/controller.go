// Package controller implements the widget's fetch-cache-fallback decision logic.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-widget/internal/client"
	"github.com/kjstillabower/weather-widget/internal/models"
	"github.com/kjstillabower/weather-widget/internal/observability"
	"github.com/kjstillabower/weather-widget/internal/slot"
	"github.com/kjstillabower/weather-widget/internal/validation"
)

// ConnectivityMonitor is the read side of netmon.Monitor.
type ConnectivityMonitor interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for slot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRules sets input validation beyond the empty check.
func WithRules(rules validation.Rules) Option {
	return func(c *Controller) { c.rules = rules }
}

// Controller owns the widget state and the in-memory mirror of the cache slot.
//
// Every RequestWeather call takes the next request id. A fetch that resolves
// after a newer call was made is discarded: neither the state nor the slot change.
type Controller struct {
	client  client.WeatherClient
	store   slot.Store
	monitor ConnectivityMonitor
	logger  *zap.Logger
	rules   validation.Rules
	now     func() time.Time

	mu     sync.Mutex
	state  State
	latest uint64
	cached *models.CacheEntry
	subs   []func(State)
	// saves counts successful slot writes; a reload that overlaps one keeps the mirror.
	saves uint64

	// saveMu orders slot writes by commit order; taken while mu is held, released after the write.
	saveMu sync.Mutex

	unsubscribe func()
}

// New builds a Controller and reads the slot once. A slot read error is logged
// and the widget starts without fallback data.
func New(ctx context.Context, weatherClient client.WeatherClient, store slot.Store, monitor ConnectivityMonitor, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		client:  weatherClient,
		store:   store,
		monitor: monitor,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Online = monitor.IsOnline()

	c.reloadSlot(ctx)
	c.unsubscribe = monitor.Subscribe(c.onConnectivity)
	return c
}

// Close detaches the controller from the monitor.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// State returns a snapshot of the current widget state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Cached returns the slot entry available for offline fallback.
func (c *Controller) Cached() (models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return models.CacheEntry{}, false
	}
	return *c.cached, true
}

// Subscribe registers fn to receive every state change. fn runs outside the
// controller lock on the goroutine that made the change; compare RequestID to drop
// out-of-order snapshots.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// SetInput records typed text. Typing dismisses the current error.
func (c *Controller) SetInput(text string) State {
	c.mu.Lock()
	c.state.Input = text
	if c.state.Err != nil {
		c.state.Err = nil
		c.state.Cause = nil
		if c.state.Phase == PhaseError {
			c.state.Phase = PhaseIdle
		}
	}
	snap := c.state.clone()
	subs := c.subscribers()
	c.mu.Unlock()

	c.notify(subs, snap)
	return snap
}

// RequestWeather runs one lookup and returns the resulting state.
// Empty input and offline lookups never touch the network. A failed online
// fetch clears the display and never falls back to the slot.
func (c *Controller) RequestWeather(ctx context.Context, city string) State {
	c.mu.Lock()
	c.latest++
	id := c.latest
	c.state.RequestID = id
	c.state.Input = city
	c.state.Cause = nil

	trimmed, err := validation.ValidateCity(city, c.rules)
	if err != nil {
		if errors.Is(err, validation.ErrCityEmpty) {
			c.state.Err = ErrCityRequired
		} else {
			c.state.Err = fmt.Errorf("%w: %v", ErrCityInvalid, err)
		}
		c.state.Phase = PhaseError
		observability.WeatherLookupsTotal.WithLabelValues("validation").Inc()
		return c.commitLocked()
	}

	c.state.Err = nil
	c.state.CachedAt = time.Time{}
	online := c.monitor.IsOnline()
	c.state.Online = online

	if !online {
		if c.cached != nil {
			rec := c.cached.Record
			c.state.Record = &rec
			c.state.CachedAt = c.cached.Timestamp
			c.state.Phase = PhaseSuccess
			c.state.Err = fmt.Errorf("%w (cached at %s)", ErrOfflineWithCache, c.cached.Timestamp.Format(TimestampLayout))
			observability.WeatherLookupsTotal.WithLabelValues("offline_cached").Inc()
			c.logger.Info("offline, serving cached slot",
				zap.String("city", trimmed),
				zap.String("cached_location", rec.Location),
				zap.Time("cached_at", c.cached.Timestamp))
		} else {
			c.state.Record = nil
			c.state.Phase = PhaseError
			c.state.Err = ErrOfflineNoCache
			observability.WeatherLookupsTotal.WithLabelValues("offline_empty").Inc()
			c.logger.Info("offline, no cached slot", zap.String("city", trimmed))
		}
		return c.commitLocked()
	}

	c.state.Phase = PhaseLoading
	c.commitLocked()

	logger := observability.LoggerFromContext(ctx, c.logger)
	start := time.Now()
	record, fetchErr := c.client.GetCurrentWeather(ctx, trimmed)

	c.mu.Lock()
	if id != c.latest {
		snap := c.state.clone()
		c.mu.Unlock()
		observability.WeatherLookupsTotal.WithLabelValues("superseded").Inc()
		logger.Debug("discarding superseded response",
			zap.Uint64("request_id", id),
			zap.Uint64("latest_id", snap.RequestID),
			zap.Error(fetchErr))
		return snap
	}

	if fetchErr != nil {
		c.state.Record = nil
		c.state.Phase = PhaseError
		c.state.Err = ErrFetchFailed
		c.state.Cause = fetchErr
		observability.WeatherLookupsTotal.WithLabelValues("fetch_failed").Inc()
		logger.Warn("weather fetch failed",
			zap.String("city", trimmed),
			zap.String("category", string(client.CategorizeError(fetchErr))),
			zap.Duration("duration", time.Since(start)),
			zap.Error(fetchErr))
		return c.commitLocked()
	}

	c.state.Record = &record
	c.state.Phase = PhaseSuccess
	observability.WeatherLookupsTotal.WithLabelValues("success").Inc()
	logger.Debug("weather served",
		zap.String("city", trimmed),
		zap.String("location", record.Location),
		zap.Duration("duration", time.Since(start)))

	entry := models.CacheEntry{Record: record, Timestamp: c.now()}
	c.saveMu.Lock()
	snap := c.commitLocked()

	// Persist even if the caller's context ends after display.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err = c.store.Save(saveCtx, entry)
	c.saveMu.Unlock()
	if err != nil {
		observability.SlotOperationsTotal.WithLabelValues("save", "error").Inc()
		logger.Warn("slot save failed", zap.Error(err))
		return snap
	}
	observability.SlotOperationsTotal.WithLabelValues("save", "ok").Inc()

	c.mu.Lock()
	c.saves++
	// A newer save may already have landed; only move the mirror forward.
	if c.cached == nil || !entry.Timestamp.Before(c.cached.Timestamp) {
		c.cached = &entry
	}
	c.mu.Unlock()
	return snap
}

// commitLocked snapshots the state, unlocks mu and notifies subscribers.
func (c *Controller) commitLocked() State {
	snap := c.state.clone()
	subs := c.subscribers()
	c.mu.Unlock()
	c.notify(subs, snap)
	return snap
}

func (c *Controller) subscribers() []func(State) {
	if len(c.subs) == 0 {
		return nil
	}
	subs := make([]func(State), len(c.subs))
	copy(subs, c.subs)
	return subs
}

func (c *Controller) notify(subs []func(State), snap State) {
	for _, fn := range subs {
		fn(snap.clone())
	}
}

// onConnectivity re-reads the slot on every transition to offline.
func (c *Controller) onConnectivity(online bool) {
	c.mu.Lock()
	c.state.Online = online
	snap := c.state.clone()
	subs := c.subscribers()
	c.mu.Unlock()
	c.notify(subs, snap)

	if !online {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.reloadSlot(ctx)
	}
}

// reloadSlot refreshes the mirror from the store. A hit replaces it, a miss
// clears it, an error keeps whatever the mirror held. If a save completed while
// the load was in flight the load result may predate it, so the mirror is kept.
func (c *Controller) reloadSlot(ctx context.Context) {
	c.mu.Lock()
	savesBefore := c.saves
	c.mu.Unlock()

	entry, ok, err := c.store.Load(ctx)
	if err != nil {
		observability.SlotOperationsTotal.WithLabelValues("load", "error").Inc()
		c.logger.Warn("slot load failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saves != savesBefore {
		observability.SlotOperationsTotal.WithLabelValues("load", "stale").Inc()
		c.logger.Debug("slot saved during reload, keeping mirror")
		return
	}
	if !ok {
		observability.SlotOperationsTotal.WithLabelValues("load", "miss").Inc()
		c.cached = nil
		return
	}
	observability.SlotOperationsTotal.WithLabelValues("load", "hit").Inc()
	if c.cached != nil && entry.Timestamp.Before(c.cached.Timestamp) {
		return
	}
	c.cached = &entry
	c.logger.Debug("slot loaded",
		zap.String("location", entry.Record.Location),
		zap.Time("cached_at", entry.Timestamp))
}
