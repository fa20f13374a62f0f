// Package netmon tracks the connectivity state reported by the host environment.
//
// The monitor never probes the network. Whatever owns the host signal (a browser
// front-end over HTTP, a terminal key binding) calls Report; subscribers are
// notified synchronously on every real transition.
package netmon

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-widget/internal/observability"
)

// Monitor holds the current connectivity boolean.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []*subscription
	logger *zap.Logger
}

type subscription struct {
	fn func(online bool)
}

// New returns a Monitor starting in the given state. logger may be nil.
func New(initial bool, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initial {
		observability.ConnectivityOnline.Set(1)
	} else {
		observability.ConnectivityOnline.Set(0)
	}
	return &Monitor{online: initial, logger: logger}
}

// IsOnline returns the last reported state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report records the host signal. Subscribers run on the caller's goroutine,
// in subscription order, only when the value changes. Report returns after all of them.
func (m *Monitor) Report(online bool) {
	m.update(func(bool) bool { return online })
}

// Toggle flips the state under the lock and notifies like Report. It returns
// the new state. Concurrent toggles never read the same prior value.
func (m *Monitor) Toggle() bool {
	return m.update(func(cur bool) bool { return !cur })
}

func (m *Monitor) update(next func(cur bool) bool) bool {
	m.mu.Lock()
	online := next(m.online)
	if m.online == online {
		m.mu.Unlock()
		return online
	}
	m.online = online
	subs := make([]*subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	observability.RecordConnectivity(online)
	m.logger.Info("connectivity transition", zap.Bool("online", online))

	for _, s := range subs {
		s.fn(online)
	}
	return online
}

// Subscribe registers fn for transitions and returns a func that removes it.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	s := &subscription{fn: fn}
	m.mu.Lock()
	m.subs = append(m.subs, s)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, cur := range m.subs {
				if cur == s {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}
