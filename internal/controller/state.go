package controller

import (
	"errors"
	"time"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// Phase is the display state of the widget.
type Phase int

const (
	PhaseIdle    Phase = iota // nothing requested yet, or error dismissed by typing
	PhaseLoading              // request in flight
	PhaseSuccess              // record displayed (live, or cached while offline)
	PhaseError                // error displayed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// User-facing outcomes. State.Err is one of these, possibly wrapped.
var (
	ErrCityRequired     = errors.New("city name required")
	ErrCityInvalid      = errors.New("city name invalid")
	ErrOfflineNoCache   = errors.New("offline, no cached data available")
	ErrOfflineWithCache = errors.New("offline, showing cached data")
	ErrFetchFailed      = errors.New("city not found or invalid")
)

// TimestampLayout formats the capture time in the offline notice.
const TimestampLayout = "2006-01-02 15:04:05"

// State is a snapshot of the widget. Record is a private copy.
type State struct {
	Phase Phase
	Input string

	// Err is the message shown to the user; nil when there is none.
	// ErrOfflineWithCache accompanies a displayed record and is a notice, not a failure.
	Err error
	// Cause is the underlying fetch failure behind ErrFetchFailed.
	Cause error

	Record *models.WeatherRecord
	// CachedAt is set when Record came from the slot.
	CachedAt time.Time

	RequestID uint64
	Online    bool
}

// Message returns the text shown to the user, or "".
func (s State) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// FromCache reports whether the displayed record is the offline fallback.
func (s State) FromCache() bool {
	return s.Record != nil && !s.CachedAt.IsZero()
}

func (s State) clone() State {
	if s.Record != nil {
		rec := *s.Record
		s.Record = &rec
	}
	return s
}
