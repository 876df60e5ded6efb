// Package monitor owns the per-tenant rate-monitoring state machine and
// the scheduler that periodically re-evaluates slowmode for every watched
// channel.
package monitor

import (
	"sync"
	"time"

	"modwatch/internal/ratewindow"
)

// State is the activity state of a tenant's monitor.
type State int32

const (
	StateActive State = iota
	StateInactive
)

func (s State) String() string {
	if s == StateInactive {
		return "INACTIVE"
	}
	return "ACTIVE"
}

// channelState pairs a channel's rate window with the slowmode value the
// monitor last applied to it.
type channelState struct {
	window   *ratewindow.Window
	slowmode int
}

// Synapse monitors message cadence for one tenant. It owns one rate window
// per watched channel and flips between ACTIVE and INACTIVE as traffic
// comes and goes. All methods are safe for concurrent use; internally a
// single mutex serializes mutation, so ingestion and scheduler ticks for
// the same tenant never interleave mid-update.
type Synapse struct {
	tenantID string

	mu       sync.Mutex
	state    State
	channels map[string]*channelState
	capacity int
}

// NewSynapse creates a monitor for tenantID watching the given channels,
// each with a rate window of the given capacity. Monitors start ACTIVE.
func NewSynapse(tenantID string, channelIDs []string, capacity int) *Synapse {
	s := &Synapse{
		tenantID: tenantID,
		state:    StateActive,
		channels: make(map[string]*channelState, len(channelIDs)),
		capacity: capacity,
	}
	for _, id := range channelIDs {
		s.channels[id] = &channelState{window: ratewindow.New(capacity)}
	}
	return s
}

// TenantID returns the owning tenant's id.
func (s *Synapse) TenantID() string {
	return s.tenantID
}

// State returns the current activity state.
func (s *Synapse) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddMessage records a message arrival for a watched channel and returns
// true if the channel is watched. Arrivals for unwatched channels are
// ignored. Any accepted arrival reactivates an INACTIVE monitor.
func (s *Synapse) AddMessage(channelID string, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return false
	}
	ch.window.Push(ts)
	s.state = StateActive
	return true
}

// AddChannel starts watching a channel. Adding an already-watched channel
// keeps its existing window.
func (s *Synapse) AddChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channelID]; !ok {
		s.channels[channelID] = &channelState{window: ratewindow.New(s.capacity)}
	}
}

// RemoveChannel stops watching a channel and discards its window.
func (s *Synapse) RemoveChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
}

// Watches reports whether a channel is currently watched.
func (s *Synapse) Watches(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.channels[channelID]
	return ok
}

// Channels returns the watched channel ids.
func (s *Synapse) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	return ids
}

// SetCapacity updates the rate-window capacity for every watched channel.
func (s *Synapse) SetCapacity(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capacity = n
	for _, ch := range s.channels {
		ch.window.SetCapacity(n)
	}
}

// ChannelSample is a point-in-time reading of one channel's rate window,
// taken under the synapse lock so the scheduler can evaluate without
// holding it.
type ChannelSample struct {
	ChannelID      string
	Samples        int
	AverageDelayMs float64
	SinceOldest    time.Duration
	Slowmode       int
}

// Sample snapshots every watched channel's window statistics.
func (s *Synapse) Sample(now time.Time) []ChannelSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]ChannelSample, 0, len(s.channels))
	for id, ch := range s.channels {
		samples = append(samples, ChannelSample{
			ChannelID:      id,
			Samples:        ch.window.Len(),
			AverageDelayMs: ch.window.AverageDelay(),
			SinceOldest:    ch.window.TimeSinceOldest(now),
			Slowmode:       ch.slowmode,
		})
	}
	return samples
}

// RecordSlowmode stores the slowmode value the scheduler just applied so
// the next evaluation starts from it.
func (s *Synapse) RecordSlowmode(channelID string, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.channels[channelID]; ok {
		ch.slowmode = seconds
	}
}

// FinishTick records the outcome of a scheduler tick. A tick with zero
// qualifying channel evaluations deactivates the monitor until the next
// accepted message arrival.
func (s *Synapse) FinishTick(qualifying int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qualifying == 0 {
		s.state = StateInactive
	}
}
