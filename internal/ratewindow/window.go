// Package ratewindow implements the bounded recent-timestamp buffer used to
// estimate message cadence on a watched channel.
package ratewindow

import "time"

// UnknownAge is returned by TimeSinceOldest when the window is empty.
const UnknownAge = time.Duration(-1)

// Window is a fixed-capacity buffer of message arrival times, newest first.
// It is not safe for concurrent use; the owning monitor serializes access.
type Window struct {
	capacity int
	times    []time.Time
}

// New creates a window that retains at most capacity timestamps.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		times:    make([]time.Time, 0, capacity),
	}
}

// Push inserts a timestamp at the front, dropping the oldest entry when the
// window is full.
func (w *Window) Push(t time.Time) {
	if len(w.times) < w.capacity {
		w.times = append(w.times, time.Time{})
	}
	copy(w.times[1:], w.times)
	w.times[0] = t
}

// SetCapacity changes the retention limit. Shrinking trims the oldest
// entries immediately.
func (w *Window) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	w.capacity = n
	if len(w.times) > n {
		w.times = w.times[:n]
	}
}

// Capacity returns the current retention limit.
func (w *Window) Capacity() int {
	return w.capacity
}

// Len returns the number of retained timestamps.
func (w *Window) Len() int {
	return len(w.times)
}

// At returns the i-th retained timestamp, newest first.
func (w *Window) At(i int) time.Time {
	return w.times[i]
}

// AverageDelay returns the mean gap between consecutive entries in
// milliseconds, or 0 when fewer than two entries are retained.
func (w *Window) AverageDelay() float64 {
	if len(w.times) < 2 {
		return 0
	}
	var total float64
	for i := 0; i < len(w.times)-1; i++ {
		total += float64(w.times[i].Sub(w.times[i+1])) / float64(time.Millisecond)
	}
	return total / float64(len(w.times)-1)
}

// TimeSinceOldest returns the elapsed time from the earliest retained entry
// to now, or UnknownAge when the window is empty.
func (w *Window) TimeSinceOldest(now time.Time) time.Duration {
	if len(w.times) == 0 {
		return UnknownAge
	}
	return now.Sub(w.times[len(w.times)-1])
}
