// Package menu tracks short-lived interactive prompts. Every entry carries
// one destruction timer; interactions from the owner push the deadline
// back, anyone else is ignored, and expiry tears the prompt down.
package menu

import (
	"context"
	"log"
	"sync"
	"time"

	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

// DefaultLifetime is how long a menu survives without owner interaction.
const DefaultLifetime = 200 * time.Second

// Entry is the tracked state for one interactive message.
type Entry struct {
	MessageID string
	ChannelID string
	OwnerID   string
	Kind      types.MenuKind
	Deadline  time.Time

	// gen invalidates a fired timer that lost a race against a reset;
	// only the timer matching the current generation may evict.
	gen   uint64
	timer *time.Timer
}

// Registry owns all live menu entries, keyed by message id.
type Registry struct {
	platform interfaces.Platform
	lifetime time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	closed  bool
}

// New creates a registry. A non-positive lifetime falls back to the
// default.
func New(platform interfaces.Platform, lifetime time.Duration) *Registry {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Registry{
		platform: platform,
		lifetime: lifetime,
		entries:  make(map[string]*Entry),
	}
}

// Add registers a menu for messageID owned by ownerID and starts its
// destruction timer.
func (r *Registry) Add(kind types.MenuKind, messageID, channelID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, exists := r.entries[messageID]; exists {
		return ErrMenuExists
	}

	entry := &Entry{
		MessageID: messageID,
		ChannelID: channelID,
		OwnerID:   ownerID,
		Kind:      kind,
		Deadline:  time.Now().Add(r.lifetime),
	}
	entry.timer = r.schedule(entry)
	r.entries[messageID] = entry
	return nil
}

// schedule arms a timer for the entry's current generation. Caller holds
// the registry lock.
func (r *Registry) schedule(entry *Entry) *time.Timer {
	gen := entry.gen
	id := entry.MessageID
	return time.AfterFunc(time.Until(entry.Deadline), func() {
		r.expire(id, gen)
	})
}

// Get returns a copy of the entry, if present.
func (r *Registry) Get(messageID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[messageID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Remove cancels the entry's timer and deletes it. It reports whether an
// entry was removed; calling it for an already-expired menu is a no-op.
func (r *Registry) Remove(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[messageID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	entry.gen++ // a fired-but-not-yet-run timer must not evict
	delete(r.entries, messageID)
	return true
}

// ResetTimer cancels the pending expiry and schedules a fresh one, pushing
// the deadline out by the full lifetime. Last write wins for concurrent
// resets. After expiry it is a no-op.
func (r *Registry) ResetTimer(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[messageID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	entry.gen++
	entry.Deadline = time.Now().Add(r.lifetime)
	entry.timer = r.schedule(entry)
	return true
}

// Interact handles a qualifying user interaction: only the recorded owner
// may reset the clock or advance the menu kind. Interactions from any
// other actor are ignored without error.
func (r *Registry) Interact(messageID, actorID string, kind types.MenuKind) bool {
	r.mu.Lock()
	entry, ok := r.entries[messageID]
	if !ok || entry.OwnerID != actorID {
		r.mu.Unlock()
		return false
	}
	if kind != "" {
		entry.Kind = kind
	}
	entry.timer.Stop()
	entry.gen++
	entry.Deadline = time.Now().Add(r.lifetime)
	entry.timer = r.schedule(entry)
	r.mu.Unlock()
	return true
}

// expire is the timer callback. The generation check discards timers that
// lost a race against a reset or removal.
func (r *Registry) expire(messageID string, gen uint64) {
	r.mu.Lock()
	entry, ok := r.entries[messageID]
	if !ok || entry.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.entries, messageID)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.platform.DeleteMessage(ctx, entry.ChannelID, entry.MessageID); err != nil {
		log.Printf("menu prompt delete failed: message=%s err=%v", entry.MessageID, err)
	}

	if entry.Kind.Destructive() {
		payload := map[string]interface{}{
			"type":    "missed_prompt",
			"owner":   entry.OwnerID,
			"content": "Confirmation timed out; no changes were made.",
		}
		if _, err := r.platform.Notify(ctx, entry.ChannelID, payload); err != nil {
			log.Printf("missed prompt notification failed: channel=%s err=%v", entry.ChannelID, err)
		}
	}
	log.Printf("menu expired: message=%s kind=%s", entry.MessageID, entry.Kind)
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close cancels every pending timer and rejects further adds. Existing
// prompts are left on the platform; the process is going away.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, entry := range r.entries {
		entry.timer.Stop()
		entry.gen++
		delete(r.entries, id)
	}
}
