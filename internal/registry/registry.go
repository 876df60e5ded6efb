// Package registry tracks per-tenant monitoring state. It is the single
// point of shared mutable state between ingestion, administration and the
// monitor scheduler, so construction and eviction are made safe for
// concurrent callers.
package registry

import (
	"context"
	"errors"
	"log"
	"sync"

	"modwatch/internal/monitor"
	"modwatch/pkg/interfaces"
	"modwatch/pkg/types"
)

// tenantEntry is the per-tenant slot. The sync.Once guarantees exactly one
// synapse is constructed per slot no matter how many goroutines race the
// first lookup.
type tenantEntry struct {
	once sync.Once

	mu      sync.RWMutex
	synapse *monitor.Synapse
	prefix  string
	err     error
}

// Registry maps tenant ids to their monitors plus cached tenant state.
type Registry struct {
	settings interfaces.SettingsStore
	state    interfaces.TenantStateStore
	platform interfaces.Platform

	mu      sync.RWMutex
	tenants map[string]*tenantEntry
}

// New creates an empty registry.
func New(settings interfaces.SettingsStore, state interfaces.TenantStateStore, platform interfaces.Platform) *Registry {
	return &Registry{
		settings: settings,
		state:    state,
		platform: platform,
		tenants:  make(map[string]*tenantEntry),
	}
}

// Get returns the tenant's synapse, constructing and caching it on first
// call. Construction loads the persisted monitored channels, drops the ones
// that no longer exist on the platform, and sizes the rate windows from the
// tenant's caching-size setting. Concurrent first calls for the same tenant
// share one construction; a construction error is not cached.
func (r *Registry) Get(ctx context.Context, tenantID string) (*monitor.Synapse, error) {
	entry := r.entryFor(tenantID)

	entry.once.Do(func() {
		syn, prefix, err := r.build(ctx, tenantID)
		entry.mu.Lock()
		entry.synapse, entry.prefix, entry.err = syn, prefix, err
		entry.mu.Unlock()
	})

	entry.mu.RLock()
	syn, err := entry.synapse, entry.err
	entry.mu.RUnlock()

	if err != nil {
		// Drop the failed slot so the next lookup retries, unless another
		// goroutine already replaced it.
		r.mu.Lock()
		if r.tenants[tenantID] == entry {
			delete(r.tenants, tenantID)
		}
		r.mu.Unlock()
		return nil, err
	}

	// A concurrent Remove may have evicted the slot while we were building.
	// The caller must not hold on to a synapse the registry no longer owns.
	r.mu.RLock()
	current := r.tenants[tenantID]
	r.mu.RUnlock()
	if current != entry {
		return nil, interfaces.ErrTenantNotFound
	}

	return syn, nil
}

func (r *Registry) entryFor(tenantID string) *tenantEntry {
	r.mu.RLock()
	entry, ok := r.tenants[tenantID]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.tenants[tenantID]; ok {
		return entry
	}
	entry = &tenantEntry{}
	r.tenants[tenantID] = entry
	return entry
}

// build assembles a synapse from persisted state.
func (r *Registry) build(ctx context.Context, tenantID string) (*monitor.Synapse, string, error) {
	persisted, err := r.settings.MonitoredChannels(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}

	live, err := r.platform.ListWatchableChannels(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}

	channels := make([]string, 0, len(persisted))
	for _, id := range persisted {
		if _, ok := live[id]; !ok {
			// Channel deleted on the platform while we were away.
			if delErr := r.settings.DeleteChannel(ctx, tenantID, id); delErr != nil {
				log.Printf("stale channel cleanup failed: tenant=%s channel=%s err=%v", tenantID, id, delErr)
			}
			continue
		}
		channels = append(channels, id)
	}

	size, err := r.state.CachingSize(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			log.Printf("caching size load failed, using default: tenant=%s err=%v", tenantID, err)
		}
		size = types.DefaultCachingSize
	}

	prefix, err := r.state.Prefix(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			log.Printf("prefix load failed, using default: tenant=%s err=%v", tenantID, err)
		}
		prefix = types.DefaultPrefix
	}

	log.Printf("tenant monitor built: tenant=%s channels=%d window=%d", tenantID, len(channels), size)
	return monitor.NewSynapse(tenantID, channels, size), prefix, nil
}

// Remove evicts a tenant's entry. The discarded synapse is unreachable
// through the registry from that point on; in-flight holders finish their
// single operation and re-look-up next time.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	_, existed := r.tenants[tenantID]
	delete(r.tenants, tenantID)
	r.mu.Unlock()

	if existed {
		log.Printf("tenant evicted: tenant=%s", tenantID)
	}
}

// Purge evicts a tenant and deletes its persisted rows, used on tenant
// leave.
func (r *Registry) Purge(ctx context.Context, tenantID string) error {
	r.Remove(tenantID)
	if err := r.settings.DeleteTenant(ctx, tenantID); err != nil {
		return err
	}
	return r.state.DeleteTenant(ctx, tenantID)
}

// Prefix returns the tenant's command prefix, building the tenant entry if
// needed.
func (r *Registry) Prefix(ctx context.Context, tenantID string) (string, error) {
	if _, err := r.Get(ctx, tenantID); err != nil {
		return "", err
	}
	entry := r.entryFor(tenantID)
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.synapse == nil {
		// Entry was evicted between the Get and here.
		return types.DefaultPrefix, nil
	}
	return entry.prefix, nil
}

// SetPrefix persists and caches a new command prefix.
func (r *Registry) SetPrefix(ctx context.Context, tenantID, prefix string) error {
	if prefix == "" || len(prefix) > 8 {
		return ErrInvalidPrefix
	}
	if _, err := r.Get(ctx, tenantID); err != nil {
		return err
	}
	if err := r.state.SetPrefix(ctx, tenantID, prefix); err != nil {
		return err
	}
	entry := r.entryFor(tenantID)
	entry.mu.Lock()
	entry.prefix = prefix
	entry.mu.Unlock()
	return nil
}

// SetCacheSize persists a tenant's message-window capacity and forwards it
// to every watched channel's rate window.
func (r *Registry) SetCacheSize(ctx context.Context, tenantID string, size int) error {
	if err := types.ValidateCachingSize(size); err != nil {
		return err
	}
	syn, err := r.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := r.state.SetCachingSize(ctx, tenantID, size); err != nil {
		return err
	}
	syn.SetCapacity(size)
	return nil
}

// ActiveSynapses returns the constructed synapses currently ACTIVE. It
// implements monitor.SynapseSource for the scheduler.
func (r *Registry) ActiveSynapses() []*monitor.Synapse {
	r.mu.RLock()
	entries := make([]*tenantEntry, 0, len(r.tenants))
	for _, entry := range r.tenants {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	var active []*monitor.Synapse
	for _, entry := range entries {
		entry.mu.RLock()
		syn := entry.synapse
		entry.mu.RUnlock()
		if syn != nil && syn.State() == monitor.StateActive {
			active = append(active, syn)
		}
	}
	return active
}

// Len returns the number of tracked tenants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}
