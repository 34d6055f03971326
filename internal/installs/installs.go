// Package installs tracks the site instances the app is installed on. The
// reminder jobs iterate this list.
package installs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Install is one site the app is installed on.
type Install struct {
	InstanceID  string    `json:"instanceId"`
	InstalledAt time.Time `json:"installedAt"`
}

// Registry records installs and removals.
type Registry interface {
	Add(ctx context.Context, instanceID string, at time.Time) error
	Remove(ctx context.Context, instanceID string) error
	List(ctx context.Context) ([]Install, error)
}

// MemoryRegistry keeps installs in process memory. It is lost on restart
// and is used when no Redis is configured.
type MemoryRegistry struct {
	mu       sync.RWMutex
	installs map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{installs: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Add(_ context.Context, instanceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.installs[instanceID]; !ok {
		r.installs[instanceID] = at.UTC()
	}
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.installs, instanceID)
	return nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]Install, error) {
	r.mu.RLock()
	out := make([]Install, 0, len(r.installs))
	for id, at := range r.installs {
		out = append(out, Install{InstanceID: id, InstalledAt: at})
	}
	r.mu.RUnlock()
	sortInstalls(out)
	return out, nil
}

func sortInstalls(out []Install) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstalledAt.Equal(out[j].InstalledAt) {
			return out[i].InstanceID < out[j].InstanceID
		}
		return out[i].InstalledAt.Before(out[j].InstalledAt)
	})
}
