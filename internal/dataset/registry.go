// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package dataset

import (
	"sort"
	"sync"
)

// DefaultOutputName is the logical name used when none is configured.
const DefaultOutputName = "trainingData"

// Registry publishes dataset handles under logical names for downstream stages.
// Writes are last-writer-wins; the lock only keeps the map consistent.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Handle)}
}

// Set stores h under name, replacing any existing entry.
// It reports whether an entry was replaced.
func (r *Registry) Set(name string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.entries[name]
	r.entries[name] = h
	return replaced
}

// Get returns the handle registered under name.
func (r *Registry) Get(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[name]
	return h, ok
}

// Delete removes name from the registry and reports whether it was present.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
