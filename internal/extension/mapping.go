// Package extension aggregates discovered bundles into the extension-name
// lookup and the inter-bundle dependency graph used by the host's loading
// subsystem.
package extension

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Conflict records a duplicate extension class name declared by two bundles.
// The first registration is kept.
type Conflict struct {
	Name             string
	KeptBundleID     string
	RejectedBundleID string
}

// Mapping is the aggregate lookup from extension class name to the bundle
// that provides it.
type Mapping struct {
	mu        sync.RWMutex
	byName    map[string]string
	conflicts []Conflict
}

func NewMapping() *Mapping {
	return &Mapping{
		byName: make(map[string]string),
	}
}

// Register inserts every name as provided by bundleID. A name already mapped
// to a different bundle is left untouched and recorded as a conflict; a name
// re-registered by the same bundle is a no-op.
func (m *Mapping) Register(bundleID string, names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		existing, ok := m.byName[name]
		if !ok {
			m.byName[name] = bundleID
			continue
		}
		if existing == bundleID {
			continue
		}
		m.conflicts = append(m.conflicts, Conflict{
			Name:             name,
			KeptBundleID:     existing,
			RejectedBundleID: bundleID,
		})
	}
}

// Lookup returns the bundle id providing the named extension.
func (m *Mapping) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bundleID, ok := m.byName[name]
	return bundleID, ok
}

// Names returns every registered extension class name, sorted.
func (m *Mapping) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := lo.Keys(m.byName)
	slices.Sort(names)
	return names
}

// Len returns the number of registered extension class names.
func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}

// Conflicts returns the duplicate registrations observed so far.
func (m *Mapping) Conflicts() []Conflict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.conflicts)
}
