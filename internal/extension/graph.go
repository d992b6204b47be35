package extension

import (
	"slices"
	"sync"

	"github.com/bundlekit/bundlekit/internal/bundle"
	"github.com/samber/lo"
)

// DuplicateBundle records a second bundle ingested under an already-claimed
// bundle id. The first registration is kept.
type DuplicateBundle struct {
	BundleID       string
	KeptSource     string
	RejectedSource string
}

// Unresolved records a bundle whose declared dependency id matched no
// ingested bundle. The bundle is retained as root-level.
type Unresolved struct {
	BundleID     string
	DependencyID string
}

// Cycle records a group of bundles whose dependency edges form a loop. Every
// member is severed to root-level.
type Cycle struct {
	Members []string
}

// Graph is the dependency graph over ingested bundles: a flat table keyed by
// bundle id plus dependent→dependency edges as id pairs.
type Graph struct {
	mu      sync.Mutex
	bundles map[string]*bundle.Unpacked
	ids     []string          // ingestion order
	parent  map[string]string // dependent id -> dependency id, after Resolve

	duplicates []DuplicateBundle
	unresolved []Unresolved
	cycles     []Cycle
	resolved   bool
}

func NewGraph() *Graph {
	return &Graph{
		bundles: make(map[string]*bundle.Unpacked),
		parent:  make(map[string]string),
	}
}

// Add ingests a bundle. A duplicate bundle id keeps the first registration
// and records the rejected one.
func (g *Graph) Add(b *bundle.Unpacked) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := b.BundleID()
	if existing, ok := g.bundles[id]; ok {
		g.duplicates = append(g.duplicates, DuplicateBundle{
			BundleID:       id,
			KeptSource:     existing.SourcePath,
			RejectedSource: b.SourcePath,
		})
		return
	}

	g.bundles[id] = b
	g.ids = append(g.ids, id)
}

// Resolve links each bundle's declared dependency id against the table.
// Unresolved dependencies and cyclic groups degrade the affected bundles to
// root-level; a cycle is broken by severing every edge in the group, not by
// an arbitrary pick. Resolve is idempotent.
func (g *Graph) Resolve() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resolved {
		return
	}
	g.resolved = true

	for _, id := range g.ids {
		depID := g.bundles[id].Manifest.DependencyID
		if depID == "" {
			continue
		}
		if _, ok := g.bundles[depID]; !ok {
			g.unresolved = append(g.unresolved, Unresolved{BundleID: id, DependencyID: depID})
			continue
		}
		g.parent[id] = depID
	}

	g.severCycles()
}

// severCycles walks the parent chain from every bundle. Each bundle has at
// most one outgoing edge, so a chain either terminates at a parentless
// bundle or closes a loop.
func (g *Graph) severCycles() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.ids))

	for _, start := range g.ids {
		if state[start] != unvisited {
			continue
		}

		var chain []string
		id := start
		for {
			if state[id] == done {
				break
			}
			if state[id] == visiting {
				// id closes a loop; everything from its first occurrence in
				// the chain is a member.
				at := slices.Index(chain, id)
				members := slices.Clone(chain[at:])
				slices.Sort(members)
				g.cycles = append(g.cycles, Cycle{Members: members})
				for _, m := range chain[at:] {
					delete(g.parent, m)
				}
				break
			}

			state[id] = visiting
			chain = append(chain, id)

			next, ok := g.parent[id]
			if !ok {
				break
			}
			id = next
		}

		for _, m := range chain {
			state[m] = done
		}
	}
}

// Dependency returns the resolved dependency of the given bundle, if any.
func (g *Graph) Dependency(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	dep, ok := g.parent[id]
	return dep, ok
}

// Bundle returns the ingested bundle for the given id.
func (g *Graph) Bundle(id string) (*bundle.Unpacked, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bundles[id]
	return b, ok
}

// IDs returns every ingested bundle id, sorted.
func (g *Graph) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := lo.Keys(g.bundles)
	slices.Sort(ids)
	return ids
}

// Ordered returns the bundles with every dependency before its dependents.
// Ties break lexically by bundle id, so the order is deterministic. Resolve
// must have run first.
func (g *Graph) Ordered() []*bundle.Unpacked {
	g.mu.Lock()
	defer g.mu.Unlock()

	dependents := make(map[string][]string, len(g.ids))
	indegree := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		indegree[id] = 0
	}
	for id, dep := range g.parent {
		dependents[dep] = append(dependents[dep], id)
		indegree[id]++
	}

	var ready []string
	for _, id := range g.ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	ordered := make([]*bundle.Unpacked, 0, len(g.ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.bundles[id])

		next := slices.Clone(dependents[id])
		slices.Sort(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	return ordered
}

// Duplicates returns the rejected duplicate bundle ids.
func (g *Graph) Duplicates() []DuplicateBundle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.duplicates)
}

// UnresolvedDependencies returns the bundles whose dependency id matched
// nothing.
func (g *Graph) UnresolvedDependencies() []Unresolved {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.unresolved)
}

// Cycles returns the cyclic groups found during Resolve.
func (g *Graph) Cycles() []Cycle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.cycles)
}

func insertSorted(ids []string, id string) []string {
	at, _ := slices.BinarySearch(ids, id)
	return slices.Insert(ids, at, id)
}
