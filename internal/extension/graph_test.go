package extension

import (
	"testing"

	"github.com/bundlekit/bundlekit/internal/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBundle(id, dependencyID, sourcePath string) *bundle.Unpacked {
	return &bundle.Unpacked{
		Manifest: &bundle.Manifest{
			BundleID:     id,
			DependencyID: dependencyID,
			Attributes:   map[string]string{bundle.AttrBundleID: id},
		},
		SourcePath: sourcePath,
	}
}

func ids(bundles []*bundle.Unpacked) []string {
	out := make([]string, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, b.BundleID())
	}
	return out
}

func TestGraphResolve(t *testing.T) {
	t.Run("chain orders dependencies before dependents", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("c", "b", "/lib/c.bundle"))
		g.Add(testBundle("a", "", "/lib/a.bundle"))
		g.Add(testBundle("b", "a", "/lib/b.bundle"))
		g.Resolve()

		assert.Equal(t, []string{"a", "b", "c"}, ids(g.Ordered()))

		dep, ok := g.Dependency("c")
		require.True(t, ok)
		assert.Equal(t, "b", dep)

		_, ok = g.Dependency("a")
		assert.False(t, ok)
	})

	t.Run("unresolved dependency degrades to root-level", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("orphan", "missing-parent", "/lib/orphan.bundle"))
		g.Resolve()

		unresolved := g.UnresolvedDependencies()
		require.Len(t, unresolved, 1)
		assert.Equal(t, Unresolved{BundleID: "orphan", DependencyID: "missing-parent"}, unresolved[0])

		_, ok := g.Dependency("orphan")
		assert.False(t, ok)
		assert.Equal(t, []string{"orphan"}, ids(g.Ordered()))
	})

	t.Run("cycle severs every member to root-level", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("x", "y", "/lib/x.bundle"))
		g.Add(testBundle("y", "x", "/lib/y.bundle"))
		g.Add(testBundle("z", "x", "/lib/z.bundle"))
		g.Resolve()

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"x", "y"}, cycles[0].Members)

		_, ok := g.Dependency("x")
		assert.False(t, ok, "cycle member x should be severed")
		_, ok = g.Dependency("y")
		assert.False(t, ok, "cycle member y should be severed")

		// z depends on a severed member but is not itself part of the cycle.
		dep, ok := g.Dependency("z")
		require.True(t, ok)
		assert.Equal(t, "x", dep)

		assert.Equal(t, []string{"x", "y", "z"}, ids(g.Ordered()))
	})

	t.Run("self-dependency is a cycle of one", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("selfish", "selfish", "/lib/selfish.bundle"))
		g.Resolve()

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []string{"selfish"}, cycles[0].Members)
		assert.Equal(t, []string{"selfish"}, ids(g.Ordered()))
	})

	t.Run("duplicate bundle id keeps the first registration", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("dup", "", "/lib/dup.bundle"))
		g.Add(testBundle("dup", "", "/lib2/dup.bundle"))
		g.Resolve()

		duplicates := g.Duplicates()
		require.Len(t, duplicates, 1)
		assert.Equal(t, DuplicateBundle{
			BundleID:       "dup",
			KeptSource:     "/lib/dup.bundle",
			RejectedSource: "/lib2/dup.bundle",
		}, duplicates[0])

		kept, ok := g.Bundle("dup")
		require.True(t, ok)
		assert.Equal(t, "/lib/dup.bundle", kept.SourcePath)
		assert.Equal(t, []string{"dup"}, g.IDs())
	})

	t.Run("ordering is deterministic across siblings", func(t *testing.T) {
		g := NewGraph()
		g.Add(testBundle("parent", "", "/lib/parent.bundle"))
		g.Add(testBundle("beta", "parent", "/lib/beta.bundle"))
		g.Add(testBundle("alpha", "parent", "/lib/alpha.bundle"))
		g.Resolve()

		assert.Equal(t, []string{"parent", "alpha", "beta"}, ids(g.Ordered()))
	})
}
