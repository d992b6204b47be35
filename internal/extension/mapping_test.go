package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingRegister(t *testing.T) {
	t.Run("disjoint registrations all land", func(t *testing.T) {
		m := NewMapping()
		m.Register("dummy-one", []string{"org.apache.nifi.processors.dummy.one"})
		m.Register("dummy-two", []string{"org.apache.nifi.processors.dummy.two"})

		assert.Equal(t, 2, m.Len())
		assert.Equal(t, []string{
			"org.apache.nifi.processors.dummy.one",
			"org.apache.nifi.processors.dummy.two",
		}, m.Names())

		bundleID, ok := m.Lookup("org.apache.nifi.processors.dummy.one")
		require.True(t, ok)
		assert.Equal(t, "dummy-one", bundleID)
		assert.Empty(t, m.Conflicts())
	})

	t.Run("duplicate name keeps the first bundle and records a conflict", func(t *testing.T) {
		m := NewMapping()
		m.Register("first", []string{"org.example.Shared"})
		m.Register("second", []string{"org.example.Shared"})

		assert.Equal(t, 1, m.Len())

		bundleID, ok := m.Lookup("org.example.Shared")
		require.True(t, ok)
		assert.Equal(t, "first", bundleID)

		conflicts := m.Conflicts()
		require.Len(t, conflicts, 1)
		assert.Equal(t, Conflict{
			Name:             "org.example.Shared",
			KeptBundleID:     "first",
			RejectedBundleID: "second",
		}, conflicts[0])
	})

	t.Run("re-registration by the same bundle is a no-op", func(t *testing.T) {
		m := NewMapping()
		m.Register("only", []string{"org.example.Thing"})
		m.Register("only", []string{"org.example.Thing"})

		assert.Equal(t, 1, m.Len())
		assert.Empty(t, m.Conflicts())
	})

	t.Run("unknown name misses", func(t *testing.T) {
		m := NewMapping()

		_, ok := m.Lookup("org.example.Unknown")
		assert.False(t, ok)
		assert.Empty(t, m.Names())
	})
}
