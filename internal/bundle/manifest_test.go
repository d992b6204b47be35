package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	t.Run("full manifest", func(t *testing.T) {
		data := []byte("Manifest-Version: 1.0\n" +
			"Bundle-Id: dummy-one\n" +
			"Bundle-Dependency-Id: framework\n" +
			"Extension-Classes: org.apache.nifi.processors.dummy.one, org.apache.nifi.processors.dummy.extra\n")

		m, err := ParseManifest(data)
		require.NoError(t, err)

		assert.Equal(t, "dummy-one", m.BundleID)
		assert.Equal(t, "framework", m.DependencyID)
		assert.Equal(t, []string{
			"org.apache.nifi.processors.dummy.one",
			"org.apache.nifi.processors.dummy.extra",
		}, m.Extensions)
		assert.False(t, m.Synthetic())
	})

	t.Run("continuation lines extend the previous value", func(t *testing.T) {
		data := []byte("Bundle-Id: dummy\n" +
			"Extension-Classes: org.example.First,\n" +
			" org.example.Second\n")

		m, err := ParseManifest(data)
		require.NoError(t, err)

		assert.Equal(t, []string{"org.example.First", "org.example.Second"}, m.Extensions)
	})

	t.Run("parsing stops at the first blank line", func(t *testing.T) {
		data := []byte("Bundle-Id: dummy\n" +
			"\n" +
			"Name: entry-section\n" +
			"SHA-256-Digest: ignored\n")

		m, err := ParseManifest(data)
		require.NoError(t, err)

		assert.Equal(t, "dummy", m.BundleID)
		assert.NotContains(t, m.Attributes, "Name")
	})

	t.Run("duplicate extension names are collapsed", func(t *testing.T) {
		data := []byte("Bundle-Id: dummy\n" +
			"Extension-Classes: org.example.One, org.example.One\n")

		m, err := ParseManifest(data)
		require.NoError(t, err)

		assert.Equal(t, []string{"org.example.One"}, m.Extensions)
	})

	t.Run("line without colon is invalid", func(t *testing.T) {
		_, err := ParseManifest([]byte("Bundle-Id: dummy\nnot an attribute line\n"))

		var invalidErr *InvalidManifestError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, 2, invalidErr.Line)
	})

	t.Run("continuation without preceding attribute is invalid", func(t *testing.T) {
		_, err := ParseManifest([]byte(" org.example.First\n"))

		var invalidErr *InvalidManifestError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, 1, invalidErr.Line)
	})

	t.Run("empty manifest has no identity", func(t *testing.T) {
		m, err := ParseManifest(nil)
		require.NoError(t, err)

		assert.Empty(t, m.BundleID)
		assert.Empty(t, m.Extensions)
	})
}

func TestSyntheticManifest(t *testing.T) {
	m := SyntheticManifest("/lib/dummy-one.nar")

	assert.Equal(t, "dummy-one", m.BundleID)
	assert.Empty(t, m.Extensions)
	assert.Empty(t, m.DependencyID)
	assert.True(t, m.Synthetic())
}
