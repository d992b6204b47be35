package runner

import (
	"os"
	"path/filepath"
	"testing"

	v1 "github.com/bundlekit/bundlekit/apis/v1"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseUnpackConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		data := []byte(`
kind: UnpackConfig
metadata:
  name: host-extensions
spec:
  library:
    directory: ./lib
    alternates:
      - ./lib2
    bundleSuffix: .nar
  workDirectory: ./work/extensions
  workers: 4
`)

		cfg, err := ParseUnpackConfig(data)
		require.NoError(t, err)

		assert.Equal(t, "UnpackConfig", cfg.Kind)
		assert.Equal(t, "host-extensions", cfg.Metadata.Name)
		assert.Equal(t, "./lib", cfg.Spec.Library.Directory)
		assert.Equal(t, []string{"./lib2"}, cfg.Spec.Library.Alternates)
		assert.Equal(t, ".nar", cfg.Spec.Library.BundleSuffix)
		assert.Equal(t, "./work/extensions", cfg.Spec.WorkDirectory)
		assert.Equal(t, 4, cfg.Spec.Workers)
	})

	t.Run("missing library directory fails validation", func(t *testing.T) {
		data := []byte(`
kind: UnpackConfig
metadata:
  name: host-extensions
spec:
  workDirectory: ./work
`)

		_, err := ParseUnpackConfig(data)
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to validate config")
	})

	t.Run("wrong kind fails validation", func(t *testing.T) {
		data := []byte(`
kind: SomethingElse
metadata:
  name: host-extensions
spec:
  library:
    directory: ./lib
  workDirectory: ./work
`)

		_, err := ParseUnpackConfig(data)
		require.Error(t, err)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		_, err := ParseUnpackConfig([]byte("kind: [unterminated"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to unmarshal config")
	})
}

func writeTestBundle(t *testing.T, path string, manifest string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestRunnerRun(t *testing.T) {
	libDir := t.TempDir()
	workDir := filepath.Join(t.TempDir(), "extensions")

	writeTestBundle(t, filepath.Join(libDir, "dummy-one.nar"),
		"Bundle-Id: dummy-one\nExtension-Classes: org.apache.nifi.processors.dummy.one\n")

	r := New(zap.NewNop(), v1.UnpackConfig{
		Kind:     "UnpackConfig",
		Metadata: v1.Metadata{Name: "test"},
		Spec: v1.UnpackSpec{
			Library: v1.LibrarySpec{
				Directory:    libDir,
				BundleSuffix: ".nar",
			},
			WorkDirectory: workDir,
		},
	})

	result, err := r.Run(t.Context())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"org.apache.nifi.processors.dummy.one"}, result.ExtensionNames())

	unpackedDir := filepath.Join(workDir, "dummy-one.nar-unpacked")
	info, err := os.Stat(unpackedDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunnerRun_InvalidPrimary(t *testing.T) {
	workDir := t.TempDir()

	r := New(zap.NewNop(), v1.UnpackConfig{
		Kind:     "UnpackConfig",
		Metadata: v1.Metadata{Name: "test"},
		Spec: v1.UnpackSpec{
			Library: v1.LibrarySpec{
				Directory: filepath.Join(workDir, "does-not-exist"),
			},
			WorkDirectory: workDir,
		},
	})

	result, err := r.Run(t.Context())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "unpack run aborted")
}
