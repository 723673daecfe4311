package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadDims(t *testing.T) {
	cfg := Default()
	cfg.Dims = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownMetric(t *testing.T) {
	cfg := Default()
	cfg.Metric = "cosine"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingBackendFields(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "s3"
	cfg.Storage.S3.Bucket = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFile_YAMLRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Dims = 64
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = filepath.Join(dir, "snaps")
	require.NoError(t, cfg.Save(path))

	loaded := Default()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 64, loaded.Dims)
	assert.Equal(t, filepath.Join(dir, "snaps"), loaded.Storage.Local.BaseDir)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dims: 32\nmetric: l2\ndata_dir: ${VECINDEX_TEST_DIR:-/tmp/default}\n"), 0o644))

	os.Setenv("VECINDEX_TEST_DIR", "/tmp/from-env")
	defer os.Unsetenv("VECINDEX_TEST_DIR")

	cfg := Default()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "/tmp/from-env", cfg.DataDir)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	os.Setenv("VECINDEX_DIMS", "256")
	os.Setenv("VECINDEX_METRIC", "dot")
	defer os.Unsetenv("VECINDEX_DIMS")
	defer os.Unsetenv("VECINDEX_METRIC")

	cfg := Default()
	cfg.LoadFromEnv()
	assert.Equal(t, 256, cfg.Dims)
	assert.Equal(t, MetricDot, cfg.Metric)
}

func TestEnsureDirectories_CreatesDataAndCache(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = filepath.Join(dir, "snaps")

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.DataDir, cfg.CacheDir, cfg.Storage.Local.BaseDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := Default()
	cfg.Dims = 8
	require.NoError(t, cfg.Save(path))

	var errs []error
	w, err := NewWatcher(path, func(e error) { errs = append(errs, e) })
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 8, w.Current().Dims)

	updated := Default()
	updated.Dims = 99
	time.Sleep(10 * time.Millisecond) // ensure a distinguishable mtime
	require.NoError(t, updated.Save(path))

	require.Eventually(t, func() bool {
		return w.Current().Dims == 99
	}, time.Second, 10*time.Millisecond)
}
