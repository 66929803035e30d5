package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	got, err := Load(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), got)
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breccia.jwcc")

	// JWCC: trailing commas and comments are legal.
	contents := `{
		// disable fsync for throughput testing
		"fsync_on_commit": false,
		"lock_timeout_ms": 2000,
	}`

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	got, err := Load(path)
	require.NoError(t, err)

	want := Options{
		FsyncOnCommit:       false,
		LockTimeout:         2 * time.Second,
		CollisionProbeLimit: DefaultCollisionProbeLimit,
	}

	require.Equal(t, want, got)
}

func TestLoad_RejectsInvalidJWCC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breccia.jwcc")

	require.NoError(t, os.WriteFile(path, []byte("not json at all {{{"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_OverridesCollisionProbeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breccia.jwcc")

	require.NoError(t, os.WriteFile(path, []byte(`{"collision_probe_limit": 64}`), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, got.CollisionProbeLimit)
}
