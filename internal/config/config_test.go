package config_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/pgdelta/internal/config"
)

const testConfig = `
sites:
  main:
    prefix: pg/main
    parallel: 4
    chunk_size: 32
    compression:
      algorithm: snappy
    embed_max_size: 128
    bundle_max_size: 4096
    skip_dirs:
      - pg_wal
      - pgsql_tmp
    missing_ok:
      - "pg_stat_tmp/*"
  standby:
    parallel: 0
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgdelta.yml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t))
	require.NoError(t, err)
	require.Len(t, cfg.Sites, 2)

	site, err := cfg.Site("main")
	require.NoError(t, err)
	require.Equal(t, "main", site.Name)
	require.Equal(t, "pg/main", site.Prefix)
	require.Equal(t, 4, site.Parallel)
	require.Equal(t, 32, site.ChunkSize)
	require.Equal(t, "snappy", site.Compression.Algorithm)
	require.Equal(t, int64(128), site.EmbedMaxSize)
	require.Equal(t, []string{"pg_wal", "pgsql_tmp"}, site.SkipDirs)
	require.Equal(t, []string{"pg_stat_tmp/*"}, site.MissingOK)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t))
	require.NoError(t, err)

	site, err := cfg.Site("standby")
	require.NoError(t, err)
	require.Equal(t, "standby", site.Prefix)
	require.Equal(t, 1, site.Parallel)
	require.Equal(t, int64(0), site.EmbedMaxSize)
}

func TestSiteNotFound(t *testing.T) {
	cfg, err := config.Load(writeConfig(t))
	require.NoError(t, err)

	_, err = cfg.Site("nosuchsite")
	require.Error(t, err)

	var nosite *config.ErrNoSuchSite
	require.True(t, errors.As(err, &nosite))

	// two sites configured, so the empty name is ambiguous
	_, err = cfg.Site("")
	require.Error(t, err)
}

func TestSingleSiteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgdelta.yml")
	require.NoError(t, os.WriteFile(path, []byte("sites:\n  only:\n    parallel: 2\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	site, err := cfg.Site("")
	require.NoError(t, err)
	require.Equal(t, "only", site.Name)
}
