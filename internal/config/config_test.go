package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUsesDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTPPort)
	require.Equal(t, "http", cfg.RemoteDriver)
	require.Equal(t, 600, cfg.SyncIntervalSeconds)
	require.NotEmpty(t, cfg.StatePath, "empty state path must be derived")
	require.NotEmpty(t, cfg.SpoolDir, "empty spool dir must be derived")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NESTWATCH_HTTP_PORT", "9191")
	t.Setenv("NESTWATCH_OWNER_ID", "guardian-7")
	t.Setenv("NESTWATCH_SYNC_INTERVAL_SECONDS", "120")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.HTTPPort)
	require.Equal(t, "guardian-7", cfg.OwnerID)
	require.Equal(t, 120, cfg.SyncIntervalSeconds)
	require.Equal(t, ":9191", cfg.GetHTTPAddr())
}

func TestUnsupportedRemoteDriverRejected(t *testing.T) {
	t.Setenv("NESTWATCH_REMOTE_DRIVER", "carrier-pigeon")
	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported REMOTE_DRIVER")
}

func TestPostgresDriverRequiresDSN(t *testing.T) {
	t.Setenv("NESTWATCH_REMOTE_DRIVER", "postgres")
	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "POSTGRES_DSN")

	t.Setenv("NESTWATCH_POSTGRES_DSN", "postgres://localhost/nestwatch")
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.RemoteDriver)
}

func TestNonPositiveIntervalsRejected(t *testing.T) {
	t.Setenv("NESTWATCH_SYNC_INTERVAL_SECONDS", "0")
	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SYNC_INTERVAL_SECONDS")
}

func TestNewForTestingRootsPathsInDir(t *testing.T) {
	dir := t.TempDir()
	cfg := NewForTesting(dir)
	require.Equal(t, filepath.Join(dir, "state.db"), cfg.StatePath)
	require.Equal(t, filepath.Join(dir, "spool"), cfg.SpoolDir)
	require.NoError(t, cfg.ResolveDefaults())
}
