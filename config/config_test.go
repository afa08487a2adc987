package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.NewsInterval)
	assert.Equal(t, "0 * * * *", cfg.AnalysisSchedule)
	assert.NotEmpty(t, cfg.NewsQuery)
}

func TestLoad_YAMLOverlayAndEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("news_query: yaml query\nmonitor_max_links: 3\n"), 0o600))
	t.Setenv("MINEWATCH_NEWS_QUERY", "env query")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env query", cfg.NewsQuery)
	assert.Equal(t, 3, cfg.MonitorMaxLinks)
}

func TestValidate_RejectsBadSchedule(t *testing.T) {
	cfg := Default()
	cfg.AuditSchedule = "not a cron"
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveIntervals(t *testing.T) {
	cfg := Default()
	cfg.NewsInterval = 0
	require.Error(t, cfg.Validate())
}
