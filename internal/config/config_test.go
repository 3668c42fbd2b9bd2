package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Token)
	assert.Equal(t, "newsgram.sqlite", cfg.DBPath)
	assert.Equal(t, "data/media", cfg.MediaDir)
	assert.Equal(t, 5, cfg.BackfillLimit)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 20, cfg.DeliveriesPerSecond)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Empty(t, cfg.Channels)
}

func TestLoadFullEnv(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "1,42")
	t.Setenv("CHANNELS", "@campus,library")
	t.Setenv("BACKFILL_LIMIT", "10")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("DELIVERIES_PER_SECOND", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 42}, cfg.AdminIDs)
	assert.Equal(t, []string{"@campus", "library"}, cfg.Channels)
	assert.Equal(t, 10, cfg.BackfillLimit)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.DeliveriesPerSecond)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")

	t.Setenv("BACKFILL_LIMIT", "-1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BACKFILL_LIMIT", "5")
	t.Setenv("DELIVERIES_PER_SECOND", "0")
	_, err = Load()
	assert.Error(t, err)
}
