package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key32(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", key32(t))
	t.Setenv("COOKIE_BLOCK_KEY", key32(t))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Len(t, cfg.CookieBlockKey, 32)
}

func TestFromEnvRequiresCookieKeys(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", "")
	t.Setenv("COOKIE_BLOCK_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvInterval(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", key32(t))
	t.Setenv("COOKIE_BLOCK_KEY", key32(t))
	t.Setenv("MONITOR_INTERVAL_SECONDS", "5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.ScanInterval)

	t.Setenv("MONITOR_INTERVAL_SECONDS", "0")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsBadKey(t *testing.T) {
	t.Setenv("COOKIE_HASH_KEY", "not base64!!")
	t.Setenv("COOKIE_BLOCK_KEY", key32(t))

	_, err := FromEnv()
	require.Error(t, err)
}
