package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, StorageModeMove, cfg.Backup.StorageMode)
	assert.Equal(t, 1, cfg.Backup.ContextID)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "course-template-events", cfg.Kafka.Topic)
	assert.Equal(t, "learningchannel", cfg.Features.LearningChannelFormat)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
backup:
  storageMode: keep-both
  contextId: 7
storage:
  type: s3
  s3:
    bucket: templates
kafka:
  enabled: true
  brokers: "k1:9092, k2:9092,"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StorageModeKeepBoth, cfg.Backup.StorageMode)
	assert.Equal(t, 7, cfg.Backup.ContextID)
	assert.Equal(t, "templates", cfg.Storage.S3.Bucket)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.BrokerList())
}

func TestLoadConfig_InvalidStorageMode(t *testing.T) {
	path := writeConfig(t, "backup:\n  storageMode: copy\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storageMode")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8080", cfg.Server.Port)
}
