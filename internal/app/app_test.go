package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/storage"
	"github.com/yourorg/course-template-service/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.Local.BasePath = t.TempDir()
	cfg.Backup.TempDir = t.TempDir()
	cfg.Backup.Destination = filepath.Join(t.TempDir(), "backup")
	return cfg
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(config.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_Defaults(t *testing.T) {
	db := testutil.NewSQLiteTestHelper(t)

	a, err := New(testConfig(t), db.DB, zap.NewNop(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.TemplateService)
	assert.NotNil(t, a.ArchiveService)
	assert.NotNil(t, a.CourseService)
	assert.Empty(t, a.closers)
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	a := &App{Config: cfg, Logger: zap.NewNop()}
	files, err := a.newStorage()
	require.NoError(t, err)

	_, cached := files.(*storage.CachedStorage)
	assert.False(t, cached)
	assert.Empty(t, a.closers)
}

func TestNew_KafkaPublisher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = "127.0.0.1:1"

	a := &App{Config: cfg, Logger: zap.NewNop()}
	publisher := a.newPublisher()

	_, ok := publisher.(*events.KafkaPublisher)
	assert.True(t, ok)
	require.Len(t, a.closers, 1)
	assert.NoError(t, a.Close())
}

func TestClose_RunsInReverseOrder(t *testing.T) {
	a := &App{}
	var order []int
	a.OnClose(func() error { order = append(order, 1); return nil })
	a.OnClose(func() error { order = append(order, 2); return nil })

	require.NoError(t, a.Close())
	assert.Equal(t, []int{2, 1}, order)
}
