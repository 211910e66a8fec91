package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/course-template-service/internal/backup"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
)

func TestArchiveName(t *testing.T) {
	tpl := &model.Template{ID: 4, CourseID: 17, TimeCreated: 1700000000}
	assert.Equal(t, "coursetemplate_4_17_1700000000.mbz", ArchiveName(tpl))
}

func TestEnsureArchive_CreatesOnceAndReuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tpl := h.createTemplate(t, "Template", "")

	ref, err := h.archives.EnsureArchive(ctx, tpl, actor.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.engine.creates)
	assert.Equal(t, ArchiveName(tpl), ref.Filename)

	stored, err := h.templates.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	require.True(t, stored.HasArchive())
	assert.Equal(t, ref.Filename, stored.ArchiveName())

	rc, file, err := h.files.Open(ctx, ArchiveRef(h.cfg.Backup.ContextID, stored).Hash())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, backup.ArchiveContentType, file.ContentType)

	again, err := h.archives.EnsureArchive(ctx, stored, actor.UserID)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, h.engine.creates, "cached archive must not hit the engine")

	assert.Equal(t, []string{events.TypeArchiveCreated}, h.publisher.types())
}

func TestEnsureArchive_StorageModes(t *testing.T) {
	t.Run("move removes the engine copy", func(t *testing.T) {
		h := newHarness(t)
		tpl := h.createTemplate(t, "Template", "")

		_, err := h.archives.EnsureArchive(context.Background(), tpl, actor.UserID)
		require.NoError(t, err)
		assert.Empty(t, h.engineBackups(t))
	})

	t.Run("keep-both leaves the engine copy", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Backup.StorageMode = config.StorageModeKeepBoth })
		tpl := h.createTemplate(t, "Template", "")

		_, err := h.archives.EnsureArchive(context.Background(), tpl, actor.UserID)
		require.NoError(t, err)
		assert.Len(t, h.engineBackups(t), 1)
	})
}

func TestEnsureArchive_EngineFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tpl := h.createTemplate(t, "Template", "")

	h.engine.failCreate = errors.New("backup controller exploded")

	_, err := h.archives.EnsureArchive(ctx, tpl, actor.UserID)
	assert.ErrorIs(t, err, model.ErrExternalEngine)

	stored, err := h.templates.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasArchive())
	assert.Empty(t, h.publisher.events)
}

func TestEnsureArchive_TrustsRecordedFilename(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tpl := h.createTemplate(t, "Template", "")

	require.NoError(t, h.templates.SetFilename(ctx, tpl.ID, "coursetemplate_manual.mbz"))
	stored, err := h.templates.GetByID(ctx, tpl.ID)
	require.NoError(t, err)

	ref, err := h.archives.EnsureArchive(ctx, stored, actor.UserID)
	require.NoError(t, err)
	assert.Equal(t, "coursetemplate_manual.mbz", ref.Filename)
	assert.Equal(t, 0, h.engine.creates)
}
