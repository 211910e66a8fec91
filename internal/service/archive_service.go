package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/course-template-service/internal/backup"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/storage"

	"go.uber.org/zap"
)

// ArchiveName builds the stored archive filename of a template
func ArchiveName(template *model.Template) string {
	return fmt.Sprintf("coursetemplate_%d_%d_%d%s", template.ID, template.CourseID, template.TimeCreated, backup.ArchiveExt)
}

// ArchiveRef returns the storage address of a template's cached archive
func ArchiveRef(contextID int, template *model.Template) storage.FileRef {
	return storage.NewFileRef(contextID, storage.AreaBackupFile, template.ID, template.ArchiveName())
}

// ArchiveService makes sure every template has a cached course archive
type ArchiveService struct {
	templates   *repository.TemplateRepository
	engine      backup.Engine
	files       storage.Storage
	publisher   events.Publisher
	contextID   int
	storageMode string
	logger      *zap.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(
	templates *repository.TemplateRepository,
	engine backup.Engine,
	files storage.Storage,
	publisher events.Publisher,
	cfg config.BackupConfig,
	logger *zap.Logger,
) *ArchiveService {
	return &ArchiveService{
		templates:   templates,
		engine:      engine,
		files:       files,
		publisher:   publisher,
		contextID:   cfg.ContextID,
		storageMode: cfg.StorageMode,
		logger:      logger,
	}
}

// EnsureArchive returns the address of the template's archive, creating the archive
// through the backup engine on first use. An existing filename is trusted as is.
func (s *ArchiveService) EnsureArchive(ctx context.Context, template *model.Template, userID int) (storage.FileRef, error) {
	if template.HasArchive() {
		return ArchiveRef(s.contextID, template), nil
	}

	start := time.Now()
	artifact, err := s.engine.CreateArchive(ctx, template.CourseID, backup.TemplateSettings(), userID)
	if err != nil {
		s.logger.Error("Failed to create template archive", zap.Error(err),
			zap.Int("templateId", template.ID), zap.Int("courseId", template.CourseID))
		return storage.FileRef{}, fmt.Errorf("failed to back up course %d: %w: %w", template.CourseID, model.ErrExternalEngine, err)
	}

	filename := ArchiveName(template)
	ref := storage.NewFileRef(s.contextID, storage.AreaBackupFile, template.ID, filename)

	if err := s.copyArtifact(ctx, artifact, ref); err != nil {
		return storage.FileRef{}, err
	}

	if err := s.templates.SetFilename(ctx, template.ID, filename); err != nil {
		return storage.FileRef{}, fmt.Errorf("failed to record archive of template %d: %w: %w", template.ID, model.ErrOperationFailed, err)
	}
	template.Filename = &filename

	if s.storageMode == config.StorageModeMove {
		if err := artifact.Delete(); err != nil {
			s.logger.Warn("Failed to remove engine backup", zap.Error(err), zap.String("file", artifact.Name()))
		}
	}

	s.logger.Info("Template archive created",
		zap.Int("templateId", template.ID),
		zap.Int("courseId", template.CourseID),
		zap.String("filename", filename),
		zap.String("storageMode", s.storageMode),
		zap.Duration("took", time.Since(start)))

	s.publisher.Publish(ctx, events.NewEvent(events.TypeArchiveCreated, template.ID, template.CourseID, userID))

	return ref, nil
}

func (s *ArchiveService) copyArtifact(ctx context.Context, artifact backup.Artifact, ref storage.FileRef) error {
	rc, err := artifact.Open()
	if err != nil {
		s.logger.Error("Failed to open engine backup", zap.Error(err), zap.String("file", artifact.Name()))
		return fmt.Errorf("failed to open backup %s: %w: %w", artifact.Name(), model.ErrIO, err)
	}
	defer rc.Close()

	if _, err := s.files.Store(ctx, ref, rc, backup.ArchiveContentType); err != nil {
		s.logger.Error("Failed to store template archive", zap.Error(err), zap.String("path", ref.Path()))
		return fmt.Errorf("failed to store archive %s: %w: %w", ref.Filename, model.ErrIO, err)
	}
	return nil
}
