package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/storage"
	"github.com/yourorg/course-template-service/internal/validator"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Limits applied to template input
const (
	MaxTagLength      = 50
	MaxScreenshotSize = 10 << 20
)

var screenshotTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// TemplateService handles template business logic
type TemplateService struct {
	templates *repository.TemplateRepository
	tags      *repository.TagRepository
	courses   *repository.CourseRepository
	files     storage.Storage
	validator *validator.Validator
	publisher events.Publisher
	contextID int
	logger    *zap.Logger
	now       func() time.Time
}

// NewTemplateService creates a new template service
func NewTemplateService(
	templates *repository.TemplateRepository,
	tags *repository.TagRepository,
	courses *repository.CourseRepository,
	files storage.Storage,
	v *validator.Validator,
	publisher events.Publisher,
	contextID int,
	logger *zap.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		tags:      tags,
		courses:   courses,
		files:     files,
		validator: v,
		publisher: publisher,
		contextID: contextID,
		logger:    logger,
		now:       time.Now,
	}
}

// ListTemplates returns the selectable templates ordered by name, with their tags
func (s *TemplateService) ListTemplates(ctx context.Context) ([]model.Template, error) {
	templates, err := s.templates.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(templates))
	for i := range templates {
		ids[i] = templates[i].ID
	}

	tagsByTemplate, err := s.tags.GetByTemplateIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		templates[i].Tags = tagsByTemplate[templates[i].ID]
	}

	return templates, nil
}

// GetTemplate returns one template with its tags
func (s *TemplateService) GetTemplate(ctx context.Context, id int) (*model.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tags, err := s.tags.GetByTemplateID(ctx, id)
	if err != nil {
		return nil, err
	}
	template.Tags = tags

	return template, nil
}

// CreateTemplate validates and stores a new template for an existing course
func (s *TemplateService) CreateTemplate(ctx context.Context, req *model.TemplateCreate) (*model.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	if _, err := s.courses.GetCourse(ctx, req.CourseID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, validator.FieldError("course_id", "course does not exist")
		}
		return nil, err
	}

	template := &model.Template{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CourseID:    req.CourseID,
		TimeCreated: s.now().Unix(),
	}

	id, err := s.templates.Create(ctx, template)
	if err != nil {
		return nil, err
	}
	template.ID = id

	if err := s.reconcileTags(ctx, id, ParseTags(req.Tags)); err != nil {
		return nil, err
	}

	s.logger.Info("Template created", zap.Int("templateId", id), zap.Int("courseId", req.CourseID))

	return s.GetTemplate(ctx, id)
}

// UpdateTemplate changes name, description or tags of a template
func (s *TemplateService) UpdateTemplate(ctx context.Context, id int, req *model.TemplateUpdate) (*model.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Description != nil {
		if req.Name != nil {
			template.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			template.Description = *req.Description
		}
		if err := s.templates.Update(ctx, template); err != nil {
			return nil, err
		}
	}

	if req.Tags != nil {
		if err := s.reconcileTags(ctx, id, ParseTags(*req.Tags)); err != nil {
			return nil, err
		}
	}

	return s.GetTemplate(ctx, id)
}

// DeleteTemplate removes a template's tag instances, then the template itself.
// Stored files of the template are removed afterwards on a best-effort basis.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id int, userID int) error {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.tags.DeleteTemplateInstances(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tags of template %d: %w: %w", id, model.ErrOperationFailed, err)
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template %d: %w: %w", id, model.ErrOperationFailed, err)
	}

	var refs []storage.FileRef
	if template.HasArchive() {
		refs = append(refs, ArchiveRef(s.contextID, template))
	}
	if template.Screenshot != nil {
		refs = append(refs,
			storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, *template.Screenshot),
			storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, PreviewName(*template.Screenshot)))
	}
	s.deleteFiles(ctx, refs)

	s.logger.Info("Template deleted", zap.Int("templateId", id), zap.Int("userId", userID))
	s.publisher.Publish(ctx, events.NewEvent(events.TypeTemplateDeleted, id, template.CourseID, userID))

	return nil
}

// ListTags returns every tag with its usage count
func (s *TemplateService) ListTags(ctx context.Context) ([]model.TagWithCount, error) {
	return s.tags.GetAllWithCounts(ctx)
}

// SetScreenshot stores an uploaded image for a template together with a
// bounded preview named <name>_preview<ext>
func (s *TemplateService) SetScreenshot(ctx context.Context, id int, filename string, r io.Reader) (*model.Template, error) {
	previous, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" || filename == "" {
		return nil, validator.FieldError("file", "filename is required")
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxScreenshotSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w: %w", model.ErrIO, err)
	}
	if len(data) > MaxScreenshotSize {
		return nil, validator.FieldError("file", fmt.Sprintf("file exceeds %d bytes", MaxScreenshotSize))
	}

	mtype := mimetype.Detect(data)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]
	if !screenshotTypes[contentType] {
		return nil, validator.FieldError("file", "only jpeg, png and gif images are accepted, got "+contentType)
	}

	ref := storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, filename)
	if _, err := s.files.Store(ctx, ref, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("failed to store screenshot: %w: %w", model.ErrIO, err)
	}

	preview, format, err := storage.GeneratePreview(bytes.NewReader(data), storage.PreviewWidth, storage.PreviewHeight)
	if err != nil {
		s.logger.Warn("Failed to generate screenshot preview", zap.Error(err), zap.Int("templateId", id))
	} else {
		previewRef := storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, PreviewName(filename))
		if _, err := s.files.Store(ctx, previewRef, bytes.NewReader(preview), "image/"+format); err != nil {
			return nil, fmt.Errorf("failed to store screenshot preview: %w: %w", model.ErrIO, err)
		}
	}

	if err := s.templates.SetScreenshot(ctx, id, filename); err != nil {
		return nil, err
	}

	if previous.Screenshot != nil && *previous.Screenshot != filename {
		s.deleteFiles(ctx, []storage.FileRef{
			storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, *previous.Screenshot),
			storage.NewFileRef(s.contextID, storage.AreaScreenshot, id, PreviewName(*previous.Screenshot)),
		})
	}

	return s.GetTemplate(ctx, id)
}

// deleteFiles removes stored files best-effort; missing files are ignored.
func (s *TemplateService) deleteFiles(ctx context.Context, refs []storage.FileRef) {
	for _, ref := range refs {
		if err := s.files.Delete(ctx, ref.Hash()); err != nil && !errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("Failed to delete template file", zap.Error(err), zap.String("path", ref.Path()))
		}
	}
}

// ServeFile opens a stored template file. Unknown areas, missing templates and
// missing files are all reported as not found.
func (s *TemplateService) ServeFile(ctx context.Context, area string, templateID int, relativePath string) (io.ReadCloser, *storage.StoredFile, error) {
	if !storage.IsKnownArea(area) {
		return nil, nil, fmt.Errorf("file area %q: %w", area, model.ErrNotFound)
	}

	if _, err := s.templates.GetByID(ctx, templateID); err != nil {
		return nil, nil, err
	}

	relativePath = strings.TrimPrefix(relativePath, "/")
	if relativePath == "" {
		return nil, nil, fmt.Errorf("empty file path: %w", model.ErrNotFound)
	}

	ref := storage.NewFileRef(s.contextID, area, templateID, relativePath)
	return s.files.Open(ctx, ref.Hash())
}

// reconcileTags makes the template's tag set equal to names
func (s *TemplateService) reconcileTags(ctx context.Context, templateID int, names []string) error {
	current, err := s.tags.GetByTemplateID(ctx, templateID)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	have := make(map[string]bool, len(current))
	var remove []int
	for _, tag := range current {
		key := strings.ToLower(tag.Name)
		have[key] = true
		if !wanted[key] {
			remove = append(remove, tag.ID)
		}
	}

	if err := s.tags.RemoveFromTemplate(ctx, templateID, remove); err != nil {
		return err
	}

	for _, name := range names {
		if have[strings.ToLower(name)] {
			continue
		}
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		if err := s.tags.AddToTemplate(ctx, tag.ID, templateID); err != nil {
			return err
		}
	}

	return nil
}

// ParseTags splits a comma separated tag list. Tags are trimmed, cut to
// MaxTagLength characters and deduplicated case-insensitively.
func ParseTags(raw string) []string {
	var tags []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			tag = strings.TrimSpace(string([]rune(tag)[:MaxTagLength]))
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	return tags
}

// PreviewName returns the preview filename for an image, e.g. shot.png -> shot_preview.png
func PreviewName(filename string) string {
	ext := path.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "_preview" + ext
}
