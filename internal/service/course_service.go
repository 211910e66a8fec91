package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/validator"

	"go.uber.org/zap"
)

// Messages reported after a successful run
const (
	MessageCreated  = "Course created successfully"
	MessageImported = "Content imported successfully"
)

// ErrNoTemplates is returned when no template can be selected
var ErrNoTemplates = fmt.Errorf("no templates available: %w", model.ErrNotFound)

// CourseService runs the template workflow: ensure archive, materialize, finish
type CourseService struct {
	templates    *repository.TemplateRepository
	courses      *repository.CourseRepository
	archives     *ArchiveService
	materializer *Materializer
	finisher     *Finisher
	validator    *validator.Validator
	publisher    events.Publisher
	logger       *zap.Logger
}

// NewCourseService creates a new course service
func NewCourseService(
	templates *repository.TemplateRepository,
	courses *repository.CourseRepository,
	archives *ArchiveService,
	materializer *Materializer,
	finisher *Finisher,
	v *validator.Validator,
	publisher events.Publisher,
	logger *zap.Logger,
) *CourseService {
	return &CourseService{
		templates:    templates,
		courses:      courses,
		archives:     archives,
		materializer: materializer,
		finisher:     finisher,
		validator:    v,
		publisher:    publisher,
		logger:       logger,
	}
}

// CreateCourse creates a new course from a template
func (s *CourseService) CreateCourse(ctx context.Context, actor model.Actor, req *model.NewCourseRequest) (*model.Result, error) {
	if err := s.requireTemplates(ctx); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Shortname = strings.TrimSpace(req.Shortname)
	req.IDNumber = strings.TrimSpace(req.IDNumber)

	if err := s.validateNewCourse(ctx, req); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	materialized, err := s.run(ctx, actor, template, model.NewCourseTarget(req.CategoryID, req.Overrides()))
	if err != nil {
		return nil, err
	}
	courseID := materialized.Course.ID

	err = s.finisher.Finish(ctx, template.CourseID, courseID, model.FinishOptions{
		Summary:       req.Summary,
		SetChannel:    req.SetChannel,
		CustomHeading: req.CustomCourseHeading,
		NewCourse:     true,
	})
	if err != nil {
		s.logger.Error("Failed to finish new course", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}

	s.logger.Info("Course created from template",
		zap.Int("templateId", template.ID),
		zap.Int("courseId", courseID),
		zap.Int("userId", actor.UserID))
	s.publisher.Publish(ctx, events.NewEvent(events.TypeCourseCreated, template.ID, courseID, actor.UserID))

	return newResult(courseID, MessageCreated, materialized.State), nil
}

// ImportIntoCourse adds a template's content to an existing course
func (s *CourseService) ImportIntoCourse(ctx context.Context, actor model.Actor, req *model.ImportRequest) (*model.Result, error) {
	if req.CourseID == model.SiteCourseID {
		return nil, fmt.Errorf("content cannot be imported into the site course: %w", model.ErrInvalidInput)
	}

	if err := s.requireTemplates(ctx); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	if _, err := s.courses.GetCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	materialized, err := s.run(ctx, actor, template, model.ImportTarget(req.CourseID))
	if err != nil {
		return nil, err
	}

	if err := s.finisher.Finish(ctx, template.CourseID, req.CourseID, model.FinishOptions{}); err != nil {
		s.logger.Error("Failed to finish import", zap.Error(err), zap.Int("courseId", req.CourseID))
		return nil, err
	}

	s.logger.Info("Template imported into course",
		zap.Int("templateId", template.ID),
		zap.Int("courseId", req.CourseID),
		zap.Int("userId", actor.UserID))
	s.publisher.Publish(ctx, events.NewEvent(events.TypeCourseImported, template.ID, req.CourseID, actor.UserID))

	return newResult(req.CourseID, MessageImported, materialized.State), nil
}

func (s *CourseService) run(ctx context.Context, actor model.Actor, template *model.Template, target model.Target) (*Materialized, error) {
	if _, err := s.archives.EnsureArchive(ctx, template, actor.UserID); err != nil {
		return nil, err
	}
	return s.materializer.Materialize(ctx, template, target, actor)
}

func (s *CourseService) requireTemplates(ctx context.Context) error {
	count, err := s.templates.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNoTemplates
	}
	return nil
}

// validateNewCourse runs the checks that need the database
func (s *CourseService) validateNewCourse(ctx context.Context, req *model.NewCourseRequest) error {
	var fields []model.FieldError

	exists, err := s.courses.CategoryExists(ctx, req.CategoryID)
	if err != nil {
		return err
	}
	if !exists {
		fields = append(fields, model.FieldError{Field: "category", Error: "category does not exist"})
	}

	clashes, err := s.courses.FindByShortname(ctx, req.Shortname)
	if err != nil {
		return err
	}
	if len(clashes) > 0 {
		names := make([]string, len(clashes))
		for i, c := range clashes {
			names[i] = c.Fullname
		}
		fields = append(fields, model.FieldError{
			Field: "shortname",
			Error: "Short name is already used for another course (" + strings.Join(names, ",") + ")",
		})
	}

	if len(fields) > 0 {
		return &model.ValidationError{Fields: fields}
	}
	return nil
}

func newResult(courseID int, message string, state model.MaterializationState) *model.Result {
	return &model.Result{
		CourseID:    courseID,
		RedirectURL: fmt.Sprintf("/course/view.php?id=%d", courseID),
		Message:     message,
		State:       state,
	}
}
