package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"

	"go.uber.org/zap"
)

// Finisher applies the request payloads that the restore does not carry.
// Steps are independent and not transactional; the first failure is returned
// and earlier steps stay applied.
type Finisher struct {
	courses  *repository.CourseRepository
	features config.FeaturesConfig
	logger   *zap.Logger
}

// NewFinisher creates a new finisher
func NewFinisher(courses *repository.CourseRepository, features config.FeaturesConfig, logger *zap.Logger) *Finisher {
	return &Finisher{
		courses:  courses,
		features: features,
		logger:   logger,
	}
}

// Finish copies enrolment methods from the source course and applies summary,
// heading and audience visibility to the target
func (f *Finisher) Finish(ctx context.Context, sourceCourseID, targetCourseID int, opts model.FinishOptions) error {
	if err := f.copyEnrolments(ctx, sourceCourseID, targetCourseID); err != nil {
		return err
	}

	if strings.TrimSpace(opts.Summary) != "" {
		if err := f.courses.UpdateSummary(ctx, targetCourseID, opts.Summary); err != nil {
			return fmt.Errorf("failed to update summary of course %d: %w: %w", targetCourseID, model.ErrOperationFailed, err)
		}
	}

	if opts.SetChannel {
		if err := f.applyHeading(ctx, targetCourseID, opts.CustomHeading); err != nil {
			return err
		}
	}

	if opts.NewCourse && f.features.AudienceVisibility {
		if err := f.copyAudienceVisibility(ctx, sourceCourseID, targetCourseID); err != nil {
			return err
		}
	}

	return nil
}

func (f *Finisher) copyEnrolments(ctx context.Context, sourceCourseID, targetCourseID int) error {
	instances, err := f.courses.GetEnrolmentInstances(ctx, sourceCourseID)
	if err != nil {
		return fmt.Errorf("failed to read enrolment methods of course %d: %w: %w", sourceCourseID, model.ErrOperationFailed, err)
	}

	for _, instance := range instances {
		instance.ID = 0
		instance.CourseID = targetCourseID
		if _, err := f.courses.AddEnrolmentInstance(ctx, &instance); err != nil {
			return fmt.Errorf("failed to copy %s enrolment to course %d: %w: %w", instance.Enrol, targetCourseID, model.ErrOperationFailed, err)
		}
	}

	f.logger.Debug("Enrolment methods copied",
		zap.Int("sourceCourseId", sourceCourseID),
		zap.Int("courseId", targetCourseID),
		zap.Int("count", len(instances)))
	return nil
}

// applyHeading replaces the custom field data copied from the template with the
// heading and classifies the course under the learning channel format
func (f *Finisher) applyHeading(ctx context.Context, courseID int, heading string) error {
	if err := f.courses.DeleteCustomFieldData(ctx, courseID); err != nil {
		return fmt.Errorf("failed to clear custom fields of course %d: %w: %w", courseID, model.ErrOperationFailed, err)
	}

	data := &model.CustomFieldData{
		CourseID: courseID,
		FieldID:  f.features.CustomHeadingFieldID,
		Data:     heading,
	}
	if err := f.courses.AddCustomFieldData(ctx, data); err != nil {
		return fmt.Errorf("failed to set course heading of course %d: %w: %w", courseID, model.ErrOperationFailed, err)
	}

	if err := f.courses.AddContentFormat(ctx, courseID, f.features.LearningChannelFormat); err != nil {
		return fmt.Errorf("failed to classify course %d: %w: %w", courseID, model.ErrOperationFailed, err)
	}
	return nil
}

func (f *Finisher) copyAudienceVisibility(ctx context.Context, sourceCourseID, targetCourseID int) error {
	cohorts, err := f.courses.GetVisibleCohorts(ctx, sourceCourseID)
	if err != nil {
		return fmt.Errorf("failed to read audience of course %d: %w: %w", sourceCourseID, model.ErrOperationFailed, err)
	}
	for _, cohortID := range cohorts {
		if err := f.courses.AddVisibleCohort(ctx, targetCourseID, cohortID); err != nil {
			return fmt.Errorf("failed to copy audience to course %d: %w: %w", targetCourseID, model.ErrOperationFailed, err)
		}
	}

	source, err := f.courses.GetCourse(ctx, sourceCourseID)
	if err != nil {
		return fmt.Errorf("failed to read course %d: %w: %w", sourceCourseID, model.ErrOperationFailed, err)
	}
	if err := f.courses.SetAudienceVisible(ctx, targetCourseID, source.AudienceVisible); err != nil {
		return fmt.Errorf("failed to set audience visibility of course %d: %w: %w", targetCourseID, model.ErrOperationFailed, err)
	}
	return nil
}
