package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yourorg/course-template-service/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Placeholder identity of a course created ahead of a restore
const (
	PendingCourseFullname  = "Course restore in progress"
	PendingCourseShortname = "restore-pending"
)

// CourseRepository handles the host course tables the template workflow touches
type CourseRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *sqlx.DB, logger *zap.Logger) *CourseRepository {
	return &CourseRepository{
		db:     db,
		logger: logger,
	}
}

const courseColumns = `id, category_id, fullname, shortname, idnumber, summary, startdate, format, audience_visible`

// GetCourse retrieves a course by its ID
func (r *CourseRepository) GetCourse(ctx context.Context, id int) (*model.Course, error) {
	query := r.db.Rebind(`SELECT ` + courseColumns + ` FROM courses WHERE id = ?`)

	var course model.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("course %d: %w", id, model.ErrNotFound)
		}
		r.logger.Error("Failed to get course", zap.Error(err), zap.Int("id", id))
		return nil, err
	}
	return &course, nil
}

// FindByShortname returns every course using the given shortname
func (r *CourseRepository) FindByShortname(ctx context.Context, shortname string) ([]model.Course, error) {
	query := r.db.Rebind(`SELECT ` + courseColumns + ` FROM courses WHERE shortname = ? ORDER BY id`)

	var courses []model.Course
	if err := r.db.SelectContext(ctx, &courses, query, shortname); err != nil {
		r.logger.Error("Failed to find courses by shortname", zap.Error(err), zap.String("shortname", shortname))
		return nil, err
	}
	return courses, nil
}

// CategoryExists reports whether a course category exists
func (r *CourseRepository) CategoryExists(ctx context.Context, id int) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM categories WHERE id = ?`), id)
	if err != nil {
		r.logger.Error("Failed to check category", zap.Error(err), zap.Int("id", id))
		return false, err
	}
	return count > 0, nil
}

// CreatePending inserts a placeholder course in a category and returns its ID.
// The restore fills in the real identity.
func (r *CourseRepository) CreatePending(ctx context.Context, categoryID int) (int, error) {
	query := r.db.Rebind(`
		INSERT INTO courses (category_id, fullname, shortname)
		VALUES (?, ?, ?)
		RETURNING id
	`)

	var id int
	if err := r.db.QueryRowxContext(ctx, query, categoryID, PendingCourseFullname, PendingCourseShortname).Scan(&id); err != nil {
		r.logger.Error("Failed to create course", zap.Error(err), zap.Int("categoryId", categoryID))
		return 0, err
	}
	return id, nil
}

// Delete removes a course together with its content rows
func (r *CourseRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"course_activities",
		"course_blocks",
		"course_filters",
		"enrol",
		"customfield_data",
		"course_content_formats",
		"cohort_visibility",
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE course_id = ?`), id); err != nil {
			r.logger.Error("Failed to delete course rows", zap.Error(err), zap.String("table", table), zap.Int("id", id))
			return err
		}
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM courses WHERE id = ?`), id)
	if err != nil {
		r.logger.Error("Failed to delete course", zap.Error(err), zap.Int("id", id))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("course %d: %w", id, model.ErrNotFound)
	}

	return tx.Commit()
}

// UpdateCourse saves the identity and presentation fields of a course
func (r *CourseRepository) UpdateCourse(ctx context.Context, course *model.Course) error {
	query := r.db.Rebind(`
		UPDATE courses
		SET fullname = ?, shortname = ?, idnumber = ?, summary = ?, startdate = ?, format = ?
		WHERE id = ?
	`)

	return r.execCourse(ctx, "update course", course.ID, query,
		course.Fullname, course.Shortname, course.IDNumber, course.Summary, course.StartDate, course.Format, course.ID)
}

// UpdateIDNumber sets the id-number of a course
func (r *CourseRepository) UpdateIDNumber(ctx context.Context, id int, idNumber string) error {
	query := r.db.Rebind(`UPDATE courses SET idnumber = ? WHERE id = ?`)
	return r.execCourse(ctx, "update course idnumber", id, query, idNumber, id)
}

// UpdateSummary replaces the summary of a course
func (r *CourseRepository) UpdateSummary(ctx context.Context, id int, summary string) error {
	query := r.db.Rebind(`UPDATE courses SET summary = ? WHERE id = ?`)
	return r.execCourse(ctx, "update course summary", id, query, summary, id)
}

// SetAudienceVisible sets the audience visibility flag of a course
func (r *CourseRepository) SetAudienceVisible(ctx context.Context, id int, visible int) error {
	query := r.db.Rebind(`UPDATE courses SET audience_visible = ? WHERE id = ?`)
	return r.execCourse(ctx, "update course audience visibility", id, query, visible, id)
}

func (r *CourseRepository) execCourse(ctx context.Context, op string, id int, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err), zap.Int("id", id))
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("course %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// GetCourseContent retrieves the activities, blocks and filters of a course
func (r *CourseRepository) GetCourseContent(ctx context.Context, courseID int) (*model.CourseContent, error) {
	content := &model.CourseContent{}

	err := r.db.SelectContext(ctx, &content.Activities, r.db.Rebind(`
		SELECT id, course_id, section, module, name, config
		FROM course_activities WHERE course_id = ? ORDER BY section, id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get course activities", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}

	err = r.db.SelectContext(ctx, &content.Blocks, r.db.Rebind(`
		SELECT id, course_id, block_name, region, weight, config
		FROM course_blocks WHERE course_id = ? ORDER BY region, weight, id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get course blocks", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}

	err = r.db.SelectContext(ctx, &content.Filters, r.db.Rebind(`
		SELECT id, course_id, filter, active
		FROM course_filters WHERE course_id = ? ORDER BY filter, id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get course filters", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}

	return content, nil
}

// AddCourseContent appends activities, blocks and filters to a course in one transaction.
// A filter already set on the course is updated instead of duplicated.
func (r *CourseRepository) AddCourseContent(ctx context.Context, courseID int, content *model.CourseContent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range content.Activities {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO course_activities (course_id, section, module, name, config)
			VALUES (?, ?, ?, ?, ?)
		`), courseID, a.Section, a.Module, a.Name, a.Config)
		if err != nil {
			r.logger.Error("Failed to add activity", zap.Error(err), zap.Int("courseId", courseID), zap.String("module", a.Module))
			return err
		}
	}

	for _, b := range content.Blocks {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO course_blocks (course_id, block_name, region, weight, config)
			VALUES (?, ?, ?, ?, ?)
		`), courseID, b.BlockName, b.Region, b.Weight, b.Config)
		if err != nil {
			r.logger.Error("Failed to add block", zap.Error(err), zap.Int("courseId", courseID), zap.String("block", b.BlockName))
			return err
		}
	}

	for _, f := range content.Filters {
		result, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE course_filters SET active = ? WHERE course_id = ? AND filter = ?
		`), f.Active, courseID, f.Filter)
		if err != nil {
			r.logger.Error("Failed to update filter", zap.Error(err), zap.Int("courseId", courseID), zap.String("filter", f.Filter))
			return err
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			continue
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO course_filters (course_id, filter, active) VALUES (?, ?, ?)
		`), courseID, f.Filter, f.Active)
		if err != nil {
			r.logger.Error("Failed to add filter", zap.Error(err), zap.Int("courseId", courseID), zap.String("filter", f.Filter))
			return err
		}
	}

	return tx.Commit()
}

// GetEnrolmentInstances retrieves the enrolment methods of a course
func (r *CourseRepository) GetEnrolmentInstances(ctx context.Context, courseID int) ([]model.EnrolmentInstance, error) {
	query := r.db.Rebind(`
		SELECT id, course_id, enrol, status, sortorder, roleid, name, customint1, customtext1
		FROM enrol WHERE course_id = ? ORDER BY sortorder, id
	`)

	var instances []model.EnrolmentInstance
	if err := r.db.SelectContext(ctx, &instances, query, courseID); err != nil {
		r.logger.Error("Failed to get enrolment instances", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}
	return instances, nil
}

// AddEnrolmentInstance inserts an enrolment method and returns its ID
func (r *CourseRepository) AddEnrolmentInstance(ctx context.Context, instance *model.EnrolmentInstance) (int, error) {
	query := r.db.Rebind(`
		INSERT INTO enrol (course_id, enrol, status, sortorder, roleid, name, customint1, customtext1)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int
	err := r.db.QueryRowxContext(ctx, query,
		instance.CourseID,
		instance.Enrol,
		instance.Status,
		instance.SortOrder,
		instance.RoleID,
		instance.Name,
		instance.CustomInt1,
		instance.CustomText,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to add enrolment instance", zap.Error(err),
			zap.Int("courseId", instance.CourseID), zap.String("enrol", instance.Enrol))
		return 0, err
	}
	return id, nil
}

// DeleteCustomFieldData removes every custom field value of a course
func (r *CourseRepository) DeleteCustomFieldData(ctx context.Context, courseID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM customfield_data WHERE course_id = ?`), courseID)
	if err != nil {
		r.logger.Error("Failed to delete custom field data", zap.Error(err), zap.Int("courseId", courseID))
	}
	return err
}

// AddCustomFieldData inserts a custom field value
func (r *CourseRepository) AddCustomFieldData(ctx context.Context, data *model.CustomFieldData) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO customfield_data (course_id, field_id, data) VALUES (?, ?, ?)
	`), data.CourseID, data.FieldID, data.Data)
	if err != nil {
		r.logger.Error("Failed to add custom field data", zap.Error(err),
			zap.Int("courseId", data.CourseID), zap.Int("fieldId", data.FieldID))
	}
	return err
}

// GetCustomFieldData retrieves the custom field values of a course
func (r *CourseRepository) GetCustomFieldData(ctx context.Context, courseID int) ([]model.CustomFieldData, error) {
	var data []model.CustomFieldData
	err := r.db.SelectContext(ctx, &data, r.db.Rebind(`
		SELECT id, course_id, field_id, data FROM customfield_data WHERE course_id = ? ORDER BY id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get custom field data", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}
	return data, nil
}

// AddContentFormat classifies a course under a content format
func (r *CourseRepository) AddContentFormat(ctx context.Context, courseID int, formatID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO course_content_formats (course_id, format_id) VALUES (?, ?)
		ON CONFLICT (course_id, format_id) DO NOTHING
	`), courseID, formatID)
	if err != nil {
		r.logger.Error("Failed to add content format", zap.Error(err),
			zap.Int("courseId", courseID), zap.String("format", formatID))
	}
	return err
}

// GetContentFormats retrieves the content formats of a course
func (r *CourseRepository) GetContentFormats(ctx context.Context, courseID int) ([]string, error) {
	var formats []string
	err := r.db.SelectContext(ctx, &formats, r.db.Rebind(`
		SELECT format_id FROM course_content_formats WHERE course_id = ? ORDER BY format_id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get content formats", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}
	return formats, nil
}

// GetVisibleCohorts retrieves the cohorts a course is made visible to
func (r *CourseRepository) GetVisibleCohorts(ctx context.Context, courseID int) ([]int, error) {
	var cohorts []int
	err := r.db.SelectContext(ctx, &cohorts, r.db.Rebind(`
		SELECT cohort_id FROM cohort_visibility WHERE course_id = ? ORDER BY cohort_id
	`), courseID)
	if err != nil {
		r.logger.Error("Failed to get visible cohorts", zap.Error(err), zap.Int("courseId", courseID))
		return nil, err
	}
	return cohorts, nil
}

// AddVisibleCohort makes a course visible to a cohort
func (r *CourseRepository) AddVisibleCohort(ctx context.Context, courseID, cohortID int) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO cohort_visibility (course_id, cohort_id) VALUES (?, ?)
		ON CONFLICT (course_id, cohort_id) DO NOTHING
	`), courseID, cohortID)
	if err != nil {
		r.logger.Error("Failed to add visible cohort", zap.Error(err),
			zap.Int("courseId", courseID), zap.Int("cohortId", cohortID))
	}
	return err
}
