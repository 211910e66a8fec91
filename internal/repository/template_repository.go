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

// TemplateRepository handles database operations for course templates
type TemplateRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlx.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

const templateColumns = `t.id, t.name, t.description, t.course_id, t.filename, t.screenshot, t.time_created`

// GetAll returns the templates whose source course still exists, ordered by name
func (r *TemplateRepository) GetAll(ctx context.Context) ([]model.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM course_templates t
		JOIN courses c ON c.id = t.course_id
		ORDER BY t.name, t.id
	`

	var templates []model.Template
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, err
	}

	return templates, nil
}

// Count returns the number of templates available for selection
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM course_templates t
		JOIN courses c ON c.id = t.course_id
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		r.logger.Error("Failed to count templates", zap.Error(err))
		return 0, err
	}
	return count, nil
}

// GetByID retrieves a template by its ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int) (*model.Template, error) {
	query := r.db.Rebind(`SELECT ` + templateColumns + ` FROM course_templates t WHERE t.id = ?`)

	var template model.Template
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %d: %w", id, model.ErrNotFound)
		}
		r.logger.Error("Failed to get template", zap.Error(err), zap.Int("id", id))
		return nil, err
	}

	return &template, nil
}

// Create inserts a new template and returns its ID
func (r *TemplateRepository) Create(ctx context.Context, template *model.Template) (int, error) {
	query := r.db.Rebind(`
		INSERT INTO course_templates (name, description, course_id, filename, screenshot, time_created)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int
	err := r.db.QueryRowxContext(ctx, query,
		template.Name,
		template.Description,
		template.CourseID,
		template.Filename,
		template.Screenshot,
		template.TimeCreated,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to create template", zap.Error(err), zap.String("name", template.Name))
		return 0, err
	}

	return id, nil
}

// Update saves the name and description of a template
func (r *TemplateRepository) Update(ctx context.Context, template *model.Template) error {
	query := r.db.Rebind(`UPDATE course_templates SET name = ?, description = ? WHERE id = ?`)

	return r.execOne(ctx, "update template", template.ID, query, template.Name, template.Description, template.ID)
}

// SetFilename records the cached archive filename of a template
func (r *TemplateRepository) SetFilename(ctx context.Context, id int, filename string) error {
	query := r.db.Rebind(`UPDATE course_templates SET filename = ? WHERE id = ?`)

	return r.execOne(ctx, "set template filename", id, query, filename, id)
}

// SetScreenshot records the screenshot filename of a template
func (r *TemplateRepository) SetScreenshot(ctx context.Context, id int, filename string) error {
	query := r.db.Rebind(`UPDATE course_templates SET screenshot = ? WHERE id = ?`)

	return r.execOne(ctx, "set template screenshot", id, query, filename, id)
}

// Delete removes the template row
func (r *TemplateRepository) Delete(ctx context.Context, id int) error {
	query := r.db.Rebind(`DELETE FROM course_templates WHERE id = ?`)

	return r.execOne(ctx, "delete template", id, query, id)
}

func (r *TemplateRepository) execOne(ctx context.Context, op string, id int, query string, args ...interface{}) error {
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
		return fmt.Errorf("template %d: %w", id, model.ErrNotFound)
	}

	return nil
}
