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

// TagRepository handles database operations for template tags
type TagRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *sqlx.DB, logger *zap.Logger) *TagRepository {
	return &TagRepository{
		db:     db,
		logger: logger,
	}
}

// GetAllWithCounts retrieves every tag with the number of templates using it
func (r *TagRepository) GetAllWithCounts(ctx context.Context) ([]model.TagWithCount, error) {
	query := `
		SELECT tt.id, tt.name, COUNT(ti.id) AS template_count
		FROM template_tags tt
		LEFT JOIN template_tag_instances ti ON ti.tag_id = tt.id
		GROUP BY tt.id, tt.name
		ORDER BY tt.name
	`

	var tags []model.TagWithCount
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		r.logger.Error("Failed to list tags", zap.Error(err))
		return nil, err
	}
	return tags, nil
}

// GetByTemplateID retrieves the tags of one template
func (r *TagRepository) GetByTemplateID(ctx context.Context, templateID int) ([]model.Tag, error) {
	query := r.db.Rebind(`
		SELECT tt.id, tt.name
		FROM template_tags tt
		JOIN template_tag_instances ti ON ti.tag_id = tt.id
		WHERE ti.template_id = ?
		ORDER BY tt.name
	`)

	var tags []model.Tag
	if err := r.db.SelectContext(ctx, &tags, query, templateID); err != nil {
		r.logger.Error("Failed to get template tags", zap.Error(err), zap.Int("templateId", templateID))
		return nil, err
	}
	return tags, nil
}

// GetByTemplateIDs retrieves tags for several templates keyed by template ID
func (r *TagRepository) GetByTemplateIDs(ctx context.Context, templateIDs []int) (map[int][]model.Tag, error) {
	result := make(map[int][]model.Tag, len(templateIDs))
	if len(templateIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT ti.template_id, tt.id, tt.name
		FROM template_tags tt
		JOIN template_tag_instances ti ON ti.tag_id = tt.id
		WHERE ti.template_id IN (?)
		ORDER BY tt.name
	`, templateIDs)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to get tags for templates", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var templateID int
		var tag model.Tag
		if err := rows.Scan(&templateID, &tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		result[templateID] = append(result[templateID], tag)
	}
	return result, rows.Err()
}

// GetOrCreate returns the tag with the given name, matched case-insensitively,
// creating it when it does not exist
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetContext(ctx, &tag,
		r.db.Rebind(`SELECT id, name FROM template_tags WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`), name)
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to look up tag", zap.Error(err), zap.String("name", name))
		return nil, err
	}

	var id int
	err = r.db.QueryRowxContext(ctx,
		r.db.Rebind(`INSERT INTO template_tags (name) VALUES (?) RETURNING id`), name).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to create tag", zap.Error(err), zap.String("name", name))
		return nil, err
	}
	return &model.Tag{ID: id, Name: name}, nil
}

// AddToTemplate links a tag to a template
func (r *TagRepository) AddToTemplate(ctx context.Context, tagID, templateID int) error {
	query := r.db.Rebind(`INSERT INTO template_tag_instances (tag_id, template_id) VALUES (?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, tagID, templateID); err != nil {
		r.logger.Error("Failed to add tag to template", zap.Error(err),
			zap.Int("tagId", tagID), zap.Int("templateId", templateID))
		return err
	}
	return nil
}

// RemoveFromTemplate unlinks the given tags from a template and removes tags left unused
func (r *TagRepository) RemoveFromTemplate(ctx context.Context, templateID int, tagIDs []int) error {
	if len(tagIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`DELETE FROM template_tag_instances WHERE template_id = ? AND tag_id IN (?)`, templateID, tagIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to remove template tags", zap.Error(err), zap.Int("templateId", templateID))
		return err
	}

	if _, err := r.cleanupOrphans(ctx, tx, tagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteTemplateInstances removes every tag instance of a template, then deletes
// each affected tag that no template references any more
func (r *TagRepository) DeleteTemplateInstances(ctx context.Context, templateID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var tagIDs []int
	err = tx.SelectContext(ctx, &tagIDs,
		tx.Rebind(`SELECT DISTINCT tag_id FROM template_tag_instances WHERE template_id = ?`), templateID)
	if err != nil {
		r.logger.Error("Failed to read template tag instances", zap.Error(err), zap.Int("templateId", templateID))
		return err
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`DELETE FROM template_tag_instances WHERE template_id = ?`), templateID); err != nil {
		r.logger.Error("Failed to delete template tag instances", zap.Error(err), zap.Int("templateId", templateID))
		return err
	}

	removed, err := r.cleanupOrphans(ctx, tx, tagIDs)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.logger.Debug("Template tag instances deleted",
		zap.Int("templateId", templateID),
		zap.Int("tags", len(tagIDs)),
		zap.Int("orphansRemoved", removed))
	return nil
}

// cleanupOrphans deletes each of the given tags whose instance count dropped to zero
func (r *TagRepository) cleanupOrphans(ctx context.Context, tx *sqlx.Tx, tagIDs []int) (int, error) {
	removed := 0
	for _, tagID := range tagIDs {
		var count int
		err := tx.GetContext(ctx, &count,
			tx.Rebind(`SELECT COUNT(*) FROM template_tag_instances WHERE tag_id = ?`), tagID)
		if err != nil {
			r.logger.Error("Failed to count tag instances", zap.Error(err), zap.Int("tagId", tagID))
			return removed, fmt.Errorf("failed to count instances of tag %d: %w", tagID, err)
		}
		if count > 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM template_tags WHERE id = ?`), tagID); err != nil {
			r.logger.Error("Failed to delete orphan tag", zap.Error(err), zap.Int("tagId", tagID))
			return removed, fmt.Errorf("failed to delete tag %d: %w", tagID, err)
		}
		removed++
	}
	return removed, nil
}
