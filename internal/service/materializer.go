package service

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yourorg/course-template-service/internal/backup"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Materialized is the outcome of a successful materialization
type Materialized struct {
	Course *model.Course
	State  model.MaterializationState
}

// Materializer restores a template archive into a new or existing course
type Materializer struct {
	files     storage.Storage
	engine    backup.Engine
	courses   *repository.CourseRepository
	tempDir   string
	contextID int
	limits    backup.ExtractLimits
	logger    *zap.Logger
}

// NewMaterializer creates a new materializer. Staging files and working
// directories live under <tempDir>/backup.
func NewMaterializer(
	files storage.Storage,
	engine backup.Engine,
	courses *repository.CourseRepository,
	tempDir string,
	contextID int,
	logger *zap.Logger,
) *Materializer {
	return &Materializer{
		files:     files,
		engine:    engine,
		courses:   courses,
		tempDir:   tempDir,
		contextID: contextID,
		limits:    backup.DefaultExtractLimits,
		logger:    logger,
	}
}

// run tracks the state of one materialization and logs every transition
type run struct {
	state  model.MaterializationState
	logger *zap.Logger
}

func (r *run) to(state model.MaterializationState) {
	r.logger.Debug("Materialization state changed",
		zap.String("from", string(r.state)),
		zap.String("to", string(state)))
	r.state = state
}

func (r *run) fail(err error) error {
	r.logger.Warn("Materialization failed", zap.String("state", string(r.state)), zap.Error(err))
	r.state = model.StateFailed
	return err
}

// Materialize restores the template archive into the target. The staging copy and
// the working directory are removed on every exit path. For a new course the course
// record is created only after extraction succeeded and is removed again if the
// restore fails.
func (m *Materializer) Materialize(ctx context.Context, template *model.Template, target model.Target, actor model.Actor) (*Materialized, error) {
	r := &run{
		state: model.StatePending,
		logger: m.logger.With(
			zap.Int("templateId", template.ID),
			zap.String("mode", string(target.Mode)),
			zap.Int("userId", actor.UserID)),
	}

	if !target.IsNewCourse() {
		if _, err := m.courses.GetCourse(ctx, target.CourseID); err != nil {
			return nil, r.fail(fmt.Errorf("import target: %w", err))
		}
	}

	// 1. locate the archive
	if !template.HasArchive() {
		return nil, r.fail(fmt.Errorf("template %d has no archive: %w", template.ID, model.ErrNotFound))
	}
	ref := ArchiveRef(m.contextID, template)
	content, _, err := m.files.Open(ctx, ref.Hash())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, r.fail(fmt.Errorf("archive %s: %w", ref.Path(), err))
		}
		return nil, r.fail(fmt.Errorf("failed to open archive %s: %w: %w", ref.Path(), model.ErrIO, err))
	}
	defer content.Close()
	r.to(model.StateArchiveReady)

	backupRoot := filepath.Join(m.tempDir, "backup")
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		return nil, r.fail(fmt.Errorf("failed to create backup directory: %w: %w", model.ErrIO, err))
	}

	// 2. stage a local copy
	nonce := uuid.NewString()
	stagingPath := filepath.Join(backupRoot, md5Hex(template.ArchiveName())+"-"+nonce)
	defer os.Remove(stagingPath)

	if err := copyToFile(stagingPath, content); err != nil {
		return nil, r.fail(fmt.Errorf("failed to stage archive: %w: %w", model.ErrIO, err))
	}
	content.Close()

	// 3. extract into a fresh working directory
	workDir := filepath.Join(backupRoot, sha1Hex(strconv.Itoa(m.contextID)+":"+strconv.Itoa(actor.UserID)+":"+nonce))
	defer os.RemoveAll(workDir)

	if err := m.extract(ctx, stagingPath, workDir); err != nil {
		return nil, r.fail(fmt.Errorf("failed to extract archive: %w: %w", model.ErrIO, err))
	}
	os.Remove(stagingPath)
	r.to(model.StateExtracted)

	// 4. build the restore plan
	courseID := target.CourseID
	createdCourse := false
	if target.IsNewCourse() {
		courseID, err = m.courses.CreatePending(ctx, target.CategoryID)
		if err != nil {
			return nil, r.fail(fmt.Errorf("failed to create course: %w: %w", model.ErrOperationFailed, err))
		}
		createdCourse = true
		r.logger = r.logger.With(zap.Int("courseId", courseID))
	}

	succeeded := false
	defer func() {
		if createdCourse && !succeeded {
			m.discardCourse(context.WithoutCancel(ctx), courseID)
		}
	}()

	if err := m.restore(ctx, r, workDir, courseID, target, actor); err != nil {
		return nil, r.fail(err)
	}

	// 7. clean up before reporting
	os.RemoveAll(workDir)
	r.to(model.StateCleaned)

	// 8. the id-number is written directly, after the engine applied its own copy
	if target.IsNewCourse() {
		if err := m.courses.UpdateIDNumber(ctx, courseID, target.Overrides.IDNumber); err != nil {
			return nil, r.fail(fmt.Errorf("failed to set course idnumber: %w: %w", model.ErrOperationFailed, err))
		}
	}

	course, err := m.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, r.fail(fmt.Errorf("failed to reload course %d: %w: %w", courseID, model.ErrOperationFailed, err))
	}

	succeeded = true
	r.to(model.StateDone)
	r.logger.Info("Template materialized", zap.Int("courseId", courseID))

	return &Materialized{Course: course, State: r.state}, nil
}

// restore runs steps 4 to 6: plan, optional conversion, precheck and execute
func (m *Materializer) restore(ctx context.Context, r *run, workDir string, courseID int, target model.Target, actor model.Actor) error {
	plan, err := m.engine.NewRestorePlan(ctx, workDir, courseID, target.Mode, actor.UserID)
	if err != nil {
		return fmt.Errorf("failed to build restore plan: %w: %w", model.ErrExternalEngine, err)
	}

	if target.IsNewCourse() {
		o := target.Overrides
		overrides := []struct{ name, value string }{
			{backup.SettingCourseFullname, o.Fullname},
			{backup.SettingCourseShortname, o.Shortname},
			{backup.SettingCourseIDNumber, o.IDNumber},
			{backup.SettingCourseStartDate, strconv.FormatInt(o.StartDate, 10)},
		}
		for _, s := range overrides {
			if err := plan.SetSetting(s.name, s.value); err != nil {
				return fmt.Errorf("failed to set %s: %w: %w", s.name, model.ErrExternalEngine, err)
			}
		}
	}
	r.to(model.StateRestorePlanBuilt)

	if plan.RequiresConversion() {
		if err := plan.Convert(ctx); err != nil {
			return fmt.Errorf("failed to convert archive: %w: %w", model.ErrExternalEngine, err)
		}
		r.to(model.StateConversionDone)
	}

	if err := plan.Precheck(ctx); err != nil {
		return fmt.Errorf("restore precheck failed: %w: %w", model.ErrExternalEngine, err)
	}
	r.to(model.StatePrechecked)

	if err := plan.Execute(ctx); err != nil {
		return fmt.Errorf("restore failed: %w: %w", model.ErrExternalEngine, err)
	}
	r.to(model.StateExecuted)

	return nil
}

func (m *Materializer) extract(ctx context.Context, stagingPath, workDir string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return err
	}

	f, err := os.Open(stagingPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return backup.Extract(ctx, f, workDir, m.limits)
}

func (m *Materializer) discardCourse(ctx context.Context, courseID int) {
	if err := m.courses.Delete(ctx, courseID); err != nil {
		m.logger.Error("Failed to remove course after failed restore", zap.Error(err), zap.Int("courseId", courseID))
		return
	}
	m.logger.Info("Removed course after failed restore", zap.Int("courseId", courseID))
}

func copyToFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
