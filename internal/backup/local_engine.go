package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/course-template-service/internal/model"
)

// FormatVersion is the archive layout written by LocalEngine.
// Version 1 archives kept all course content in a single file.
const FormatVersion = 2

const (
	manifestFile   = "manifest.json"
	activitiesFile = "course/activities.json"
	blocksFile     = "course/blocks.json"
	filtersFile    = "course/filters.json"
	legacyContent  = "course/contents.json"
)

// CourseStore is the course data the reference engine reads and writes
type CourseStore interface {
	GetCourse(ctx context.Context, id int) (*model.Course, error)
	GetCourseContent(ctx context.Context, courseID int) (*model.CourseContent, error)
	UpdateCourse(ctx context.Context, course *model.Course) error
	AddCourseContent(ctx context.Context, courseID int, content *model.CourseContent) error
	FindByShortname(ctx context.Context, shortname string) ([]model.Course, error)
}

type manifest struct {
	FormatVersion int        `json:"format_version"`
	BackupID      string     `json:"backup_id"`
	CourseID      int        `json:"course_id"`
	CreatedBy     int        `json:"created_by"`
	CreatedAt     int64      `json:"created_at"`
	Settings      Settings   `json:"settings"`
	Course        courseInfo `json:"course"`
}

type courseInfo struct {
	Fullname  string `json:"fullname"`
	Shortname string `json:"shortname"`
	IDNumber  string `json:"idnumber"`
	Summary   string `json:"summary"`
	Format    string `json:"format"`
	StartDate int64  `json:"startdate"`
}

// LocalEngine is an in-process backup engine over the service's course tables.
// Archives are tar+gzip bundles of JSON documents.
type LocalEngine struct {
	store  CourseStore
	outDir string
	logger *zap.Logger
	now    func() time.Time
}

// NewLocalEngine creates an engine that writes finished backups to outDir
func NewLocalEngine(store CourseStore, outDir string, logger *zap.Logger) *LocalEngine {
	return &LocalEngine{
		store:  store,
		outDir: outDir,
		logger: logger,
		now:    time.Now,
	}
}

// CreateArchive serializes a course into a new archive in the engine's output directory
func (e *LocalEngine) CreateArchive(ctx context.Context, courseID int, settings Settings, userID int) (Artifact, error) {
	course, err := e.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course %d: %w", courseID, err)
	}
	content, err := e.store.GetCourseContent(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content of course %d: %w", courseID, err)
	}

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	staging, err := os.MkdirTemp(e.outDir, "backup-staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	m := manifest{
		FormatVersion: FormatVersion,
		BackupID:      uuid.NewString(),
		CourseID:      course.ID,
		CreatedBy:     userID,
		CreatedAt:     e.now().Unix(),
		Settings:      settings,
		Course: courseInfo{
			Fullname:  course.Fullname,
			Shortname: course.Shortname,
			IDNumber:  course.IDNumber,
			Summary:   course.Summary,
			Format:    course.Format,
			StartDate: course.StartDate,
		},
	}

	if err := writeJSON(staging, manifestFile, m); err != nil {
		return nil, err
	}
	if settings.Activities {
		if err := writeJSON(staging, activitiesFile, content.Activities); err != nil {
			return nil, err
		}
	}
	if settings.Blocks {
		if err := writeJSON(staging, blocksFile, content.Blocks); err != nil {
			return nil, err
		}
	}
	if settings.Filters {
		if err := writeJSON(staging, filtersFile, content.Filters); err != nil {
			return nil, err
		}
	}

	name := fmt.Sprintf("backup-course-%d-%d-%s%s", course.ID, m.CreatedAt, m.BackupID[:8], ArchiveExt)
	outPath := filepath.Join(e.outDir, name)

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	if err := Pack(ctx, staging, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return nil, fmt.Errorf("failed to pack backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	e.logger.Info("Course backup created",
		zap.Int("courseId", courseID),
		zap.Int("userId", userID),
		zap.String("file", name))

	return &fileArtifact{path: outPath}, nil
}

// NewRestorePlan reads the manifest of an extracted archive
func (e *LocalEngine) NewRestorePlan(ctx context.Context, workDir string, courseID int, mode model.TargetMode, userID int) (RestorePlan, error) {
	var m manifest
	if err := readJSON(workDir, manifestFile, &m); err != nil {
		return nil, fmt.Errorf("not a course archive: %w", err)
	}
	if m.FormatVersion < 1 || m.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("unsupported archive format version %d", m.FormatVersion)
	}

	switch mode {
	case model.TargetNewCourse, model.TargetExistingAdding:
	default:
		return nil, fmt.Errorf("unsupported restore target %q", mode)
	}

	return &localPlan{
		engine:   e,
		workDir:  workDir,
		courseID: courseID,
		mode:     mode,
		userID:   userID,
		manifest: m,
		settings: map[string]string{
			SettingCourseFullname:  m.Course.Fullname,
			SettingCourseShortname: m.Course.Shortname,
			SettingCourseIDNumber:  m.Course.IDNumber,
			SettingCourseStartDate: strconv.FormatInt(m.Course.StartDate, 10),
		},
	}, nil
}

type localPlan struct {
	engine     *LocalEngine
	workDir    string
	courseID   int
	mode       model.TargetMode
	userID     int
	manifest   manifest
	settings   map[string]string
	prechecked bool
	executed   bool
}

func (p *localPlan) Setting(name string) (string, bool) {
	v, ok := p.settings[name]
	return v, ok
}

func (p *localPlan) SetSetting(name, value string) error {
	if _, ok := p.settings[name]; !ok {
		return fmt.Errorf("unknown restore setting %q", name)
	}
	if name == SettingCourseStartDate {
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	p.settings[name] = value
	p.prechecked = false
	return nil
}

func (p *localPlan) RequiresConversion() bool {
	return p.manifest.FormatVersion < FormatVersion
}

// Convert splits the single legacy content document into per-kind files
func (p *localPlan) Convert(ctx context.Context) error {
	if !p.RequiresConversion() {
		return nil
	}

	var content model.CourseContent
	if err := readJSON(p.workDir, legacyContent, &content); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read legacy content: %w", err)
	}

	s := p.manifest.Settings
	if s.Activities {
		if err := writeJSON(p.workDir, activitiesFile, content.Activities); err != nil {
			return err
		}
	}
	if s.Blocks {
		if err := writeJSON(p.workDir, blocksFile, content.Blocks); err != nil {
			return err
		}
	}
	if s.Filters {
		if err := writeJSON(p.workDir, filtersFile, content.Filters); err != nil {
			return err
		}
	}

	p.manifest.FormatVersion = FormatVersion
	if err := writeJSON(p.workDir, manifestFile, p.manifest); err != nil {
		return err
	}
	os.Remove(filepath.Join(p.workDir, filepath.FromSlash(legacyContent)))

	p.engine.logger.Debug("Converted legacy archive", zap.String("backupId", p.manifest.BackupID))
	return nil
}

func (p *localPlan) Precheck(ctx context.Context) error {
	if p.RequiresConversion() {
		return errors.New("archive must be converted before restore")
	}

	if _, err := p.engine.store.GetCourse(ctx, p.courseID); err != nil {
		return fmt.Errorf("restore target %d: %w", p.courseID, err)
	}

	if p.mode == model.TargetNewCourse {
		shortname := strings.TrimSpace(p.settings[SettingCourseShortname])
		if shortname == "" {
			return errors.New("course shortname is required")
		}
		clashes, err := p.engine.store.FindByShortname(ctx, shortname)
		if err != nil {
			return fmt.Errorf("failed to check shortname: %w", err)
		}
		for _, c := range clashes {
			if c.ID != p.courseID {
				return fmt.Errorf("shortname %q is already used by course %d", shortname, c.ID)
			}
		}
	}

	p.prechecked = true
	return nil
}

func (p *localPlan) Execute(ctx context.Context) error {
	if !p.prechecked {
		return errors.New("restore plan has not passed precheck")
	}
	if p.executed {
		return errors.New("restore plan already executed")
	}

	content, err := p.loadContent()
	if err != nil {
		return err
	}

	store := p.engine.store

	if p.mode == model.TargetNewCourse {
		course, err := store.GetCourse(ctx, p.courseID)
		if err != nil {
			return fmt.Errorf("restore target %d: %w", p.courseID, err)
		}
		startDate, _ := strconv.ParseInt(p.settings[SettingCourseStartDate], 10, 64)

		course.Fullname = p.settings[SettingCourseFullname]
		course.Shortname = p.settings[SettingCourseShortname]
		course.IDNumber = p.settings[SettingCourseIDNumber]
		course.StartDate = startDate
		course.Summary = p.manifest.Course.Summary
		course.Format = p.manifest.Course.Format

		if err := store.UpdateCourse(ctx, course); err != nil {
			return fmt.Errorf("failed to restore course settings: %w", err)
		}
	}

	if err := store.AddCourseContent(ctx, p.courseID, content); err != nil {
		return fmt.Errorf("failed to restore course content: %w", err)
	}

	p.executed = true
	p.engine.logger.Info("Course restored",
		zap.Int("courseId", p.courseID),
		zap.String("mode", string(p.mode)),
		zap.Int("userId", p.userID),
		zap.Int("activities", len(content.Activities)),
		zap.Int("blocks", len(content.Blocks)),
		zap.Int("filters", len(content.Filters)))
	return nil
}

func (p *localPlan) loadContent() (*model.CourseContent, error) {
	content := &model.CourseContent{}
	parts := []struct {
		enabled bool
		file    string
		dst     interface{}
	}{
		{p.manifest.Settings.Activities, activitiesFile, &content.Activities},
		{p.manifest.Settings.Blocks, blocksFile, &content.Blocks},
		{p.manifest.Settings.Filters, filtersFile, &content.Filters},
	}
	for _, part := range parts {
		if !part.enabled {
			continue
		}
		if err := readJSON(p.workDir, part.file, part.dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", part.file, err)
		}
	}
	return content, nil
}

type fileArtifact struct {
	path string
}

func (a *fileArtifact) Name() string {
	return filepath.Base(a.path)
}

func (a *fileArtifact) Open() (io.ReadCloser, error) {
	return os.Open(a.path)
}

func (a *fileArtifact) Delete() error {
	return os.Remove(a.path)
}

func writeJSON(dir, name string, v interface{}) error {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func readJSON(dir, name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
