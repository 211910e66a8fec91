package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/course-template-service/internal/backup"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/repository"
	"github.com/yourorg/course-template-service/internal/storage"
	"github.com/yourorg/course-template-service/internal/testutil"
	"github.com/yourorg/course-template-service/internal/validator"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// countingEngine wraps the reference engine to count and break calls
type countingEngine struct {
	backup.Engine
	creates    int
	failCreate error
	failPlan   error
}

func (e *countingEngine) CreateArchive(ctx context.Context, courseID int, settings backup.Settings, userID int) (backup.Artifact, error) {
	e.creates++
	if e.failCreate != nil {
		return nil, e.failCreate
	}
	return e.Engine.CreateArchive(ctx, courseID, settings, userID)
}

func (e *countingEngine) NewRestorePlan(ctx context.Context, workDir string, courseID int, mode model.TargetMode, userID int) (backup.RestorePlan, error) {
	if e.failPlan != nil {
		return nil, e.failPlan
	}
	return e.Engine.NewRestorePlan(ctx, workDir, courseID, mode, userID)
}

type harness struct {
	db        *testutil.SQLiteTestHelper
	cfg       *config.Config
	templates *repository.TemplateRepository
	tags      *repository.TagRepository
	courses   *repository.CourseRepository
	files     storage.Storage
	engine    *countingEngine
	publisher *recordingPublisher

	archives     *ArchiveService
	materializer *Materializer
	finisher     *Finisher
	templateSvc  *TemplateService
	courseSvc    *CourseService

	categoryID int
	sourceID   int
}

func newHarness(t *testing.T, configure ...func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Local.BasePath = t.TempDir()
	cfg.Backup.TempDir = t.TempDir()
	cfg.Backup.Destination = filepath.Join(t.TempDir(), "backup")
	cfg.Features.CustomHeadingFieldID = 9
	for _, fn := range configure {
		fn(cfg)
	}

	logger := zap.NewNop()
	db := testutil.NewSQLiteTestHelper(t)

	h := &harness{
		db:        db,
		cfg:       cfg,
		templates: repository.NewTemplateRepository(db.DB, logger),
		tags:      repository.NewTagRepository(db.DB, logger),
		courses:   repository.NewCourseRepository(db.DB, logger),
		publisher: &recordingPublisher{},
	}

	files, err := storage.NewLocalStorage(&cfg.Storage.Local)
	require.NoError(t, err)
	h.files = files

	h.engine = &countingEngine{Engine: backup.NewLocalEngine(h.courses, cfg.Backup.Destination, logger)}

	v := validator.New()
	h.archives = NewArchiveService(h.templates, h.engine, h.files, h.publisher, cfg.Backup, logger)
	h.materializer = NewMaterializer(h.files, h.engine, h.courses, cfg.Backup.TempDir, cfg.Backup.ContextID, logger)
	h.finisher = NewFinisher(h.courses, cfg.Features, logger)
	h.templateSvc = NewTemplateService(h.templates, h.tags, h.courses, h.files, v, h.publisher, cfg.Backup.ContextID, logger)
	h.courseSvc = NewCourseService(h.templates, h.courses, h.archives, h.materializer, h.finisher, v, h.publisher, logger)

	db.SeedCourse(t, 0, "Site", "site")
	h.categoryID = db.SeedCategory(t, "Miscellaneous")
	h.sourceID = h.seedSource(t)

	return h
}

// seedSource creates a source course with activities, blocks, enrolments and an audience
func (h *harness) seedSource(t *testing.T) int {
	t.Helper()
	ctx := context.Background()

	id := h.db.SeedCourse(t, h.categoryID, "Template source", "tpl-src")
	h.db.Exec(t, `UPDATE courses SET idnumber = ?, summary = ?, startdate = ?, audience_visible = ? WHERE id = ?`,
		"SRC", "source summary", 1000, 1, id)

	require.NoError(t, h.courses.AddCourseContent(ctx, id, &model.CourseContent{
		Activities: []model.Activity{
			{Section: 0, Module: "forum", Name: "Announcements"},
			{Section: 1, Module: "page", Name: "Welcome"},
			{Section: 1, Module: "quiz", Name: "Check-in", Config: `{"attempts":1}`},
		},
		Blocks: []model.Block{
			{BlockName: "calendar_upcoming", Region: "side-pre", Weight: 0},
			{BlockName: "html", Region: "side-post", Weight: 1, Config: `{"title":"Help"}`},
		},
		Filters: []model.Filter{{Filter: "mathjaxloader", Active: 1}},
	}))

	_, err := h.courses.AddEnrolmentInstance(ctx, &model.EnrolmentInstance{CourseID: id, Enrol: "manual", RoleID: 5})
	require.NoError(t, err)
	_, err = h.courses.AddEnrolmentInstance(ctx, &model.EnrolmentInstance{CourseID: id, Enrol: "self", RoleID: 5, SortOrder: 1, CustomText: "Welcome"})
	require.NoError(t, err)

	require.NoError(t, h.courses.AddVisibleCohort(ctx, id, 11))
	require.NoError(t, h.courses.AddCustomFieldData(ctx, &model.CustomFieldData{CourseID: id, FieldID: 9, Data: "source heading"}))

	return id
}

func (h *harness) createTemplate(t *testing.T, name, tags string) *model.Template {
	t.Helper()
	tpl, err := h.templateSvc.CreateTemplate(context.Background(), &model.TemplateCreate{
		Name:     name,
		CourseID: h.sourceID,
		Tags:     tags,
	})
	require.NoError(t, err)
	return tpl
}

// workFiles lists whatever is left in the staging area
func (h *harness) workFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.cfg.Backup.TempDir, "backup"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (h *harness) engineBackups(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.cfg.Backup.Destination, "*"+backup.ArchiveExt))
	require.NoError(t, err)
	return matches
}

func newCourseRequest(templateID, categoryID int) *model.NewCourseRequest {
	return &model.NewCourseRequest{
		TemplateID: templateID,
		CategoryID: categoryID,
		Fullname:   "X",
		Shortname:  "x1",
		IDNumber:   "X-ID",
		StartDate:  1700000000,
	}
}

var actor = model.Actor{UserID: 2}
