package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/events"
	"github.com/yourorg/course-template-service/internal/model"
)

func modules(activities []model.Activity) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = a.Module + ":" + a.Name
	}
	sort.Strings(out)
	return out
}

func blockNames(blocks []model.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.BlockName
	}
	sort.Strings(out)
	return out
}

func TestCreateCourse_EndToEnd(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Features.AudienceVisibility = true })
	ctx := context.Background()
	tpl := h.createTemplate(t, "Starter", "onboarding")

	req := newCourseRequest(tpl.ID, h.categoryID)
	req.Summary = "Course summary from the form"
	req.SetChannel = true
	req.CustomCourseHeading = "Learning channel"

	result, err := h.courseSvc.CreateCourse(ctx, actor, req)
	require.NoError(t, err)
	assert.Equal(t, MessageCreated, result.Message)
	assert.Equal(t, model.StateDone, result.State)
	assert.Equal(t, "/course/view.php?id="+strconv.Itoa(result.CourseID), result.RedirectURL)

	course, err := h.courses.GetCourse(ctx, result.CourseID)
	require.NoError(t, err)
	assert.Equal(t, "X", course.Fullname)
	assert.Equal(t, "x1", course.Shortname)
	assert.Equal(t, "X-ID", course.IDNumber)
	assert.Equal(t, "Course summary from the form", course.Summary)
	assert.Equal(t, 1, course.AudienceVisible)

	source, err := h.courses.GetCourseContent(ctx, h.sourceID)
	require.NoError(t, err)
	created, err := h.courses.GetCourseContent(ctx, result.CourseID)
	require.NoError(t, err)
	assert.Equal(t, modules(source.Activities), modules(created.Activities))
	assert.Equal(t, blockNames(source.Blocks), blockNames(created.Blocks))

	enrolments, err := h.courses.GetEnrolmentInstances(ctx, result.CourseID)
	require.NoError(t, err)
	assert.Len(t, enrolments, 2)

	fields, err := h.courses.GetCustomFieldData(ctx, result.CourseID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Learning channel", fields[0].Data)

	stored, err := h.templates.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasArchive())

	assert.Equal(t, []string{events.TypeArchiveCreated, events.TypeCourseCreated}, h.publisher.types())
	assert.Empty(t, h.workFiles(t))

	// a second course from the same template reuses the archive
	req2 := newCourseRequest(tpl.ID, h.categoryID)
	req2.Shortname = "x2"
	_, err = h.courseSvc.CreateCourse(ctx, actor, req2)
	require.NoError(t, err)
	assert.Equal(t, 1, h.engine.creates)
}

func TestImportIntoCourse_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tpl := h.createTemplate(t, "Starter", "")

	targetID := h.db.SeedCourse(t, h.categoryID, "Existing", "existing")
	h.db.Exec(t, `UPDATE courses SET idnumber = ? WHERE id = ?`, "EX-1", targetID)

	result, err := h.courseSvc.ImportIntoCourse(ctx, actor, &model.ImportRequest{TemplateID: tpl.ID, CourseID: targetID})
	require.NoError(t, err)
	assert.Equal(t, MessageImported, result.Message)
	assert.Equal(t, targetID, result.CourseID)

	course, err := h.courses.GetCourse(ctx, targetID)
	require.NoError(t, err)
	assert.Equal(t, "Existing", course.Fullname)
	assert.Equal(t, "existing", course.Shortname)
	assert.Equal(t, "EX-1", course.IDNumber)

	content, err := h.courses.GetCourseContent(ctx, targetID)
	require.NoError(t, err)
	assert.Len(t, content.Activities, 3)

	enrolments, err := h.courses.GetEnrolmentInstances(ctx, targetID)
	require.NoError(t, err)
	assert.Len(t, enrolments, 2)

	assert.Contains(t, h.publisher.types(), events.TypeCourseImported)
}

func TestCreateCourse_Guards(t *testing.T) {
	t.Run("no templates", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.courseSvc.CreateCourse(context.Background(), actor, newCourseRequest(1, h.categoryID))
		assert.ErrorIs(t, err, ErrNoTemplates)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("shortname taken lists clashing courses", func(t *testing.T) {
		h := newHarness(t)
		tpl := h.createTemplate(t, "Starter", "")
		h.db.SeedCourse(t, h.categoryID, "First", "dup")
		h.db.SeedCourse(t, h.categoryID, "Second", "dup")

		req := newCourseRequest(tpl.ID, h.categoryID)
		req.Shortname = "dup"

		_, err := h.courseSvc.CreateCourse(context.Background(), actor, req)
		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "shortname", verr.Fields[0].Field)
		assert.Contains(t, verr.Fields[0].Error, "(First,Second)")
		assert.Equal(t, 0, h.engine.creates)
	})

	t.Run("unknown category", func(t *testing.T) {
		h := newHarness(t)
		tpl := h.createTemplate(t, "Starter", "")

		_, err := h.courseSvc.CreateCourse(context.Background(), actor, newCourseRequest(tpl.ID, 999))
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("unknown template", func(t *testing.T) {
		h := newHarness(t)
		h.createTemplate(t, "Starter", "")

		_, err := h.courseSvc.CreateCourse(context.Background(), actor, newCourseRequest(999, h.categoryID))
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("field limits", func(t *testing.T) {
		h := newHarness(t)
		tpl := h.createTemplate(t, "Starter", "")

		req := newCourseRequest(tpl.ID, h.categoryID)
		req.Fullname = ""
		_, err := h.courseSvc.CreateCourse(context.Background(), actor, req)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("engine failure", func(t *testing.T) {
		h := newHarness(t)
		tpl := h.createTemplate(t, "Starter", "")
		h.engine.failCreate = errors.New("engine down")
		before := h.db.Count(t, "courses")

		_, err := h.courseSvc.CreateCourse(context.Background(), actor, newCourseRequest(tpl.ID, h.categoryID))
		assert.ErrorIs(t, err, model.ErrExternalEngine)
		assert.Equal(t, before, h.db.Count(t, "courses"))
	})
}

func TestImportIntoCourse_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.courseSvc.ImportIntoCourse(ctx, actor, &model.ImportRequest{TemplateID: 1, CourseID: h.sourceID})
	assert.ErrorIs(t, err, ErrNoTemplates)

	tpl := h.createTemplate(t, "Starter", "")

	_, err = h.courseSvc.ImportIntoCourse(ctx, actor, &model.ImportRequest{TemplateID: tpl.ID, CourseID: model.SiteCourseID})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = h.courseSvc.ImportIntoCourse(ctx, actor, &model.ImportRequest{TemplateID: tpl.ID, CourseID: 999})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.courseSvc.ImportIntoCourse(ctx, actor, &model.ImportRequest{TemplateID: 999, CourseID: h.sourceID})
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, 0, h.engine.creates)
}
