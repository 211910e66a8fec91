package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/testutil"
)

func newRepos(t *testing.T) (*testutil.SQLiteTestHelper, *TemplateRepository, *TagRepository, *CourseRepository) {
	h := testutil.NewSQLiteTestHelper(t)
	logger := zap.NewNop()
	return h, NewTemplateRepository(h.DB, logger), NewTagRepository(h.DB, logger), NewCourseRepository(h.DB, logger)
}

func createTemplate(t *testing.T, repo *TemplateRepository, name string, courseID int) int {
	t.Helper()
	id, err := repo.Create(context.Background(), &model.Template{Name: name, CourseID: courseID, TimeCreated: 1700000000})
	require.NoError(t, err)
	return id
}

func TestTemplateRepository_ListOrderedAndJoined(t *testing.T) {
	h, templates, _, _ := newRepos(t)
	ctx := context.Background()

	c1 := h.SeedCourse(t, 1, "Course one", "c1")
	c2 := h.SeedCourse(t, 1, "Course two", "c2")

	createTemplate(t, templates, "Zeta", c1)
	createTemplate(t, templates, "Alpha", c2)
	createTemplate(t, templates, "Orphaned", 999)

	list, err := templates.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Zeta", list[1].Name)

	count, err := templates.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTemplateRepository_GetUpdateDelete(t *testing.T) {
	h, templates, _, _ := newRepos(t)
	ctx := context.Background()

	c1 := h.SeedCourse(t, 1, "Course one", "c1")
	id := createTemplate(t, templates, "Template", c1)

	tpl, err := templates.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Template", tpl.Name)
	assert.False(t, tpl.HasArchive())
	assert.Nil(t, tpl.Screenshot)

	tpl.Name = "Renamed"
	tpl.Description = "desc"
	require.NoError(t, templates.Update(ctx, tpl))

	require.NoError(t, templates.SetFilename(ctx, id, "coursetemplate_1_2_3.mbz"))
	require.NoError(t, templates.SetScreenshot(ctx, id, "shot.png"))

	tpl, err = templates.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", tpl.Name)
	assert.Equal(t, "desc", tpl.Description)
	assert.True(t, tpl.HasArchive())
	assert.Equal(t, "coursetemplate_1_2_3.mbz", tpl.ArchiveName())
	require.NotNil(t, tpl.Screenshot)
	assert.Equal(t, "shot.png", *tpl.Screenshot)

	require.NoError(t, templates.Delete(ctx, id))

	_, err = templates.GetByID(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, templates.Delete(ctx, id), model.ErrNotFound)
	assert.ErrorIs(t, templates.SetFilename(ctx, id, "x"), model.ErrNotFound)
}

func TestTagRepository_DeleteTemplateInstancesRemovesOrphans(t *testing.T) {
	h, templates, tags, _ := newRepos(t)
	ctx := context.Background()

	c1 := h.SeedCourse(t, 1, "Course one", "c1")
	t1 := createTemplate(t, templates, "T1", c1)
	t2 := createTemplate(t, templates, "T2", c1)

	a, err := tags.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	b, err := tags.GetOrCreate(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, tags.AddToTemplate(ctx, a.ID, t1))
	require.NoError(t, tags.AddToTemplate(ctx, b.ID, t1))
	require.NoError(t, tags.AddToTemplate(ctx, a.ID, t2))

	require.NoError(t, tags.DeleteTemplateInstances(ctx, t1))

	assert.False(t, h.RowExists(t, "template_tag_instances", "template_id = ?", t1))
	assert.True(t, h.RowExists(t, "template_tags", "id = ?", a.ID), "shared tag survives")
	assert.False(t, h.RowExists(t, "template_tags", "id = ?", b.ID), "orphan tag removed")

	remaining, err := tags.GetByTemplateID(ctx, t2)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "a", remaining[0].Name)
}

func TestTagRepository_GetOrCreateIsCaseInsensitive(t *testing.T) {
	_, _, tags, _ := newRepos(t)
	ctx := context.Background()

	first, err := tags.GetOrCreate(ctx, "Science")
	require.NoError(t, err)
	second, err := tags.GetOrCreate(ctx, "science")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Science", second.Name)
}

func TestTagRepository_CountsAndBatchLookup(t *testing.T) {
	h, templates, tags, _ := newRepos(t)
	ctx := context.Background()

	c1 := h.SeedCourse(t, 1, "Course one", "c1")
	t1 := createTemplate(t, templates, "T1", c1)
	t2 := createTemplate(t, templates, "T2", c1)

	a, err := tags.GetOrCreate(ctx, "alpha")
	require.NoError(t, err)
	b, err := tags.GetOrCreate(ctx, "beta")
	require.NoError(t, err)
	require.NoError(t, tags.AddToTemplate(ctx, a.ID, t1))
	require.NoError(t, tags.AddToTemplate(ctx, a.ID, t2))
	require.NoError(t, tags.AddToTemplate(ctx, b.ID, t2))

	counts, err := tags.GetAllWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "alpha", counts[0].Name)
	assert.Equal(t, 2, counts[0].TemplateCount)
	assert.Equal(t, 1, counts[1].TemplateCount)

	byTemplate, err := tags.GetByTemplateIDs(ctx, []int{t1, t2})
	require.NoError(t, err)
	assert.Len(t, byTemplate[t1], 1)
	assert.Len(t, byTemplate[t2], 2)

	empty, err := tags.GetByTemplateIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, tags.RemoveFromTemplate(ctx, t2, []int{b.ID}))
	assert.False(t, h.RowExists(t, "template_tags", "id = ?", b.ID))
}

func TestCourseRepository_PendingCourseLifecycle(t *testing.T) {
	h, _, _, courses := newRepos(t)
	ctx := context.Background()

	cat := h.SeedCategory(t, "Miscellaneous")
	ok, err := courses.CategoryExists(ctx, cat)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = courses.CategoryExists(ctx, cat+100)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := courses.CreatePending(ctx, cat)
	require.NoError(t, err)

	course, err := courses.GetCourse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, cat, course.CategoryID)
	assert.Equal(t, PendingCourseShortname, course.Shortname)

	course.Fullname = "X"
	course.Shortname = "x1"
	course.StartDate = 42
	require.NoError(t, courses.UpdateCourse(ctx, course))
	require.NoError(t, courses.UpdateIDNumber(ctx, id, "ID-1"))
	require.NoError(t, courses.UpdateSummary(ctx, id, "new summary"))
	require.NoError(t, courses.SetAudienceVisible(ctx, id, 1))

	course, err = courses.GetCourse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "X", course.Fullname)
	assert.Equal(t, "ID-1", course.IDNumber)
	assert.Equal(t, "new summary", course.Summary)
	assert.Equal(t, int64(42), course.StartDate)
	assert.Equal(t, 1, course.AudienceVisible)

	found, err := courses.FindByShortname(ctx, "x1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)

	require.NoError(t, courses.AddCourseContent(ctx, id, &model.CourseContent{
		Activities: []model.Activity{{Module: "forum", Name: "News"}},
	}))
	require.NoError(t, courses.Delete(ctx, id))

	_, err = courses.GetCourse(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, 0, h.Count(t, "course_activities"))
	assert.ErrorIs(t, courses.Delete(ctx, id), model.ErrNotFound)
}

func TestCourseRepository_Content(t *testing.T) {
	h, _, _, courses := newRepos(t)
	ctx := context.Background()

	id := h.SeedCourse(t, 1, "Course", "c")

	require.NoError(t, courses.AddCourseContent(ctx, id, &model.CourseContent{
		Activities: []model.Activity{
			{Section: 1, Module: "quiz", Name: "Quiz"},
			{Section: 0, Module: "forum", Name: "News"},
		},
		Blocks:  []model.Block{{BlockName: "html", Region: "side-pre", Weight: 2, Config: "{}"}},
		Filters: []model.Filter{{Filter: "mathjaxloader", Active: 1}},
	}))
	require.NoError(t, courses.AddCourseContent(ctx, id, &model.CourseContent{
		Filters: []model.Filter{{Filter: "mathjaxloader", Active: -1}},
	}))

	content, err := courses.GetCourseContent(ctx, id)
	require.NoError(t, err)
	require.Len(t, content.Activities, 2)
	assert.Equal(t, "forum", content.Activities[0].Module)
	assert.Equal(t, id, content.Activities[0].CourseID)
	require.Len(t, content.Blocks, 1)
	assert.Equal(t, "html", content.Blocks[0].BlockName)
	require.Len(t, content.Filters, 1)
	assert.Equal(t, -1, content.Filters[0].Active)
}

func TestCourseRepository_EnrolmentsFieldsAndCohorts(t *testing.T) {
	h, _, _, courses := newRepos(t)
	ctx := context.Background()

	id := h.SeedCourse(t, 1, "Course", "c")

	_, err := courses.AddEnrolmentInstance(ctx, &model.EnrolmentInstance{CourseID: id, Enrol: "manual", RoleID: 5, SortOrder: 0})
	require.NoError(t, err)
	_, err = courses.AddEnrolmentInstance(ctx, &model.EnrolmentInstance{CourseID: id, Enrol: "self", RoleID: 5, SortOrder: 1, CustomText: "welcome"})
	require.NoError(t, err)

	instances, err := courses.GetEnrolmentInstances(ctx, id)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "manual", instances[0].Enrol)
	assert.Equal(t, "welcome", instances[1].CustomText)

	require.NoError(t, courses.AddCustomFieldData(ctx, &model.CustomFieldData{CourseID: id, FieldID: 3, Data: "old"}))
	require.NoError(t, courses.DeleteCustomFieldData(ctx, id))
	require.NoError(t, courses.AddCustomFieldData(ctx, &model.CustomFieldData{CourseID: id, FieldID: 3, Data: "heading"}))

	data, err := courses.GetCustomFieldData(ctx, id)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, "heading", data[0].Data)

	require.NoError(t, courses.AddContentFormat(ctx, id, "learningchannel"))
	require.NoError(t, courses.AddContentFormat(ctx, id, "learningchannel"))
	formats, err := courses.GetContentFormats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"learningchannel"}, formats)

	require.NoError(t, courses.AddVisibleCohort(ctx, id, 7))
	require.NoError(t, courses.AddVisibleCohort(ctx, id, 7))
	require.NoError(t, courses.AddVisibleCohort(ctx, id, 3))
	cohorts, err := courses.GetVisibleCohorts(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, cohorts)
}
