package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/model"
)

func TestFinish_CopiesEnrolmentsAndSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")

	require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{Summary: "fresh summary"}))

	instances, err := h.courses.GetEnrolmentInstances(ctx, targetID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "manual", instances[0].Enrol)
	assert.Equal(t, "self", instances[1].Enrol)
	assert.Equal(t, "Welcome", instances[1].CustomText)

	source, err := h.courses.GetEnrolmentInstances(ctx, h.sourceID)
	require.NoError(t, err)
	assert.Len(t, source, 2, "source enrolments are not moved")

	course, err := h.courses.GetCourse(ctx, targetID)
	require.NoError(t, err)
	assert.Equal(t, "fresh summary", course.Summary)
}

func TestFinish_BlankSummaryKeepsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")
	require.NoError(t, h.courses.UpdateSummary(ctx, targetID, "original"))

	require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{Summary: "  "}))

	course, err := h.courses.GetCourse(ctx, targetID)
	require.NoError(t, err)
	assert.Equal(t, "original", course.Summary)
}

func TestFinish_LearningChannelHeading(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")
	require.NoError(t, h.courses.AddCustomFieldData(ctx, &model.CustomFieldData{CourseID: targetID, FieldID: 9, Data: "copied from template"}))
	require.NoError(t, h.courses.AddCustomFieldData(ctx, &model.CustomFieldData{CourseID: targetID, FieldID: 4, Data: "other field"}))

	require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{
		SetChannel:    true,
		CustomHeading: "<p>Channel heading</p>",
	}))

	data, err := h.courses.GetCustomFieldData(ctx, targetID)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, 9, data[0].FieldID)
	assert.Equal(t, "<p>Channel heading</p>", data[0].Data)

	formats, err := h.courses.GetContentFormats(ctx, targetID)
	require.NoError(t, err)
	assert.Equal(t, []string{"learningchannel"}, formats)
}

func TestFinish_AudienceVisibility(t *testing.T) {
	t.Run("enabled copies cohorts for new courses", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Features.AudienceVisibility = true })
		ctx := context.Background()
		targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")

		require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{NewCourse: true}))

		cohorts, err := h.courses.GetVisibleCohorts(ctx, targetID)
		require.NoError(t, err)
		assert.Equal(t, []int{11}, cohorts)

		course, err := h.courses.GetCourse(ctx, targetID)
		require.NoError(t, err)
		assert.Equal(t, 1, course.AudienceVisible)
	})

	t.Run("imports are left alone", func(t *testing.T) {
		h := newHarness(t, func(c *config.Config) { c.Features.AudienceVisibility = true })
		ctx := context.Background()
		targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")

		require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{}))

		cohorts, err := h.courses.GetVisibleCohorts(ctx, targetID)
		require.NoError(t, err)
		assert.Empty(t, cohorts)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		targetID := h.db.SeedCourse(t, h.categoryID, "Target", "target")

		require.NoError(t, h.finisher.Finish(ctx, h.sourceID, targetID, model.FinishOptions{NewCourse: true}))

		cohorts, err := h.courses.GetVisibleCohorts(ctx, targetID)
		require.NoError(t, err)
		assert.Empty(t, cohorts)
	})
}

func TestFinish_MissingTargetFails(t *testing.T) {
	h := newHarness(t)

	err := h.finisher.Finish(context.Background(), h.sourceID, 999, model.FinishOptions{Summary: "x"})
	assert.ErrorIs(t, err, model.ErrOperationFailed)
}
