package handler

import (
	"net/http"

	"github.com/yourorg/course-template-service/internal/middleware"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/service"
	"github.com/yourorg/course-template-service/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CourseHandler handles creating and filling courses from templates
type CourseHandler struct {
	courseService *service.CourseService
	logger        *zap.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courseService *service.CourseService, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		logger:        logger,
	}
}

// CreateCourse handles creating a new course from a template
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var request model.NewCourseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.courseService.CreateCourse(c.Request.Context(), h.actor(c), &request)
	if err != nil {
		h.logger.Error("Failed to create course from template",
			zap.Error(err),
			zap.Int("template_id", request.TemplateID),
			zap.Int("category_id", request.CategoryID))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ImportIntoCourse handles adding template content to an existing course
// POST /api/v1/courses/:id/import
func (h *CourseHandler) ImportIntoCourse(c *gin.Context) {
	courseID, ok := paramID(c, "Invalid course ID")
	if !ok {
		return
	}

	var request model.ImportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	request.CourseID = courseID

	result, err := h.courseService.ImportIntoCourse(c.Request.Context(), h.actor(c), &request)
	if err != nil {
		h.logger.Error("Failed to import template",
			zap.Error(err),
			zap.Int("template_id", request.TemplateID),
			zap.Int("course_id", courseID))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CourseHandler) actor(c *gin.Context) model.Actor {
	return model.Actor{UserID: middleware.UserID(c)}
}
