package handler

import (
	"net/http"
	"strconv"

	"github.com/yourorg/course-template-service/internal/middleware"
	"github.com/yourorg/course-template-service/internal/model"
	"github.com/yourorg/course-template-service/internal/service"
	"github.com/yourorg/course-template-service/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TemplateHandler handles template-related HTTP requests
type TemplateHandler struct {
	templateService *service.TemplateService
	archiveService  *service.ArchiveService
	logger          *zap.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateService *service.TemplateService, archiveService *service.ArchiveService, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		archiveService:  archiveService,
		logger:          logger,
	}
}

// ListTemplates handles listing the selectable templates
// GET /api/v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	page := utils.ParsePage(c, 50, 200)

	templates, err := h.templateService.ListTemplates(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		utils.SendServiceError(c, err)
		return
	}

	utils.SendPage(c, http.StatusOK, templates, page)
}

// GetTemplate handles retrieving a single template
// GET /api/v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}

	template, err := h.templateService.GetTemplate(c.Request.Context(), id)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

// CreateTemplate handles creating a template from an existing course
// POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var request model.TemplateCreate
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	template, err := h.templateService.CreateTemplate(c.Request.Context(), &request)
	if err != nil {
		h.logger.Error("Failed to create template", zap.Error(err), zap.Int("course_id", request.CourseID))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": template})
}

// UpdateTemplate handles updating name, description or tags
// PUT /api/v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}

	var request model.TemplateUpdate
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	template, err := h.templateService.UpdateTemplate(c.Request.Context(), id, &request)
	if err != nil {
		h.logger.Error("Failed to update template", zap.Error(err), zap.Int("id", id))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

// DeleteTemplate handles deleting a template
// DELETE /api/v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}

	if err := h.templateService.DeleteTemplate(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		h.logger.Error("Failed to delete template", zap.Error(err), zap.Int("id", id))
		utils.SendServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadScreenshot handles uploading the template screenshot
// POST /api/v1/templates/:id/screenshot
func (h *TemplateHandler) UploadScreenshot(c *gin.Context) {
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.SendErrorResponse(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	template, err := h.templateService.SetScreenshot(c.Request.Context(), id, header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to store screenshot", zap.Error(err), zap.Int("id", id))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

// EnsureArchive handles creating the template archive ahead of first use
// POST /api/v1/templates/:id/archive
func (h *TemplateHandler) EnsureArchive(c *gin.Context) {
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}

	template, err := h.templateService.GetTemplate(c.Request.Context(), id)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	ref, err := h.archiveService.EnsureArchive(c.Request.Context(), template, middleware.UserID(c))
	if err != nil {
		h.logger.Error("Failed to ensure archive", zap.Error(err), zap.Int("id", id))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"filename": ref.Filename,
		"path":     ref.Path(),
	}})
}

// ListTags handles listing tags with their usage counts
// GET /api/v1/tags
func (h *TemplateHandler) ListTags(c *gin.Context) {
	tags, err := h.templateService.ListTags(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list tags", zap.Error(err))
		utils.SendServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tags})
}

// paramID parses a positive integer path parameter, writing a 400 when it is invalid
func paramID(c *gin.Context, message string) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.SendErrorResponse(c, http.StatusBadRequest, message)
		return 0, false
	}
	return id, true
}
