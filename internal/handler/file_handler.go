package handler

import (
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/yourorg/course-template-service/internal/service"
	"github.com/yourorg/course-template-service/internal/storage"
	"github.com/yourorg/course-template-service/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler serves files stored in the template file areas
type FileHandler struct {
	templateService *service.TemplateService
	logger          *zap.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(templateService *service.TemplateService, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		templateService: templateService,
		logger:          logger,
	}
}

// ServeFile streams a template file. Screenshots are shown inline, archives are
// sent as attachments.
// GET /api/v1/pluginfile/:area/:id/*path
func (h *FileHandler) ServeFile(c *gin.Context) {
	area := c.Param("area")
	id, ok := paramID(c, "Invalid template ID")
	if !ok {
		return
	}
	relativePath := c.Param("path")

	content, info, err := h.templateService.ServeFile(c.Request.Context(), area, id, relativePath)
	if err != nil {
		if utils.StatusForError(err) == http.StatusInternalServerError {
			h.logger.Error("Failed to open file", zap.Error(err), zap.String("area", area), zap.Int("id", id))
		}
		utils.SendServiceError(c, err)
		return
	}
	defer content.Close()

	disposition := "inline"
	if area != storage.AreaScreenshot {
		disposition = "attachment"
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, info.Size, contentType, content, map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%s", disposition, strconv.Quote(path.Base(relativePath))),
		"Cache-Control":       "private, max-age=86400",
	})
}
