package legacyimport

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"TEMPO-backend/internal/workclock"
)

// 50MB。旧DBは数年分でも数MB程度なので十分。
const maxUploadSize = 50 * 1024 * 1024

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/legacy_import", h.Import)
}

func (h *Handler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	header, err := c.FormFile("database")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'database' file upload"})
		return
	}
	if filepath.Ext(header.Filename) != ".db" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .db files are allowed"})
		return
	}

	tempDir, err := os.MkdirTemp("", "legacy_import_*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create temporary directory"})
		return
	}
	defer os.RemoveAll(tempDir)

	tempPath := filepath.Join(tempDir, filepath.Base(header.Filename))
	if err := c.SaveUploadedFile(header, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save uploaded file"})
		return
	}

	imported, err := h.svc.Import(c.Request.Context(), tempPath)
	if err != nil {
		c.JSON(workclock.ToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": imported})
}
