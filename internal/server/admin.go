package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
)

// ExportBackup downloads the whole workspace as a JSON document.
func (s *Server) ExportBackup(c *gin.Context) {
	doc, err := s.backupSvc.Export(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordExport(c.Request.Context(), "backup")

	name := "rfacto-backup-" + doc.Metadata.Timestamp.Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", attachment(name))
	c.JSON(http.StatusOK, doc)
}

// ImportBackup replaces every record with the posted document.
func (s *Server) ImportBackup(c *gin.Context) {
	var doc backupdomain.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		AbortWithError(c, backupdomain.ErrInvalidBackup)
		return
	}

	result, err := s.backupSvc.Import(c.Request.Context(), doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordImportedRows(c.Request.Context(), "backup", result.Claims)

	c.JSON(http.StatusOK, gin.H{"success": true, "imported": result})
}

func (s *Server) ResetAll(c *gin.Context) {
	result, err := s.backupSvc.Reset(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": result})
}

// Snapshot writes a backup to the server's backup directory.
func (s *Server) Snapshot(c *gin.Context) {
	name, err := s.backupSvc.Snapshot(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"name": name}})
}
