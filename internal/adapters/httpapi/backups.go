package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// maxBackupBytes bounds an uploaded backup document.
const maxBackupBytes = 64 << 20

type restoreRequest struct {
	Key string `json:"key" validate:"required"`
}

func (s *Server) exportBackup(c *gin.Context) {
	info, payload, err := s.svc.ExportBackup(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	day := info.LastModified
	if day.IsZero() {
		day = time.Now().UTC()
	}
	if info.Key != "" {
		c.Header("X-Backup-Key", info.Key)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="mechanic_pro_db_backup_%s.json"`, day.Format(time.DateOnly)))
	c.Data(http.StatusOK, "application/json", payload)
}

func (s *Server) importBackup(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBackupBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Error: "backup too large"})
			return
		}
		s.fail(c, badRequest("read body: %v", err))
		return
	}
	report, _, err := s.svc.ImportBackup(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"migration": report})
}

func (s *Server) listBackups(c *gin.Context) {
	backups, err := s.svc.ListBackups(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, backups)
}

func (s *Server) backupURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		s.fail(c, badRequest("key is required"))
		return
	}
	url, err := s.svc.BackupURL(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

func (s *Server) restoreBackup(c *gin.Context) {
	var req restoreRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	report, _, err := s.svc.RestoreBackup(c.Request.Context(), req.Key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "migration": report})
}
