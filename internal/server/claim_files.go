package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rfacto/internal/actorcontext"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	obslogger "github.com/smallbiznis/rfacto/internal/observability/logger"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for the form boundaries around the file.
const multipartOverhead = 1 << 20

func (s *Server) ListClaimFiles(c *gin.Context) {
	resp, err := s.fileSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UploadClaimFile stores the multipart field "file" against the claim.
// The optional "category" field is invoice or claim.
func (s *Server) UploadClaimFile(c *gin.Context) {
	ctx := c.Request.Context()
	if !s.allowUpload(c) {
		return
	}

	if s.cfg.UploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.UploadMaxBytes+multipartOverhead)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, filedomain.ErrFileTooLarge)
			return
		}
		AbortWithError(c, filedomain.ErrFileRequired)
		return
	}
	f, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer f.Close()

	resp, err := s.fileSvc.Upload(ctx, filedomain.UploadRequest{
		ClaimID:  strings.TrimSpace(c.Param("id")),
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Category: strings.TrimSpace(c.PostForm("category")),
		Body:     f,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordStoredBytes(ctx, s.cfg.Storage.Driver, resp.Size)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// allowUpload applies the per-caller upload budget. Limiter failures are
// logged and the upload proceeds.
func (s *Server) allowUpload(c *gin.Context) bool {
	if !s.uploadLimiter.Enabled() {
		return true
	}
	ctx := c.Request.Context()
	result, err := s.uploadLimiter.Allow(ctx, actorcontext.ActorEmail(ctx))
	if err != nil {
		obslogger.FromContext(ctx).Warn("upload limiter unavailable", zap.Error(err))
		return true
	}
	if !result.Allowed {
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds()+0.5)))
		}
		AbortWithError(c, ErrRateLimited)
		return false
	}
	return true
}

func (s *Server) DeleteClaimFile(c *gin.Context) {
	err := s.fileSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("fileId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
