package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type auditExportRequest struct {
	ClaimIDs []int64 `json:"claimIds"`
}

// ExportAudit returns the audit ZIP for the claims in the body, or for every
// claim when none are listed. Ids may also come as ?ids=1,2,3.
func (s *Server) ExportAudit(c *gin.Context) {
	var req auditExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if len(req.ClaimIDs) == 0 {
		ids, err := parseIDList(c.QueryArray("ids"))
		if err != nil {
			AbortWithError(c, newValidationError("ids", "invalid_ids", "invalid ids"))
			return
		}
		req.ClaimIDs = ids
	}

	var buf bytes.Buffer
	manifest, err := s.exporter.AuditZip(c.Request.Context(), &buf, req.ClaimIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordExport(c.Request.Context(), "audit_zip")

	name := "audit-" + manifest.GeneratedAt.Format("20060102-150405") + ".zip"
	c.Header("Content-Disposition", attachment(name))
	c.Header("X-Claims-Exported", strconv.Itoa(manifest.NbClaims))
	c.Header("X-Files-Exported", strconv.Itoa(manifest.NbFilesExported))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (s *Server) ExportPaymentClaimPDF(c *gin.Context) {
	doc, err := s.exporter.PaymentClaimPDF(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordExport(c.Request.Context(), "payment_claim_pdf")

	c.Header("Content-Disposition", attachment(doc.Name))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
