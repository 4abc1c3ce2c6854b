package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
)

func (s *Server) GetSettings(c *gin.Context) {
	resp, err := s.settingsSvc.Ensure(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req settingsdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settingsSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPaymentClaimRows(c *gin.Context) {
	rows, err := s.settingsSvc.PaymentClaimRows(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// ImportPaymentClaims loads a payment-claim CSV sent as the multipart field
// "file". replace=true swaps the current rows instead of appending.
func (s *Server) ImportPaymentClaims(c *gin.Context) {
	replace, err := parseOptionalBool(c.Query("replace"))
	if err != nil {
		AbortWithError(c, newValidationError("replace", "invalid_replace", "invalid replace"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "file_required", "no file received"))
		return
	}
	f, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer f.Close()

	result, err := s.paymentClaims.Import(c.Request.Context(), f, replace != nil && *replace)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordImportedRows(c.Request.Context(), "payment_claims", result.Parsed)

	c.JSON(http.StatusOK, gin.H{"data": result})
}
